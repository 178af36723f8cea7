package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain/policy"
)

func TestSignaturePolicy(t *testing.T) {
	p, err := policy.NewSignaturePolicy("")
	require.NoError(t, err)

	cases := []struct {
		total     float64
		requested bool
		want      bool
	}{
		{1100, false, true},
		{999.99, false, false}, // 边界值不触发
		{1000, false, true},
		{9.99, false, false},
		{9.99, true, true},
	}
	for _, tc := range cases {
		got, err := p.Requires(tc.total, tc.requested)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "total=%v requested=%v", tc.total, tc.requested)
	}
}

func TestSignaturePolicyCustomRule(t *testing.T) {
	p, err := policy.NewSignaturePolicy(`orderTotal >= 50.0`)
	require.NoError(t, err)

	got, err := p.Requires(50, false)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = p.Requires(49.99, true)
	require.NoError(t, err)
	assert.False(t, got, "custom rule ignores the request flag")
}

func TestSignaturePolicyInvalidRule(t *testing.T) {
	_, err := policy.NewSignaturePolicy(`orderTotal +`)
	assert.Error(t, err)

	_, err = policy.NewSignaturePolicy(`orderTotal + 1.0`) // 非 bool 输出
	assert.Error(t, err)
}
