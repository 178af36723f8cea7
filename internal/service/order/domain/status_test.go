package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain"
)

func TestStatusCanTransitionTo(t *testing.T) {
	allowed := []struct{ from, to domain.Status }{
		{domain.StatusPending, domain.StatusApproved},
		{domain.StatusPending, domain.StatusCanceled},
		{domain.StatusApproved, domain.StatusShipping},
		{domain.StatusApproved, domain.StatusCanceled},
		{domain.StatusShipping, domain.StatusComplete},
		{domain.StatusShipping, domain.StatusCanceled},
	}
	for _, tc := range allowed {
		assert.NoError(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	forbidden := []struct{ from, to domain.Status }{
		{domain.StatusPending, domain.StatusShipping},  // 跳跃
		{domain.StatusPending, domain.StatusComplete},  // 跳跃
		{domain.StatusApproved, domain.StatusPending},  // 回退
		{domain.StatusShipping, domain.StatusApproved}, // 回退
		{domain.StatusComplete, domain.StatusShipping}, // 离开终态
		{domain.StatusComplete, domain.StatusCanceled}, // 离开终态
		{domain.StatusCanceled, domain.StatusPending},  // 离开终态
		{domain.StatusApproved, domain.StatusApproved}, // 重复写入
	}
	for _, tc := range forbidden {
		err := tc.from.CanTransitionTo(tc.to)
		require.Error(t, err, "%s -> %s should be rejected", tc.from, tc.to)

		var transitionErr *domain.StatusTransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, tc.from, transitionErr.From)
		assert.Equal(t, tc.to, transitionErr.To)
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, domain.StatusComplete.Terminal())
	assert.True(t, domain.StatusCanceled.Terminal())
	assert.False(t, domain.StatusShipping.Terminal())

	assert.True(t, domain.StatusPending.Valid())
	assert.False(t, domain.Status("UNKNOWN").Valid())

	assert.Len(t, domain.AllStatuses(), 5)
}
