// internal/service/order/domain/policy/signature.go
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultSignatureRule 是签收策略的缺省规则：
// 总价超过 999.99 或客户主动要求时需要签收。
const DefaultSignatureRule = `orderTotal > 999.99 || requested`

// SignaturePolicy 把签收判定表达为一条可配置的 CEL 规则，
// 规则在启动时编译一次，之后的求值是纯函数。
type SignaturePolicy struct {
	prg cel.Program
}

// NewSignaturePolicy 编译给定规则。rule 为空时使用缺省规则。
// 规则必须产出 bool，否则在启动期就报错，而不是在更新路径上。
func NewSignaturePolicy(rule string) (*SignaturePolicy, error) {
	if rule == "" {
		rule = DefaultSignatureRule
	}

	env, err := cel.NewEnv(
		cel.Variable("orderTotal", cel.DoubleType),
		cel.Variable("requested", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid signature rule %q: %w", rule, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("signature rule %q must evaluate to bool, got %s", rule, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL program: %w", err)
	}
	return &SignaturePolicy{prg: prg}, nil
}

// MustSignaturePolicy 供组装根与测试使用。
func MustSignaturePolicy(rule string) *SignaturePolicy {
	p, err := NewSignaturePolicy(rule)
	if err != nil {
		panic(err)
	}
	return p
}

// Requires 实现 domain.SignaturePolicy。
func (p *SignaturePolicy) Requires(orderTotal float64, requested bool) (bool, error) {
	out, _, err := p.prg.Eval(map[string]interface{}{
		"orderTotal": orderTotal,
		"requested":  requested,
	})
	if err != nil {
		return false, fmt.Errorf("signature rule evaluation failed: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("signature rule produced %T, expected bool", out.Value())
	}
	return result, nil
}
