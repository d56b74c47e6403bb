// Package dsl 提供基于 CEL (Common Expression Language) 的 Item 表达式求值，
// 用于配置驱动的过滤规则。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/brewrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的表达式，可并发复用。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：item.score > 0.7
//   - 标签：label.recall_source == "content"
//   - 元信息：item.meta.seed == "Pliny the Elder"
//   - 逻辑：label.recall_source == "user_cf" && item.score >= 1.5
//   - 请求：rctx.user_id != ""
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，要求结果为 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Eval 对 item 求值。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return boolean, got %T", p.expr, out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]interface{} {
	labels := make(map[string]interface{}, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = v.Value
	}

	meta := make(map[string]interface{}, len(item.Meta))
	for k, v := range item.Meta {
		meta[k] = v
	}

	ctx := map[string]interface{}{
		"user_id": "",
		"seeds":   []string{},
		"params":  map[string]interface{}{},
	}
	if rctx != nil {
		ctx["user_id"] = rctx.UserID
		ctx["seeds"] = append([]string{}, rctx.Seeds...)
		if rctx.Params != nil {
			ctx["params"] = rctx.Params
		}
	}

	return map[string]interface{}{
		"item": map[string]interface{}{
			"id":    item.ID,
			"score": item.Score,
			"meta":  meta,
		},
		"label": labels,
		"rctx":  ctx,
	}
}
