package recall

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/pkg/utils"
)

// 合并策略。除 union 外都只在 Dedup 为 true 时去重，Dedup 为 false 时等同于 union。
const (
	MergeFirst    = "first"    // 相同 ID 保留先出现的（按 Sources 顺序）
	MergeUnion    = "union"    // 保留全部，不去重
	MergePriority = "priority" // 相同 ID 保留优先级更高（索引更小）的来源
	MergeMax      = "max"      // 相同 ID 保留分数更高的（NaN 视为最低）
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 支持超时、限流、多种合并策略，用于混合策略（例如 user_cf + content）。
//
// 输入错误（INVALID_INPUT，例如种子非法）会直接返回；
// 其他错误或超时只丢弃该召回源的结果，不中断其他召回源。
type Fanout struct {
	Sources []Source
	// Dedup 为 false 时跳过去重，MergeStrategy 不再生效
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy string

	Logger zerolog.Logger
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

// Recall 使 Fanout 本身也可以作为另一个 Fanout 的召回源。
func (n *Fanout) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	return n.Process(ctx, rctx, nil)
}

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}
	// 先在主 goroutine 里确定种子，避免各召回源并发回写 rctx.Seeds
	if rctx == nil || len(rctx.Seeds) == 0 {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: fanout needs resolved seeds, put recall.seeds before it")
	}

	// 每个召回源写入自己的槽位，合并时保持 Sources 顺序
	results := make([][]*core.Item, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		s := src
		priority := i // 优先级（索引越小优先级越高）

		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := s.Recall(recallCtx, rctx)
			if err != nil {
				if core.IsInvalidInput(err) {
					return err
				}
				n.Logger.Warn().Err(err).Str("source", s.Name()).Msg("recall source failed, skipped")
				return nil
			}

			// 记录召回来源 label，方便 explain / 观测
			for _, it := range items {
				it.PutLabel("recall_source", utils.Label{Value: s.Name(), Source: "recall"})
				if it.Meta == nil {
					it.Meta = make(map[string]any)
				}
				it.Meta["recall_priority"] = priority
			}

			results[priority] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []*core.Item
	for _, items := range results {
		all = append(all, items...)
	}

	switch n.MergeStrategy {
	case MergePriority:
		return n.mergeByPriority(all), nil
	case MergeUnion:
		return all, nil
	case MergeMax:
		return n.mergeByScore(all), nil
	default:
		return n.mergeFirst(all), nil
	}
}

// mergeFirst 按 ID 去重，保留第一个出现的（默认策略）。Dedup 为 false 时原样返回。
func (n *Fanout) mergeFirst(all []*core.Item) []*core.Item {
	if !n.Dedup {
		return all
	}
	seen := make(map[string]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

// mergeByPriority 相同 ID 时保留优先级更高的（索引更小），输出保持首次出现顺序。
func (n *Fanout) mergeByPriority(all []*core.Item) []*core.Item {
	return n.mergeKeep(all, func(old, it *core.Item) bool {
		return priorityOf(it) < priorityOf(old)
	})
}

// mergeByScore 相同 ID 时保留分数更高的。
func (n *Fanout) mergeByScore(all []*core.Item) []*core.Item {
	return n.mergeKeep(all, func(old, it *core.Item) bool {
		if !it.HasScore() {
			return false
		}
		return !old.HasScore() || it.Score > old.Score
	})
}

func (n *Fanout) mergeKeep(all []*core.Item, replace func(old, it *core.Item) bool) []*core.Item {
	if !n.Dedup {
		return all
	}
	pos := make(map[string]int, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		i, exists := pos[it.ID]
		if !exists {
			pos[it.ID] = len(out)
			out = append(out, it)
			continue
		}
		old := out[i]
		if replace(old, it) {
			for k, v := range old.Labels {
				it.PutLabel(k, v)
			}
			out[i] = it
			continue
		}
		for k, v := range it.Labels {
			old.PutLabel(k, v)
		}
	}
	return out
}

func priorityOf(it *core.Item) int {
	switch v := it.Meta["recall_priority"].(type) {
	case int:
		return v
	case string:
		if p, err := strconv.Atoi(v); err == nil {
			return p
		}
	}
	return 999
}
