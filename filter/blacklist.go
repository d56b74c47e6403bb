package filter

import (
	"context"

	"github.com/rushteam/brewrec/core"
)

// BlacklistStore 读取 key 下的黑名单物品。
type BlacklistStore interface {
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// BlacklistFilter 剔除固定列表 ItemIDs 与 Store[Key] 中的物品（例如下架的啤酒）。
// Store 中没有 Key 时只使用 ItemIDs。
type BlacklistFilter struct {
	ItemIDs []string
	Store   BlacklistStore
	Key     string
}

// NewBlacklistFilter 创建黑名单过滤器，adapter 可以为 nil。
func NewBlacklistFilter(itemIDs []string, adapter *StoreAdapter, key string) *BlacklistFilter {
	f := &BlacklistFilter{ItemIDs: itemIDs, Key: key}
	if adapter != nil {
		f.Store = adapter
	}
	return f
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

// Prepare 读取一次黑名单，返回本次请求使用的集合过滤器。
func (f *BlacklistFilter) Prepare(ctx context.Context, _ *core.RecommendContext) (Filter, error) {
	ids, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &setFilter{name: f.Name(), ids: set}, nil
}

// ShouldFilter 单独使用时每次调用都会读取 Store。
func (f *BlacklistFilter) ShouldFilter(ctx context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	ids, err := f.load(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == item.ID {
			return true, nil
		}
	}
	return false, nil
}

func (f *BlacklistFilter) load(ctx context.Context) ([]string, error) {
	ids := append([]string(nil), f.ItemIDs...)
	if f.Store == nil || f.Key == "" {
		return ids, nil
	}
	stored, err := f.Store.GetBlacklist(ctx, f.Key)
	if core.IsStoreNotFound(err) {
		return ids, nil
	}
	if err != nil {
		return nil, err
	}
	return append(ids, stored...), nil
}
