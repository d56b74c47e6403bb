package filter

import (
	"context"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
)

// RatedFilter 过滤掉已有用户评过分的物品（只推荐没喝过的）。
// 对显式种子请求（没有 UserID）不生效。
//
// 离线评估依赖推荐结果与用户历史评分的重叠，评估用的 Pipeline 不要挂这个过滤器。
type RatedFilter struct {
	Utility *matrix.UtilityMatrix
}

func (f *RatedFilter) Name() string {
	return "filter.rated"
}

func (f *RatedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.Utility == nil || rctx == nil || rctx.UserID == "" || !f.Utility.HasUser(rctx.UserID) {
		return false, nil
	}
	if !f.Utility.HasItem(item.ID) {
		return false, nil
	}
	v, err := f.Utility.Rating(rctx.UserID, item.ID)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
