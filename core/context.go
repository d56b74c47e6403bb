package core

import "github.com/rushteam/brewrec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户/种子信息，贯穿整个 Pipeline 透传。
//
// 两种请求形态：
//   - 显式种子：Seeds 给出 5 个物品
//   - 已有用户：Seeds 为空，UserID 指向效用矩阵中的真实用户，由种子解析节点从其历史评分中取 Top5
type RecommendContext struct {
	RequestID string
	UserID    string

	// Seeds 是本次请求的种子物品。种子解析完成后会被回写为最终种子。
	Seeds []string

	// Labels 是请求级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级参数，例如 strategy / policy 等
	Params map[string]any
}

// IsSeed 判断 itemID 是否为本次请求的种子物品。
func (rctx *RecommendContext) IsSeed(itemID string) bool {
	if rctx == nil {
		return false
	}
	for _, s := range rctx.Seeds {
		if s == itemID {
			return true
		}
	}
	return false
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
