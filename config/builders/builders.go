// Package builders 注册内置 Node 的配置构建器，import 即生效。
package builders

import (
	"fmt"

	"github.com/rushteam/brewrec/config"
	"github.com/rushteam/brewrec/filter"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/pkg/conv"
	"github.com/rushteam/brewrec/rank"
	"github.com/rushteam/brewrec/recall"
	"github.com/rushteam/brewrec/rerank"
	"github.com/rushteam/brewrec/store"
)

func init() {
	config.Register("recall.seeds", BuildSeedNode)
	config.Register("recall.user_cf", BuildUserCFNode)
	config.Register("recall.item_cf", BuildItemCFNode)
	config.Register("recall.content", BuildContentNode)
	config.Register("recall.latent", BuildLatentNode)
	config.Register("recall.stored", BuildStoredNode)
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("filter", BuildFilterNode)
	config.Register("rank.sort", BuildScoreSortNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.diversity", BuildDiversityNode)
}

func BuildSeedNode(res *config.Resources, _ map[string]interface{}) (pipeline.Node, error) {
	return &recall.SeedNode{Utility: res.Utility}, nil
}

func BuildUserCFNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	if res.Utility == nil {
		return nil, fmt.Errorf("recall.user_cf needs a utility matrix")
	}
	neighbors, err := conv.Int(cfg, "neighbors", 0)
	if err != nil {
		return nil, err
	}
	rating, err := conv.Float(cfg, "query_rating", 0)
	if err != nil {
		return nil, err
	}
	return &recall.UserBasedCF{Utility: res.Utility, Neighbors: neighbors, QueryRating: rating, Config: res.Recommend}, nil
}

func BuildItemCFNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	similarity, err := conv.String(cfg, "similarity", "direct")
	if err != nil {
		return nil, err
	}
	node := &recall.ItemBasedCF{Utility: res.Utility, ItemMeans: res.ItemMeans}
	switch similarity {
	case "direct":
		if res.Similarity == nil {
			return nil, fmt.Errorf("recall.item_cf needs a similarity matrix")
		}
		node.Similarity = res.Similarity
	case "latent":
		if res.Latent == nil {
			return nil, fmt.Errorf("recall.item_cf with latent similarity needs factors")
		}
		return &recall.LatentItemCF{Latent: res.Latent, Utility: res.Utility, ItemMeans: res.ItemMeans}, nil
	default:
		return nil, fmt.Errorf("recall.item_cf: unknown similarity %q", similarity)
	}
	return node, nil
}

func BuildContentNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	if res.Similarity == nil {
		return nil, fmt.Errorf("recall.content needs a similarity matrix")
	}
	c, err := contentParams(cfg, recall.PolicyGlobal)
	if err != nil {
		return nil, err
	}
	c.Similarity = res.Similarity
	c.Utility = res.Utility
	c.Config = res.Recommend
	return c, nil
}

func BuildLatentNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	if res.Latent == nil {
		return nil, fmt.Errorf("recall.latent needs factors or a factorizer")
	}
	c, err := contentParams(cfg, recall.PolicyRoundRobin)
	if err != nil {
		return nil, err
	}
	return &recall.MFRecall{
		Latent:  res.Latent,
		Utility: res.Utility,
		Policy:  c.Policy,
		PerSeed: c.PerSeed,
		Quota:   c.Quota,
		TopN:    c.TopN,
		Config:  res.Recommend,
	}, nil
}

// BuildStoredNode 从 `brewrec publish` 写入的相似物品有序集合召回，
// prefix 需与发布时的 store.prefix 一致。
func BuildStoredNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	if res.Store == nil {
		return nil, fmt.Errorf("recall.stored needs a store")
	}
	prefix, err := conv.String(cfg, "prefix", "brewrec:")
	if err != nil {
		return nil, err
	}
	c, err := contentParams(cfg, recall.PolicyGlobal)
	if err != nil {
		return nil, err
	}
	return &recall.StoredNeighbors{
		Store:   store.NewSnapshotStore(res.Store, prefix),
		Utility: res.Utility,
		Policy:  c.Policy,
		PerSeed: c.PerSeed,
		Quota:   c.Quota,
		TopN:    c.TopN,
		Config:  res.Recommend,
	}, nil
}

func contentParams(cfg map[string]interface{}, def recall.Policy) (*recall.ContentRecall, error) {
	name, err := conv.String(cfg, "policy", string(def))
	if err != nil {
		return nil, err
	}
	policy, err := recall.ParsePolicy(name)
	if err != nil {
		return nil, err
	}
	c := &recall.ContentRecall{Policy: policy}
	if c.PerSeed, err = conv.Int(cfg, "per_seed", 0); err != nil {
		return nil, err
	}
	if c.Quota, err = conv.Int(cfg, "quota", 0); err != nil {
		return nil, err
	}
	if c.TopN, err = conv.Int(cfg, "top_n", 0); err != nil {
		return nil, err
	}
	return c, nil
}

// BuildFanoutNode 的 sources 是召回节点配置列表，例如：
//
//	sources:
//	  - type: recall.user_cf
//	    neighbors: 10
//	  - type: recall.content
//	    policy: global
func BuildFanoutNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	sourceConfigs, err := conv.Maps(cfg, "sources")
	if err != nil {
		return nil, err
	}
	if len(sourceConfigs) == 0 {
		return nil, fmt.Errorf("recall.fanout needs at least one source")
	}
	factory := config.Factory(res)
	sources := make([]recall.Source, 0, len(sourceConfigs))
	for i, sc := range sourceConfigs {
		typ, _ := conv.String(sc, "type", "")
		node, err := factory.Build(typ, sc)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		src, ok := node.(recall.Source)
		if !ok {
			return nil, fmt.Errorf("sources[%d]: %s is not a recall source", i, typ)
		}
		sources = append(sources, src)
	}

	fanout := &recall.Fanout{Sources: sources, Logger: res.Logger}
	if fanout.Dedup, err = conv.Bool(cfg, "dedup", true); err != nil {
		return nil, err
	}
	if fanout.Timeout, err = conv.Duration(cfg, "timeout", 0); err != nil {
		return nil, err
	}
	if fanout.MaxConcurrent, err = conv.Int(cfg, "max_concurrent", 0); err != nil {
		return nil, err
	}
	strategy, err := conv.String(cfg, "merge_strategy", recall.MergeFirst)
	if err != nil {
		return nil, err
	}
	switch strategy {
	case recall.MergeFirst, recall.MergeUnion, recall.MergePriority, recall.MergeMax:
		fanout.MergeStrategy = strategy
	default:
		return nil, fmt.Errorf("recall.fanout: unknown merge_strategy %q", strategy)
	}
	return fanout, nil
}

// BuildFilterNode 的 filters 支持 seed / blacklist / rated / expr。
func BuildFilterNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	filterConfigs, err := conv.Maps(cfg, "filters")
	if err != nil {
		return nil, err
	}
	if len(filterConfigs) == 0 {
		filterConfigs = []map[string]interface{}{{"type": "seed"}}
	}

	filters := make([]filter.Filter, 0, len(filterConfigs))
	for i, fc := range filterConfigs {
		typ, _ := conv.String(fc, "type", "")
		switch typ {
		case "seed":
			filters = append(filters, &filter.SeedFilter{})
		case "blacklist":
			ids, err := conv.Strings(fc, "item_ids")
			if err != nil {
				return nil, err
			}
			key, err := conv.String(fc, "key", "")
			if err != nil {
				return nil, err
			}
			var adapter *filter.StoreAdapter
			if key != "" {
				if res.Store == nil {
					return nil, fmt.Errorf("filters[%d]: blacklist key %q needs a store", i, key)
				}
				adapter = filter.NewStoreAdapter(res.Store)
			}
			filters = append(filters, filter.NewBlacklistFilter(ids, adapter, key))
		case "rated":
			filters = append(filters, &filter.RatedFilter{Utility: res.Utility})
		case "expr":
			expr, err := conv.String(fc, "expr", "")
			if err != nil {
				return nil, err
			}
			f, err := filter.NewExprFilter(expr)
			if err != nil {
				return nil, fmt.Errorf("filters[%d]: %w", i, err)
			}
			filters = append(filters, f)
		default:
			return nil, fmt.Errorf("filters[%d]: unknown filter type %q", i, typ)
		}
	}

	strict, err := conv.Bool(cfg, "strict", false)
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: filters, Strict: strict, Logger: res.Logger}, nil
}

func BuildScoreSortNode(_ *config.Resources, _ map[string]interface{}) (pipeline.Node, error) {
	return &rank.ScoreSortNode{}, nil
}

// BuildTopNNode 未指定 n 时取 Resources.Recommend 的 DefaultTopN。
func BuildTopNNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	n, err := conv.Int(cfg, "n", res.RecommendConfig().DefaultTopN())
	if err != nil {
		return nil, err
	}
	strict, err := conv.Bool(cfg, "strict", true)
	if err != nil {
		return nil, err
	}
	return &rerank.TopNNode{N: n, Strict: strict}, nil
}

func BuildDiversityNode(res *config.Resources, cfg map[string]interface{}) (pipeline.Node, error) {
	perStyle, err := conv.Int(cfg, "max_per_style", 1)
	if err != nil {
		return nil, err
	}
	backfill, err := conv.Bool(cfg, "backfill", false)
	if err != nil {
		return nil, err
	}
	return &rerank.Diversity{Styles: res.Styles, MaxPerStyle: perStyle, Backfill: backfill}, nil
}
