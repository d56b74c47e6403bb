package core

// RecommendConfig 是推荐相关的配置接口，用于提供默认值。
type RecommendConfig interface {
	// DefaultTopN 返回最终推荐结果数量
	DefaultTopN() int

	// DefaultNeighbors 返回 User-User CF 中每个候选物品参与加权的近邻用户数
	DefaultNeighbors() int

	// DefaultQueryRating 返回注入查询用户时种子物品的评分
	DefaultQueryRating() float64

	// DefaultPerSeedCandidates 返回全局策略下每个种子取的相似物品数
	DefaultPerSeedCandidates() int

	// DefaultPerSeedQuota 返回轮询策略下每个种子贡献的物品数
	DefaultPerSeedQuota() int
}

// DefaultRecommendConfig 是默认的推荐配置实现。
type DefaultRecommendConfig struct{}

func (c *DefaultRecommendConfig) DefaultTopN() int {
	return 10
}

func (c *DefaultRecommendConfig) DefaultNeighbors() int {
	return 10
}

func (c *DefaultRecommendConfig) DefaultQueryRating() float64 {
	return 5
}

func (c *DefaultRecommendConfig) DefaultPerSeedCandidates() int {
	return 10
}

func (c *DefaultRecommendConfig) DefaultPerSeedQuota() int {
	return 2
}
