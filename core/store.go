package core

import "context"

// Store 是快照存储的领域接口，由 store 包实现（memory / redis / badger）。
// 快照里的效用矩阵、相似度矩阵、评分日志、隐因子以及黑名单都以 key-value 形式保存。
type Store interface {
	Name() string

	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key；ttl 单位为秒，省略或 <= 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取，不存在的 key 不出现在结果里
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	Close() error
}

// ScoredMember 是有序集合中的一个成员。
type ScoredMember struct {
	Member string
	Score  float64
}

// SortedSetStore 在 Store 之上提供有序集合，用于发布每个物品的相似物品列表
// （member = 物品，score = 相似度）。
//
// 成员按分数降序，同分时按成员名升序，所有后端一致。
// start/stop 为闭区间下标，stop < 0 表示到末尾。
type SortedSetStore interface {
	Store

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// ZScore 成员不存在时返回 ErrStoreNotFound
	ZScore(ctx context.Context, key string, member string) (float64, error)
}

var (
	ErrStoreNotFound     = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 报告 err 是否为存储层的 key 不存在。
func IsStoreNotFound(err error) bool {
	return isStoreError(err, ErrorCodeNotFound)
}

// IsStoreNotSupported 报告 err 是否为存储后端不支持该操作。
func IsStoreNotSupported(err error) bool {
	return isStoreError(err, ErrorCodeNotSupported)
}

func isStoreError(err error, code string) bool {
	d := GetDomainError(err)
	return d != nil && d.Module == ModuleStore && d.Code == code
}
