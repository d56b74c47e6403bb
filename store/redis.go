package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/brewrec/core"
)

// RedisOptions 是 Redis 后端的连接参数。
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Prefix 加在所有 key 前面，便于多个快照共用一个实例
	Prefix string

	// DialTimeout 连接探活的超时时间，默认 3s
	DialTimeout time.Duration
}

// RedisStore 是 Redis 实现的 SortedSetStore，用于多个推荐进程共享同一份快照。
// 相似物品列表写成有序集合，可以直接被线上服务 ZREVRANGE 读取。
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ core.SortedSetStore = (*RedisStore)(nil)

// NewRedisStore 连接 Redis 并 PING 一次，失败返回 UNAVAILABLE。
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, core.WrapError(core.ModuleStore, core.ErrorCodeUnavailable, fmt.Sprintf("store: redis %s unreachable", opts.Addr), err)
	}
	return &RedisStore{client: client, prefix: opts.Prefix}, nil
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return r.client.Set(ctx, r.key(key), value, ttlDuration(ttl)).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	vals, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = []byte(s)
		}
	}
	return out, nil
}

func (r *RedisStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	if len(kvs) == 0 {
		return nil
	}
	exp := ttlDuration(ttl)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range kvs {
			pipe.Set(ctx, r.key(k), v, exp)
		}
		return nil
	})
	return err
}

func (r *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, r.key(key), redis.Z{Score: score, Member: member}).Err()
}

// ZRange 语义同 MemoryStore.ZRange：分数降序，同分按成员名升序。
func (r *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	scored, err := r.ZRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	return memberNames(scored), nil
}

// ZRangeWithScores 取回全部成员后重新排序再截取区间。
// ZREVRANGE 同分按成员名降序，与其它后端不一致。
func (r *RedisStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, r.key(key), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return rangeOfZ(zs, start, stop), nil
}

func rangeOfZ(zs []redis.Z, start, stop int64) []core.ScoredMember {
	members := make([]core.ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		members = append(members, core.ScoredMember{Member: member, Score: z.Score})
	}
	sortMembers(members)
	lo, hi, ok := rangeBounds(start, stop, len(members))
	if !ok {
		return nil
	}
	return members[lo : hi+1]
}

func (r *RedisStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	score, err := r.client.ZScore(ctx, r.key(key), member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, core.ErrStoreNotFound
	}
	return score, err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func ttlDuration(ttl []int) time.Duration {
	if len(ttl) == 0 || ttl[0] <= 0 {
		return 0
	}
	return time.Duration(ttl[0]) * time.Second
}
