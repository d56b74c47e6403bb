package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/core"
)

// zset 成员的 key 前缀：zset:<key>\x00<member>
const zsetKeyPrefix = "zset:"

// BadgerOptions 是 Badger 后端的参数。
type BadgerOptions struct {
	// Path 数据目录；InMemory 为 true 时忽略
	Path     string
	InMemory bool
}

// BadgerStore 是基于 BadgerDB 的嵌入式 SortedSetStore，
// 用于单机部署时把快照持久化到本地磁盘。
// 有序集合以每个成员一个 key 的方式存储，分数编码为 8 字节大端 float64。
type BadgerStore struct {
	db *badger.DB
}

var _ core.SortedSetStore = (*BadgerStore)(nil)

// OpenBadgerStore 打开（或创建）Badger 数据库。
func OpenBadgerStore(opts BadgerOptions, logger zerolog.Logger) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path).WithLogger(badgerLogger{logger.With().Str("component", "badger").Logger()})
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else if opts.Path == "" {
		return nil, core.InvalidInputError(core.ModuleStore, "store: badger path is required")
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, core.WrapError(core.ModuleStore, core.ErrorCodeUnavailable, "store: open badger", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return core.ErrStoreNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(key, value, ttl))
	})
}

// Delete 删除 key，同名有序集合的成员一并删除。
func (b *BadgerStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		var members [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: zsetMemberKey(key, "")})
		for it.Rewind(); it.Valid(); it.Next() {
			members = append(members, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, m := range members {
			if err := txn.Delete(m); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

func (b *BadgerStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get([]byte(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", k, err)
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BatchSet 用 WriteBatch 写入，大快照不会撞上单事务大小限制。
func (b *BadgerStore) BatchSet(_ context.Context, kvs map[string][]byte, ttl ...int) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for k, v := range kvs {
		if err := wb.SetEntry(newEntry(k, v, ttl)); err != nil {
			return fmt.Errorf("batch set %s: %w", k, err)
		}
	}
	return wb.Flush()
}

func (b *BadgerStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(score))
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(zsetMemberKey(key, member), buf[:])
	})
}

// ZRange 语义同 MemoryStore.ZRange：分数降序，同分按成员名升序。
func (b *BadgerStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	scored, err := b.ZRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	return memberNames(scored), nil
}

// ZRangeWithScores 扫描 key 的全部成员后在内存中排序。
func (b *BadgerStore) ZRangeWithScores(_ context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	var members []core.ScoredMember
	prefix := zsetMemberKey(key, "")
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), string(prefix))
			err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("zset %s member %s: corrupt score", key, name)
				}
				members = append(members, core.ScoredMember{Member: name, Score: math.Float64frombits(binary.BigEndian.Uint64(val))})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortMembers(members)
	lo, hi, ok := rangeBounds(start, stop, len(members))
	if !ok {
		return nil, nil
	}
	return members[lo : hi+1], nil
}

func (b *BadgerStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	raw, err := b.Get(ctx, string(zsetMemberKey(key, member)))
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("zset %s member %s: corrupt score", key, member)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func zsetMemberKey(key, member string) []byte {
	return []byte(zsetKeyPrefix + key + "\x00" + member)
}

func newEntry(key string, value []byte, ttl []int) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if len(ttl) > 0 && ttl[0] > 0 {
		e = e.WithTTL(time.Duration(ttl[0]) * time.Second)
	}
	return e
}

// badgerLogger 把 Badger 的日志接到 zerolog。
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(strings.TrimSpace(format), args...)
}
