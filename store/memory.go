package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/brewrec/core"
)

// MemoryStore 是进程内的 SortedSetStore，用于测试和单机离线评估。
// 支持以秒为单位的 TTL，过期 key 在读取时视为不存在，并由后台协程定期清理。
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]memoryEntry
	zsets map[string]map[string]float64

	stop chan struct{}
	once sync.Once
}

type memoryEntry struct {
	value   []byte
	expires time.Time // 零值表示永不过期
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

var _ core.SortedSetStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储，调用方负责 Close。
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		data:  make(map[string]memoryEntry),
		zsets: make(map[string]map[string]float64),
		stop:  make(chan struct{}),
	}
	go m.sweep(10 * time.Second)
	return m
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, core.ErrStoreNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	e := memoryEntry{value: append([]byte(nil), value...), expires: expiresAt(ttl)}

	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	delete(m.zsets, key)
	m.mu.Unlock()
	return nil
}

// BatchGet 只返回存在且未过期的 key。
func (m *MemoryStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		e, ok := m.data[k]
		if !ok || e.expired(now) {
			continue
		}
		out[k] = append([]byte(nil), e.value...)
	}
	return out, nil
}

func (m *MemoryStore) BatchSet(_ context.Context, kvs map[string][]byte, ttl ...int) error {
	expires := expiresAt(ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range kvs {
		m.data[k] = memoryEntry{value: append([]byte(nil), v...), expires: expires}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.zsets[key]
	if set == nil {
		set = make(map[string]float64)
		m.zsets[key] = set
	}
	set[member] = score
	return nil
}

// ZRange 按分数降序返回 [start, stop] 区间的成员，分数相同按成员名升序；stop < 0 表示到末尾。
func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	scored, err := m.ZRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	return memberNames(scored), nil
}

func (m *MemoryStore) ZRangeWithScores(_ context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	m.mu.RLock()
	members := make([]core.ScoredMember, 0, len(m.zsets[key]))
	for member, s := range m.zsets[key] {
		members = append(members, core.ScoredMember{Member: member, Score: s})
	}
	m.mu.RUnlock()

	sortMembers(members)
	lo, hi, ok := rangeBounds(start, stop, len(members))
	if !ok {
		return nil, nil
	}
	return members[lo : hi+1], nil
}

func (m *MemoryStore) ZScore(_ context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.zsets[key][member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}

func (m *MemoryStore) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for k, e := range m.data {
				if e.expired(now) {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func expiresAt(ttl []int) time.Time {
	if len(ttl) == 0 || ttl[0] <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(ttl[0]) * time.Second)
}

func sortMembers(members []core.ScoredMember) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member < members[j].Member
	})
}

func memberNames(members []core.ScoredMember) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Member
	}
	return out
}

// rangeBounds 把闭区间 [start, stop] 裁剪到 [0, n-1]。
func rangeBounds(start, stop int64, n int) (int, int, bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(n) {
		stop = int64(n) - 1
	}
	if start > stop {
		return 0, 0, false
	}
	return int(start), int(stop), true
}
