package store

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/model"
)

// 快照中各部分的 key（都加上 SnapshotStore 的前缀）
const (
	keyRatings    = "ratings"
	keyUtility    = "utility"
	keySimilarity = "similarity:item"
	keyFactors    = "factors"
	keyNeighbors  = "neighbors:"
)

// Snapshot 是推荐服务运行所需的全部只读数据。
// Similarity 与 Factors 可以为空：加载时 Similarity 会由效用矩阵重新计算，
// Factors 为空时隐因子策略在首次请求时分解。
type Snapshot struct {
	Ratings    core.RatingLog
	Utility    *matrix.UtilityMatrix
	Similarity *matrix.SimilarityMatrix
	Factors    *model.Factors
}

type utilityRecord struct {
	Users []string    `json:"users"`
	Items []string    `json:"items"`
	Rows  [][]float64 `json:"rows"`
}

type similarityRecord struct {
	IDs  []string    `json:"ids"`
	Rows [][]float64 `json:"rows"`
}

type factorsRecord struct {
	Users      []string    `json:"users"`
	Items      []string    `json:"items"`
	UserRows   [][]float64 `json:"user_rows"`
	ItemRows   [][]float64 `json:"item_rows"`
	Err        float64     `json:"err"`
	Iterations int         `json:"iterations"`
}

// SnapshotStore 把 Snapshot 以 JSON 形式存进任意 core.Store。
type SnapshotStore struct {
	store  core.Store
	prefix string
}

// NewSnapshotStore 创建快照存储，prefix 例如 "brewrec:v1:"。
func NewSnapshotStore(s core.Store, prefix string) *SnapshotStore {
	return &SnapshotStore{store: s, prefix: prefix}
}

func (s *SnapshotStore) key(k string) string { return s.prefix + k }

// Save 写入快照。Utility 为空时由 Ratings 构造。
func (s *SnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return core.InvalidInputError(core.ModuleStore, "store: nil snapshot")
	}
	u := snap.Utility
	if u == nil {
		var err error
		if u, err = matrix.FromRatings(snap.Ratings); err != nil {
			return err
		}
	}

	kvs := make(map[string][]byte, 4)
	put := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		kvs[s.key(key)] = data
		return nil
	}

	if err := put(keyUtility, utilityRecord{Users: u.Users(), Items: u.Items(), Rows: denseRows(u.Dense())}); err != nil {
		return err
	}
	if len(snap.Ratings) > 0 {
		if err := put(keyRatings, snap.Ratings); err != nil {
			return err
		}
	}
	if snap.Similarity != nil {
		if err := put(keySimilarity, similarityRecord{IDs: snap.Similarity.IDs(), Rows: snap.Similarity.Rows()}); err != nil {
			return err
		}
	}
	if f := snap.Factors; f != nil {
		rec := factorsRecord{
			Users:      f.Users(),
			Items:      f.Items(),
			UserRows:   f.UserRows(),
			ItemRows:   f.ItemRows(),
			Err:        f.Err,
			Iterations: f.Iterations,
		}
		if err := put(keyFactors, rec); err != nil {
			return err
		}
	}
	return s.store.BatchSet(ctx, kvs)
}

// Load 读取快照。效用矩阵与评分日志至少要有一个；缺少效用矩阵时由评分日志构造，
// 缺少相似度矩阵时按效用矩阵的列余弦重新计算。
func (s *SnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	keys := []string{s.key(keyRatings), s.key(keyUtility), s.key(keySimilarity), s.key(keyFactors)}
	raw, err := s.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	snap := &Snapshot{}
	if data, ok := raw[s.key(keyRatings)]; ok {
		if err := json.Unmarshal(data, &snap.Ratings); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keyRatings, err)
		}
	}

	if data, ok := raw[s.key(keyUtility)]; ok {
		var rec utilityRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keyUtility, err)
		}
		if snap.Utility, err = matrix.NewUtilityMatrix(rec.Users, rec.Items, rec.Rows); err != nil {
			return nil, err
		}
	} else if len(snap.Ratings) > 0 {
		if snap.Utility, err = matrix.FromRatings(snap.Ratings); err != nil {
			return nil, err
		}
	} else {
		return nil, core.WrapError(core.ModuleStore, core.ErrorCodeNotFound, "store: snapshot not found under "+s.prefix, core.ErrStoreNotFound)
	}

	if data, ok := raw[s.key(keySimilarity)]; ok {
		var rec similarityRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keySimilarity, err)
		}
		if snap.Similarity, err = matrix.NewSimilarityMatrix(rec.IDs, rec.Rows); err != nil {
			return nil, err
		}
	} else {
		snap.Similarity = matrix.ItemCosine(snap.Utility)
	}

	if data, ok := raw[s.key(keyFactors)]; ok {
		var rec factorsRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keyFactors, err)
		}
		f, err := model.NewFactors(rec.Users, rec.Items, rec.UserRows, rec.ItemRows)
		if err != nil {
			return nil, err
		}
		f.Err = rec.Err
		f.Iterations = rec.Iterations
		snap.Factors = f
	}
	return snap, nil
}

// PublishNeighbors 把每个物品的前 n 个相似物品写成有序集合 neighbors:<item>。
func (s *SnapshotStore) PublishNeighbors(ctx context.Context, sim *matrix.SimilarityMatrix, n int) error {
	kv, ok := s.store.(core.SortedSetStore)
	if !ok {
		return core.ErrStoreNotSupported
	}
	for _, id := range sim.IDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		nbs, err := sim.Neighbors(id, n)
		if err != nil {
			return err
		}
		key := s.key(keyNeighbors + id)
		if err := kv.Delete(ctx, key); err != nil {
			return err
		}
		for _, nb := range nbs {
			if err := kv.ZAdd(ctx, key, nb.Score, nb.ID); err != nil {
				return fmt.Errorf("publish neighbors of %s: %w", id, err)
			}
		}
	}
	return nil
}

// Neighbors 读取已发布的相似物品列表（按相似度降序）。
func (s *SnapshotStore) Neighbors(ctx context.Context, item string, n int) ([]matrix.Neighbor, error) {
	kv, ok := s.store.(core.SortedSetStore)
	if !ok {
		return nil, core.ErrStoreNotSupported
	}
	key := s.key(keyNeighbors + item)
	members, err := kv.ZRangeWithScores(ctx, key, 0, int64(n)-1)
	if err != nil {
		return nil, err
	}
	out := make([]matrix.Neighbor, len(members))
	for i, m := range members {
		out[i] = matrix.Neighbor{ID: m.Member, Score: m.Score}
	}
	return out, nil
}

func denseRows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}
