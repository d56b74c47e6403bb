// Package store 提供 core.Store / core.SortedSetStore 的实现，以及基于它们的快照存储。
//
// 后端：
//   - MemoryStore：进程内，测试与单机评估
//   - RedisStore：多个推荐进程共享快照
//   - BadgerStore：嵌入式持久化
//
// 示例：
//
//	kv := store.NewMemoryStore()
//	snapshots := store.NewSnapshotStore(kv, "brewrec:v1:")
//	snap, err := snapshots.Load(ctx)
package store
