package entity

import (
	"fmt"

	"github.com/dep2p/go-gossipsim/internal/sim/cache"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

// StaticState 实体的静态状态
type StaticState struct {
	// Changed 状态变更标志（注册或迁移通知时置位）
	Changed bool

	// NextSend 下一次生成消息的时间
	NextSend types.SimTime

	// Cache 去重缓存
	Cache *cache.Cache

	// Histogram 接收直方图，非自适应模式下为 nil
	Histogram *Histogram

	// HistogramCleanup 下一次评估（并清空直方图）的时间
	HistogramCleanup types.SimTime
}

// Entity 模拟实体
//
// 由当前托管进程独占，迁移时所有权整体转移。
type Entity struct {
	ID    types.EntityID
	LP    types.LPID
	State StaticState

	order     []types.EntityID
	neighbors map[types.EntityID]*NeighborInfo
}

// New 创建实体
//
// cacheSize 为去重缓存容量；histogram 大于 0 时分配 histogram×histogram 的接收直方图。
func New(id types.EntityID, lp types.LPID, cacheSize, histogram int) *Entity {
	e := &Entity{
		ID:        id,
		LP:        lp,
		neighbors: make(map[types.EntityID]*NeighborInfo),
	}
	e.State.Cache = cache.New(cacheSize)
	if histogram > 0 {
		e.State.Histogram = NewHistogram(histogram)
	}
	return e
}

// AddEntry 添加邻居
//
// 键已存在返回 ErrDuplicateKey；添加后记录数会超过 limit 返回 ErrStateCapacity，
// 这样的状态无法再被迁移。
func (e *Entity) AddEntry(info NeighborInfo, limit int) error {
	if _, ok := e.neighbors[info.ID]; ok {
		return fmt.Errorf("%w: entity %d already has neighbor %d", types.ErrDuplicateKey, e.ID, info.ID)
	}
	if len(e.order)+1 > limit {
		return fmt.Errorf("%w: entity %d, limit %d", types.ErrStateCapacity, e.ID, limit)
	}
	stored := info
	e.neighbors[info.ID] = &stored
	e.order = append(e.order, info.ID)
	return nil
}

// Neighbor 查找邻居
func (e *Entity) Neighbor(id types.EntityID) (*NeighborInfo, bool) {
	n, ok := e.neighbors[id]
	return n, ok
}

// Neighbors 按插入顺序返回所有邻居
func (e *Entity) Neighbors() []*NeighborInfo {
	out := make([]*NeighborInfo, len(e.order))
	for i, id := range e.order {
		out[i] = e.neighbors[id]
	}
	return out
}

// Degree 返回邻居数
func (e *Entity) Degree() int {
	return len(e.order)
}

// RandomNeighbor 使用 intn 均匀选择一个邻居
func (e *Entity) RandomNeighbor(intn func(n int) int) (types.EntityID, bool) {
	if len(e.order) == 0 {
		return 0, false
	}
	return e.order[intn(len(e.order))], true
}
