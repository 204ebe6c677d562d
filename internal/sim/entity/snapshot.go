package entity

import (
	"fmt"

	"github.com/dep2p/go-gossipsim/internal/sim/cache"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

// ============================================================================
//                              迁移快照
// ============================================================================

// StaticSnapshot 静态状态的值拷贝
type StaticSnapshot struct {
	Changed          bool
	NextSend         types.SimTime
	Cache            []cache.Entry
	HistogramSize    int
	Histogram        []uint8
	HistogramCleanup types.SimTime
}

// Snapshot 实体的完整迁移快照
//
// Records 的顺序不作保证，接收方不应依赖。
type Snapshot struct {
	ID      types.EntityID
	Static  StaticSnapshot
	Records []NeighborInfo
}

// Snapshot 序列化实体状态
func (e *Entity) Snapshot() *Snapshot {
	s := &Snapshot{
		ID: e.ID,
		Static: StaticSnapshot{
			Changed:          e.State.Changed,
			NextSend:         e.State.NextSend,
			Cache:            e.State.Cache.Entries(),
			HistogramCleanup: e.State.HistogramCleanup,
		},
		Records: make([]NeighborInfo, 0, len(e.order)),
	}
	if h := e.State.Histogram; h != nil {
		s.Static.HistogramSize = h.Size()
		s.Static.Histogram = h.Cells()
	}
	for _, id := range e.order {
		s.Records = append(s.Records, e.neighbors[id].Clone())
	}
	return s
}

// Restore 在空实体上安装快照
//
// 静态状态原样安装；每条记录通过 AddEntry 重新插入，
// 重复键与容量检查在接收方重新执行。
func (e *Entity) Restore(s *Snapshot, limit int) error {
	if len(e.order) != 0 {
		return fmt.Errorf("%w: entity %d already has state", types.ErrCorruptSnapshot, e.ID)
	}
	if s.ID != e.ID {
		return fmt.Errorf("%w: snapshot for %d installed into %d", types.ErrCorruptSnapshot, s.ID, e.ID)
	}

	c := cache.New(len(s.Static.Cache))
	if err := c.Restore(s.Static.Cache); err != nil {
		return err
	}

	var h *Histogram
	if n := s.Static.HistogramSize; n > 0 {
		if len(s.Static.Histogram) != n*n {
			return fmt.Errorf("%w: histogram %d cells, want %d", types.ErrCorruptSnapshot, len(s.Static.Histogram), n*n)
		}
		h = NewHistogram(n)
		copy(h.cells, s.Static.Histogram)
	}

	e.State = StaticState{
		Changed:          s.Static.Changed,
		NextSend:         s.Static.NextSend,
		Cache:            c,
		Histogram:        h,
		HistogramCleanup: s.Static.HistogramCleanup,
	}
	for _, rec := range s.Records {
		if err := e.AddEntry(rec.Clone(), limit); err != nil {
			return err
		}
	}
	return nil
}
