package entity

import (
	"math"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// NeighborInfo 邻居信息
//
// Stimuli 只在自适应模式下分配，Degree 只在度相关模式下使用（0 表示未知）。
type NeighborInfo struct {
	ID      types.EntityID
	Stimuli *StimulusTable
	Degree  uint32
}

// NewNeighbor 创建邻居信息，slots 为 0 时不分配刺激表
func NewNeighbor(id types.EntityID, slots int) NeighborInfo {
	info := NeighborInfo{ID: id}
	if slots > 0 {
		info.Stimuli = NewStimulusTable(slots)
	}
	return info
}

// Clone 深拷贝
func (n NeighborInfo) Clone() NeighborInfo {
	if n.Stimuli != nil {
		n.Stimuli = n.Stimuli.Clone()
	}
	return n
}

// StimulusTable 按游标索引的刺激超时与增量
//
// 游标在节点自适应模式下恒为 0，其他自适应模式下为消息创建者 ID。
// Timeout 为 0 表示从未有过刺激。
type StimulusTable struct {
	Timeout   []types.SimTime
	Increment []float64
}

// NewStimulusTable 创建 slots 个槽位的刺激表
func NewStimulusTable(slots int) *StimulusTable {
	return &StimulusTable{
		Timeout:   make([]types.SimTime, slots),
		Increment: make([]float64, slots),
	}
}

// Len 返回槽位数
func (t *StimulusTable) Len() int {
	return len(t.Timeout)
}

// Active 判断游标处的刺激在 now 时是否仍有效
func (t *StimulusTable) Active(cursor int, now types.SimTime) bool {
	if cursor < 0 || cursor >= len(t.Timeout) {
		return false
	}
	return t.Timeout[cursor] != 0 && t.Timeout[cursor] > now
}

// Window 返回剩余窗口 timeout-now，截断为整数；无效时为 0
func (t *StimulusTable) Window(cursor int, now types.SimTime) float64 {
	if !t.Active(cursor, now) {
		return 0
	}
	return math.Trunc(float64(t.Timeout[cursor] - now))
}

// Residual 返回剩余的刺激量 increment * Window / length，无效时为 0
func (t *StimulusTable) Residual(cursor int, now types.SimTime, length float64) float64 {
	if !t.Active(cursor, now) || length <= 0 {
		return 0
	}
	return t.Increment[cursor] * t.Window(cursor, now) / length
}

// Set 设置游标处的增量与超时
func (t *StimulusTable) Set(cursor int, increment float64, timeout types.SimTime) {
	t.Increment[cursor] = increment
	t.Timeout[cursor] = timeout
}

// Clone 深拷贝
func (t *StimulusTable) Clone() *StimulusTable {
	c := &StimulusTable{
		Timeout:   make([]types.SimTime, len(t.Timeout)),
		Increment: make([]float64, len(t.Increment)),
	}
	copy(c.Timeout, t.Timeout)
	copy(c.Increment, t.Increment)
	return c
}
