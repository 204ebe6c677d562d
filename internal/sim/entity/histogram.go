package entity

import "github.com/dep2p/go-gossipsim/pkg/types"

// HistogramMax 直方图计数的饱和值
const HistogramMax = 254

// Histogram 接收直方图，cell(creator, forwarder) 记录一个评估周期内
// 经 forwarder 转发收到的 creator 的消息数
type Histogram struct {
	n     int
	cells []uint8
}

// NewHistogram 创建 n×n 直方图
func NewHistogram(n int) *Histogram {
	return &Histogram{n: n, cells: make([]uint8, n*n)}
}

// Size 返回维度 n
func (h *Histogram) Size() int {
	return h.n
}

// Bump 计数加一，达到 HistogramMax 后不再增加；越界时返回 false
func (h *Histogram) Bump(creator, forwarder types.EntityID) bool {
	c, f := int(creator), int(forwarder)
	if c >= h.n || f >= h.n {
		return false
	}
	if cell := &h.cells[c*h.n+f]; *cell < HistogramMax {
		*cell++
	}
	return true
}

// Get 返回单个计数
func (h *Histogram) Get(creator, forwarder types.EntityID) uint8 {
	c, f := int(creator), int(forwarder)
	if c >= h.n || f >= h.n {
		return 0
	}
	return h.cells[c*h.n+f]
}

// Row 返回 creator 行的总数以及计数最大的转发者，
// 整行为 0 时 argmax 为 -1；并列时取 ID 最小者
func (h *Histogram) Row(creator types.EntityID) (sum int, argmax int) {
	argmax = -1
	c := int(creator)
	if c >= h.n {
		return 0, -1
	}
	var best uint8
	for f, v := range h.cells[c*h.n : (c+1)*h.n] {
		sum += int(v)
		if v > best {
			best = v
			argmax = f
		}
	}
	return sum, argmax
}

// Reset 清零
func (h *Histogram) Reset() {
	clear(h.cells)
}

// Cells 返回计数副本，按行优先排列
func (h *Histogram) Cells() []uint8 {
	out := make([]uint8, len(h.cells))
	copy(out, h.cells)
	return out
}
