// Package rng 提供托管进程级的确定性随机源
//
// 每个托管进程持有一个 Source，驱动全部概率决策。给定种子、运行编号与
// 进程编号，决策序列完全可复现。
package rng

import (
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// Source 确定性随机源，不可并发使用
type Source struct {
	r *rand.Rand
}

// New 由 (seed, run, lp) 派生一个随机源
func New(seed uint64, run int, lp types.LPID) *Source {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(run))
	binary.LittleEndian.PutUint64(buf[16:], uint64(lp))
	hi, lo := murmur3.Sum128WithSeed(buf[:], uint32(seed))
	return &Source{r: rand.New(rand.NewPCG(hi, lo))}
}

// Interval 返回 [lo, hi) 上的均匀分布
func (s *Source) Interval(lo, hi float64) float64 {
	return lo + s.r.Float64()*(hi-lo)
}

// Percent 返回 [0, 100) 上的均匀分布，用于与百分比阈值比较
func (s *Source) Percent() float64 {
	return s.Interval(0, 100)
}

// Exponential 返回均值为 mean 的指数分布
func (s *Source) Exponential(mean float64) float64 {
	return s.r.ExpFloat64() * mean
}

// Intn 返回 [0, n) 上的均匀整数
func (s *Source) Intn(n int) int {
	return s.r.IntN(n)
}

// MessageID 生成新的消息 ID，范围 [0, MaxInt32)，不保证唯一
func (s *Source) MessageID() types.MessageID {
	return types.MessageID(s.r.Uint32N(math.MaxInt32))
}
