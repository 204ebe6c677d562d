package dissemination

import (
	"fmt"
	"math"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// MinDegree 度数低于该值的邻居总是被转发
const MinDegree = 3

// DegreeProbability 返回向度数为 degree 的邻居转发的概率 [0,1]
//
//	ProbPower: 1 / degree^c
//	ProbLog:   1 / ln(c * degree)
//
// 结果不在 [0,1] 内（包括无穷与 NaN）时取 1。
func DegreeProbability(fn types.ProbFunction, degree uint32, c float64) (float64, error) {
	if degree < MinDegree {
		return 1, nil
	}
	d := float64(degree)

	var p float64
	switch fn {
	case types.ProbPower:
		p = 1 / math.Pow(d, c)
	case types.ProbLog:
		p = 1 / math.Log(c*d)
	default:
		return 0, fmt.Errorf("%w: probability function %d", types.ErrUnsupportedMode, fn)
	}

	if math.IsNaN(p) || p < 0 || p > 1 {
		return 1, nil
	}
	return p, nil
}
