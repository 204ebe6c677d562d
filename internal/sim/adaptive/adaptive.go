// Package adaptive 实现自适应 gossip 的反馈控制
//
// 每个实体在评估点汇总接收直方图：某个创建者的消息接收数低于理论速率时，
// 向最佳转发者（或随机邻居）发送 Stimulus，请求其提高对该创建者消息的转发概率。
// 收到 Stimulus 的实体在一段时间内为对应游标叠加概率增量，增量随剩余时间线性衰减。
//
// 三种变体的区别只在于游标与刺激表的共享方式：
//   - 节点自适应：游标恒为 0，每个评估周期每个目标至多一次刺激
//   - 按发送者：游标为创建者，刺激值复制到所有邻居（每实体一张共享表）
//   - 按邻居与发送者：游标为创建者，每个邻居独立
package adaptive

import (
	"fmt"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/sim/codec"
	"github.com/dep2p/go-gossipsim/internal/sim/entity"
	"github.com/dep2p/go-gossipsim/internal/sim/simctx"
	"github.com/dep2p/go-gossipsim/internal/util/logger"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

var log = logger.Logger("sim.adaptive")

// Controller 自适应反馈控制器
type Controller struct {
	sc    *simctx.Context
	cfg   config.AdaptiveConfig
	mode  types.Mode
	fixed float64
	mean  float64
}

// New 创建控制器
func New(sc *simctx.Context) *Controller {
	return &Controller{
		sc:    sc,
		cfg:   sc.Cfg.Adaptive,
		mode:  sc.Cfg.Dissemination.Mode,
		fixed: sc.Cfg.Dissemination.FixedThreshold,
		mean:  sc.Cfg.Dissemination.MeanNewMessage,
	}
}

// Enabled 当前模式是否为自适应模式
func (c *Controller) Enabled() bool {
	return c.mode.IsAdaptive()
}

// Cursor 返回刺激表游标
func (c *Controller) Cursor(creator types.EntityID) int {
	if c.mode == types.ModeAdaptiveNode {
		return 0
	}
	return int(creator)
}

// TheoreticalRate 一个评估周期内每个创建者的期望接收数
func (c *Controller) TheoreticalRate() float64 {
	return c.cfg.EvaluationPeriod / c.mean
}

// ============================================================================
//                              转发概率
// ============================================================================

// Threshold 返回向邻居 n 转发 creator 的消息时的概率阈值 [0,100]
//
// 基线为固定阈值，刺激有效时叠加 increment * 剩余窗口 / 刺激时长。
func (c *Controller) Threshold(n *entity.NeighborInfo, creator types.EntityID) float64 {
	p := c.fixed
	if n.Stimuli != nil {
		p += n.Stimuli.Residual(c.Cursor(creator), c.sc.Clock, c.cfg.StimulusLength)
	}
	if p > 100 {
		p = 100
	}
	return p
}

// ============================================================================
//                              接收统计与评估
// ============================================================================

// Observe 记录一次接收：creator 的消息经 forwarder 到达
func (c *Controller) Observe(e *entity.Entity, creator, forwarder types.EntityID) {
	if h := e.State.Histogram; h != nil {
		if !h.Bump(creator, forwarder) {
			log.Debug("直方图越界", "entity", e.ID, "creator", creator, "forwarder", forwarder)
		}
	}
}

// Schedule 安排首次评估：当前时钟加上一个评估周期内的随机抖动
func (c *Controller) Schedule(e *entity.Entity) {
	e.State.HistogramCleanup = c.sc.Clock.Add(c.sc.RNG.Interval(0, c.cfg.EvaluationPeriod))
}

// Due 是否到达评估点
func (c *Controller) Due(e *entity.Entity) bool {
	return c.sc.Clock >= e.State.HistogramCleanup
}

// Evaluate 评估接收直方图并发送刺激，随后清空直方图
func (c *Controller) Evaluate(e *entity.Entity) error {
	h := e.State.Histogram
	if h == nil {
		return c.sc.Fatal(e.ID, fmt.Errorf("%w: %s has no histogram", types.ErrUnsupportedMode, c.mode))
	}
	e.State.HistogramCleanup = c.sc.Clock.Add(c.cfg.EvaluationPeriod)

	rate := c.TheoreticalRate()
	var stimulated map[types.EntityID]bool
	if c.mode == types.ModeAdaptiveNode {
		stimulated = make(map[types.EntityID]bool)
	}

	for s := 0; s < h.Size(); s++ {
		sender := types.EntityID(s)
		if sender == e.ID {
			continue
		}
		received, best := h.Row(sender)
		if float64(received) >= rate {
			continue
		}

		var dest types.EntityID
		if best >= 0 {
			dest = types.EntityID(best)
		} else {
			var ok bool
			if dest, ok = e.RandomNeighbor(c.sc.RNG.Intn); !ok {
				continue
			}
		}

		if stimulated != nil {
			if stimulated[dest] {
				continue
			}
			stimulated[dest] = true
		}

		if _, ok := e.Neighbor(dest); !ok {
			return c.sc.Fatal(e.ID, fmt.Errorf("%w: stimulus destination %d", types.ErrNotNeighbor, dest))
		}
		if _, ok := c.sc.Owner(dest); !ok {
			return c.sc.Fatal(e.ID, fmt.Errorf("%w: stimulus destination %d", types.ErrUnknownEntity, dest))
		}

		log.Debug("发送刺激", "clock", c.sc.Clock, "entity", e.ID, "dest", dest,
			"missing", sender, "received", received, "rate", rate)
		if err := c.sc.Send(e.ID, dest, codec.Stimulus{MissingSender: sender}); err != nil {
			return err
		}
	}

	h.Reset()
	return nil
}

// ============================================================================
//                              刺激处理
// ============================================================================

// OnStimulus 处理来自邻居 from 的刺激
func (c *Controller) OnStimulus(e *entity.Entity, from types.EntityID, s codec.Stimulus) error {
	c.sc.Stats.StimRecv.Inc()

	n, ok := e.Neighbor(from)
	if !ok {
		return c.sc.Fatal(e.ID, fmt.Errorf("%w: stimulus from %d", types.ErrNotNeighbor, from))
	}
	if n.Stimuli == nil {
		return c.sc.Fatal(e.ID, fmt.Errorf("%w: stimulus in %s mode", types.ErrUnsupportedMode, c.mode))
	}
	cursor := c.Cursor(s.MissingSender)
	if cursor >= n.Stimuli.Len() {
		return c.sc.Fatal(e.ID, fmt.Errorf("%w: missing sender %d", types.ErrUnknownEntity, s.MissingSender))
	}

	now := c.sc.Clock
	timeout := now.Add(c.cfg.StimulusLength)
	increment := c.cfg.StimulusIncrement

	if !n.Stimuli.Active(cursor, now) {
		n.Stimuli.Set(cursor, increment, timeout)
		log.Debug("收到刺激", "clock", now, "entity", e.ID, "from", from,
			"missing", s.MissingSender, "increment", increment, "timeout", timeout)
		return nil
	}

	// 与未过期的刺激叠加，叠加后的概率不超过 100
	increment += c.cfg.StimulusIncrement * n.Stimuli.Window(cursor, now) / c.cfg.StimulusLength
	if c.fixed+increment > 100 {
		increment = 100 - c.fixed
	}
	n.Stimuli.Set(cursor, increment, timeout)
	if c.mode == types.ModeAdaptiveSender {
		for _, other := range e.Neighbors() {
			other.Stimuli.Set(cursor, increment, timeout)
		}
	}

	log.Debug("刺激已叠加", "clock", now, "entity", e.ID, "from", from,
		"missing", s.MissingSender, "increment", increment, "timeout", timeout)
	return nil
}
