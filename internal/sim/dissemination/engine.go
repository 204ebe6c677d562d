package dissemination

import (
	"fmt"

	"github.com/dep2p/go-gossipsim/internal/sim/adaptive"
	"github.com/dep2p/go-gossipsim/internal/sim/codec"
	"github.com/dep2p/go-gossipsim/internal/sim/entity"
	"github.com/dep2p/go-gossipsim/internal/sim/simctx"
	"github.com/dep2p/go-gossipsim/internal/util/logger"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

var log = logger.Logger("sim.dissemination")

// Engine gossip 传播引擎
type Engine struct {
	sc   *simctx.Context
	ctrl *adaptive.Controller
}

// New 创建传播引擎
//
// ctrl 在非自适应模式下可以为 nil。
func New(sc *simctx.Context, ctrl *adaptive.Controller) *Engine {
	if ctrl == nil {
		ctrl = adaptive.New(sc)
	}
	return &Engine{sc: sc, ctrl: ctrl}
}

// Mode 当前传播模式
func (g *Engine) Mode() types.Mode {
	return g.sc.Cfg.Dissemination.Mode
}

// ============================================================================
//                              消息生成
// ============================================================================

// Originate 到达 NextSend 时生成一条新消息并发给全部邻居
//
// 返回是否生成了消息。
func (g *Engine) Originate(e *entity.Entity) (bool, error) {
	now := g.sc.Clock
	if e.State.NextSend > now {
		return false, nil
	}
	cfg := g.sc.Cfg.Dissemination
	e.State.NextSend = now.Add(g.sc.RNG.Exponential(cfg.MeanNewMessage))

	id := g.sc.RNG.MessageID()
	e.State.Cache.Insert(id, now)
	g.sc.Trace.Generated(id)
	g.sc.Trace.Received(e.ID, id, 0)
	g.sc.Stats.Generated.Inc()

	msg := codec.Ping{
		Creator:   e.ID,
		Value:     id,
		TTL:       uint16(cfg.MaxTTL),
		Timestamp: now,
	}
	if g.Mode() == types.ModeDegreeDependent {
		msg.SenderDegree = uint32(e.Degree())
	}

	log.Debug("生成消息", "clock", now, "entity", e.ID, "id", id, "next", e.State.NextSend)
	for _, n := range e.Neighbors() {
		if err := g.sc.Send(e.ID, n.ID, msg); err != nil {
			return true, err
		}
	}
	return true, nil
}

// ============================================================================
//                              消息接收
// ============================================================================

// OnPing 处理邻居 from 转发来的消息
func (g *Engine) OnPing(e *entity.Entity, from types.EntityID, p codec.Ping) error {
	now := g.sc.Clock
	delay := int(now - p.Timestamp)
	g.sc.Stats.Received.Inc()
	g.sc.Stats.Delay.Observe(float64(delay))
	g.sc.Trace.Received(e.ID, p.Value, delay)

	if g.ctrl.Enabled() {
		g.ctrl.Observe(e, p.Creator, from)
	}

	if p.TTL == 0 {
		g.sc.Stats.TTLDrops.Inc()
		return nil
	}
	if e.State.Cache.Contains(p.Value, now) {
		g.sc.Stats.CacheHits.Inc()
		return nil
	}
	e.State.Cache.Insert(p.Value, now)

	if g.Mode() == types.ModeDegreeDependent {
		n, ok := e.Neighbor(from)
		if !ok {
			return g.sc.Fatal(e.ID, fmt.Errorf("%w: ping from %d", types.ErrNotNeighbor, from))
		}
		n.Degree = p.SenderDegree
	}

	p.TTL--
	return g.Forward(e, from, p)
}

// OnLink 处理拓扑建立消息，把发送者加入邻居表
func (g *Engine) OnLink(e *entity.Entity, from types.EntityID) error {
	return g.sc.AddNeighbor(e, from)
}

// ============================================================================
//                              转发
// ============================================================================

// Forward 按当前模式转发消息，forwarder 与创建者不会收到转发
//
// p.TTL 应已递减。
func (g *Engine) Forward(e *entity.Entity, forwarder types.EntityID, p codec.Ping) error {
	if g.Mode() == types.ModeDegreeDependent {
		p.SenderDegree = uint32(e.Degree())
	}

	switch g.Mode() {
	case types.ModeBroadcast:
		return g.forwardBroadcast(e, forwarder, p)
	case types.ModeGossipFixedProb:
		return g.forwardFixed(e, forwarder, p)
	case types.ModeAdaptiveNode, types.ModeAdaptiveSender, types.ModeAdaptiveSpecific:
		return g.forwardAdaptive(e, forwarder, p)
	case types.ModeDegreeDependent:
		return g.forwardDegree(e, forwarder, p)
	default:
		return g.sc.Fatal(e.ID, fmt.Errorf("%w: %s", types.ErrUnsupportedMode, g.Mode()))
	}
}

func excluded(n *entity.NeighborInfo, forwarder types.EntityID, p codec.Ping) bool {
	return n.ID == forwarder || n.ID == p.Creator
}

func (g *Engine) forwardBroadcast(e *entity.Entity, forwarder types.EntityID, p codec.Ping) error {
	if g.sc.RNG.Percent() > g.sc.Cfg.Dissemination.BroadcastThreshold {
		return nil
	}
	for _, n := range e.Neighbors() {
		if excluded(n, forwarder, p) {
			continue
		}
		if err := g.sc.Send(e.ID, n.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (g *Engine) forwardFixed(e *entity.Entity, forwarder types.EntityID, p codec.Ping) error {
	threshold := g.sc.Cfg.Dissemination.FixedThreshold
	for _, n := range e.Neighbors() {
		if g.sc.RNG.Percent() > threshold || excluded(n, forwarder, p) {
			continue
		}
		if err := g.sc.Send(e.ID, n.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (g *Engine) forwardAdaptive(e *entity.Entity, forwarder types.EntityID, p codec.Ping) error {
	for _, n := range e.Neighbors() {
		threshold := g.ctrl.Threshold(n, p.Creator)
		if g.sc.RNG.Percent() > threshold || excluded(n, forwarder, p) {
			continue
		}
		if err := g.sc.Send(e.ID, n.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (g *Engine) forwardDegree(e *entity.Entity, forwarder types.EntityID, p codec.Ping) error {
	cfg := g.sc.Cfg.Dissemination
	for _, n := range e.Neighbors() {
		if excluded(n, forwarder, p) {
			continue
		}
		flip := g.sc.RNG.Percent() / 100
		prob, err := DegreeProbability(cfg.ProbFunction, n.Degree, cfg.FunctionCoefficient)
		if err != nil {
			return g.sc.Fatal(e.ID, err)
		}
		if n.Degree >= MinDegree && flip > prob {
			continue
		}
		if err := g.sc.Send(e.ID, n.ID, p); err != nil {
			return err
		}
	}
	return nil
}
