// Package simctx 封装托管进程的模拟上下文
//
// Context 取代了进程级全局变量：模拟时钟、随机源、全局实体表（实体到托管进程）、
// 本地实体表、运行时端点、跟踪输出和统计。由事件循环独占，不加锁。
package simctx

import (
	"fmt"
	"sort"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/sim/codec"
	"github.com/dep2p/go-gossipsim/internal/sim/entity"
	"github.com/dep2p/go-gossipsim/internal/sim/metrics"
	"github.com/dep2p/go-gossipsim/internal/sim/rng"
	"github.com/dep2p/go-gossipsim/internal/sim/trace"
	"github.com/dep2p/go-gossipsim/internal/util/logger"
	"github.com/dep2p/go-gossipsim/pkg/interfaces"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

var log = logger.Logger("sim.ctx")

// Context 托管进程的模拟上下文
type Context struct {
	Cfg     *config.Config
	LP      types.LPID
	Clock   types.SimTime
	RNG     *rng.Source
	Runtime interfaces.Runtime
	Trace   *trace.Writer
	Stats   *metrics.Recorder

	global map[types.EntityID]types.LPID
	local  map[types.EntityID]*entity.Entity
}

// New 创建上下文
func New(cfg *config.Config, rt interfaces.Runtime, tw *trace.Writer, rec *metrics.Recorder) *Context {
	lp := rt.LP()
	if tw == nil {
		tw = trace.Discard()
	}
	if rec == nil {
		rec = metrics.New().ForLP(lp)
	}
	return &Context{
		Cfg:     cfg,
		LP:      lp,
		RNG:     rng.New(cfg.Simulation.Seed, cfg.Simulation.Run, lp),
		Runtime: rt,
		Trace:   tw,
		Stats:   rec,
		global:  make(map[types.EntityID]types.LPID),
		local:   make(map[types.EntityID]*entity.Entity),
	}
}

// ============================================================================
//                              实体表
// ============================================================================

// SetOwner 更新全局表
func (c *Context) SetOwner(id types.EntityID, lp types.LPID) {
	c.global[id] = lp
}

// Owner 查询全局表
func (c *Context) Owner(id types.EntityID) (types.LPID, bool) {
	lp, ok := c.global[id]
	return lp, ok
}

// Local 查找本地实体
func (c *Context) Local(id types.EntityID) (*entity.Entity, bool) {
	e, ok := c.local[id]
	return e, ok
}

// AddLocal 登记本地实体
func (c *Context) AddLocal(e *entity.Entity) {
	e.LP = c.LP
	c.local[e.ID] = e
	c.global[e.ID] = c.LP
}

// RemoveLocal 丢弃本地实体
func (c *Context) RemoveLocal(id types.EntityID) {
	delete(c.local, id)
}

// LocalCount 返回本地实体数
func (c *Context) LocalCount() int {
	return len(c.local)
}

// LocalEntities 按 ID 升序返回本地实体
func (c *Context) LocalEntities() []*entity.Entity {
	out := make([]*entity.Entity, 0, len(c.local))
	for _, e := range c.local {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entities 返回全局实体总数，决定直方图与刺激表的大小
func (c *Context) Entities() int {
	return c.Cfg.TotalEntities()
}

// NewEntity 按当前配置创建空实体
func (c *Context) NewEntity(id types.EntityID) *entity.Entity {
	hist := 0
	if c.Cfg.Dissemination.Mode.IsAdaptive() {
		hist = c.Entities()
	}
	return entity.New(id, c.LP, c.Cfg.Dissemination.CacheSize, hist)
}

// NewNeighbor 按当前配置创建邻居信息
func (c *Context) NewNeighbor(id types.EntityID) entity.NeighborInfo {
	slots := 0
	if c.Cfg.Dissemination.Mode.IsAdaptive() {
		slots = c.Entities()
	}
	return entity.NewNeighbor(id, slots)
}

// AddNeighbor 为实体添加邻居，失败即为致命错误
func (c *Context) AddNeighbor(e *entity.Entity, id types.EntityID) error {
	if err := e.AddEntry(c.NewNeighbor(id), c.Cfg.Limits.MaxMigrationRecords); err != nil {
		return c.Fatal(e.ID, err)
	}
	return nil
}

// ============================================================================
//                              发送与错误
// ============================================================================

// Send 编码并在 Clock+FlightTime 时投递
func (c *Context) Send(from, to types.EntityID, msg codec.Message) error {
	payload, err := codec.Marshal(msg)
	if err != nil {
		return c.Fatal(from, err)
	}
	if err := codec.CheckSize(payload, c.Cfg.Limits.BufferSize); err != nil {
		return c.Fatal(from, err)
	}
	at := c.Clock.Add(c.Cfg.Simulation.FlightTime)
	if err := c.Runtime.Send(from, to, at, payload); err != nil {
		return c.Fatal(from, fmt.Errorf("send %s to %d: %w", msg.Kind(), to, err))
	}

	switch msg.Kind() {
	case codec.KindPing:
		c.Stats.Sent.Inc()
	case codec.KindStimulus:
		c.Stats.StimSent.Inc()
	}
	log.Debug("发送消息", "lp", c.LP, "clock", c.Clock, "kind", msg.Kind(), "from", from, "to", to)
	return nil
}

// Fatal 包装为携带时钟与实体的 FatalError，已经是 FatalError 时原样返回
func (c *Context) Fatal(id types.EntityID, err error) error {
	if _, ok := types.AsFatal(err); ok {
		return err
	}
	return types.NewFatal(c.Clock, id, err)
}
