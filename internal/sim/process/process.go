// Package process 实现单个托管进程的事件循环
//
// 进程从运行时逐个接收事件并处理到完成，不存在处理器内部的阻塞。
// 每个时间步以 EndOfStep 事件结束：此时执行控制流程（拓扑加载、消息生成、
// 自适应评估），移出待迁移实体，然后等待全局屏障推进时钟。
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-gossipsim/internal/sim/adaptive"
	"github.com/dep2p/go-gossipsim/internal/sim/codec"
	"github.com/dep2p/go-gossipsim/internal/sim/dissemination"
	"github.com/dep2p/go-gossipsim/internal/sim/simctx"
	"github.com/dep2p/go-gossipsim/internal/sim/topology"
	"github.com/dep2p/go-gossipsim/internal/sim/trace"
	"github.com/dep2p/go-gossipsim/internal/util/logger"
	"github.com/dep2p/go-gossipsim/pkg/interfaces"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

var log = logger.Logger("sim.process")

// ProgressInterval 进度日志的最小间隔
const ProgressInterval = 2 * time.Second

// Process 托管进程
type Process struct {
	sc     *simctx.Context
	engine *dissemination.Engine
	ctrl   *adaptive.Controller
	edges  []topology.Edge

	migrating []types.EntityID
	progress  rate.Sometimes
	done      bool

	wall      clock.Clock
	started   time.Time
	stepStart time.Time
	migInStep int
}

// Option 进程选项
type Option func(*Process)

// WithClock 设置进度报告使用的墙钟
func WithClock(c clock.Clock) Option {
	return func(p *Process) {
		p.wall = c
	}
}

// New 创建托管进程
//
// edges 为全局拓扑，只读共享。
func New(sc *simctx.Context, edges []topology.Edge, opts ...Option) *Process {
	ctrl := adaptive.New(sc)
	p := &Process{
		sc:       sc,
		engine:   dissemination.New(sc, ctrl),
		ctrl:     ctrl,
		edges:    edges,
		progress: rate.Sometimes{First: 1, Interval: ProgressInterval},
		wall:     clock.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Context 返回仿真上下文
func (p *Process) Context() *simctx.Context {
	return p.sc
}

// Done 是否已到达结束时钟
func (p *Process) Done() bool {
	return p.done
}

// Run 运行事件循环直到结束时钟或致命错误
func (p *Process) Run(ctx context.Context) error {
	log.Info("进程启动", "lp", p.sc.LP, "mode", p.sc.Cfg.Dissemination.Mode,
		"entities", p.sc.Entities(), "end_clock", p.sc.Cfg.Simulation.EndClock)
	p.started = p.wall.Now()
	p.stepStart = p.started

	for !p.done {
		ev, err := p.sc.Runtime.Receive(ctx)
		if err != nil {
			return fmt.Errorf("lp %d receive: %w", p.sc.LP, err)
		}
		if err := p.Handle(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Handle 处理单个事件
func (p *Process) Handle(ctx context.Context, ev interfaces.Event) error {
	switch ev.Type {
	case interfaces.EventRegister:
		return p.register(ev.To, ev.LP)
	case interfaces.EventModel:
		return p.dispatch(ev)
	case interfaces.EventNotifyMigration:
		return p.notifyMigration(ev.To, ev.LP)
	case interfaces.EventNotifyExtMigration:
		p.sc.SetOwner(ev.To, ev.LP)
		return nil
	case interfaces.EventExecMigration:
		return p.execMigration(ev)
	case interfaces.EventEndOfStep:
		return p.endOfStep(ctx)
	default:
		return p.sc.Fatal(ev.To, fmt.Errorf("%w: %s", types.ErrUnknownEvent, ev.Type))
	}
}

// ============================================================================
//                              模型事件
// ============================================================================

// register 登记实体归属，本进程的实体同时创建本地状态
func (p *Process) register(id types.EntityID, lp types.LPID) error {
	if lp != p.sc.LP {
		p.sc.SetOwner(id, lp)
		return nil
	}
	if _, ok := p.sc.Local(id); ok {
		return p.sc.Fatal(id, fmt.Errorf("%w: entity %d registered twice", types.ErrDuplicateKey, id))
	}
	e := p.sc.NewEntity(id)
	p.sc.AddLocal(e)
	e.State.NextSend = p.sc.Clock.Add(p.sc.RNG.Exponential(p.sc.Cfg.Dissemination.MeanNewMessage))
	if p.ctrl.Enabled() {
		p.ctrl.Schedule(e)
	}
	log.Debug("注册实体", "lp", p.sc.LP, "entity", id, "next_send", e.State.NextSend)
	return nil
}

func (p *Process) dispatch(ev interfaces.Event) error {
	e, ok := p.sc.Local(ev.To)
	if !ok {
		return p.sc.Fatal(ev.To, fmt.Errorf("%w: model event from %d", types.ErrNotLocal, ev.From))
	}
	msg, err := codec.Unmarshal(ev.Payload)
	if err != nil {
		return p.sc.Fatal(ev.To, err)
	}

	switch m := msg.(type) {
	case codec.Ping:
		return p.engine.OnPing(e, ev.From, m)
	case codec.Link:
		return p.engine.OnLink(e, ev.From)
	case codec.Stimulus:
		if !p.ctrl.Enabled() {
			return p.sc.Fatal(ev.To, fmt.Errorf("%w: stimulus in %s mode", types.ErrUnsupportedMode, p.sc.Cfg.Dissemination.Mode))
		}
		return p.ctrl.OnStimulus(e, ev.From, m)
	default:
		return p.sc.Fatal(ev.To, fmt.Errorf("%w: %s as model event", types.ErrUnknownMessage, msg.Kind()))
	}
}

// ============================================================================
//                              迁移
// ============================================================================

func (p *Process) notifyMigration(id types.EntityID, dest types.LPID) error {
	e, ok := p.sc.Local(id)
	if !ok {
		return p.sc.Fatal(id, fmt.Errorf("%w: migration notice for %d", types.ErrNotLocal, id))
	}
	p.sc.SetOwner(id, dest)
	e.State.Changed = true
	p.migrating = append(p.migrating, id)
	return nil
}

func (p *Process) execMigration(ev interfaces.Event) error {
	msg, err := codec.Unmarshal(ev.Payload)
	if err != nil {
		return p.sc.Fatal(ev.To, err)
	}
	m, ok := msg.(codec.Migration)
	if !ok {
		return p.sc.Fatal(ev.To, fmt.Errorf("%w: %s as migration", types.ErrUnknownMessage, msg.Kind()))
	}
	if _, exists := p.sc.Local(ev.To); exists {
		return p.sc.Fatal(ev.To, fmt.Errorf("%w: entity %d already hosted", types.ErrDuplicateKey, ev.To))
	}

	e := p.sc.NewEntity(ev.To)
	if err := e.Restore(m.Snapshot, p.sc.Cfg.Limits.MaxMigrationRecords); err != nil {
		return p.sc.Fatal(ev.To, err)
	}
	e.State.Changed = false
	p.sc.AddLocal(e)
	p.sc.Stats.MigIn.Inc()
	p.migInStep++
	log.Debug("迁入实体", "lp", p.sc.LP, "clock", p.sc.Clock, "entity", ev.To, "neighbors", e.Degree())
	return nil
}

// scanMigrating 序列化并移出所有待迁移实体
func (p *Process) scanMigrating() error {
	for _, id := range p.migrating {
		e, ok := p.sc.Local(id)
		if !ok {
			continue
		}
		payload, err := codec.Marshal(codec.Migration{Snapshot: e.Snapshot()})
		if err != nil {
			return p.sc.Fatal(id, err)
		}
		if err := codec.CheckSize(payload, p.sc.Cfg.Limits.BufferSize); err != nil {
			return p.sc.Fatal(id, err)
		}
		if err := p.sc.Runtime.Migrate(id, payload); err != nil {
			return p.sc.Fatal(id, fmt.Errorf("migrate: %w", err))
		}
		p.sc.RemoveLocal(id)
		p.sc.Stats.MigOut.Inc()
		log.Debug("迁出实体", "lp", p.sc.LP, "clock", p.sc.Clock, "entity", id)
	}
	p.migrating = p.migrating[:0]
	return nil
}

// ============================================================================
//                              时间步
// ============================================================================

func (p *Process) endOfStep(ctx context.Context) error {
	if float64(p.sc.Clock) >= p.sc.Cfg.Simulation.EndClock {
		return p.finish()
	}

	if err := p.Control(); err != nil {
		return err
	}
	if err := p.scanMigrating(); err != nil {
		return err
	}

	p.progress.Do(func() {
		st := p.sc.Stats.Stats()
		log.Info("仿真进度", "lp", p.sc.LP, "clock", p.sc.Clock,
			"step_elapsed", p.wall.Since(p.stepStart), "local", p.sc.LocalCount(),
			"migrated_in", p.migInStep, "sent", st.PingsSent, "received", st.PingsReceived)
	})
	p.stepStart = p.wall.Now()
	p.migInStep = 0

	next, err := p.sc.Runtime.TimeAdvance(ctx)
	if err != nil {
		return fmt.Errorf("lp %d time advance: %w", p.sc.LP, err)
	}
	p.sc.Clock = next
	return nil
}

// Control 执行一次控制流程
//
// 结束前一个传输时间内不再执行；拓扑在 BuildingStep 加载；
// 消息生成与自适应评估只在 [ExecutionStep, EndClock-MaxTTL) 内进行，
// 保证最后生成的消息能在结束前传播完毕。
func (p *Process) Control() error {
	sim := p.sc.Cfg.Simulation
	clock := float64(p.sc.Clock)
	if clock >= sim.EndClock-sim.FlightTime {
		return nil
	}

	if clock == sim.BuildingStep {
		if err := p.loadTopology(); err != nil {
			return err
		}
	}

	if clock < sim.ExecutionStep || clock >= sim.EndClock-float64(p.sc.Cfg.Dissemination.MaxTTL) {
		return nil
	}
	for _, e := range p.sc.LocalEntities() {
		if _, err := p.engine.Originate(e); err != nil {
			return err
		}
		if p.ctrl.Enabled() && p.ctrl.Due(e) {
			if err := p.ctrl.Evaluate(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadTopology 为本地端点建立邻接关系，并通知远端建立反向边
func (p *Process) loadTopology() error {
	links := 0
	for _, edge := range p.edges {
		e, ok := p.sc.Local(edge.From)
		if !ok {
			continue
		}
		if _, ok := p.sc.Owner(edge.To); !ok {
			return p.sc.Fatal(edge.From, fmt.Errorf("%w: edge %d -- %d", types.ErrUnknownEntity, edge.From, edge.To))
		}
		if err := p.sc.Send(edge.From, edge.To, codec.Link{}); err != nil {
			return err
		}
		if err := p.sc.AddNeighbor(e, edge.To); err != nil {
			return err
		}
		links++
	}
	log.Info("拓扑已加载", "lp", p.sc.LP, "clock", p.sc.Clock, "links", links)
	return nil
}

func (p *Process) finish() error {
	p.done = true
	st := p.sc.Stats.Stats()
	log.Info("仿真结束", "lp", p.sc.LP, "clock", p.sc.Clock, "elapsed", p.wall.Since(p.started),
		"sent", st.PingsSent, "received", st.PingsReceived,
		"migrated_out", st.MigrationsOut, "migrated_in", st.MigrationsIn)

	if err := p.sc.Trace.Err(); err != nil {
		return fmt.Errorf("lp %d trace: %w", p.sc.LP, err)
	}
	if dir := p.sc.Cfg.Simulation.TraceDir; dir != "" {
		if err := trace.WriteSummary(dir, p.sc.LP, st.PingsSent); err != nil {
			return fmt.Errorf("lp %d summary: %w", p.sc.LP, err)
		}
	}
	return nil
}
