package gossipsim

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/sim/localrt"
	"github.com/dep2p/go-gossipsim/internal/sim/metrics"
	"github.com/dep2p/go-gossipsim/internal/sim/process"
	"github.com/dep2p/go-gossipsim/internal/sim/simctx"
	"github.com/dep2p/go-gossipsim/internal/sim/topology"
	"github.com/dep2p/go-gossipsim/internal/sim/trace"
	"github.com/dep2p/go-gossipsim/internal/util/logger"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

var log = logger.Logger("gossipsim")

// Simulation 一次仿真运行
type Simulation struct {
	opts  *options
	runID uuid.UUID
	app   *fx.App

	hub     *localrt.Hub
	metrics *metrics.Metrics
	edges   []topology.Edge

	mu  sync.Mutex
	ran bool
}

// New 创建仿真，校验配置并读取拓扑
func New(opts ...Option) (*Simulation, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	sim := &Simulation{opts: o, runID: uuid.New()}
	app, err := buildFxApp(o, sim)
	if err != nil {
		return nil, err
	}
	sim.app = app
	return sim, nil
}

// RunID 本次运行的标识
func (s *Simulation) RunID() uuid.UUID {
	return s.runID
}

// Config 返回仿真配置
func (s *Simulation) Config() *config.Config {
	return s.opts.config
}

// Run 运行全部托管进程直到结束时钟
//
// 任一进程返回错误时其余进程被取消。致命错误以 *types.FatalError 返回，
// 可用 types.AsFatal 取出时钟与实体。
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	s.ran = true
	s.mu.Unlock()

	cfg := s.opts.config
	if err := s.app.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	start := s.opts.clock.Now()
	log.Info("仿真开始", "run_id", s.runID, "mode", cfg.Dissemination.Mode,
		"lps", cfg.Simulation.LPs, "entities", cfg.TotalEntities(),
		"edges", len(s.edges), "end_clock", cfg.Simulation.EndClock)

	procs, writers, err := s.buildProcesses()
	if err != nil {
		return nil, multierr.Combine(err, closeWriters(writers), s.app.Stop(ctx))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range procs {
		p := p
		g.Go(func() error {
			return p.Run(gctx)
		})
	}
	runErr := g.Wait()

	stopErr := multierr.Combine(closeWriters(writers), s.app.Stop(context.WithoutCancel(ctx)))
	if runErr != nil {
		if fatal, ok := types.AsFatal(runErr); ok {
			log.Error("仿真中止", "run_id", s.runID, "clock", fatal.Clock, "entity", fatal.Entity, "error", fatal.Err)
		}
		return nil, multierr.Append(runErr, stopErr)
	}
	if stopErr != nil {
		return nil, stopErr
	}

	report, err := s.report(procs, s.opts.clock.Since(start))
	if err != nil {
		return nil, err
	}
	log.Info("仿真完成", "run_id", s.runID, "elapsed", report.Elapsed,
		"sent", report.Total.PingsSent, "received", report.Total.PingsReceived,
		"migrations", report.Runtime.Migrations)
	return report, nil
}

func (s *Simulation) buildProcesses() ([]*process.Process, []*trace.Writer, error) {
	cfg := s.opts.config
	procs := make([]*process.Process, 0, cfg.Simulation.LPs)
	writers := make([]*trace.Writer, 0, cfg.Simulation.LPs)

	for i := 0; i < cfg.Simulation.LPs; i++ {
		lp := types.LPID(i)
		tw := trace.Discard()
		if dir := cfg.Simulation.TraceDir; dir != "" {
			var err error
			if tw, err = trace.Open(dir, lp); err != nil {
				return procs, writers, err
			}
		}
		writers = append(writers, tw)

		sc := simctx.New(cfg, s.hub.Endpoint(lp), tw, s.metrics.ForLP(lp))
		procs = append(procs, process.New(sc, s.edges, process.WithClock(s.opts.clock)))
	}
	return procs, writers, nil
}

func closeWriters(writers []*trace.Writer) error {
	var err error
	for _, w := range writers {
		err = multierr.Append(err, w.Close())
	}
	return err
}
