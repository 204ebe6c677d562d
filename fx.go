package gossipsim

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/debug/introspect"
	"github.com/dep2p/go-gossipsim/internal/sim/localrt"
	"github.com/dep2p/go-gossipsim/internal/sim/metrics"
	"github.com/dep2p/go-gossipsim/internal/sim/topology"
)

// topologyResult 拓扑提供者的输出
type topologyResult struct {
	fx.Out

	Edges []topology.Edge
}

// buildFxApp 构建 Fx 应用
//
// 组装顺序：
//  1. 配置（前置校验）
//  2. 指标注册表
//  3. 拓扑（选项优先，其次文件）
//  4. 进程内运行时（OnStop 关闭）
//  5. 自省服务（仅在 diagnostics.enable_introspect 时启动）
func buildFxApp(o *options, sim *Simulation) (*fx.App, error) {
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(o.config),
		metrics.Module,
		fx.Provide(func(cfg *config.Config) (topologyResult, error) {
			return provideTopology(o, cfg)
		}),
		fx.Provide(newHub),
		fx.Supply(fx.Annotated{Name: "run_id", Target: sim.runID.String()}),
		introspect.Module(),
	}
	modules = append(modules, o.fxOptions...)
	modules = append(modules,
		fx.Populate(&sim.hub, &sim.metrics, &sim.edges),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

func provideTopology(o *options, cfg *config.Config) (topologyResult, error) {
	if o.hasEdges {
		return topologyResult{Edges: o.edges}, nil
	}
	if cfg.Simulation.TopologyFile == "" {
		return topologyResult{}, ErrNoTopology
	}
	edges, err := topology.Load(cfg.Simulation.TopologyFile)
	if err != nil {
		return topologyResult{}, err
	}
	log.Info("拓扑已读取", "file", cfg.Simulation.TopologyFile, "edges", len(edges))
	return topologyResult{Edges: edges}, nil
}

func newHub(lc fx.Lifecycle, cfg *config.Config) *localrt.Hub {
	hub := localrt.New(cfg)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return hub.Close()
		},
	})
	return hub
}
