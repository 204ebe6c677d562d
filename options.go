package gossipsim

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/sim/topology"
)

// Option 仿真选项
type Option func(*options) error

type options struct {
	config    *config.Config
	edges     []topology.Edge
	hasEdges  bool
	clock     clock.Clock
	fxOptions []fx.Option
}

func defaultOptions() *options {
	return &options{
		config: config.DefaultConfig(),
		clock:  clock.New(),
	}
}

// WithConfig 使用给定配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		o.config = cfg
		return nil
	}
}

// WithTopology 直接提供拓扑，忽略 simulation.topology_file
func WithTopology(edges []topology.Edge) Option {
	return func(o *options) error {
		o.edges = edges
		o.hasEdges = true
		return nil
	}
}

// WithClock 设置进度报告使用的墙钟，测试中可传入 clock.NewMock()
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
