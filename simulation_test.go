package gossipsim

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/debug/introspect"
	"github.com/dep2p/go-gossipsim/internal/sim/localrt"
	"github.com/dep2p/go-gossipsim/internal/sim/topology"
	"github.com/dep2p/go-gossipsim/internal/sim/trace"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

func testConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Simulation.LPs = 2
	cfg.Simulation.EntitiesPerLP = 4
	cfg.Simulation.EndClock = 60
	cfg.Dissemination.FixedThreshold = 100
	cfg.Dissemination.MeanNewMessage = 5
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func ring(n int) []topology.Edge {
	edges := make([]topology.Edge, 0, n)
	for i := 0; i < n; i++ {
		edges = append(edges, topology.Edge{From: types.EntityID(i), To: types.EntityID((i + 1) % n)})
	}
	return edges
}

func runSim(t *testing.T, cfg *config.Config, edges []topology.Edge) *Report {
	t.Helper()
	sim, err := New(WithConfig(cfg), WithTopology(edges), WithClock(clock.NewMock()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	report, err := sim.Run(ctx)
	require.NoError(t, err)
	return report
}

// ============================================================================
//                              构建
// ============================================================================

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Simulation.LPs = 0
	})
	_, err := New(WithConfig(cfg), WithTopology(nil))
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestNew_NoTopology(t *testing.T) {
	_, err := New(WithConfig(testConfig(nil)))
	assert.ErrorContains(t, err, "no topology")
}

func TestNew_TopologyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.dot")
	require.NoError(t, os.WriteFile(path, []byte("graph G {\n0 -- 1;\n1 -- 2;\n}\n"), 0o644))

	cfg := testConfig(func(cfg *config.Config) {
		cfg.Simulation.TopologyFile = path
	})
	sim, err := New(WithConfig(cfg))
	require.NoError(t, err)
	assert.Len(t, sim.edges, 2)
	assert.NotEqual(t, sim.RunID().String(), "")
	assert.Same(t, cfg, sim.Config())
}

func TestNew_FxOptions(t *testing.T) {
	var hub *localrt.Hub
	_, err := New(
		WithConfig(testConfig(nil)),
		WithTopology(ring(8)),
		WithFxOptions(fx.Invoke(func(h *localrt.Hub) { hub = h })),
	)
	require.NoError(t, err)
	assert.NotNil(t, hub)
}

func TestNew_Introspect(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Diagnostics.EnableIntrospect = true
		cfg.Diagnostics.IntrospectAddr = "127.0.0.1:0"
	})

	var server *introspect.Server
	sim, err := New(
		WithConfig(cfg),
		WithTopology(ring(8)),
		WithFxOptions(fx.Populate(&server)),
	)
	require.NoError(t, err)
	require.NotNil(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = sim.Run(ctx)
	require.NoError(t, err)

	// 运行结束后服务随 fx 停止
	assert.Contains(t, server.Addr(), "127.0.0.1:")
}

// ============================================================================
//                              运行
// ============================================================================

func TestRun_Ring(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Simulation.TraceDir = dir
	})
	report := runSim(t, cfg, ring(8))

	assert.Equal(t, types.ModeGossipFixedProb, report.Mode)
	assert.Equal(t, 8, report.Entities)
	assert.NotZero(t, report.Total.Generated)
	assert.NotZero(t, report.Total.PingsReceived)
	require.Len(t, report.PerLP, 2)

	var sent uint64
	for _, lp := range report.PerLP {
		assert.Equal(t, types.SimTime(60), lp.Clock)
		assert.Equal(t, 4, lp.Entities)
		sent += lp.Stats.PingsSent

		data, err := os.ReadFile(filepath.Join(dir, "tracefile-messages-"+strconv.Itoa(int(lp.LP))+".trace"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "M "))

		tr, err := os.ReadFile(filepath.Join(dir, trace.FileName(lp.LP)))
		require.NoError(t, err)
		assert.Contains(t, string(tr), "G ")
	}
	assert.Equal(t, report.Total.PingsSent, sent)
	assert.NotZero(t, report.Runtime.RemoteDeliveries)
	assert.Equal(t, uint64(60), report.Runtime.Steps)

	data, err := report.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mode": "fixed_prob"`)
	assert.Contains(t, string(data), report.RunID.String())
}

func TestRun_Deterministic(t *testing.T) {
	cfg := func() *config.Config {
		return testConfig(func(cfg *config.Config) {
			cfg.Dissemination.FixedThreshold = 60
			cfg.Simulation.Seed = 7
		})
	}
	edges := append(ring(8), topology.Edge{From: 0, To: 4}, topology.Edge{From: 2, To: 6})

	first := runSim(t, cfg(), edges)
	second := runSim(t, cfg(), edges)
	assert.Equal(t, first.Total, second.Total)
	for i := range first.PerLP {
		assert.Equal(t, first.PerLP[i].Stats, second.PerLP[i].Stats)
	}
}

func TestRun_AdaptiveModes(t *testing.T) {
	for _, mode := range []types.Mode{types.ModeAdaptiveNode, types.ModeAdaptiveSender, types.ModeAdaptiveSpecific} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := testConfig(func(cfg *config.Config) {
				cfg.Dissemination.Mode = mode
				cfg.Dissemination.FixedThreshold = 30
				cfg.Simulation.EndClock = 120
				cfg.Adaptive.EvaluationPeriod = 20
			})
			report := runSim(t, cfg, ring(8))
			assert.NotZero(t, report.Total.StimuliSent)
			assert.Equal(t, report.Total.StimuliSent, report.Total.StimuliReceived)
		})
	}
}

func TestRun_DegreeDependent(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Dissemination.Mode = types.ModeDegreeDependent
		cfg.Dissemination.ProbFunction = types.ProbLog
		cfg.Dissemination.FunctionCoefficient = 2
	})
	report := runSim(t, cfg, ring(8))
	assert.NotZero(t, report.Total.PingsReceived)
}

func TestRun_WithMigration(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Migration.Enabled = true
		cfg.Migration.Factor = 1
		cfg.Migration.LoadBalancing = false
	})
	edges := append(ring(8),
		topology.Edge{From: 0, To: 4},
		topology.Edge{From: 0, To: 5},
		topology.Edge{From: 0, To: 6},
	)
	report := runSim(t, cfg, edges)

	assert.NotZero(t, report.Runtime.Migrations)
	assert.Equal(t, report.Runtime.Migrations, report.Total.MigrationsOut)
	assert.Equal(t, report.Total.MigrationsOut, report.Total.MigrationsIn)

	hosted := 0
	for _, lp := range report.PerLP {
		hosted += lp.Entities
	}
	assert.Equal(t, 8, hosted)
}

func TestRun_FatalPropagates(t *testing.T) {
	cfg := testConfig(nil)
	sim, err := New(WithConfig(cfg), WithTopology([]topology.Edge{{From: 1, To: 99}}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = sim.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnknownEntity)

	fatal, ok := types.AsFatal(err)
	require.True(t, ok)
	assert.Equal(t, types.SimTime(cfg.Simulation.BuildingStep), fatal.Clock)
	assert.Equal(t, types.EntityID(1), fatal.Entity)
}

func TestRun_Twice(t *testing.T) {
	sim, err := New(WithConfig(testConfig(func(cfg *config.Config) {
		cfg.Simulation.EndClock = 5
	})), WithTopology(ring(8)))
	require.NoError(t, err)

	_, err = sim.Run(context.Background())
	require.NoError(t, err)
	_, err = sim.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestVersionInfo(t *testing.T) {
	assert.True(t, strings.HasPrefix(VersionInfo(), "gossipsim "+Version))
}
