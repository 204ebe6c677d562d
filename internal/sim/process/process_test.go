package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/sim/codec"
	"github.com/dep2p/go-gossipsim/internal/sim/simctx"
	"github.com/dep2p/go-gossipsim/internal/sim/topology"
	"github.com/dep2p/go-gossipsim/internal/sim/trace"
	"github.com/dep2p/go-gossipsim/pkg/interfaces"
	"github.com/dep2p/go-gossipsim/pkg/types"
	"github.com/dep2p/go-gossipsim/tests/mocks"
)

func testConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Simulation.LPs = 2
	cfg.Simulation.EntitiesPerLP = 4
	cfg.Simulation.EndClock = 20
	cfg.Dissemination.FixedThreshold = 100
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func newProcess(t *testing.T, lp types.LPID, cfg *config.Config, edges []topology.Edge) (*Process, *mocks.MockRuntime) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	rt := mocks.NewMockRuntime(lp)
	sc := simctx.New(cfg, rt, nil, nil)
	return New(sc, edges, WithClock(clock.NewMock())), rt
}

func register(t *testing.T, p *Process, ids ...types.EntityID) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, p.Handle(context.Background(), interfaces.Event{Type: interfaces.EventRegister, To: id, LP: p.Context().LP}))
	}
}

func model(t *testing.T, from, to types.EntityID, msg codec.Message) interfaces.Event {
	t.Helper()
	payload, err := codec.Marshal(msg)
	require.NoError(t, err)
	return interfaces.Event{Type: interfaces.EventModel, From: from, To: to, Payload: payload}
}

// ============================================================================
//                              事件分派
// ============================================================================

func TestRegister(t *testing.T) {
	p, _ := newProcess(t, 0, testConfig(nil), nil)
	register(t, p, 0, 1)

	sc := p.Context()
	assert.Equal(t, 2, sc.LocalCount())
	e, ok := sc.Local(1)
	require.True(t, ok)
	assert.Greater(t, float64(e.State.NextSend), 0.0)
	assert.Nil(t, e.State.Histogram)

	err := p.Handle(context.Background(), interfaces.Event{Type: interfaces.EventRegister, To: 1})
	assert.ErrorIs(t, err, types.ErrDuplicateKey)

	require.NoError(t, p.Handle(context.Background(), interfaces.Event{Type: interfaces.EventRegister, To: 5, LP: 1}))
	owner, ok := sc.Owner(5)
	require.True(t, ok)
	assert.Equal(t, types.LPID(1), owner)
	_, ok = sc.Local(5)
	assert.False(t, ok)
}

func TestRegister_AdaptiveSchedulesEvaluation(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Dissemination.Mode = types.ModeAdaptiveNode
	})
	p, _ := newProcess(t, 0, cfg, nil)
	register(t, p, 3)

	e, _ := p.Context().Local(3)
	require.NotNil(t, e.State.Histogram)
	assert.Less(t, float64(e.State.HistogramCleanup), cfg.Adaptive.EvaluationPeriod)
}

func TestHandle_LinkAndPing(t *testing.T) {
	p, rt := newProcess(t, 0, testConfig(nil), nil)
	register(t, p, 0, 1, 2)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, model(t, 0, 1, codec.Link{})))
	require.NoError(t, p.Handle(ctx, model(t, 2, 1, codec.Link{})))
	e, _ := p.Context().Local(1)
	assert.Equal(t, 2, e.Degree())

	require.NoError(t, p.Handle(ctx, model(t, 0, 1, codec.Ping{Creator: 0, Value: 5, TTL: 3})))
	require.Len(t, rt.Sent, 1)
	assert.Equal(t, types.EntityID(2), rt.Sent[0].To)
}

func TestHandle_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not local", func(t *testing.T) {
		p, _ := newProcess(t, 0, testConfig(nil), nil)
		err := p.Handle(ctx, model(t, 0, 6, codec.Link{}))
		require.ErrorIs(t, err, types.ErrNotLocal)
		fatal, ok := types.AsFatal(err)
		require.True(t, ok)
		assert.Equal(t, types.EntityID(6), fatal.Entity)
	})

	t.Run("stimulus outside adaptive modes", func(t *testing.T) {
		p, _ := newProcess(t, 0, testConfig(nil), nil)
		register(t, p, 0)
		err := p.Handle(ctx, model(t, 1, 0, codec.Stimulus{MissingSender: 2}))
		assert.ErrorIs(t, err, types.ErrUnsupportedMode)
	})

	t.Run("garbage payload", func(t *testing.T) {
		p, _ := newProcess(t, 0, testConfig(nil), nil)
		register(t, p, 0)
		err := p.Handle(ctx, interfaces.Event{Type: interfaces.EventModel, From: 1, To: 0, Payload: []byte{'X', 0}})
		assert.ErrorIs(t, err, types.ErrUnknownMessage)
	})

	t.Run("unknown event", func(t *testing.T) {
		p, _ := newProcess(t, 0, testConfig(nil), nil)
		err := p.Handle(ctx, interfaces.Event{Type: interfaces.EventType(99), To: 1})
		assert.ErrorIs(t, err, types.ErrUnknownEvent)
	})
}

// ============================================================================
//                              控制流程
// ============================================================================

func TestControl_LoadTopology(t *testing.T) {
	edges := []topology.Edge{{From: 0, To: 1}, {From: 1, To: 4}, {From: 4, To: 0}}
	p, rt := newProcess(t, 0, testConfig(nil), edges)
	register(t, p, 0, 1)
	sc := p.Context()
	sc.SetOwner(4, 1)

	sc.Clock = types.SimTime(sc.Cfg.Simulation.BuildingStep)
	require.NoError(t, p.Control())

	require.Len(t, rt.Sent, 2)
	for _, s := range rt.Sent {
		assert.Equal(t, codec.Link{}, s.Decode())
		assert.Equal(t, sc.Clock+1, s.At)
	}
	assert.Equal(t, types.EntityID(1), rt.Sent[0].To)
	assert.Equal(t, types.EntityID(4), rt.Sent[1].To)

	e0, _ := sc.Local(0)
	_, ok := e0.Neighbor(1)
	assert.True(t, ok)
	e1, _ := sc.Local(1)
	_, ok = e1.Neighbor(4)
	assert.True(t, ok)
}

func TestControl_LoadTopologyUnknownEntity(t *testing.T) {
	edges := []topology.Edge{{From: 0, To: 7}}
	p, _ := newProcess(t, 0, testConfig(nil), edges)
	register(t, p, 0)
	p.Context().Clock = 3

	err := p.Control()
	assert.ErrorIs(t, err, types.ErrUnknownEntity)
}

func TestControl_GenerationWindow(t *testing.T) {
	// 生成窗口为 [5, 10)
	p, rt := newProcess(t, 0, testConfig(nil), []topology.Edge{{From: 0, To: 1}})
	register(t, p, 0, 1)
	sc := p.Context()
	sc.Clock = 3
	require.NoError(t, p.Control())
	rt.Reset()

	e, _ := sc.Local(0)
	idle, _ := sc.Local(1)
	idle.State.NextSend = 1000
	generated := func() uint64 { return sc.Stats.Stats().Generated }

	for _, clock := range []types.SimTime{4, 10, 15, 19} {
		sc.Clock = clock
		e.State.NextSend = 0
		require.NoError(t, p.Control())
	}
	assert.Zero(t, generated())
	assert.Empty(t, rt.Sent)

	sc.Clock = 5
	e.State.NextSend = 0
	require.NoError(t, p.Control())
	assert.Equal(t, uint64(1), generated())
	require.Len(t, rt.SentTo(1), 1)
}

func TestControl_AdaptiveEvaluation(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Dissemination.Mode = types.ModeAdaptiveSpecific
		cfg.Simulation.EndClock = 200
	})
	p, _ := newProcess(t, 0, cfg, []topology.Edge{{From: 0, To: 1}})
	register(t, p, 0, 1)
	sc := p.Context()
	sc.Clock = 3
	require.NoError(t, p.Control())

	e, _ := sc.Local(0)
	sc.Clock = 5
	e.State.HistogramCleanup = 5
	e.State.NextSend = 1000
	require.NoError(t, p.Control())
	assert.Equal(t, types.SimTime(5+cfg.Adaptive.EvaluationPeriod), e.State.HistogramCleanup)
	assert.NotZero(t, sc.Stats.Stats().StimuliSent)
}

// ============================================================================
//                              迁移
// ============================================================================

func TestMigration_OutAndIn(t *testing.T) {
	cfg := testConfig(nil)
	src, srcRT := newProcess(t, 0, cfg, nil)
	register(t, src, 0, 1)
	srcCtx := src.Context()
	srcCtx.Clock = 1
	srcRT.Clock = 1

	e0, _ := srcCtx.Local(0)
	require.NoError(t, srcCtx.AddNeighbor(e0, 1))
	e0.State.Cache.Insert(77, 1)

	ctx := context.Background()
	require.NoError(t, src.Handle(ctx, interfaces.Event{Type: interfaces.EventNotifyMigration, To: 0, LP: 1}))
	owner, _ := srcCtx.Owner(0)
	assert.Equal(t, types.LPID(1), owner)
	_, stillLocal := srcCtx.Local(0)
	assert.True(t, stillLocal)

	require.NoError(t, src.Handle(ctx, interfaces.Event{Type: interfaces.EventEndOfStep}))
	require.Len(t, srcRT.Migrated, 1)
	assert.Equal(t, types.EntityID(0), srcRT.Migrated[0].ID)
	_, stillLocal = srcCtx.Local(0)
	assert.False(t, stillLocal)
	assert.Equal(t, uint64(1), srcCtx.Stats.Stats().MigrationsOut)
	assert.Equal(t, types.SimTime(2), srcCtx.Clock)

	dst, _ := newProcess(t, 1, cfg, nil)
	dstCtx := dst.Context()
	require.NoError(t, dst.Handle(ctx, interfaces.Event{
		Type:    interfaces.EventExecMigration,
		To:      0,
		LP:      1,
		Payload: srcRT.Migrated[0].Payload,
	}))
	moved, ok := dstCtx.Local(0)
	require.True(t, ok)
	assert.Equal(t, types.LPID(1), moved.LP)
	assert.False(t, moved.State.Changed)
	assert.True(t, moved.State.Cache.Contains(77, 4))
	_, ok = moved.Neighbor(1)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), dstCtx.Stats.Stats().MigrationsIn)

	err := dst.Handle(ctx, interfaces.Event{Type: interfaces.EventExecMigration, To: 0, Payload: srcRT.Migrated[0].Payload})
	assert.ErrorIs(t, err, types.ErrDuplicateKey)
}

func TestMigration_NoticeForRemoteEntity(t *testing.T) {
	p, _ := newProcess(t, 0, testConfig(nil), nil)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, interfaces.Event{Type: interfaces.EventNotifyExtMigration, To: 5, LP: 1}))
	owner, ok := p.Context().Owner(5)
	require.True(t, ok)
	assert.Equal(t, types.LPID(1), owner)

	err := p.Handle(ctx, interfaces.Event{Type: interfaces.EventNotifyMigration, To: 5, LP: 0})
	assert.ErrorIs(t, err, types.ErrNotLocal)
}

// ============================================================================
//                              主循环
// ============================================================================

func TestRun_ToEndClock(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Simulation.EndClock = 3
		cfg.Simulation.TraceDir = dir
	})
	p, rt := newProcess(t, 1, cfg, nil)
	rt.Events = []interfaces.Event{
		{Type: interfaces.EventRegister, To: 0, LP: 0},
		{Type: interfaces.EventRegister, To: 4, LP: 1},
		{Type: interfaces.EventRegister, To: 5, LP: 1},
		{Type: interfaces.EventEndOfStep},
		{Type: interfaces.EventEndOfStep},
		{Type: interfaces.EventEndOfStep},
		{Type: interfaces.EventEndOfStep},
	}

	require.NoError(t, p.Run(context.Background()))
	assert.True(t, p.Done())
	assert.Equal(t, 3, rt.TimeAdvanceCalls)
	assert.Empty(t, rt.Events)

	data, err := os.ReadFile(filepath.Join(dir, "tracefile-messages-1.trace"))
	require.NoError(t, err)
	assert.Equal(t, "M 0000000000\n", string(data))
}

func TestRun_RuntimeClosedEarly(t *testing.T) {
	p, rt := newProcess(t, 0, testConfig(nil), nil)
	rt.Events = []interfaces.Event{{Type: interfaces.EventEndOfStep}}

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, types.ErrRuntimeClosed)
	assert.False(t, p.Done())
}

func TestRun_TraceOutput(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Simulation.EndClock = 40
		cfg.Dissemination.MeanNewMessage = 2
	})
	require.NoError(t, cfg.Validate())
	rt := mocks.NewMockRuntime(0)
	dir := t.TempDir()
	tw, err := trace.Open(dir, 0)
	require.NoError(t, err)
	sc := simctx.New(cfg, rt, tw, nil)
	p := New(sc, []topology.Edge{{From: 0, To: 1}})

	ctx := context.Background()
	register(t, p, 0, 1)
	for !p.Done() {
		require.NoError(t, p.Handle(ctx, interfaces.Event{Type: interfaces.EventEndOfStep}))
		// 本地回环：把本步发出的消息在下一步投递
		pending := rt.Sent
		rt.Sent = nil
		for _, s := range pending {
			require.NoError(t, p.Handle(ctx, interfaces.Event{Type: interfaces.EventModel, From: s.From, To: s.To, Payload: s.Payload}))
		}
	}
	require.NoError(t, tw.Close())

	data, err := os.ReadFile(filepath.Join(dir, trace.FileName(0)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "G ")
	assert.Contains(t, string(data), "R 0000000001 ")

	st := sc.Stats.Stats()
	assert.NotZero(t, st.Generated)
	assert.NotZero(t, st.PingsReceived)
}
