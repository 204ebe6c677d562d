package adaptive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/sim/codec"
	"github.com/dep2p/go-gossipsim/internal/sim/entity"
	"github.com/dep2p/go-gossipsim/internal/sim/simctx"
	"github.com/dep2p/go-gossipsim/pkg/types"
	"github.com/dep2p/go-gossipsim/tests/mocks"
)

func newController(t *testing.T, mode types.Mode, mutate func(*config.Config)) (*Controller, *simctx.Context, *mocks.MockRuntime) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Simulation.EntitiesPerLP = 6
	cfg.Dissemination.Mode = mode
	cfg.Dissemination.FixedThreshold = 50
	cfg.Dissemination.MeanNewMessage = 30
	cfg.Adaptive.EvaluationPeriod = 50
	cfg.Adaptive.StimulusIncrement = 10
	cfg.Adaptive.StimulusLength = 200
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	rt := mocks.NewMockRuntime(0)
	sc := simctx.New(cfg, rt, nil, nil)
	return New(sc), sc, rt
}

// star 创建实体 center 及其邻居，所有实体都登记在全局表中
func star(t *testing.T, sc *simctx.Context, center types.EntityID, neighbors ...types.EntityID) *entity.Entity {
	t.Helper()
	e := sc.NewEntity(center)
	sc.AddLocal(e)
	for _, n := range neighbors {
		require.NoError(t, sc.AddNeighbor(e, n))
		sc.SetOwner(n, 0)
	}
	return e
}

func stimuli(t *testing.T, rt *mocks.MockRuntime) []codec.Stimulus {
	t.Helper()
	out := make([]codec.Stimulus, 0, len(rt.Sent))
	for _, s := range rt.Sent {
		st, ok := s.Decode().(codec.Stimulus)
		require.True(t, ok)
		out = append(out, st)
	}
	return out
}

// ============================================================================
//                              阈值
// ============================================================================

func TestThreshold(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveSpecific, nil)
	e := star(t, sc, 0, 1, 2)
	n, _ := e.Neighbor(1)

	sc.Clock = 100
	assert.Equal(t, 50.0, c.Threshold(n, 3))

	n.Stimuli.Set(3, 20, 300)
	assert.Equal(t, 70.0, c.Threshold(n, 3))
	assert.Equal(t, 50.0, c.Threshold(n, 4))

	sc.Clock = 200
	assert.Equal(t, 60.0, c.Threshold(n, 3))

	sc.Clock = 300
	assert.Equal(t, 50.0, c.Threshold(n, 3))

	n.Stimuli.Set(3, 100, 500)
	assert.Equal(t, 100.0, c.Threshold(n, 3))
}

func TestCursor(t *testing.T) {
	node, _, _ := newController(t, types.ModeAdaptiveNode, nil)
	assert.Equal(t, 0, node.Cursor(4))

	sender, _, _ := newController(t, types.ModeAdaptiveSender, nil)
	assert.Equal(t, 4, sender.Cursor(4))
	assert.InDelta(t, 50.0/30.0, sender.TheoreticalRate(), 1e-9)
}

// ============================================================================
//                              刺激
// ============================================================================

func TestOnStimulus_Combine(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveSpecific, nil)
	e := star(t, sc, 0, 1, 2)
	n, _ := e.Neighbor(1)

	sc.Clock = 100
	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 5}))
	assert.Equal(t, 10.0, n.Stimuli.Increment[5])
	assert.Equal(t, types.SimTime(300), n.Stimuli.Timeout[5])

	// 剩余窗口 150/200
	sc.Clock = 150
	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 5}))
	assert.InDelta(t, 10+10*150.0/200, n.Stimuli.Increment[5], 1e-9)
	assert.Equal(t, types.SimTime(350), n.Stimuli.Timeout[5])

	// 过期后重新从基础增量开始
	sc.Clock = 400
	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 5}))
	assert.Equal(t, 10.0, n.Stimuli.Increment[5])
	assert.Equal(t, types.SimTime(600), n.Stimuli.Timeout[5])

	other, _ := e.Neighbor(2)
	assert.Zero(t, other.Stimuli.Increment[5])
	assert.Equal(t, uint64(3), sc.Stats.Stats().StimuliReceived)
}

func TestOnStimulus_NeverExceeds100(t *testing.T) {
	for _, fixed := range []float64{0, 50, 85, 95, 100} {
		c, sc, _ := newController(t, types.ModeAdaptiveSpecific, func(cfg *config.Config) {
			cfg.Dissemination.FixedThreshold = fixed
			cfg.Adaptive.StimulusIncrement = 40
		})
		e := star(t, sc, 0, 1)
		n, _ := e.Neighbor(1)

		for step := 0; step < 50; step++ {
			sc.Clock = types.SimTime(step * 7)
			require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 2}))
			if step > 0 {
				assert.LessOrEqual(t, fixed+n.Stimuli.Increment[2], 100.0, "fixed=%v step=%d", fixed, step)
			}
			assert.LessOrEqual(t, c.Threshold(n, 2), 100.0)
		}
	}
}

func TestOnStimulus_FirstStimulusKeepsBaseIncrement(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveSpecific, func(cfg *config.Config) {
		cfg.Dissemination.FixedThreshold = 95
	})
	e := star(t, sc, 0, 1)
	n, _ := e.Neighbor(1)

	sc.Clock = 20
	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 4}))
	assert.Equal(t, 10.0, n.Stimuli.Increment[4])

	// 窗口过半时 95 + 10*100/200 = 100
	sc.Clock = 120
	assert.Equal(t, 100.0, c.Threshold(n, 4))

	// 叠加后截断到 100 - fixed
	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 4}))
	assert.Equal(t, 5.0, n.Stimuli.Increment[4])
	assert.Equal(t, types.SimTime(320), n.Stimuli.Timeout[4])
}

func TestOnStimulus_CombineUsesBaseIncrement(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveSpecific, nil)
	e := star(t, sc, 0, 1)
	n, _ := e.Neighbor(1)

	sc.Clock = 0
	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 3}))
	sc.Clock = 100
	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 3}))
	require.InDelta(t, 15.0, n.Stimuli.Increment[3], 1e-9)

	// 剩余部分按基础增量计算：10 + 10*100/200，而不是 10 + 15*100/200
	sc.Clock = 200
	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 3}))
	assert.InDelta(t, 15.0, n.Stimuli.Increment[3], 1e-9)
}

func TestOnStimulus_SenderModeSharesCombinedTable(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveSender, nil)
	e := star(t, sc, 0, 1, 2, 3)
	n1, _ := e.Neighbor(1)
	n2, _ := e.Neighbor(2)
	n3, _ := e.Neighbor(3)

	// 首次刺激只作用于发送者
	sc.Clock = 20
	require.NoError(t, c.OnStimulus(e, 2, codec.Stimulus{MissingSender: 4}))
	assert.Equal(t, 10.0, n2.Stimuli.Increment[4])
	assert.Equal(t, types.SimTime(220), n2.Stimuli.Timeout[4])
	assert.Zero(t, n1.Stimuli.Increment[4])
	assert.Zero(t, n1.Stimuli.Timeout[4])
	assert.Zero(t, n3.Stimuli.Increment[4])
	assert.Zero(t, n3.Stimuli.Timeout[4])

	// 邻居 3 上没有生效的刺激，同样不共享
	sc.Clock = 120
	require.NoError(t, c.OnStimulus(e, 3, codec.Stimulus{MissingSender: 4}))
	assert.Equal(t, 10.0, n3.Stimuli.Increment[4])
	assert.Equal(t, types.SimTime(320), n3.Stimuli.Timeout[4])
	assert.Zero(t, n1.Stimuli.Increment[4])
	assert.Equal(t, types.SimTime(220), n2.Stimuli.Timeout[4])

	// 叠加后复制到全部邻居
	sc.Clock = 170
	require.NoError(t, c.OnStimulus(e, 2, codec.Stimulus{MissingSender: 4}))
	for _, n := range e.Neighbors() {
		assert.InDelta(t, 12.5, n.Stimuli.Increment[4], 1e-9, "neighbor %d", n.ID)
		assert.Equal(t, types.SimTime(370), n.Stimuli.Timeout[4], "neighbor %d", n.ID)
	}
}

func TestOnStimulus_NodeModeUsesSingleSlot(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveNode, nil)
	e := star(t, sc, 0, 1, 2)
	n, _ := e.Neighbor(1)

	require.NoError(t, c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 4}))
	assert.Equal(t, 10.0, n.Stimuli.Increment[0])
	assert.Zero(t, n.Stimuli.Increment[4])
}

func TestOnStimulus_UnknownNeighbor(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveSpecific, nil)
	e := star(t, sc, 0, 1)
	sc.Clock = 42

	err := c.OnStimulus(e, 3, codec.Stimulus{MissingSender: 1})
	require.ErrorIs(t, err, types.ErrNotNeighbor)
	fatal, ok := types.AsFatal(err)
	require.True(t, ok)
	assert.Equal(t, types.SimTime(42), fatal.Clock)
	assert.Equal(t, types.EntityID(0), fatal.Entity)
}

func TestOnStimulus_MissingSenderOutOfRange(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveSpecific, nil)
	e := star(t, sc, 0, 1)

	err := c.OnStimulus(e, 1, codec.Stimulus{MissingSender: 99})
	assert.ErrorIs(t, err, types.ErrUnknownEntity)
}

// ============================================================================
//                              评估
// ============================================================================

func TestSchedule(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveNode, nil)
	e := star(t, sc, 0, 1)

	sc.Clock = 5
	c.Schedule(e)
	assert.GreaterOrEqual(t, float64(e.State.HistogramCleanup), 5.0)
	assert.Less(t, float64(e.State.HistogramCleanup), 55.0)

	sc.Clock = e.State.HistogramCleanup - 1
	assert.False(t, c.Due(e))
	sc.Clock = e.State.HistogramCleanup
	assert.True(t, c.Due(e))
}

func TestEvaluate_SendsStimuli(t *testing.T) {
	c, sc, rt := newController(t, types.ModeAdaptiveSpecific, nil)
	e := star(t, sc, 0, 1, 2)
	for i := 0; i < 5; i++ {
		c.Observe(e, 1, 1)
		c.Observe(e, 3, 1)
	}
	c.Observe(e, 2, 2)

	sc.Clock = 60
	require.NoError(t, c.Evaluate(e))
	assert.Equal(t, types.SimTime(110), e.State.HistogramCleanup)

	// 2 只收到 1 条，经 2 转发；4 和 5 未收到，随机选邻居
	require.Len(t, rt.Sent, 3)
	assert.Equal(t, types.EntityID(2), rt.Sent[0].To)
	assert.Equal(t, codec.Stimulus{MissingSender: 2}, rt.Sent[0].Decode())
	assert.Equal(t, []codec.Stimulus{{MissingSender: 2}, {MissingSender: 4}, {MissingSender: 5}}, stimuli(t, rt))
	for _, s := range rt.Sent {
		assert.Contains(t, []types.EntityID{1, 2}, s.To)
		assert.Equal(t, types.SimTime(61), s.At)
	}

	for _, cell := range e.State.Histogram.Cells() {
		assert.Zero(t, cell)
	}
	assert.Equal(t, uint64(3), sc.Stats.Stats().StimuliSent)
}

func TestEvaluate_NodeModeOnePerDestination(t *testing.T) {
	c, sc, rt := newController(t, types.ModeAdaptiveNode, nil)
	e := star(t, sc, 0, 1)
	c.Observe(e, 2, 1)
	c.Observe(e, 3, 1)

	require.NoError(t, c.Evaluate(e))
	require.Len(t, rt.Sent, 1)
	assert.Equal(t, types.EntityID(1), rt.Sent[0].To)
	assert.Equal(t, codec.Stimulus{MissingSender: 1}, rt.Sent[0].Decode())
}

func TestEvaluate_NoNeighbors(t *testing.T) {
	c, sc, rt := newController(t, types.ModeAdaptiveSpecific, nil)
	e := star(t, sc, 0)

	require.NoError(t, c.Evaluate(e))
	assert.Empty(t, rt.Sent)
}

func TestEvaluate_UnknownDestination(t *testing.T) {
	c, sc, _ := newController(t, types.ModeAdaptiveSpecific, nil)
	e := sc.NewEntity(0)
	sc.AddLocal(e)
	require.NoError(t, sc.AddNeighbor(e, 1))
	c.Observe(e, 2, 1)

	err := c.Evaluate(e)
	assert.ErrorIs(t, err, types.ErrUnknownEntity)
}

func TestEvaluate_Determinism(t *testing.T) {
	run := func() []types.EntityID {
		c, sc, rt := newController(t, types.ModeAdaptiveSpecific, nil)
		e := star(t, sc, 0, 1, 2, 3, 4)
		require.NoError(t, c.Evaluate(e))
		out := make([]types.EntityID, 0, len(rt.Sent))
		for _, s := range rt.Sent {
			out = append(out, s.To)
		}
		return out
	}
	first := run()
	assert.Len(t, first, 5)
	assert.Equal(t, first, run())
}
