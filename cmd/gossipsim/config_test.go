package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

func TestApplyFlag(t *testing.T) {
	cfg := config.DefaultConfig()

	*mode = "adaptive_sender"
	*lps = 3
	*endClock = 250
	require.NoError(t, applyFlag(cfg, "mode"))
	require.NoError(t, applyFlag(cfg, "lps"))
	require.NoError(t, applyFlag(cfg, "end-clock"))
	require.NoError(t, applyFlag(cfg, "unrelated"))

	assert.Equal(t, types.ModeAdaptiveSender, cfg.Dissemination.Mode)
	assert.Equal(t, 3, cfg.Simulation.LPs)
	assert.Equal(t, 250.0, cfg.Simulation.EndClock)

	*introspectAddr = "127.0.0.1:0"
	require.NoError(t, applyFlag(cfg, "introspect"))
	assert.True(t, cfg.Diagnostics.EnableIntrospect)
	assert.Equal(t, "127.0.0.1:0", cfg.Diagnostics.IntrospectAddr)

	*mode = "gossip-ish"
	assert.Error(t, applyFlag(cfg, "mode"))
}
