package main

import (
	"flag"
	"os"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// loadConfig 依次应用配置文件、环境变量与显式设置的命令行参数
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFile(*configFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		err = applyFlag(cfg, f.Name)
	})
	if err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

// applyFlag 应用单个显式设置的参数
func applyFlag(cfg *config.Config, name string) error {
	switch name {
	case "topology":
		cfg.Simulation.TopologyFile = *topoFile
	case "trace-dir":
		cfg.Simulation.TraceDir = *traceDir
	case "lps":
		cfg.Simulation.LPs = *lps
	case "entities":
		cfg.Simulation.EntitiesPerLP = *entities
	case "end-clock":
		cfg.Simulation.EndClock = *endClock
	case "seed":
		cfg.Simulation.Seed = *seed
	case "run":
		cfg.Simulation.Run = *runNum
	case "introspect":
		cfg.Diagnostics.EnableIntrospect = *introspectAddr != ""
		cfg.Diagnostics.IntrospectAddr = *introspectAddr
	case "mode":
		m, err := types.ParseMode(*mode)
		if err != nil {
			return err
		}
		cfg.Dissemination.Mode = m
	}
	return nil
}
