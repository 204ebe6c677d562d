// Package main 提供 gossipsim 命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dep2p/go-gossipsim"
	"github.com/dep2p/go-gossipsim/internal/util/logger"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

var log = logger.Logger("cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "JSON 配置文件路径")
	topoFile   = flag.String("topology", "", "拓扑文件（每行 \"a -- b;\"）")
	traceDir   = flag.String("trace-dir", "", "跟踪文件输出目录（为空则不写）")
	reportFile = flag.String("report", "", "运行报告输出路径（JSON）")

	lps      = flag.Int("lps", 0, "托管进程数量")
	entities = flag.Int("entities", 0, "每个托管进程的实体数")
	endClock = flag.Float64("end-clock", 0, "结束时钟")
	seed     = flag.Uint64("seed", 0, "随机种子")
	runNum   = flag.Int("run", 0, "运行编号")
	mode     = flag.String("mode", "", "传播模式 (broadcast/fixed_prob/adaptive_node/adaptive_sender/adaptive_specific/degree_dependent)")

	introspectAddr = flag.String("introspect", "", "运行期间在该地址提供自省 HTTP 服务（如 127.0.0.1:6060）")

	logLevel    = flag.String("log-level", "", "全局日志级别 (debug/info/warn/error)")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		if fatal, ok := types.AsFatal(err); ok {
			fmt.Fprintf(os.Stderr, "致命错误: clock=%.2f entity=%d: %v\n", float64(fatal.Clock), fatal.Entity, fatal.Err)
		} else {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(gossipsim.VersionInfo())
		return nil
	}

	if *logLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
			return fmt.Errorf("log-level: %w", err)
		}
		logger.SetGlobalLevel(level)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	sim, err := gossipsim.New(gossipsim.WithConfig(cfg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := sim.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("仿真被中断", "run_id", sim.RunID())
		}
		return err
	}

	fmt.Printf("run %s: %d pings sent, %d received, %d generated, %d migrations\n",
		report.RunID, report.Total.PingsSent, report.Total.PingsReceived,
		report.Total.Generated, report.Runtime.Migrations)

	if *reportFile != "" {
		data, err := report.JSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*reportFile, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}
