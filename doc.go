// Package gossipsim 提供基于时间步的 gossip 传播仿真
//
// 仿真由若干托管进程组成，每个进程在自己的 goroutine 中运行单线程事件循环，
// 进程之间只通过运行时交换消息，并在每个时间步的屏障处同步。
//
// # 快速开始
//
//	cfg := config.DefaultConfig()
//	cfg.Simulation.LPs = 4
//	cfg.Simulation.TopologyFile = "graph.dot"
//
//	sim, err := gossipsim.New(gossipsim.WithConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	report, err := sim.Run(ctx)
//	if fatal, ok := types.AsFatal(err); ok {
//	    fmt.Printf("clock=%.0f entity=%d\n", float64(fatal.Clock), fatal.Entity)
//	}
//
// # 传播模式
//
//	broadcast           单次全局判定后全部转发
//	fixed_prob          每个邻居独立按固定概率转发
//	adaptive_node       按节点的自适应 gossip
//	adaptive_sender     按创建者的自适应 gossip（共享刺激表）
//	adaptive_specific   按邻居和创建者的自适应 gossip
//	degree_dependent    按邻居度数决定转发概率
//
// # 包结构
//
//	gossipsim/
//	├── gossipsim.go          # 版本信息
//	├── simulation.go         # Simulation、Run
//	├── report.go             # 运行报告
//	├── fx.go                 # Fx 组装
//	├── options.go            # 选项
//	├── config/               # 配置与校验
//	├── pkg/types/            # 标识符、模式、错误
//	├── pkg/interfaces/       # 运行时契约
//	├── internal/sim/         # 缓存、实体、编解码、传播引擎、自适应控制、事件循环、进程内运行时
//	├── internal/debug/       # 运行期自省 HTTP 服务
//	├── examples/basic/       # 各传播模式对比示例
//	└── cmd/gossipsim/        # 命令行入口
package gossipsim
