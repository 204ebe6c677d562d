package gossipsim

import "errors"

// 公共错误定义
var (
	// ErrAlreadyRun 仿真只能运行一次
	ErrAlreadyRun = errors.New("simulation already run")

	// ErrNoTopology 未提供拓扑
	ErrNoTopology = errors.New("no topology: set simulation.topology_file or use WithTopology")
)
