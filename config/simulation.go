package config

// SimulationConfig 模拟控制配置
type SimulationConfig struct {
	// LPs 托管进程数量
	LPs int `json:"lps"`

	// EntitiesPerLP 每个托管进程初始实体数
	EntitiesPerLP int `json:"entities_per_lp"`

	// Seed 随机种子
	Seed uint64 `json:"seed"`

	// Run 运行编号，与种子一起决定随机序列
	Run int `json:"run"`

	// EndClock 结束时钟
	EndClock float64 `json:"end_clock"`

	// Step 时间步长
	Step float64 `json:"step"`

	// FlightTime 消息传输时间，必须不小于 Step
	FlightTime float64 `json:"flight_time"`

	// BuildingStep 加载拓扑的时间步
	BuildingStep float64 `json:"building_step"`

	// ExecutionStep 开始生成消息的时间步
	ExecutionStep float64 `json:"execution_step"`

	// TopologyFile 拓扑文件（每行 "a -- b;"）
	TopologyFile string `json:"topology_file"`

	// TraceDir 跟踪文件输出目录，为空时不写跟踪文件
	TraceDir string `json:"trace_dir"`
}

// DefaultSimulationConfig 返回默认模拟配置
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		LPs:           1,
		EntitiesPerLP: 100,
		Seed:          1,
		Run:           0,
		EndClock:      1000,
		Step:          1,
		FlightTime:    1,
		BuildingStep:  3,
		ExecutionStep: 5,
	}
}
