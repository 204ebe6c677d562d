package config

// AdaptiveConfig 自适应 gossip 反馈配置
type AdaptiveConfig struct {
	// EvaluationPeriod 评估周期
	EvaluationPeriod float64 `json:"evaluation_period"`

	// StimulusIncrement 单次刺激的基础概率增量
	StimulusIncrement float64 `json:"stimulus_increment"`

	// StimulusLength 刺激有效时长
	StimulusLength float64 `json:"stimulus_length"`
}

// DefaultAdaptiveConfig 返回默认自适应配置
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		EvaluationPeriod:  50,
		StimulusIncrement: 10,
		StimulusLength:    200,
	}
}
