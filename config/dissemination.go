package config

import "github.com/dep2p/go-gossipsim/pkg/types"

// DisseminationConfig 传播配置
type DisseminationConfig struct {
	// Mode 传播模式，整个运行期间固定
	Mode types.Mode `json:"mode"`

	// BroadcastThreshold 广播模式的全局概率阈值 [0,100]
	BroadcastThreshold float64 `json:"broadcast_prob_threshold"`

	// FixedThreshold 固定概率与自适应模式的基线阈值 [0,100]
	FixedThreshold float64 `json:"fixed_prob_threshold"`

	// CacheSize 每个实体的缓存容量，0 表示禁用重复抑制
	CacheSize int `json:"cache_size"`

	// MaxTTL 新消息的跳数上限
	MaxTTL int `json:"max_ttl"`

	// MeanNewMessage 消息生成间隔的均值
	MeanNewMessage float64 `json:"mean_new_message"`

	// ProbFunction 度相关模式的概率函数
	ProbFunction types.ProbFunction `json:"probability_function"`

	// FunctionCoefficient 概率函数系数 c
	FunctionCoefficient float64 `json:"function_coefficient"`
}

// DefaultDisseminationConfig 返回默认传播配置
func DefaultDisseminationConfig() DisseminationConfig {
	return DisseminationConfig{
		Mode:                types.ModeGossipFixedProb,
		BroadcastThreshold:  100,
		FixedThreshold:      50,
		CacheSize:           256,
		MaxTTL:              10,
		MeanNewMessage:      30,
		ProbFunction:        types.ProbPower,
		FunctionCoefficient: 1,
	}
}
