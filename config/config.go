// Package config 提供 gossipsim 的统一配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义。
// 支持从 JSON 加载、从环境变量覆盖（兼容 LUNES 风格的变量名）以及集中校验。
//
// 使用示例：
//
//	cfg := config.DefaultConfig()
//	cfg.Dissemination.Mode = types.ModeGossipFixedProb
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
//
//	// 应用环境变量
//	err = cfg.ApplyEnv(os.LookupEnv)
//
//	// 校验
//	err = cfg.Validate()
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config 是 gossipsim 的完整配置结构
//
// 配置按照功能模块组织：
//   - Simulation: 时间步、进程与实体数量、输出
//   - Dissemination: 传播模式与概率参数
//   - Adaptive: 自适应 gossip 的反馈参数
//   - Migration: 实体迁移
//   - Limits: 编译期常量对应的上限
//   - Diagnostics: 自省服务
type Config struct {
	// Simulation 模拟控制配置
	Simulation SimulationConfig `json:"simulation"`

	// Dissemination 传播配置
	Dissemination DisseminationConfig `json:"dissemination"`

	// Adaptive 自适应反馈配置
	Adaptive AdaptiveConfig `json:"adaptive"`

	// Migration 迁移配置
	Migration MigrationConfig `json:"migration"`

	// Limits 资源上限
	Limits LimitsConfig `json:"limits"`

	// Diagnostics 诊断配置
	Diagnostics DiagnosticsConfig `json:"diagnostics"`
}

// DefaultConfig 创建默认配置
func DefaultConfig() *Config {
	return &Config{
		Simulation:    DefaultSimulationConfig(),
		Dissemination: DefaultDisseminationConfig(),
		Adaptive:      DefaultAdaptiveConfig(),
		Migration:     DefaultMigrationConfig(),
		Limits:        DefaultLimitsConfig(),
		Diagnostics:   DefaultDiagnosticsConfig(),
	}
}

// TotalEntities 返回全部托管进程中的实体总数
func (c *Config) TotalEntities() int {
	return c.Simulation.LPs * c.Simulation.EntitiesPerLP
}

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保持默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 将配置序列化为 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
