package config

// MigrationConfig 实体迁移配置
type MigrationConfig struct {
	// Enabled 是否启用迁移
	Enabled bool `json:"enabled"`

	// Factor 迁移因子：远程交互数超过 Factor 倍本地交互数时迁移
	Factor float64 `json:"factor"`

	// LoadBalancing 是否启用负载均衡约束
	LoadBalancing bool `json:"load_balancing"`
}

// DefaultMigrationConfig 返回默认迁移配置
func DefaultMigrationConfig() MigrationConfig {
	return MigrationConfig{
		Enabled:       false,
		Factor:        3,
		LoadBalancing: true,
	}
}
