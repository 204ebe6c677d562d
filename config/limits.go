package config

// LimitsConfig 资源上限
type LimitsConfig struct {
	// MaxCacheSize 缓存容量上限，CacheSize 超出时被截断
	MaxCacheSize int `json:"max_cache_size"`

	// MaxMigrationRecords 单个实体可迁移的邻居记录上限
	MaxMigrationRecords int `json:"max_migration_records"`

	// BufferSize 单条消息负载上限（字节）
	BufferSize int `json:"buffer_size"`
}

// DefaultLimitsConfig 返回默认上限
func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		MaxCacheSize:        512,
		MaxMigrationRecords: 1000,
		BufferSize:          1 << 20,
	}
}
