package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// LookupFunc 环境变量查找函数，签名与 os.LookupEnv 一致
type LookupFunc func(key string) (string, bool)

// 可识别的环境变量
const (
	EnvMigration           = "MIGRATION"
	EnvMigrationFactor     = "MFACTOR"
	EnvLoadBalancing       = "LOAD"
	EnvEndClock            = "END_CLOCK"
	EnvMaxTTL              = "MAX_TTL"
	EnvDissemination       = "DISSEMINATION"
	EnvBroadcastThreshold  = "BROADCAST_PROB_THRESHOLD"
	EnvFixedThreshold      = "FIXED_PROB_THRESHOLD"
	EnvCacheSize           = "CACHE_SIZE"
	EnvProbFunction        = "PROBABILITY_FUNCTION"
	EnvFunctionCoefficient = "FUNCTION_COEFFICIENT"
)

// ApplyEnv 使用环境变量覆盖配置
//
// 未设置的变量保持原值。解析失败的变量全部收集后以 ValidationErrors 返回。
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	v := NewValidator()
	e := envReader{lookup: lookup, v: v}

	if n, ok := e.int(EnvMigration); ok {
		switch {
		case n == 0:
			c.Migration.Enabled = false
		case n >= 1 && n <= 3:
			c.Migration.Enabled = true
		default:
			v.addError(EnvMigration, fmt.Sprintf("取值 %d 无效，应为 0-3", n))
		}
	}
	if f, ok := e.float(EnvMigrationFactor); ok {
		c.Migration.Factor = f
	}
	if n, ok := e.int(EnvLoadBalancing); ok {
		c.Migration.LoadBalancing = n != 0
	}
	if f, ok := e.float(EnvEndClock); ok {
		c.Simulation.EndClock = f
	}
	if n, ok := e.int(EnvMaxTTL); ok {
		c.Dissemination.MaxTTL = n
	}
	if s, ok := lookup(EnvDissemination); ok {
		m, err := types.ParseMode(s)
		if err != nil {
			v.addError(EnvDissemination, err.Error())
		} else {
			c.Dissemination.Mode = m
		}
	}
	if f, ok := e.float(EnvBroadcastThreshold); ok {
		c.Dissemination.BroadcastThreshold = f
	}
	if f, ok := e.float(EnvFixedThreshold); ok {
		c.Dissemination.FixedThreshold = f
	}
	if n, ok := e.int(EnvCacheSize); ok {
		c.Dissemination.CacheSize = n
	}
	if n, ok := e.int(EnvProbFunction); ok {
		c.Dissemination.ProbFunction = types.ProbFunction(n)
	}
	if f, ok := e.float(EnvFunctionCoefficient); ok {
		c.Dissemination.FunctionCoefficient = f
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

type envReader struct {
	lookup LookupFunc
	v      *Validator
}

func (e envReader) int(key string) (int, bool) {
	s, ok := e.lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		e.v.addError(key, fmt.Sprintf("不是整数: %q", s))
		return 0, false
	}
	return n, true
}

func (e envReader) float(key string) (float64, bool) {
	s, ok := e.lookup(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		e.v.addError(key, fmt.Sprintf("不是数值: %q", s))
		return 0, false
	}
	return f, true
}
