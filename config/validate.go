package config

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-gossipsim/internal/util/logger"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

var log = logger.Logger("config")

// ValidationError 配置校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %s", e.Field, e.Message)
}

// ValidationErrors 多个配置校验错误
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap 使 errors.Is(err, types.ErrInvalidConfig) 成立
func (e ValidationErrors) Unwrap() error {
	return types.ErrInvalidConfig
}

// HasErrors 是否有错误
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator 配置校验器
type Validator struct {
	errors ValidationErrors
}

// NewValidator 创建校验器
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// Errors 返回所有错误
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Normalize 修正可自动修复的配置项
//
// 目前只有缓存容量：超过 MaxCacheSize 时截断并记录警告。
func (c *Config) Normalize() {
	if c.Dissemination.CacheSize > c.Limits.MaxCacheSize {
		log.Warn("缓存容量超过上限，已截断",
			"cache_size", c.Dissemination.CacheSize,
			"max", c.Limits.MaxCacheSize)
		c.Dissemination.CacheSize = c.Limits.MaxCacheSize
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	v := NewValidator()

	v.validateSimulation(&c.Simulation, c.Dissemination.MaxTTL)
	v.validateDissemination(&c.Dissemination, &c.Limits)
	if c.Dissemination.Mode.IsAdaptive() {
		v.validateAdaptive(&c.Adaptive)
	}
	v.validateMigration(&c.Migration)
	v.validateLimits(&c.Limits)
	if c.Diagnostics.EnableIntrospect && c.Diagnostics.IntrospectAddr == "" {
		v.addError("diagnostics.introspect_addr", "启用自省服务时不能为空")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateSimulation(s *SimulationConfig, maxTTL int) {
	if s.LPs <= 0 {
		v.addError("simulation.lps", "必须为正数")
	}
	if s.EntitiesPerLP <= 0 {
		v.addError("simulation.entities_per_lp", "必须为正数")
	}
	if s.Step <= 0 {
		v.addError("simulation.step", "必须为正数")
	}
	if s.FlightTime < s.Step {
		v.addError("simulation.flight_time", fmt.Sprintf("%.2f 小于时间步长 %.2f", s.FlightTime, s.Step))
	}
	if s.EndClock <= 0 {
		v.addError("simulation.end_clock", "必须为正数")
	}
	if s.BuildingStep < 0 || s.ExecutionStep < s.BuildingStep {
		v.addError("simulation.execution_step", "必须不小于 building_step")
	}
	if s.EndClock <= s.ExecutionStep+float64(maxTTL) {
		log.Warn("结束时钟过小，不会生成任何消息",
			"end_clock", s.EndClock,
			"execution_step", s.ExecutionStep,
			"max_ttl", maxTTL)
	}
}

func (v *Validator) validateDissemination(d *DisseminationConfig, l *LimitsConfig) {
	if !d.Mode.Valid() {
		v.addError("dissemination.mode", fmt.Sprintf("%v: %d", types.ErrUnsupportedMode, int(d.Mode)))
	}
	if d.BroadcastThreshold < 0 || d.BroadcastThreshold > 100 {
		v.addError("dissemination.broadcast_prob_threshold", "必须在 [0,100] 范围内")
	}
	if d.FixedThreshold < 0 || d.FixedThreshold > 100 {
		v.addError("dissemination.fixed_prob_threshold", "必须在 [0,100] 范围内")
	}
	if d.CacheSize < 0 {
		v.addError("dissemination.cache_size", "不能为负数")
	} else if d.CacheSize > l.MaxCacheSize {
		v.addError("dissemination.cache_size", fmt.Sprintf("超过上限 %d", l.MaxCacheSize))
	}
	if d.MaxTTL <= 0 || d.MaxTTL > 0xffff {
		v.addError("dissemination.max_ttl", "必须在 [1,65535] 范围内")
	}
	if d.MeanNewMessage <= 0 {
		v.addError("dissemination.mean_new_message", "必须为正数")
	}
	if d.Mode == types.ModeDegreeDependent {
		if !d.ProbFunction.Valid() {
			v.addError("dissemination.probability_function", fmt.Sprintf("不支持的函数 %d", int(d.ProbFunction)))
		}
		if d.FunctionCoefficient <= 0 {
			v.addError("dissemination.function_coefficient", "必须为正数")
		}
	}
}

func (v *Validator) validateAdaptive(a *AdaptiveConfig) {
	if a.EvaluationPeriod <= 0 {
		v.addError("adaptive.evaluation_period", "必须为正数")
	}
	if a.StimulusIncrement < 0 || a.StimulusIncrement > 100 {
		v.addError("adaptive.stimulus_increment", "必须在 [0,100] 范围内")
	}
	if a.StimulusLength <= 0 {
		v.addError("adaptive.stimulus_length", "必须为正数")
	}
}

func (v *Validator) validateMigration(m *MigrationConfig) {
	if m.Enabled && m.Factor <= 0 {
		v.addError("migration.factor", "启用迁移时必须为正数")
	}
}

func (v *Validator) validateLimits(l *LimitsConfig) {
	if l.MaxCacheSize < 0 {
		v.addError("limits.max_cache_size", "不能为负数")
	}
	if l.MaxMigrationRecords <= 0 {
		v.addError("limits.max_migration_records", "必须为正数")
	}
	if l.BufferSize <= 0 {
		v.addError("limits.buffer_size", "必须为正数")
	}
}
