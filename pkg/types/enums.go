package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
//                              Mode - 传播模式
// ============================================================================

// Mode 消息传播模式
//
// 数值与运行时环境变量 DISSEMINATION 的取值保持一致。
type Mode int

const (
	// ModeBroadcast 广播：单次全局判定，通过后转发给所有邻居
	ModeBroadcast Mode = 0
	// ModeGossipFixedProb 固定概率 gossip：每个邻居独立判定
	ModeGossipFixedProb Mode = 1
	// ModeAdaptiveNode 节点级自适应 gossip
	ModeAdaptiveNode Mode = 4
	// ModeAdaptiveSender 按发送者自适应 gossip（共享刺激表）
	ModeAdaptiveSender Mode = 5
	// ModeAdaptiveSpecific 按邻居和发送者自适应 gossip
	ModeAdaptiveSpecific Mode = 6
	// ModeDegreeDependent 度相关 gossip
	ModeDegreeDependent Mode = 7
)

// String 返回模式的字符串表示
func (m Mode) String() string {
	switch m {
	case ModeBroadcast:
		return "broadcast"
	case ModeGossipFixedProb:
		return "fixed_prob"
	case ModeAdaptiveNode:
		return "adaptive_node"
	case ModeAdaptiveSender:
		return "adaptive_sender"
	case ModeAdaptiveSpecific:
		return "adaptive_specific"
	case ModeDegreeDependent:
		return "degree_dependent"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Valid 判断是否为受支持的模式
func (m Mode) Valid() bool {
	switch m {
	case ModeBroadcast, ModeGossipFixedProb, ModeAdaptiveNode,
		ModeAdaptiveSender, ModeAdaptiveSpecific, ModeDegreeDependent:
		return true
	default:
		return false
	}
}

// IsAdaptive 判断是否为三种自适应模式之一
func (m Mode) IsAdaptive() bool {
	return m == ModeAdaptiveNode || m == ModeAdaptiveSender || m == ModeAdaptiveSpecific
}

// ParseMode 解析模式，接受数值编码或名称
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		m := Mode(n)
		if !m.Valid() {
			return m, fmt.Errorf("%w: %d", ErrUnsupportedMode, n)
		}
		return m, nil
	}
	for _, m := range []Mode{ModeBroadcast, ModeGossipFixedProb, ModeAdaptiveNode,
		ModeAdaptiveSender, ModeAdaptiveSpecific, ModeDegreeDependent} {
		if m.String() == s {
			return m, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

// MarshalText 实现 encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ============================================================================
//                              ProbFunction - 度相关概率函数
// ============================================================================

// ProbFunction 度相关模式使用的概率函数
type ProbFunction int

const (
	// ProbPower f1 = 1/degree^c
	ProbPower ProbFunction = 1
	// ProbLog f2 = 1/log(c·degree)
	ProbLog ProbFunction = 2
)

// String 返回函数名
func (f ProbFunction) String() string {
	switch f {
	case ProbPower:
		return "power"
	case ProbLog:
		return "log"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// Valid 判断是否为受支持的函数
func (f ProbFunction) Valid() bool {
	return f == ProbPower || f == ProbLog
}
