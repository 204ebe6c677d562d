package types

import "fmt"

// ============================================================================
//                              标识符
// ============================================================================

// EntityID 模拟实体（SE）的全局唯一标识
type EntityID uint32

// String 返回十进制表示
func (id EntityID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}

// LPID 托管进程（逻辑进程）标识
type LPID int

// NoLP 表示实体尚未归属任何托管进程
const NoLP LPID = -1

// MessageID 消息标识
//
// 由随机数生成，只保证尽力唯一，不检测冲突。
type MessageID uint32

// ============================================================================
//                              模拟时间
// ============================================================================

// SimTime 模拟时钟值
//
// 模拟按离散时间步推进，时钟值一般为步长的整数倍。
type SimTime float64

// Add 返回 t + d
func (t SimTime) Add(d float64) SimTime {
	return t + SimTime(d)
}

// Before 判断 t 是否早于 u
func (t SimTime) Before(u SimTime) bool {
	return t < u
}
