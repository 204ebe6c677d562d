package types

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              状态相关错误
// ============================================================================

var (
	// ErrDuplicateKey 邻居表中已存在相同键
	ErrDuplicateKey = errors.New("duplicate neighbor key")

	// ErrStateCapacity 动态状态超过可迁移的记录上限
	ErrStateCapacity = errors.New("dynamic state exceeds migration record capacity")

	// ErrNotNeighbor 引用的实体不是邻居
	ErrNotNeighbor = errors.New("entity is not a neighbor")

	// ErrUnknownEntity 全局表中不存在该实体
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrNotLocal 实体不在本托管进程
	ErrNotLocal = errors.New("entity is not hosted locally")
)

// ============================================================================
//                              协议相关错误
// ============================================================================

var (
	// ErrPayloadTooLarge 负载超过缓冲区上限
	ErrPayloadTooLarge = errors.New("payload exceeds buffer size")

	// ErrUnsupportedMode 不支持的传播模式
	ErrUnsupportedMode = errors.New("unsupported dissemination mode")

	// ErrUnknownMessage 未知的消息类型
	ErrUnknownMessage = errors.New("unknown message kind")

	// ErrCorruptSnapshot 迁移快照损坏
	ErrCorruptSnapshot = errors.New("corrupt migration snapshot")

	// ErrUnknownEvent 未知的运行时事件类型
	ErrUnknownEvent = errors.New("unknown runtime event")
)

// ============================================================================
//                              配置与运行时错误
// ============================================================================

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRuntimeClosed 运行时已关闭
	ErrRuntimeClosed = errors.New("runtime closed")
)

// FatalError 协议不变量被破坏
//
// 携带发生时的模拟时钟与相关实体，由事件循环向上传递，
// 在顶层统一终止运行。
type FatalError struct {
	Clock  SimTime
	Entity EntityID
	Err    error
}

// NewFatal 创建 FatalError
func NewFatal(clock SimTime, entity EntityID, err error) *FatalError {
	return &FatalError{Clock: clock, Entity: entity, Err: err}
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal at clock %.2f, entity %d: %v", float64(e.Clock), e.Entity, e.Err)
}

// Unwrap 返回底层错误
func (e *FatalError) Unwrap() error {
	return e.Err
}

// AsFatal 提取错误链中的 FatalError
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
