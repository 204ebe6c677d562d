package interfaces

import (
	"context"
	"fmt"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// ============================================================================
//                              事件类型
// ============================================================================

// EventType 运行时投递给托管进程的事件类型
type EventType int

const (
	// EventModel 模型层消息（Ping/Link/Stimulus）
	EventModel EventType = iota
	// EventRegister 新实体注册
	EventRegister
	// EventNotifyMigration 本地实体将迁出
	EventNotifyMigration
	// EventNotifyExtMigration 其他进程间发生了迁移
	EventNotifyExtMigration
	// EventExecMigration 迁入实体，负载为迁移快照
	EventExecMigration
	// EventEndOfStep 当前时间步的所有消息已投递
	EventEndOfStep
)

// String 返回事件类型名
func (t EventType) String() string {
	switch t {
	case EventModel:
		return "model"
	case EventRegister:
		return "register"
	case EventNotifyMigration:
		return "notify_migration"
	case EventNotifyExtMigration:
		return "notify_ext_migration"
	case EventExecMigration:
		return "exec_migration"
	case EventEndOfStep:
		return "end_of_step"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event 运行时事件
//
// 对于 Register 和迁移通知，LP 表示实体（新的）所在的托管进程。
type Event struct {
	Type      EventType
	From      types.EntityID
	To        types.EntityID
	LP        types.LPID
	Timestamp types.SimTime
	Payload   []byte
}

// ============================================================================
//                              Runtime 接口
// ============================================================================

// Runtime 分布式模拟运行时
//
// 负责屏障同步的时间推进、带时间戳的可靠投递以及实体迁移。
// 每个托管进程持有一个 Runtime 端点，只在自己的事件循环中调用。
type Runtime interface {
	// LP 返回本端点所属的托管进程
	LP() types.LPID

	// Send 异步发送，投递时间不早于 at，负载超限时返回 ErrPayloadTooLarge
	Send(from, to types.EntityID, at types.SimTime, payload []byte) error

	// Receive 阻塞直到下一个事件
	Receive(ctx context.Context) (Event, error)

	// Migrate 将实体所有权交给运行时选定的目标进程
	Migrate(id types.EntityID, payload []byte) error

	// TimeAdvance 等待所有进程到达当前屏障后返回下一时间步
	TimeAdvance(ctx context.Context) (types.SimTime, error)
}
