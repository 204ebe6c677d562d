package mocks

import (
	"context"
	"fmt"

	"github.com/dep2p/go-gossipsim/internal/sim/codec"
	"github.com/dep2p/go-gossipsim/pkg/interfaces"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

// Sent 一次 Send 调用的记录
type Sent struct {
	From    types.EntityID
	To      types.EntityID
	At      types.SimTime
	Payload []byte
}

// Decode 解码负载，失败时 panic（仅用于测试）
func (s Sent) Decode() codec.Message {
	m, err := codec.Unmarshal(s.Payload)
	if err != nil {
		panic(fmt.Sprintf("mocks: decode sent payload: %v", err))
	}
	return m
}

// Migrated 一次 Migrate 调用的记录
type Migrated struct {
	ID      types.EntityID
	Payload []byte
}

// MockRuntime 模拟 Runtime 接口实现
//
// 默认行为：Send/Migrate 记录调用，Receive 依次返回 Events，
// 耗尽后返回 ErrRuntimeClosed；TimeAdvance 每次前进 Step。
type MockRuntime struct {
	LPValue types.LPID
	Events  []interfaces.Event
	Clock   types.SimTime
	Step    types.SimTime

	// 可覆盖的方法
	SendFunc        func(from, to types.EntityID, at types.SimTime, payload []byte) error
	ReceiveFunc     func(ctx context.Context) (interfaces.Event, error)
	MigrateFunc     func(id types.EntityID, payload []byte) error
	TimeAdvanceFunc func(ctx context.Context) (types.SimTime, error)

	// 调用记录
	Sent             []Sent
	Migrated         []Migrated
	TimeAdvanceCalls int
}

// NewMockRuntime 创建 MockRuntime
func NewMockRuntime(lp types.LPID) *MockRuntime {
	return &MockRuntime{LPValue: lp, Step: 1}
}

// LP 返回托管进程
func (m *MockRuntime) LP() types.LPID {
	return m.LPValue
}

// Send 记录发送
func (m *MockRuntime) Send(from, to types.EntityID, at types.SimTime, payload []byte) error {
	if m.SendFunc != nil {
		return m.SendFunc(from, to, at, payload)
	}
	m.Sent = append(m.Sent, Sent{From: from, To: to, At: at, Payload: payload})
	return nil
}

// Receive 返回下一个预置事件
func (m *MockRuntime) Receive(ctx context.Context) (interfaces.Event, error) {
	if m.ReceiveFunc != nil {
		return m.ReceiveFunc(ctx)
	}
	if err := ctx.Err(); err != nil {
		return interfaces.Event{}, err
	}
	if len(m.Events) == 0 {
		return interfaces.Event{}, types.ErrRuntimeClosed
	}
	ev := m.Events[0]
	m.Events = m.Events[1:]
	return ev, nil
}

// Migrate 记录迁移
func (m *MockRuntime) Migrate(id types.EntityID, payload []byte) error {
	if m.MigrateFunc != nil {
		return m.MigrateFunc(id, payload)
	}
	m.Migrated = append(m.Migrated, Migrated{ID: id, Payload: payload})
	return nil
}

// TimeAdvance 前进一个时间步
func (m *MockRuntime) TimeAdvance(ctx context.Context) (types.SimTime, error) {
	m.TimeAdvanceCalls++
	if m.TimeAdvanceFunc != nil {
		return m.TimeAdvanceFunc(ctx)
	}
	m.Clock += m.Step
	return m.Clock, nil
}

// Reset 清空调用记录
func (m *MockRuntime) Reset() {
	m.Sent = nil
	m.Migrated = nil
	m.TimeAdvanceCalls = 0
}

// SentTo 返回发往 to 的所有记录
func (m *MockRuntime) SentTo(to types.EntityID) []Sent {
	var out []Sent
	for _, s := range m.Sent {
		if s.To == to {
			out = append(out, s)
		}
	}
	return out
}

var _ interfaces.Runtime = (*MockRuntime)(nil)
