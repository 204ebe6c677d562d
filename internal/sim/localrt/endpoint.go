package localrt

import (
	"context"

	"github.com/dep2p/go-gossipsim/pkg/interfaces"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

// Endpoint 单个托管进程看到的运行时
type Endpoint struct {
	hub   *Hub
	lp    types.LPID
	queue []interfaces.Event // 受 hub.mu 保护
	wake  chan struct{}
}

var _ interfaces.Runtime = (*Endpoint)(nil)

// LP 返回托管进程
func (e *Endpoint) LP() types.LPID {
	return e.lp
}

// Send 提交一条消息，在不早于 at 的时间步投递
func (e *Endpoint) Send(from, to types.EntityID, at types.SimTime, payload []byte) error {
	return e.hub.send(e.lp, from, to, at, payload)
}

// Receive 返回下一个事件，队列为空时阻塞
func (e *Endpoint) Receive(ctx context.Context) (interfaces.Event, error) {
	for {
		e.hub.mu.Lock()
		if len(e.queue) > 0 {
			ev := e.queue[0]
			e.queue = e.queue[1:]
			e.hub.mu.Unlock()
			return ev, nil
		}
		closed := e.hub.closed
		e.hub.mu.Unlock()
		if closed {
			return interfaces.Event{}, types.ErrRuntimeClosed
		}

		select {
		case <-e.wake:
		case <-ctx.Done():
			return interfaces.Event{}, ctx.Err()
		}
	}
}

// Migrate 提交已序列化的实体，下一步在目标进程执行
func (e *Endpoint) Migrate(id types.EntityID, payload []byte) error {
	return e.hub.migrate(e.lp, id, payload)
}

// TimeAdvance 等待所有进程到达屏障
func (e *Endpoint) TimeAdvance(ctx context.Context) (types.SimTime, error) {
	return e.hub.timeAdvance(ctx)
}

// signal 唤醒阻塞的 Receive，调用方持有 hub.mu
func (e *Endpoint) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}
