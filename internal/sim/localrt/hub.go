package localrt

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dep2p/go-gossipsim/config"
	"github.com/dep2p/go-gossipsim/internal/util/logger"
	"github.com/dep2p/go-gossipsim/pkg/interfaces"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

var log = logger.Logger("sim.localrt")

const (
	// TrafficDecay 每步对交互计数的衰减系数
	TrafficDecay = 0.5

	// LoadTolerance 负载均衡允许超出平均负载的比例
	LoadTolerance = 1.1
)

// Statistics 运行时统计
type Statistics struct {
	Steps            uint64 `json:"steps"`
	LocalDeliveries  uint64 `json:"local_deliveries"`
	RemoteDeliveries uint64 `json:"remote_deliveries"`
	Migrations       uint64 `json:"migrations"`
	RefusedMoves     uint64 `json:"refused_moves"`
}

type envelope struct {
	from, to types.EntityID
	at       types.SimTime
	src      types.LPID
	seq      uint64
	payload  []byte
}

type migration struct {
	id      types.EntityID
	payload []byte
}

// Hub 进程内运行时
type Hub struct {
	cfg *config.Config

	mu        sync.Mutex
	clock     types.SimTime
	endpoints []*Endpoint
	owner     []types.LPID
	pending   []envelope
	seq       uint64

	// 屏障
	arrived int
	release chan struct{}

	// 迁移
	traffic     [][]float64
	pendingDest map[types.EntityID]types.LPID
	submitted   []migration

	stats  Statistics
	closed bool
}

// New 创建运行时
//
// 实体按块分配：id / EntitiesPerLP。每个进程收到全部实体的 Register 事件
// （按 id 顺序），随后是时钟 0 的 EndOfStep。
func New(cfg *config.Config) *Hub {
	lps := cfg.Simulation.LPs
	n := cfg.TotalEntities()

	h := &Hub{
		cfg:         cfg,
		endpoints:   make([]*Endpoint, lps),
		owner:       make([]types.LPID, n),
		release:     make(chan struct{}),
		pendingDest: make(map[types.EntityID]types.LPID),
	}
	for lp := range h.endpoints {
		h.endpoints[lp] = &Endpoint{hub: h, lp: types.LPID(lp), wake: make(chan struct{}, 1)}
	}
	if cfg.Migration.Enabled {
		h.traffic = make([][]float64, n)
		for i := range h.traffic {
			h.traffic[i] = make([]float64, lps)
		}
	}

	for id := range h.owner {
		h.owner[id] = types.LPID(id / cfg.Simulation.EntitiesPerLP)
	}
	for _, ep := range h.endpoints {
		for id, lp := range h.owner {
			ep.queue = append(ep.queue, interfaces.Event{
				Type: interfaces.EventRegister,
				To:   types.EntityID(id),
				LP:   lp,
			})
		}
		ep.queue = append(ep.queue, interfaces.Event{Type: interfaces.EventEndOfStep})
	}
	return h
}

// Endpoint 返回进程 lp 的运行时端点
func (h *Hub) Endpoint(lp types.LPID) *Endpoint {
	return h.endpoints[lp]
}

// Clock 返回最近一次屏障后的时钟
func (h *Hub) Clock() types.SimTime {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clock
}

// Owner 返回实体当前的托管进程
func (h *Hub) Owner(id types.EntityID) types.LPID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owner[id]
}

// Load 返回每个进程托管的实体数
func (h *Hub) Load() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load()
}

// Statistics 返回运行时统计
func (h *Hub) Statistics() Statistics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Close 关闭运行时，阻塞中的 Receive 返回 ErrRuntimeClosed
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for _, ep := range h.endpoints {
		ep.signal()
	}
	return nil
}

// ============================================================================
//                              端点调用
// ============================================================================

func (h *Hub) send(src types.LPID, from, to types.EntityID, at types.SimTime, payload []byte) error {
	if len(payload) > h.cfg.Limits.BufferSize {
		return fmt.Errorf("%w: %d > %d bytes", types.ErrPayloadTooLarge, len(payload), h.cfg.Limits.BufferSize)
	}
	if int(to) >= len(h.owner) || int(from) >= len(h.owner) {
		return fmt.Errorf("%w: %d -> %d", types.ErrUnknownEntity, from, to)
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return types.ErrRuntimeClosed
	}
	h.seq++
	h.pending = append(h.pending, envelope{from: from, to: to, at: at, src: src, seq: h.seq, payload: buf})
	if h.traffic != nil {
		h.traffic[from][h.owner[to]]++
	}
	return nil
}

func (h *Hub) migrate(src types.LPID, id types.EntityID, payload []byte) error {
	if len(payload) > h.cfg.Limits.BufferSize {
		return fmt.Errorf("%w: %d > %d bytes", types.ErrPayloadTooLarge, len(payload), h.cfg.Limits.BufferSize)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.owner) || h.owner[id] != src {
		return fmt.Errorf("%w: entity %d is not hosted by lp %d", types.ErrNotLocal, id, src)
	}
	if _, ok := h.pendingDest[id]; !ok {
		return fmt.Errorf("entity %d: migration without notice", id)
	}
	h.submitted = append(h.submitted, migration{id: id, payload: payload})
	return nil
}

// timeAdvance 屏障：所有进程到达后由最后一个进程执行一步
func (h *Hub) timeAdvance(ctx context.Context) (types.SimTime, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, types.ErrRuntimeClosed
	}
	release := h.release
	h.arrived++
	if h.arrived == len(h.endpoints) {
		h.arrived = 0
		h.step()
		h.release = make(chan struct{})
		close(release)
		now := h.clock
		h.mu.Unlock()
		return now, nil
	}
	h.mu.Unlock()

	select {
	case <-release:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clock, nil
}

// ============================================================================
//                              一步的全局工作
// ============================================================================

// step 在持锁状态下调用
func (h *Hub) step() {
	h.clock = h.clock.Add(h.cfg.Simulation.Step)
	h.stats.Steps++

	h.executeMigrations()
	if h.traffic != nil {
		h.evaluateMigrations()
	}
	h.deliver()

	for _, ep := range h.endpoints {
		ep.queue = append(ep.queue, interfaces.Event{Type: interfaces.EventEndOfStep, Timestamp: h.clock})
		ep.signal()
	}
}

func (h *Hub) executeMigrations() {
	for _, m := range h.submitted {
		dest := h.pendingDest[m.id]
		delete(h.pendingDest, m.id)
		h.owner[m.id] = dest
		h.endpoints[dest].queue = append(h.endpoints[dest].queue, interfaces.Event{
			Type:      interfaces.EventExecMigration,
			To:        m.id,
			LP:        dest,
			Timestamp: h.clock,
			Payload:   m.payload,
		})
		h.stats.Migrations++
	}
	h.submitted = h.submitted[:0]
}

// evaluateMigrations 通信局部性策略
//
// 实体与某个远程进程的交互数超过 Factor 倍本地交互数时迁往该进程。
// 启用负载均衡时，迁移后目标负载不得超过平均负载的 LoadTolerance 倍。
func (h *Hub) evaluateMigrations() {
	mc := h.cfg.Migration
	load := h.load()
	limit := int(math.Ceil(float64(len(h.owner)) / float64(len(h.endpoints)) * LoadTolerance))

	for i, row := range h.traffic {
		id := types.EntityID(i)
		if _, busy := h.pendingDest[id]; busy {
			continue
		}
		cur := h.owner[id]
		best := types.NoLP
		for lp, n := range row {
			if types.LPID(lp) == cur || n == 0 {
				continue
			}
			if best == types.NoLP || n > row[best] {
				best = types.LPID(lp)
			}
		}
		if best == types.NoLP || row[best] <= mc.Factor*row[cur] {
			continue
		}
		if mc.LoadBalancing && load[best]+1 > limit {
			h.stats.RefusedMoves++
			continue
		}

		load[cur]--
		load[best]++
		h.pendingDest[id] = best
		for lp, ep := range h.endpoints {
			ev := interfaces.Event{Type: interfaces.EventNotifyExtMigration, To: id, LP: best, Timestamp: h.clock}
			if types.LPID(lp) == cur {
				ev.Type = interfaces.EventNotifyMigration
			}
			ep.queue = append(ep.queue, ev)
		}
		log.Debug("迁移决策", "clock", h.clock, "entity", id, "from", cur, "to", best,
			"local", row[cur], "remote", row[best])
	}

	for _, row := range h.traffic {
		for lp := range row {
			row[lp] *= TrafficDecay
		}
	}
}

func (h *Hub) deliver() {
	var due, later []envelope
	for _, env := range h.pending {
		if env.at <= h.clock {
			due = append(due, env)
		} else {
			later = append(later, env)
		}
	}
	h.pending = later

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if a.at != b.at {
			return a.at < b.at
		}
		if a.src != b.src {
			return a.src < b.src
		}
		return a.seq < b.seq
	})

	for _, env := range due {
		dest := h.owner[env.to]
		if dest == env.src {
			h.stats.LocalDeliveries++
		} else {
			h.stats.RemoteDeliveries++
		}
		h.endpoints[dest].queue = append(h.endpoints[dest].queue, interfaces.Event{
			Type:      interfaces.EventModel,
			From:      env.from,
			To:        env.to,
			LP:        dest,
			Timestamp: env.at,
			Payload:   env.payload,
		})
	}
}

func (h *Hub) load() []int {
	load := make([]int, len(h.endpoints))
	for _, lp := range h.owner {
		load[lp]++
	}
	return load
}
