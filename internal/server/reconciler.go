package server

import (
	"sync"

	"doggos/pkg/core"
	"doggos/pkg/protocol"
	"doggos/pkg/tick"
)

// Reconciler 权威端的单个角色输入对账
//
// 网络线程调用 Ingest 写入待处理队列；模拟线程每个 tick 调用 Update 消费至多一个输入，
// 物理步进后调用 Outbound 取出要发给拥有者的消息。
type Reconciler struct {
	actorID uint32
	body    core.Body
	params  core.MovementParams
	dt      float64

	mu           sync.Mutex
	queue        []core.InputSample
	capacity     int
	lastAccepted core.Optional[tick.Number]
	evicted      uint64
	rejected     uint64

	// 以下只在模拟线程访问
	applied core.Optional[core.InputSample]
	hint    int8
}

// NewReconciler 创建对账器，capacity 为待处理队列上限
func NewReconciler(actorID uint32, body core.Body, params core.MovementParams, dt float64, capacity int) *Reconciler {
	if capacity <= 0 {
		capacity = 1
	}
	return &Reconciler{
		actorID:  actorID,
		body:     body,
		params:   params,
		dt:       dt,
		queue:    make([]core.InputSample, 0, capacity),
		capacity: capacity,
	}
}

// Ingest 接收一批输入，返回实际入队的数量
// tick 不比已接受的最大 tick 新的输入直接丢弃（去重）；队列满时淘汰最旧的；
// 移动向量含 NaN 或无穷大的输入丢弃，且不推进去重水位
func (r *Reconciler) Ingest(batch []core.InputSample) int {
	if len(batch) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	accepted := 0
	for _, in := range batch {
		if !in.Finite() {
			r.rejected++
			continue
		}
		if last, ok := r.lastAccepted.Get(); ok && tick.NotNewer(in.Tick, last) {
			continue
		}
		r.lastAccepted = core.Some(in.Tick)

		if len(r.queue) >= r.capacity {
			copy(r.queue, r.queue[1:])
			r.queue = r.queue[:len(r.queue)-1]
			r.evicted++
		}
		r.queue = append(r.queue, in)
		accepted++
	}
	return accepted
}

// Depth 当前队列长度
func (r *Reconciler) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Evicted 因溢出被淘汰的输入数
func (r *Reconciler) Evicted() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

// Rejected 因移动向量非有限值被丢弃的输入数
func (r *Reconciler) Rejected() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected
}

// next 取出最旧的输入，并根据取出前的队列深度给出节奏提示：
// 空队列 -1（拥有者供给不足，加速），多于一个 +1（积压，减速），否则 0
func (r *Reconciler) next() (core.Optional[core.InputSample], int8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	depth := len(r.queue)
	switch {
	case depth == 0:
		return core.None[core.InputSample](), -1
	case depth > 1:
	default:
		in := r.queue[0]
		r.queue = r.queue[:0]
		return core.Some(in), 0
	}

	in := r.queue[0]
	copy(r.queue, r.queue[1:])
	r.queue = r.queue[:depth-1]
	return core.Some(in), 1
}

// Update 每个权威 tick 调用一次（物理步进之前）
func (r *Reconciler) Update() {
	r.applied, r.hint = r.next()
	if in, ok := r.applied.Get(); ok {
		core.Simulate(r.body, in, r.params, r.dt)
	}
}

// Applied 本 tick 应用的输入
func (r *Reconciler) Applied() core.Optional[core.InputSample] {
	return r.applied
}

// Hint 本 tick 的节奏提示
func (r *Reconciler) Hint() int8 {
	return r.hint
}

// Outbound 物理步进后生成发给拥有者的消息：
// 应用了输入时发送完整权威状态；队列为空但有节奏提示时只发送节奏提示
func (r *Reconciler) Outbound() (protocol.Envelope, bool) {
	if in, ok := r.applied.Get(); ok {
		return protocol.NewAuthoritativeState(r.actorID, protocol.AuthoritativeState{
			Tick:       in.Tick,
			State:      r.body.State(),
			TimingHint: r.hint,
		}), true
	}
	if r.hint != 0 {
		return protocol.NewTimingOnly(r.actorID, r.hint), true
	}
	return protocol.Envelope{}, false
}
