package client

import (
	"sync"

	"doggos/pkg/core"
	"doggos/pkg/protocol"
	"doggos/pkg/rollback"
	"doggos/pkg/tick"
)

// Sender 发往权威端的出口
type Sender interface {
	SendEnvelope(env protocol.Envelope) error
}

// PredictorConfig 拥有者预测参数
type PredictorConfig struct {
	ActorID        uint32
	Movement       core.MovementParams
	InputWindow    int // 每个 tick 重发最近的输入个数
	ReplayCapacity int // 重放缓冲上限，满时丢弃最旧的
}

// Predictor 拥有者客户端：本地立即应用输入，收到权威状态后回滚并重放未确认的输入
//
// Update 只在模拟线程调用；ReceiveState/ReceiveTiming 可在网络线程调用，
// 结果放入槽位，下一个 tick 开始时再处理。
type Predictor struct {
	cfg      PredictorConfig
	body     core.Body
	clock    *tick.Clock
	capture  *core.Capture
	rollback *rollback.Manager
	sender   Sender

	buffer      []core.InputSample // 已预测未确认的输入，tick 严格递增
	lastApplied core.Optional[tick.Number]
	sendErrors  uint64

	mu       sync.Mutex
	received core.Optional[protocol.AuthoritativeState]
	timing   core.Optional[int8]
}

// NewPredictor 创建预测器并注册到时钟的更新阶段
func NewPredictor(cfg PredictorConfig, body core.Body, clock *tick.Clock, capture *core.Capture, rb *rollback.Manager, sender Sender) *Predictor {
	if cfg.InputWindow <= 0 {
		cfg.InputWindow = 1
	}
	if cfg.ReplayCapacity < cfg.InputWindow {
		cfg.ReplayCapacity = cfg.InputWindow
	}

	p := &Predictor{
		cfg:      cfg,
		body:     body,
		clock:    clock,
		capture:  capture,
		rollback: rb,
		sender:   sender,
		buffer:   make([]core.InputSample, 0, cfg.ReplayCapacity),
	}
	clock.OnUpdate(p.Update)
	return p
}

// ReceiveState 收到权威状态（任意线程）
// 槽位中已有更新的状态时丢弃
func (p *Predictor) ReceiveState(msg protocol.AuthoritativeState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.received.Get(); ok && !tick.Newer(msg.Tick, cur.Tick) {
		return
	}
	p.received = core.Some(msg)
}

// ReceiveTiming 收到只含节奏提示的消息（任意线程），后写者生效
func (p *Predictor) ReceiveTiming(hint int8) {
	p.mu.Lock()
	p.timing = core.Some(hint)
	p.mu.Unlock()
}

// Update 每个 tick 调用一次：先对账，再预测本 tick
func (p *Predictor) Update() {
	p.reconcile()
	p.predict()
}

func (p *Predictor) take() (core.Optional[protocol.AuthoritativeState], core.Optional[int8]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, timing := p.received, p.timing
	p.received = core.None[protocol.AuthoritativeState]()
	p.timing = core.None[int8]()
	return state, timing
}

// reconcile 硬设权威状态，丢弃已确认输入，重放剩余输入
func (p *Predictor) reconcile() {
	state, timing := p.take()

	if hint, ok := timing.Get(); ok {
		p.clock.AdjustTiming(hint)
	}

	msg, ok := state.Get()
	if !ok {
		return
	}
	if last, ok := p.lastApplied.Get(); ok && tick.NotNewer(msg.Tick, last) {
		return
	}
	p.lastApplied = core.Some(msg.Tick)
	p.clock.AdjustTiming(msg.TimingHint)

	dt := p.clock.StepSeconds()
	p.rollback.Bracket(func() {
		p.body.SetState(msg.State)
		p.trim(msg.Tick)
		for _, in := range p.buffer {
			core.Simulate(p.body, in, p.cfg.Movement, dt)
			p.clock.Simulate(dt, true)
		}
	})
}

// trim 丢弃 tick 不晚于 acked 的输入
func (p *Predictor) trim(acked tick.Number) {
	i := 0
	for i < len(p.buffer) && tick.NotNewer(p.buffer[i].Tick, acked) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(p.buffer, p.buffer[i:])
	p.buffer = p.buffer[:n]
}

// predict 采样本 tick 输入，写入缓冲，立即应用，并发送最近的输入窗口
func (p *Predictor) predict() {
	in := p.capture.Sample(p.clock.Number())

	if n := len(p.buffer); n > 0 && !tick.Newer(in.Tick, p.buffer[n-1].Tick) {
		// tick 编号未前进，缓冲会失去单调性，直接清空
		p.buffer = p.buffer[:0]
	}
	if len(p.buffer) >= p.cfg.ReplayCapacity {
		n := copy(p.buffer, p.buffer[1:])
		p.buffer = p.buffer[:n]
	}
	p.buffer = append(p.buffer, in)

	core.Simulate(p.body, in, p.cfg.Movement, p.clock.StepSeconds())
	p.send()
}

func (p *Predictor) send() {
	if p.sender == nil {
		return
	}
	start := max(len(p.buffer)-p.cfg.InputWindow, 0)
	window := append([]core.InputSample(nil), p.buffer[start:]...)
	if err := p.sender.SendEnvelope(protocol.NewInputBatch(p.cfg.ActorID, window)); err != nil {
		p.sendErrors++
	}
}

// Pending 未确认输入的副本
func (p *Predictor) Pending() []core.InputSample {
	return append([]core.InputSample(nil), p.buffer...)
}

// LastApplied 最近一次应用的权威 tick
func (p *Predictor) LastApplied() core.Optional[tick.Number] {
	return p.lastApplied
}

// SendErrors 发送失败次数（只在模拟线程读取）
func (p *Predictor) SendErrors() uint64 {
	return p.sendErrors
}
