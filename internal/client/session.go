package client

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"doggos/internal/config"
	"doggos/pkg/core"
	"doggos/pkg/physics"
	"doggos/pkg/protocol"
	"doggos/pkg/rollback"
	"doggos/pkg/tick"
)

// SessionConfig 客户端会话配置
type SessionConfig struct {
	Config      config.Config
	Source      core.InputSource
	Logger      *log.Logger
	StatusEvery int // 每隔多少 tick 打印一次状态，0 不打印
}

// remoteActor 非本地拥有的角色
type remoteActor struct {
	body      *physics.Body
	spectator *SpectatorPredictor
}

// Snapshot 会话状态快照
type Snapshot struct {
	Tick     tick.Number
	Interval time.Duration
	ActorID  uint32
	Own      core.Optional[core.BodyState]
	Pending  int
	Remotes  map[uint32]core.BodyState
}

// Session 客户端会话：持有时钟、物理世界、回滚管理器、本地角色预测与旁观预测
//
// 时钟回调都在 Run 所在的 goroutine 执行；HandleEnvelope 在网络接收 goroutine 执行，
// 只写入各预测器的槽位或事件队列。
type Session struct {
	cfg    SessionConfig
	logger *log.Logger

	clock    *tick.Clock
	world    *physics.World
	rollback *rollback.Manager
	capture  *core.Capture

	mu        sync.RWMutex
	actorID   uint32
	body      *physics.Body
	predictor *Predictor
	remotes   map[uint32]*remoteActor

	events chan protocol.Envelope
	warn   *rate.Limiter
}

// NewSession 创建会话
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	world := physics.NewWorld()
	s := &Session{
		cfg:      cfg,
		logger:   logger,
		clock:    tick.NewClock(cfg.Config.Tick.Clock(), world),
		world:    world,
		rollback: rollback.NewManager(),
		capture:  core.NewCapture(cfg.Source),
		remotes:  make(map[uint32]*remoteActor),
		events:   make(chan protocol.Envelope, 64),
		warn:     rate.NewLimiter(rate.Every(time.Second), 3),
	}

	s.clock.OnPreUpdate(s.applyEvents)
	s.clock.OnPostSimulate(s.predictSpectators)
	s.clock.OnPostUpdate(s.logStatus)
	s.rollback.OnStart(s.rollbackStart)
	s.rollback.OnEnd(s.rollbackEnd)
	return s
}

// Attach 绑定本地拥有的角色，在 Run 之前调用
func (s *Session) Attach(sender Sender, accepted protocol.JoinAccepted) {
	if step := s.clock.StepSeconds(); math.Abs(step-accepted.StepSeconds) > 1e-9 {
		s.logger.Printf("警告: 本地步长 %.4fs 与服务器 %.4fs 不一致，重放将无法与权威端一致", step, accepted.StepSeconds)
	}

	body := physics.NewBody(s.cfg.Config.Body, accepted.State)
	s.world.Add(body)

	predictor := NewPredictor(PredictorConfig{
		ActorID:        accepted.ActorID,
		Movement:       s.cfg.Config.Movement,
		InputWindow:    s.cfg.Config.Netcode.InputWindow,
		ReplayCapacity: s.cfg.Config.Netcode.ReplayCapacity,
	}, body, s.clock, s.capture, s.rollback, sender)

	s.mu.Lock()
	s.actorID = accepted.ActorID
	s.body = body
	s.predictor = predictor
	s.mu.Unlock()
}

// HandleEnvelope 路由服务器消息（网络接收 goroutine）
func (s *Session) HandleEnvelope(env protocol.Envelope) {
	switch env.Kind {
	case protocol.KindAuthoritativeState:
		msg, err := protocol.ParseAuthoritativeState(env)
		if err != nil {
			s.warnf("解析权威状态失败: %v", err)
			return
		}
		if p := s.ownPredictor(env.ActorID); p != nil {
			p.ReceiveState(msg)
		}

	case protocol.KindTimingOnly:
		hint, err := protocol.ParseTimingOnly(env)
		if err != nil {
			s.warnf("解析节奏提示失败: %v", err)
			return
		}
		if p := s.ownPredictor(env.ActorID); p != nil {
			p.ReceiveTiming(hint)
		}

	case protocol.KindSpectatorState:
		msg, err := protocol.ParseSpectatorState(env)
		if err != nil {
			s.warnf("解析旁观状态失败: %v", err)
			return
		}
		s.mu.RLock()
		remote := s.remotes[env.ActorID]
		s.mu.RUnlock()
		if remote != nil {
			remote.spectator.Receive(msg)
		}

	case protocol.KindActorSpawned, protocol.KindActorRemoved:
		select {
		case s.events <- env:
		default:
			s.warnf("事件队列满，丢弃 %s", env.Kind)
		}
	}
}

func (s *Session) ownPredictor(actorID uint32) *Predictor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.predictor == nil || s.actorID != actorID {
		return nil
	}
	return s.predictor
}

// applyEvents 在 tick 开始时处理角色出生与离开
func (s *Session) applyEvents() {
	for {
		select {
		case env := <-s.events:
			switch env.Kind {
			case protocol.KindActorSpawned:
				s.spawnRemote(env)
			case protocol.KindActorRemoved:
				s.removeRemote(env.ActorID)
			}
		default:
			return
		}
	}
}

func (s *Session) spawnRemote(env protocol.Envelope) {
	state, err := protocol.ParseActorSpawned(env)
	if err != nil {
		s.warnf("解析角色出生失败: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if env.ActorID == s.actorID {
		return
	}
	if remote, ok := s.remotes[env.ActorID]; ok {
		remote.spectator.Receive(protocol.SpectatorState{State: state, Damping: remote.body.Damping()})
		return
	}

	// 出生消息不带阻尼，先沿用刚体默认值，等待旁观广播
	body := physics.NewBody(s.cfg.Config.Body, state)
	spectator := NewSpectatorPredictor(body, s.cfg.Config.Netcode.PredictionRatio)
	spectator.Receive(protocol.SpectatorState{State: state, Damping: body.Damping()})
	s.world.Add(body)
	s.remotes[env.ActorID] = &remoteActor{body: body, spectator: spectator}
	s.logger.Printf("角色 %d 出现", env.ActorID)
}

func (s *Session) removeRemote(id uint32) {
	s.mu.Lock()
	remote, ok := s.remotes[id]
	delete(s.remotes, id)
	s.mu.Unlock()

	if ok {
		s.world.Remove(remote.body)
		s.logger.Printf("角色 %d 离开", id)
	}
}

// sortedRemotes 按 ID 排序，保证旁观预测顺序确定
func (s *Session) sortedRemotes() []*remoteActor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint32, 0, len(s.remotes))
	for id := range s.remotes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*remoteActor, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.remotes[id])
	}
	return out
}

func (s *Session) predictSpectators(dt float64, replay bool) {
	for _, remote := range s.sortedRemotes() {
		remote.spectator.PostSimulate()
	}
}

func (s *Session) rollbackStart() {
	for _, remote := range s.sortedRemotes() {
		remote.spectator.RollbackStart()
	}
}

func (s *Session) rollbackEnd() {
	for _, remote := range s.sortedRemotes() {
		remote.spectator.RollbackEnd()
	}
}

// Frame 处理一个渲染帧：采集边沿输入，推进时钟
func (s *Session) Frame(delta time.Duration) int {
	s.capture.Poll()
	return s.clock.Advance(delta)
}

// Run 以 frameRate 帧每秒驱动会话，直到 ctx 取消
func (s *Session) Run(ctx context.Context, frameRate int) error {
	if frameRate <= 0 {
		frameRate = 60
	}

	ticker := time.NewTicker(time.Second / time.Duration(frameRate))
	defer ticker.Stop()

	s.logger.Printf("客户端循环启动: %d FPS, tick %v", frameRate, s.clock.Interval())
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("客户端循环停止")
			return nil
		case now := <-ticker.C:
			s.Frame(now.Sub(last))
			last = now
		}
	}
}

// Snapshot 当前状态（只在 Run 所在 goroutine 或 Run 之外调用）
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Tick:     s.clock.Number(),
		Interval: s.clock.Interval(),
		ActorID:  s.actorID,
		Remotes:  make(map[uint32]core.BodyState, len(s.remotes)),
	}
	if s.body != nil {
		snap.Own = core.Some(s.body.State())
		snap.Pending = len(s.predictor.Pending())
	}
	for id, remote := range s.remotes {
		snap.Remotes[id] = remote.body.State()
	}
	return snap
}

// OwnPosition 本地角色位置，未绑定时为 None
func (s *Session) OwnPosition() core.Optional[core.Vec2] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.body == nil {
		return core.None[core.Vec2]()
	}
	return core.Some(s.body.State().Position)
}

func (s *Session) logStatus() {
	if s.cfg.StatusEvery <= 0 || int(s.clock.Number())%s.cfg.StatusEvery != 0 {
		return
	}

	snap := s.Snapshot()
	own, ok := snap.Own.Get()
	if !ok {
		return
	}
	s.logger.Printf("tick %d | 间隔 %v | 角色 %d 位置 (%.2f, %.2f) 速度 %.2f 体力 %.1f | 未确认 %d | 旁观 %d",
		snap.Tick, snap.Interval, snap.ActorID, own.Position.X(), own.Position.Y(),
		own.LinearVelocity.Len(), s.cfg.Config.Movement.Stamina-own.Vitals.Fatigue, snap.Pending, len(snap.Remotes))
}

func (s *Session) warnf(format string, args ...any) {
	if s.warn.Allow() {
		s.logger.Printf(format, args...)
	}
}
