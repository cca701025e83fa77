package client

import (
	"math"
	"sync"

	"doggos/pkg/core"
	"doggos/pkg/protocol"
)

const (
	// directionThreshold 方向变化判定阈值（单位向量差的平方长度 / 符号差）
	directionThreshold = 0.01
	// baselineTolerance 变化量偏离基线超过 ±10% 时基线失效
	baselineTolerance = 0.1
)

// SpectatorPredictor 旁观角色的速度外推
//
// 每个模拟步之后，若速度的逐步变化量与基线一致（±10%），把当前速度按比例拉回上一步的速度，
// 抵消两次权威广播之间阻尼造成的衰减；方向改变或变化量偏离基线时放弃预测，等待下一次对齐。
// 回滚期间（重放各步）只学习基线，不插值。
type SpectatorPredictor struct {
	body  core.Body
	ratio float64

	mu       sync.Mutex
	received core.Optional[protocol.SpectatorState]

	// 以下只在模拟线程访问
	lastVelocity     core.Vec2
	lastAngular      float64
	velocityBaseline core.Optional[float64]
	angularBaseline  core.Optional[float64]
	suspended        bool
	interpolations   uint64
}

// NewSpectatorPredictor 创建旁观预测，ratio 为 0 时不做预测
func NewSpectatorPredictor(body core.Body, ratio float64) *SpectatorPredictor {
	st := body.State()
	return &SpectatorPredictor{
		body:         body,
		ratio:        ratio,
		lastVelocity: st.LinearVelocity,
		lastAngular:  st.AngularVelocity,
	}
}

// Receive 收到权威广播（任意线程）
// 阻尼在下一个模拟步之后生效，状态在回滚开始时应用
func (s *SpectatorPredictor) Receive(msg protocol.SpectatorState) {
	s.mu.Lock()
	s.received = core.Some(msg)
	s.mu.Unlock()
}

func (s *SpectatorPredictor) latest() (protocol.SpectatorState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received.Get()
}

// RollbackStart 把刚体对齐到最近收到的权威状态与阻尼并重置基线，回滚期间暂停插值
func (s *SpectatorPredictor) RollbackStart() {
	s.suspended = true

	msg, ok := s.latest()
	if !ok {
		return
	}

	s.body.SetState(msg.State)
	s.body.SetDamping(msg.Damping)
	s.lastVelocity = msg.State.LinearVelocity
	s.lastAngular = msg.State.AngularVelocity
	s.velocityBaseline = core.None[float64]()
	s.angularBaseline = core.None[float64]()
}

// RollbackEnd 恢复插值
func (s *SpectatorPredictor) RollbackEnd() {
	s.suspended = false
}

// PostSimulate 每个物理步之后调用（包括回滚重放的各步）
func (s *SpectatorPredictor) PostSimulate() {
	if msg, ok := s.latest(); ok {
		s.body.SetDamping(msg.Damping)
	}
	if s.ratio == 0 {
		return
	}

	s.predictLinear()
	s.predictAngular()

	st := s.body.State()
	s.lastVelocity = st.LinearVelocity
	s.lastAngular = st.AngularVelocity
}

func (s *SpectatorPredictor) predictLinear() {
	st := s.body.State()
	current := st.LinearVelocity

	if s.velocityBaseline.IsSet() {
		d := core.Normalized(s.lastVelocity).Sub(core.Normalized(current))
		if d.Dot(d) > directionThreshold {
			s.velocityBaseline = core.None[float64]()
			return
		}
	}

	diff := s.lastVelocity.Sub(current).Len()
	baseline, ok := s.velocityBaseline.Get()
	switch {
	case !ok:
		if diff > 0 {
			s.velocityBaseline = core.Some(diff)
		}
	case !withinTolerance(diff, baseline):
		s.velocityBaseline = core.None[float64]()
	case !s.suspended:
		st.LinearVelocity = core.LerpVec(current, s.lastVelocity, s.ratio)
		s.body.SetState(st)
		s.interpolations++
	}
}

func (s *SpectatorPredictor) predictAngular() {
	st := s.body.State()
	current := st.AngularVelocity

	if s.angularBaseline.IsSet() {
		if math.Abs(core.Sign(s.lastAngular)-core.Sign(current)) > directionThreshold {
			s.angularBaseline = core.None[float64]()
			return
		}
	}

	diff := math.Abs(s.lastAngular - current)
	baseline, ok := s.angularBaseline.Get()
	switch {
	case !ok:
		if diff > 0 {
			s.angularBaseline = core.Some(diff)
		}
	case !withinTolerance(diff, baseline):
		s.angularBaseline = core.None[float64]()
	case !s.suspended:
		st.AngularVelocity = core.Lerp(current, s.lastAngular, s.ratio)
		s.body.SetState(st)
		s.interpolations++
	}
}

func withinTolerance(diff, baseline float64) bool {
	return diff >= baseline*(1-baselineTolerance) && diff <= baseline*(1+baselineTolerance)
}

// Interpolations 累计插值次数（线速度与角速度分别计数）
func (s *SpectatorPredictor) Interpolations() uint64 {
	return s.interpolations
}

// Baselines 当前线速度与角速度基线
func (s *SpectatorPredictor) Baselines() (linear, angular core.Optional[float64]) {
	return s.velocityBaseline, s.angularBaseline
}
