package physics

import (
	"doggos/pkg/core"
)

// Body 刚体，实现 core.Body
type Body struct {
	state core.BodyState

	mass           float64
	inertia        float64
	linearDamping  float64
	angularDamping float64

	force  core.Vec2 // 本步累积的力（N）
	torque float64
}

// BodyConfig 刚体参数
type BodyConfig struct {
	Mass           float64 `json:"mass"`
	Inertia        float64 `json:"inertia"`
	LinearDamping  float64 `json:"linearDamping"`
	AngularDamping float64 `json:"angularDamping"`
}

// DefaultBodyConfig 默认刚体参数
func DefaultBodyConfig() BodyConfig {
	return BodyConfig{
		Mass:           1,
		Inertia:        1,
		AngularDamping: 0.05,
	}
}

// NewBody 创建刚体，质量与转动惯量不大于 0 时按 1 处理
func NewBody(cfg BodyConfig, state core.BodyState) *Body {
	if cfg.Mass <= 0 {
		cfg.Mass = 1
	}
	if cfg.Inertia <= 0 {
		cfg.Inertia = 1
	}
	return &Body{
		state:          state,
		mass:           cfg.Mass,
		inertia:        cfg.Inertia,
		linearDamping:  cfg.LinearDamping,
		angularDamping: cfg.AngularDamping,
	}
}

// State 当前状态
func (b *Body) State() core.BodyState {
	return b.state
}

// SetState 直接设置状态，同时清空未积分的力
func (b *Body) SetState(s core.BodyState) {
	b.state = s
	b.force = core.Vec2{}
	b.torque = 0
}

// SetDamping 设置线性阻尼
func (b *Body) SetDamping(linear float64) {
	b.linearDamping = linear
}

// SetVitals 设置角色状态，不影响未积分的力
func (b *Body) SetVitals(v core.Vitals) {
	b.state.Vitals = v
}

// Damping 当前线性阻尼
func (b *Body) Damping() float64 {
	return b.linearDamping
}

// ApplyForce 按指定方式施力
func (b *Body) ApplyForce(f core.Vec2, mode core.ForceMode) {
	switch mode {
	case core.ForceModeForce:
		b.force = b.force.Add(f)
	case core.ForceModeAcceleration:
		b.force = b.force.Add(f.Mul(b.mass))
	case core.ForceModeImpulse:
		b.state.LinearVelocity = b.state.LinearVelocity.Add(f.Mul(1 / b.mass))
	case core.ForceModeVelocityChange:
		b.state.LinearVelocity = b.state.LinearVelocity.Add(f)
	}
}

// ApplyTorque 施加力矩（持续）
func (b *Body) ApplyTorque(t float64) {
	b.torque += t
}

// integrate 半隐式欧拉积分，阻尼公式与 Box2D 一致
func (b *Body) integrate(dt float64) {
	v := b.state.LinearVelocity.Add(b.force.Mul(dt / b.mass))
	v = v.Mul(1 / (1 + dt*b.linearDamping))

	w := b.state.AngularVelocity + b.torque*dt/b.inertia
	w *= 1 / (1 + dt*b.angularDamping)

	b.state.LinearVelocity = v
	b.state.AngularVelocity = w
	b.state.Position = b.state.Position.Add(v.Mul(dt))
	b.state.Rotation += w * dt

	b.force = core.Vec2{}
	b.torque = 0
}

// World 确定性物理世界：按加入顺序步进，无碰撞
type World struct {
	bodies []*Body
	steps  uint64
}

// NewWorld 创建空世界
func NewWorld() *World {
	return &World{
		bodies: make([]*Body, 0),
	}
}

// Add 加入刚体
func (w *World) Add(b *Body) {
	w.bodies = append(w.bodies, b)
}

// Remove 移除刚体
func (w *World) Remove(b *Body) {
	for i, body := range w.bodies {
		if body == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			return
		}
	}
}

// Len 刚体数量
func (w *World) Len() int {
	return len(w.bodies)
}

// Steps 累计步进次数
func (w *World) Steps() uint64 {
	return w.steps
}

// Step 所有刚体前进 dt 秒
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	for _, b := range w.bodies {
		b.integrate(dt)
	}
	w.steps++
}
