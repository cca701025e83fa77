package core

// ForceMode 施力方式
type ForceMode int

const (
	ForceModeForce          ForceMode = iota // 持续力，受质量影响，在下一次步进时积分
	ForceModeAcceleration                    // 持续加速度，忽略质量
	ForceModeImpulse                         // 瞬时冲量，立即改变速度，受质量影响
	ForceModeVelocityChange                  // 瞬时速度变化，忽略质量
)

// Vitals 移动规则自带的角色状态，随刚体状态一起同步、记录与回滚
type Vitals struct {
	Fatigue   float64 // 已消耗的冲刺体力，0 为满体力
	BarkTimer float64 // 吠叫剩余的站定时间（秒）
}

// BodyState 刚体的完整物理状态
type BodyState struct {
	Position        Vec2
	Rotation        float64 // 角度（度）
	LinearVelocity  Vec2
	AngularVelocity float64 // 度/秒
	Vitals          Vitals
}

// Body 物理引擎中的刚体（外部协作者）
// 对相同的状态、力和 dt 必须给出相同结果
type Body interface {
	State() BodyState
	SetState(BodyState)
	ApplyForce(f Vec2, mode ForceMode)
	SetDamping(linear float64)
	SetVitals(Vitals)
}
