package core

// SpeedProfile 某种移动方式的速度上限与加速度
type SpeedProfile struct {
	MaxSpeed     float64 `json:"maxSpeed"`
	Acceleration float64 `json:"acceleration"`
}

// MovementParams 移动可调参数，权威端与拥有者必须一致
type MovementParams struct {
	Walk        SpeedProfile `json:"walk"`
	Sprint      SpeedProfile `json:"sprint"`
	MoveDamping float64      `json:"moveDamping"` // 有输入时的线性阻尼
	StopDamping float64      `json:"stopDamping"` // 无输入时的刹车阻尼
	DeadZone    float64      `json:"deadZone"`    // 输入长度不超过该值视为无输入

	Stamina      float64 `json:"stamina"`      // 冲刺体力上限，0 不限制冲刺
	StaminaDrain float64 `json:"staminaDrain"` // 冲刺时每秒消耗
	StaminaRegen float64 `json:"staminaRegen"` // 不冲刺时每秒恢复
	BarkDuration float64 `json:"barkDuration"` // 吠叫站定时长（秒），0 只站定当前 tick
}

// DefaultMovementParams 默认移动参数
func DefaultMovementParams() MovementParams {
	return MovementParams{
		Walk:         SpeedProfile{MaxSpeed: 5, Acceleration: 40},
		Sprint:       SpeedProfile{MaxSpeed: 7.5, Acceleration: 60},
		MoveDamping:  0.5,
		StopDamping:  8,
		DeadZone:     0.05,
		Stamina:      10,
		StaminaDrain: 1.8,
		StaminaRegen: 1.2,
		BarkDuration: 1.2,
	}
}

// bark 结算吠叫计时，返回本 tick 是否原地站定
// 正在吠叫时新的吠叫不会重新计时
func (p MovementParams) bark(v Vitals, flags ActionFlags, dt float64) (Vitals, bool) {
	started := false
	if flags.Has(ActionBark) && v.BarkTimer <= 0 {
		v.BarkTimer = p.BarkDuration
		started = true
	}
	planted := started || v.BarkTimer > 0
	if v.BarkTimer > 0 {
		v.BarkTimer = max(0, v.BarkTimer-dt)
	}
	return v, planted
}

// stamina 结算冲刺体力，返回是否还能以冲刺速度移动
// 按住冲刺即消耗（与是否移动无关），体力耗尽后按步行速度移动
func (p MovementParams) stamina(v Vitals, sprint bool, dt float64) (Vitals, bool) {
	if p.Stamina <= 0 {
		return v, sprint
	}
	if !sprint {
		v.Fatigue = max(0, v.Fatigue-p.StaminaRegen*dt)
		return v, false
	}
	v.Fatigue += p.StaminaDrain * dt
	if v.Fatigue >= p.Stamina {
		v.Fatigue = p.Stamina
		return v, false
	}
	return v, true
}

// Simulate 将一个输入采样作用到刚体上（一次 tick 的移动规则）
// 不读取时钟、不使用随机数，体力与吠叫计时都保存在刚体状态中，
// 权威端与拥有者重放必须得到相同结果
// dt 为固定物理步长，用于单步限速与计时
func Simulate(body Body, in InputSample, p MovementParams, dt float64) {
	if body == nil {
		return
	}

	// 非有限的输入视为无输入
	axis := in.Axis()
	if !Finite(axis) {
		axis = Vec2{}
	}

	vitals, planted := p.bark(body.State().Vitals, in.Flags, dt)
	sprinting := false
	if planted {
		vitals, _ = p.stamina(vitals, false, dt)
	} else {
		vitals, sprinting = p.stamina(vitals, in.Flags.Has(ActionSprint), dt)
	}
	body.SetVitals(vitals)

	// 吠叫时原地站定
	if planted || axis.Len() <= p.DeadZone {
		body.SetDamping(p.StopDamping)
		return
	}

	profile := p.Walk
	if sprinting {
		profile = p.Sprint
	}
	body.SetDamping(p.MoveDamping)
	body.ApplyForce(Normalized(axis).Mul(profile.Acceleration), ForceModeAcceleration)

	// 超速时施加反向力，而不是直接设置速度，以便与其他力正确叠加
	velocity := body.State().LinearVelocity
	speed := velocity.Len()
	if speed > profile.MaxSpeed && dt > 0 {
		counter := Normalized(velocity).Mul((profile.MaxSpeed - speed) / dt)
		body.ApplyForce(counter, ForceModeAcceleration)
	}
}
