package tick

import (
	"time"
)

// Stepper 物理世界步进器（外部协作者）
type Stepper interface {
	Step(dt float64)
}

// SimulateFunc 模拟前/后回调，replay 表示是否处于重放阶段
type SimulateFunc func(dt float64, replay bool)

// Config 时钟配置
type Config struct {
	Nominal     time.Duration // 默认 tick 间隔，物理固定步长
	MinInterval time.Duration // 自适应间隔下限
	MaxInterval time.Duration // 自适应间隔上限
	StepSize    time.Duration // 每次 AdjustTiming 的调整量
	RecoverRate time.Duration // 每次 Advance 向默认间隔回归的最大幅度
}

// DefaultConfig 默认配置：50 TPS，±35% 的调整范围
func DefaultConfig() Config {
	return Config{
		Nominal:     20 * time.Millisecond,
		MinInterval: 13 * time.Millisecond,
		MaxInterval: 27 * time.Millisecond,
		StepSize:    200 * time.Microsecond,
		RecoverRate: 2500 * time.Microsecond,
	}
}

// Clock 固定步长时钟
// 累积帧时间，每经过一个 tick 间隔按固定顺序触发回调：
// PreUpdate → Update → Simulate(PreSimulate, Step, PostSimulate) → PostUpdate
// 非并发安全，只能在模拟线程调用
type Clock struct {
	cfg     Config
	stepper Stepper

	number      Number
	interval    time.Duration
	accumulated time.Duration

	preUpdate    []func()
	update       []func()
	postUpdate   []func()
	preSimulate  []SimulateFunc
	postSimulate []SimulateFunc
}

// NewClock 创建时钟
func NewClock(cfg Config, stepper Stepper) *Clock {
	if cfg.MinInterval > cfg.MaxInterval {
		cfg.MinInterval, cfg.MaxInterval = cfg.MaxInterval, cfg.MinInterval
	}
	return &Clock{
		cfg:      cfg,
		stepper:  stepper,
		interval: cfg.Nominal,
	}
}

// Number 当前 tick 编号
func (c *Clock) Number() Number {
	return c.number
}

// Interval 当前（自适应）tick 间隔
func (c *Clock) Interval() time.Duration {
	return c.interval
}

// StepSeconds 物理固定步长（秒）
func (c *Clock) StepSeconds() float64 {
	return c.cfg.Nominal.Seconds()
}

// OnPreUpdate 注册回调，按注册顺序同步执行
func (c *Clock) OnPreUpdate(fn func()) {
	c.preUpdate = append(c.preUpdate, fn)
}

func (c *Clock) OnUpdate(fn func()) {
	c.update = append(c.update, fn)
}

func (c *Clock) OnPostUpdate(fn func()) {
	c.postUpdate = append(c.postUpdate, fn)
}

func (c *Clock) OnPreSimulate(fn SimulateFunc) {
	c.preSimulate = append(c.preSimulate, fn)
}

func (c *Clock) OnPostSimulate(fn SimulateFunc) {
	c.postSimulate = append(c.postSimulate, fn)
}

// Advance 累积帧时间并执行所有已到期的 tick，返回本次执行的 tick 数
func (c *Clock) Advance(frameDelta time.Duration) int {
	if frameDelta > 0 {
		c.accumulated += frameDelta
	}

	ticks := 0
	for c.interval > 0 && c.accumulated >= c.interval {
		c.accumulated -= c.interval
		c.number++ // uint32 溢出自然回绕到 0
		ticks++

		for _, fn := range c.preUpdate {
			fn()
		}
		for _, fn := range c.update {
			fn()
		}
		c.Simulate(c.StepSeconds(), false)
		for _, fn := range c.postUpdate {
			fn()
		}
	}

	c.interval = moveTowards(c.interval, c.cfg.Nominal, c.cfg.RecoverRate)
	return ticks
}

// Simulate 步进物理世界一次，前后触发模拟回调
// 重放（reconciliation）也走这里，保证回调与正常 tick 一致
func (c *Clock) Simulate(dt float64, replay bool) {
	for _, fn := range c.preSimulate {
		fn(dt, replay)
	}
	if c.stepper != nil {
		c.stepper.Step(dt)
	}
	for _, fn := range c.postSimulate {
		fn(dt, replay)
	}
}

// AdjustTiming 根据权威端的节奏提示调整 tick 间隔
// hint: -1 加速（缩短间隔），+1 减速，0 不变；结果限制在 [MinInterval, MaxInterval]
// 多个调用者之间后写者生效，不做聚合
func (c *Clock) AdjustTiming(hint int8) {
	if hint == 0 {
		return
	}
	next := c.interval + time.Duration(hint)*c.cfg.StepSize
	c.interval = clamp(next, c.cfg.MinInterval, c.cfg.MaxInterval)
}

func moveTowards(current, target, maxDelta time.Duration) time.Duration {
	if maxDelta <= 0 {
		return current
	}
	diff := target - current
	if diff > maxDelta {
		return current + maxDelta
	}
	if diff < -maxDelta {
		return current - maxDelta
	}
	return target
}

func clamp(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
