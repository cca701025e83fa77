package core

import "doggos/pkg/tick"

// ActionFlags 动作位集合
type ActionFlags uint8

const (
	ActionSprint ActionFlags = 1 << iota // 按住生效（电平语义）
	ActionBark                           // 按下瞬间生效（边沿语义）
)

var (
	momentaryActions = []ActionFlags{ActionBark} // 边沿触发，被消费一次后清除
	heldActions      = []ActionFlags{ActionSprint}
)

// Has 是否包含所有指定动作
func (f ActionFlags) Has(a ActionFlags) bool {
	return f&a == a
}

// InputSample 一个 tick 的输入采样，创建后不可修改
type InputSample struct {
	Horizontal float64
	Vertical   float64
	Tick       tick.Number
	Flags      ActionFlags
}

// Axis 移动向量
func (in InputSample) Axis() Vec2 {
	return Vec2{in.Horizontal, in.Vertical}
}

// Finite 移动向量是否为有限值
func (in InputSample) Finite() bool {
	return Finite(in.Axis())
}

// InputSource 输入设备（外部协作者）
type InputSource interface {
	// Axis 当前移动向量
	Axis() Vec2
	// Momentary 该动作是否在本帧发生
	Momentary(action ActionFlags) bool
	// Held 该动作当前是否被按住
	Held(action ActionFlags) bool
}

// Poller 需要每帧推进的输入源（例如机器人），Capture.Poll 时先调用
type Poller interface {
	Poll()
}

// Capture 输入采集器
// 每个渲染帧调用 Poll 缓存边沿事件，每个 tick 调用 Sample 取出一次
type Capture struct {
	source  InputSource
	pending ActionFlags
}

// NewCapture 创建输入采集器
func NewCapture(source InputSource) *Capture {
	return &Capture{source: source}
}

// Poll 读取本帧的边沿事件并累积，直到下一次 Sample
func (c *Capture) Poll() {
	if c.source == nil {
		return
	}
	if p, ok := c.source.(Poller); ok {
		p.Poll()
	}
	for _, a := range momentaryActions {
		if c.source.Momentary(a) {
			c.pending |= a
		}
	}
}

// Sample 生成指定 tick 的输入采样，并清除已消费的边沿事件
func (c *Capture) Sample(number tick.Number) InputSample {
	if c.source == nil {
		return InputSample{Tick: number}
	}
	c.Poll()

	flags := c.pending
	c.pending = 0
	for _, a := range heldActions {
		if c.source.Held(a) {
			flags |= a
		}
	}

	axis := c.source.Axis()
	return InputSample{
		Horizontal: axis[0],
		Vertical:   axis[1],
		Tick:       number,
		Flags:      flags,
	}
}
