package ai

import (
	"math/rand"
	"time"

	"doggos/pkg/core"
)

// Decision 一次思考的输出
type Decision struct {
	Axis   core.Vec2
	Sprint bool
	Bark   bool
}

type Blackboard struct {
	Now    time.Time
	RNG    *rand.Rand
	Config *Config

	// Position 当前位置，未知时为 None
	Position core.Optional[core.Vec2]

	Next Decision

	// 以下跨思考保持
	Heading      core.Vec2
	HeadingUntil time.Time
	SprintUntil  time.Time
	SprintReady  time.Time
	BarkReady    time.Time
}

func (bb *Blackboard) ResetThink(now time.Time, position core.Optional[core.Vec2]) {
	bb.Now = now
	bb.Position = position
	bb.Next = Decision{}
	// 注意：Heading 与各冷却时间不重置，保持跨思考连续性
}
