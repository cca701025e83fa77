package ai

import (
	"math/rand"
	"time"

	"doggos/pkg/ai/bt"
	"doggos/pkg/core"
)

// Bot 行为树驱动的输入源，供无界面客户端使用
//
// Poll 与 Axis/Momentary/Held 都在模拟线程调用，不做同步。
type Bot struct {
	rnd    *rand.Rand
	config *Config
	now    func() time.Time
	locate func() core.Optional[core.Vec2]

	lastThink time.Time

	blackboard Blackboard
	tree       bt.Node[*Blackboard]

	axis   core.Vec2
	sprint bool
	bark   bool
}

// NewBot 创建机器人，使用默认配置（悠闲）
func NewBot(seed int64) *Bot {
	return NewBotWithConfig(seed, &ConfigCalm)
}

// NewBotWithConfig 创建机器人，使用指定配置
func NewBotWithConfig(seed int64, config *Config) *Bot {
	if config == nil {
		config = &ConfigCalm
	}
	rnd := rand.New(rand.NewSource(seed))

	bot := &Bot{
		rnd:    rnd,
		config: config,
		now:    time.Now,
	}
	bot.blackboard = Blackboard{
		RNG:    rnd,
		Config: config,
	}

	type node = bt.Node[*Blackboard]
	bot.tree = &bt.Sequence[*Blackboard]{Children: []node{
		// 移动：超出范围往回走，否则游荡
		&bt.Selector[*Blackboard]{Children: []node{
			&bt.Sequence[*Blackboard]{Children: []node{
				&bt.Condition[*Blackboard]{Check: condTooFar},
				&bt.Action[*Blackboard]{Do: actReturnHome},
			}},
			&bt.Action[*Blackboard]{Do: actWander},
		}},
		// 冲刺
		&bt.Selector[*Blackboard]{Children: []node{
			&bt.Sequence[*Blackboard]{Children: []node{
				&bt.Condition[*Blackboard]{Check: condSprinting},
				&bt.Action[*Blackboard]{Do: actHoldSprint},
			}},
			&bt.Sequence[*Blackboard]{Children: []node{
				&bt.Condition[*Blackboard]{Check: condSprintReady},
				&bt.Action[*Blackboard]{Do: actStartSprint},
			}},
			bt.Succeed[*Blackboard]{},
		}},
		// 叫
		&bt.Selector[*Blackboard]{Children: []node{
			&bt.Sequence[*Blackboard]{Children: []node{
				&bt.Condition[*Blackboard]{Check: condBarkReady},
				&bt.Action[*Blackboard]{Do: actBark},
			}},
			bt.Succeed[*Blackboard]{},
		}},
	}}

	return bot
}

// SetLocator 设置位置来源，用于超出范围时往回走
func (b *Bot) SetLocator(locate func() core.Optional[core.Vec2]) {
	b.locate = locate
}

// Poll 到达思考间隔时重新决策
func (b *Bot) Poll() {
	now := b.now()
	if !b.lastThink.IsZero() && now.Sub(b.lastThink) < b.config.ThinkInterval {
		return
	}
	b.lastThink = now

	position := core.None[core.Vec2]()
	if b.locate != nil {
		position = b.locate()
	}
	b.blackboard.ResetThink(now, position)
	_ = b.tree.Tick(&b.blackboard)

	next := b.blackboard.Next

	// 应用随机失误
	if b.config.MistakeRate > 0 && b.rnd.Float64() < b.config.MistakeRate {
		switch b.rnd.Intn(2) {
		case 0:
			// 什么都不做
			next = Decision{}
		case 1:
			// 随机方向
			next.Axis = randomHeading(&b.blackboard)
		}
	}

	b.axis = next.Axis
	b.sprint = next.Sprint
	if next.Bark {
		b.bark = true
	}
}

// Axis 当前移动向量
func (b *Bot) Axis() core.Vec2 {
	return b.axis
}

// Momentary 叫声只被消费一次
func (b *Bot) Momentary(action core.ActionFlags) bool {
	if action.Has(core.ActionBark) && b.bark {
		b.bark = false
		return true
	}
	return false
}

// Held 冲刺期间按住
func (b *Bot) Held(action core.ActionFlags) bool {
	return action.Has(core.ActionSprint) && b.sprint
}

// GetConfig 获取当前配置
func (b *Bot) GetConfig() *Config {
	return b.config
}

// SetConfig 设置新配置
func (b *Bot) SetConfig(config *Config) {
	if config == nil {
		return
	}
	b.config = config
	b.blackboard.Config = config
}
