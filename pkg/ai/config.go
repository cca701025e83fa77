package ai

import "time"

// Config 定义机器人的行为参数
type Config struct {
	// ThinkInterval 思考间隔，两次思考之间沿用上一次的决定
	ThinkInterval time.Duration

	// HeadingMin / HeadingMax 保持同一方向的时长范围
	HeadingMin time.Duration
	HeadingMax time.Duration

	// IdleChance 换方向时原地停下的概率
	IdleChance float64

	// SprintChance 每次思考开始冲刺的概率
	SprintChance   float64
	SprintDuration time.Duration
	SprintCooldown time.Duration

	// BarkChance 每次思考叫一声的概率
	BarkChance   float64
	BarkCooldown time.Duration

	// HomeRadius 离出生区域超过该距离时往回走，0 不限制
	HomeRadius float64

	// MistakeRate 随机失误率 (0.0-1.0)
	MistakeRate float64
}

// 预设配置：悠闲
var ConfigCalm = Config{
	ThinkInterval:  250 * time.Millisecond,
	HeadingMin:     1500 * time.Millisecond,
	HeadingMax:     4 * time.Second,
	IdleChance:     0.3,
	SprintChance:   0.05,
	SprintDuration: 800 * time.Millisecond,
	SprintCooldown: 5 * time.Second,
	BarkChance:     0.05,
	BarkCooldown:   3 * time.Second,
	HomeRadius:     15,
	MistakeRate:    0.02,
}

// 预设配置：活泼
var ConfigPlayful = Config{
	ThinkInterval:  100 * time.Millisecond,
	HeadingMin:     500 * time.Millisecond,
	HeadingMax:     1500 * time.Millisecond,
	IdleChance:     0.1,
	SprintChance:   0.25,
	SprintDuration: 1200 * time.Millisecond,
	SprintCooldown: 2 * time.Second,
	BarkChance:     0.2,
	BarkCooldown:   time.Second,
	HomeRadius:     25,
	MistakeRate:    0,
}
