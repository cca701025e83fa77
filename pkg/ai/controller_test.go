package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doggos/pkg/core"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1000, 0)} }

func quietConfig() Config {
	return Config{
		ThinkInterval: 100 * time.Millisecond,
		HeadingMin:    time.Second,
		HeadingMax:    time.Second,
	}
}

func newTestBot(cfg Config) (*Bot, *fakeClock) {
	clk := newFakeClock()
	bot := NewBotWithConfig(42, &cfg)
	bot.now = clk.now
	return bot, clk
}

func TestBot_HeadingHeldUntilExpiry(t *testing.T) {
	bot, clk := newTestBot(quietConfig())

	bot.Poll()
	first := bot.Axis()
	assert.InDelta(t, 1.0, first.Len(), 1e-9)

	for i := 0; i < 9; i++ {
		clk.advance(100 * time.Millisecond)
		bot.Poll()
		assert.Equal(t, first, bot.Axis())
	}

	clk.advance(100 * time.Millisecond)
	bot.Poll()
	assert.NotEqual(t, first, bot.Axis())
}

func TestBot_ThinksOncePerInterval(t *testing.T) {
	cfg := quietConfig()
	cfg.HeadingMin, cfg.HeadingMax = 0, 0
	bot, clk := newTestBot(cfg)

	bot.Poll()
	first := bot.Axis()

	// 间隔内重复 Poll 沿用上一次决定
	clk.advance(50 * time.Millisecond)
	bot.Poll()
	bot.Poll()
	assert.Equal(t, first, bot.Axis())

	clk.advance(50 * time.Millisecond)
	bot.Poll()
	assert.NotEqual(t, first, bot.Axis())
}

func TestBot_IdleStops(t *testing.T) {
	cfg := quietConfig()
	cfg.IdleChance = 1
	bot, _ := newTestBot(cfg)

	bot.Poll()
	assert.Equal(t, core.Vec2{}, bot.Axis())
}

func TestBot_BarkConsumedOnceWithCooldown(t *testing.T) {
	cfg := quietConfig()
	cfg.BarkChance = 1
	cfg.BarkCooldown = time.Second
	bot, clk := newTestBot(cfg)

	bot.Poll()
	assert.True(t, bot.Momentary(core.ActionBark))
	assert.False(t, bot.Momentary(core.ActionBark))

	clk.advance(100 * time.Millisecond)
	bot.Poll()
	assert.False(t, bot.Momentary(core.ActionBark))

	clk.advance(900 * time.Millisecond)
	bot.Poll()
	assert.True(t, bot.Momentary(core.ActionBark))
	assert.False(t, bot.Momentary(core.ActionSprint))
}

func TestBot_SprintBurstAndCooldown(t *testing.T) {
	cfg := quietConfig()
	cfg.SprintChance = 1
	cfg.SprintDuration = 500 * time.Millisecond
	cfg.SprintCooldown = time.Second
	bot, clk := newTestBot(cfg)

	steps := []struct {
		after  time.Duration
		sprint bool
	}{
		{0, true},
		{400 * time.Millisecond, true},
		{200 * time.Millisecond, false},
		{500 * time.Millisecond, false},
		{400 * time.Millisecond, true},
	}
	for i, step := range steps {
		clk.advance(step.after)
		bot.Poll()
		assert.Equal(t, step.sprint, bot.Held(core.ActionSprint), "step %d", i)
	}
	assert.False(t, bot.Held(core.ActionBark))
}

func TestBot_ReturnsHomeWhenTooFar(t *testing.T) {
	cfg := quietConfig()
	cfg.HomeRadius = 15
	bot, clk := newTestBot(cfg)

	pos := core.Vec2{30, 0}
	bot.SetLocator(func() core.Optional[core.Vec2] { return core.Some(pos) })

	bot.Poll()
	assert.InDelta(t, -1.0, bot.Axis().X(), 1e-12)
	assert.InDelta(t, 0.0, bot.Axis().Y(), 1e-12)

	// 回到范围内后重新游荡
	pos = core.Vec2{1, 0}
	clk.advance(100 * time.Millisecond)
	bot.Poll()
	assert.InDelta(t, 1.0, bot.Axis().Len(), 1e-9)
}

func TestBot_SameSeedSameDecisions(t *testing.T) {
	cfg := ConfigPlayful
	a, clkA := newTestBot(cfg)
	b, clkB := newTestBot(cfg)

	for i := 0; i < 50; i++ {
		a.Poll()
		b.Poll()
		require.Equal(t, a.Axis(), b.Axis())
		require.Equal(t, a.Held(core.ActionSprint), b.Held(core.ActionSprint))
		require.Equal(t, a.Momentary(core.ActionBark), b.Momentary(core.ActionBark))
		clkA.advance(70 * time.Millisecond)
		clkB.advance(70 * time.Millisecond)
	}
}

func TestBot_DrivesCapture(t *testing.T) {
	cfg := quietConfig()
	cfg.BarkChance = 1
	cfg.BarkCooldown = time.Hour
	cfg.SprintChance = 1
	cfg.SprintDuration = time.Hour
	bot, _ := newTestBot(cfg)

	capture := core.NewCapture(bot)
	capture.Poll()
	first := capture.Sample(1)
	second := capture.Sample(2)

	assert.True(t, first.Flags.Has(core.ActionBark|core.ActionSprint))
	assert.False(t, second.Flags.Has(core.ActionBark))
	assert.True(t, second.Flags.Has(core.ActionSprint))
	assert.Equal(t, first.Axis(), second.Axis())
}

func TestBot_SetConfigIgnoresNil(t *testing.T) {
	bot := NewBot(1)
	bot.SetConfig(nil)
	assert.Equal(t, &ConfigCalm, bot.GetConfig())

	bot.SetConfig(&ConfigPlayful)
	assert.Equal(t, &ConfigPlayful, bot.GetConfig())
}
