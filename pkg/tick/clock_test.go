package tick

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStepper struct {
	steps []float64
}

func (s *countingStepper) Step(dt float64) {
	s.steps = append(s.steps, dt)
}

func TestClock_AdvanceRunsWholeTicks(t *testing.T) {
	stepper := &countingStepper{}
	clock := NewClock(DefaultConfig(), stepper)

	assert.Equal(t, 0, clock.Advance(10*time.Millisecond))
	assert.Equal(t, 1, clock.Advance(15*time.Millisecond))
	assert.Equal(t, 2, clock.Advance(40*time.Millisecond))

	assert.Equal(t, Number(3), clock.Number())
	require.Len(t, stepper.steps, 3)
	for _, dt := range stepper.steps {
		assert.Equal(t, 0.02, dt)
	}
}

func TestClock_PhaseOrder(t *testing.T) {
	clock := NewClock(DefaultConfig(), nil)

	var order []string
	clock.OnPreUpdate(func() { order = append(order, "pre") })
	clock.OnUpdate(func() { order = append(order, "update-a") })
	clock.OnUpdate(func() { order = append(order, "update-b") })
	clock.OnPreSimulate(func(float64, bool) { order = append(order, "pre-sim") })
	clock.OnPostSimulate(func(_ float64, replay bool) {
		assert.False(t, replay)
		order = append(order, "post-sim")
	})
	clock.OnPostUpdate(func() { order = append(order, "post") })

	require.Equal(t, 2, clock.Advance(40*time.Millisecond))

	tickOrder := []string{"pre", "update-a", "update-b", "pre-sim", "post-sim", "post"}
	assert.Equal(t, append(append([]string{}, tickOrder...), tickOrder...), order)
}

func TestClock_NumberWrapsToZero(t *testing.T) {
	clock := NewClock(DefaultConfig(), nil)
	clock.number = math.MaxUint32

	clock.Advance(20 * time.Millisecond)
	assert.Equal(t, Number(0), clock.Number())

	clock.Advance(20 * time.Millisecond)
	assert.Equal(t, Number(1), clock.Number())
}

func TestClock_AdjustTimingClamps(t *testing.T) {
	cfg := DefaultConfig()
	clock := NewClock(cfg, nil)

	for i := 0; i < 1000; i++ {
		clock.AdjustTiming(1)
		assert.LessOrEqual(t, clock.Interval(), cfg.MaxInterval)
	}
	assert.Equal(t, cfg.MaxInterval, clock.Interval())

	for i := 0; i < 1000; i++ {
		clock.AdjustTiming(-1)
		assert.GreaterOrEqual(t, clock.Interval(), cfg.MinInterval)
	}
	assert.Equal(t, cfg.MinInterval, clock.Interval())
}

func TestClock_AdjustTimingSingleStep(t *testing.T) {
	cfg := DefaultConfig()
	clock := NewClock(cfg, nil)

	clock.AdjustTiming(-1)
	assert.Equal(t, cfg.Nominal-cfg.StepSize, clock.Interval())

	clock.AdjustTiming(0)
	assert.Equal(t, cfg.Nominal-cfg.StepSize, clock.Interval())
}

func TestClock_RecoversTowardNominalWithoutOvershoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecoverRate = time.Millisecond
	clock := NewClock(cfg, nil)

	for i := 0; i < 100; i++ {
		clock.AdjustTiming(1)
	}
	require.Equal(t, cfg.MaxInterval, clock.Interval())

	clock.Advance(0)
	assert.Equal(t, cfg.MaxInterval-time.Millisecond, clock.Interval())

	for i := 0; i < 100; i++ {
		clock.Advance(0)
		assert.GreaterOrEqual(t, clock.Interval(), cfg.Nominal)
	}
	assert.Equal(t, cfg.Nominal, clock.Interval())
}

func TestClock_ShorterIntervalRunsMoreTicks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecoverRate = 0
	clock := NewClock(cfg, nil)
	for i := 0; i < 100; i++ {
		clock.AdjustTiming(-1)
	}

	assert.Equal(t, 7, clock.Advance(100*time.Millisecond))
}

func TestClock_SimulateReplayFlag(t *testing.T) {
	stepper := &countingStepper{}
	clock := NewClock(DefaultConfig(), stepper)

	var replays []bool
	clock.OnPostSimulate(func(_ float64, replay bool) { replays = append(replays, replay) })

	clock.Simulate(clock.StepSeconds(), true)

	assert.Equal(t, []bool{true}, replays)
	assert.Len(t, stepper.steps, 1)
	assert.Equal(t, Number(0), clock.Number())
}

func TestNewer(t *testing.T) {
	assert.True(t, Newer(11, 10))
	assert.False(t, Newer(10, 10))
	assert.False(t, Newer(9, 10))
	assert.True(t, Newer(0, math.MaxUint32))
	assert.True(t, Newer(5, math.MaxUint32-5))
	assert.False(t, Newer(math.MaxUint32, 0))
	assert.True(t, NotNewer(10, 10))
}
