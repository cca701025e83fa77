package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doggos/pkg/core"
)

func TestBody_ForceModes(t *testing.T) {
	cfg := DefaultBodyConfig()
	cfg.Mass = 2
	cfg.AngularDamping = 0
	body := NewBody(cfg, core.BodyState{})

	body.ApplyForce(core.Vec2{4, 0}, core.ForceModeImpulse)
	assert.Equal(t, core.Vec2{2, 0}, body.State().LinearVelocity)

	body.ApplyForce(core.Vec2{0, 1}, core.ForceModeVelocityChange)
	assert.Equal(t, core.Vec2{2, 1}, body.State().LinearVelocity)

	world := NewWorld()
	world.Add(body)

	body.ApplyForce(core.Vec2{10, 0}, core.ForceModeAcceleration)
	world.Step(0.5)
	assert.InDelta(t, 7.0, body.State().LinearVelocity[0], 1e-12)

	body.ApplyForce(core.Vec2{10, 0}, core.ForceModeForce)
	world.Step(0.5)
	assert.InDelta(t, 9.5, body.State().LinearVelocity[0], 1e-12)
}

func TestWorld_DampingSlowsBody(t *testing.T) {
	cfg := DefaultBodyConfig()
	cfg.LinearDamping = 1
	body := NewBody(cfg, core.BodyState{LinearVelocity: core.Vec2{10, 0}})

	world := NewWorld()
	world.Add(body)
	world.Step(1)

	state := body.State()
	assert.InDelta(t, 5.0, state.LinearVelocity[0], 1e-12)
	assert.InDelta(t, 5.0, state.Position[0], 1e-12)
	assert.Equal(t, uint64(1), world.Steps())
}

func TestWorld_ForcesClearedAfterStep(t *testing.T) {
	body := NewBody(DefaultBodyConfig(), core.BodyState{})
	world := NewWorld()
	world.Add(body)

	body.ApplyForce(core.Vec2{1, 0}, core.ForceModeForce)
	world.Step(1)
	v := body.State().LinearVelocity
	world.Step(1)

	assert.Equal(t, v, body.State().LinearVelocity)
}

func TestWorld_SetStateDropsPendingForces(t *testing.T) {
	body := NewBody(DefaultBodyConfig(), core.BodyState{})
	world := NewWorld()
	world.Add(body)

	body.ApplyForce(core.Vec2{100, 0}, core.ForceModeForce)
	body.SetState(core.BodyState{Position: core.Vec2{1, 1}})
	world.Step(0.02)

	assert.Equal(t, core.Vec2{1, 1}, body.State().Position)
}

func TestWorld_RemoveBody(t *testing.T) {
	world := NewWorld()
	a := NewBody(DefaultBodyConfig(), core.BodyState{LinearVelocity: core.Vec2{1, 0}})
	b := NewBody(DefaultBodyConfig(), core.BodyState{LinearVelocity: core.Vec2{1, 0}})
	world.Add(a)
	world.Add(b)
	world.Remove(a)
	require.Equal(t, 1, world.Len())

	world.Step(1)
	assert.Equal(t, core.Vec2{}, a.State().Position)
	assert.Equal(t, core.Vec2{1, 0}, b.State().Position)
}

func TestWorld_IgnoresNonPositiveStep(t *testing.T) {
	world := NewWorld()
	world.Step(0)
	world.Step(-1)
	assert.Equal(t, uint64(0), world.Steps())
}
