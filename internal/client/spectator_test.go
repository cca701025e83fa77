package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doggos/pkg/core"
	"doggos/pkg/physics"
	"doggos/pkg/protocol"
)

func newSpectated(v core.Vec2, w float64, ratio float64) (*SpectatorPredictor, *physics.Body) {
	body := physics.NewBody(physics.DefaultBodyConfig(), core.BodyState{LinearVelocity: v, AngularVelocity: w})
	return NewSpectatorPredictor(body, ratio), body
}

// observe 模拟一步物理：线速度沿 x 减少 dv，角速度减少 dw，然后运行预测
func observe(sp *SpectatorPredictor, body *physics.Body, dv, dw float64) {
	st := body.State()
	st.LinearVelocity = st.LinearVelocity.Sub(core.Vec2{dv, 0})
	st.AngularVelocity -= dw
	body.SetState(st)
	sp.PostSimulate()
}

func TestSpectator_BaselineThenInvalidation(t *testing.T) {
	sp, body := newSpectated(core.Vec2{10, 0}, 0, 0.5)

	// 第一步采纳基线，之后变化量一致，按比例拉回上一步的速度
	for i := 0; i < 5; i++ {
		observe(sp, body, 1, 0)
	}
	linear, _ := sp.Baselines()
	baseline, ok := linear.Get()
	require.True(t, ok)
	assert.Equal(t, 1.0, baseline)
	assert.InDelta(t, 7.0, body.State().LinearVelocity.X(), 1e-12)

	// 第六步变化量超出 ±10%，基线失效，本步不插值
	observe(sp, body, 3, 0)
	linear, _ = sp.Baselines()
	assert.False(t, linear.IsSet())
	assert.InDelta(t, 4.0, body.State().LinearVelocity.X(), 1e-12)

	// 下一步重新采纳
	observe(sp, body, 0.5, 0)
	linear, _ = sp.Baselines()
	baseline, ok = linear.Get()
	require.True(t, ok)
	assert.InDelta(t, 0.5, baseline, 1e-12)
}

func TestSpectator_WithinToleranceKeepsBaseline(t *testing.T) {
	sp, body := newSpectated(core.Vec2{10, 0}, 0, 0.5)
	observe(sp, body, 1, 0)
	observe(sp, body, 1.05, 0)

	linear, _ := sp.Baselines()
	assert.True(t, linear.IsSet())
}

func TestSpectator_DirectionChangeInvalidates(t *testing.T) {
	sp, body := newSpectated(core.Vec2{1, 0}, 0, 0.5)
	observe(sp, body, 0.1, 0)
	linear, _ := sp.Baselines()
	require.True(t, linear.IsSet())

	st := body.State()
	st.LinearVelocity = core.Vec2{0, 0.8}
	body.SetState(st)
	sp.PostSimulate()

	linear, _ = sp.Baselines()
	assert.False(t, linear.IsSet())
	assert.Equal(t, core.Vec2{0, 0.8}, body.State().LinearVelocity)
}

func TestSpectator_AngularSignFlipInvalidates(t *testing.T) {
	sp, body := newSpectated(core.Vec2{}, 2, 0.5)
	observe(sp, body, 0, 0.5)
	_, angular := sp.Baselines()
	require.True(t, angular.IsSet())

	observe(sp, body, 0, 0.5)
	assert.InDelta(t, 1.25, body.State().AngularVelocity, 1e-12)

	// 从正转变为负
	observe(sp, body, 0, 1.75)
	_, angular = sp.Baselines()
	assert.False(t, angular.IsSet())
}

func TestSpectator_ZeroRatioDisables(t *testing.T) {
	sp, body := newSpectated(core.Vec2{10, 0}, 3, 0)
	for i := 0; i < 5; i++ {
		observe(sp, body, 1, 0.5)
	}

	linear, angular := sp.Baselines()
	assert.False(t, linear.IsSet())
	assert.False(t, angular.IsSet())
	assert.InDelta(t, 5.0, body.State().LinearVelocity.X(), 1e-12)
	assert.InDelta(t, 0.5, body.State().AngularVelocity, 1e-12)
}

func TestSpectator_RollbackSnapsAndLearnsWithoutInterpolating(t *testing.T) {
	sp, body := newSpectated(core.Vec2{10, 0}, 0, 0.5)
	observe(sp, body, 1, 0)
	observe(sp, body, 1, 0)
	require.Equal(t, uint64(1), sp.Interpolations())

	truth := core.BodyState{Position: core.Vec2{3, 4}, LinearVelocity: core.Vec2{2, 0}, Rotation: 45}
	sp.Receive(protocol.SpectatorState{State: truth, Damping: 0.5})

	sp.RollbackStart()
	assert.Equal(t, truth, body.State())
	assert.Equal(t, 0.5, body.Damping())
	linear, angular := sp.Baselines()
	assert.False(t, linear.IsSet())
	assert.False(t, angular.IsSet())

	// 重放步里学习基线，但不插值
	observe(sp, body, 0.5, 0)
	observe(sp, body, 0.5, 0)
	linear, _ = sp.Baselines()
	baseline, ok := linear.Get()
	require.True(t, ok)
	assert.InDelta(t, 0.5, baseline, 1e-12)
	assert.InDelta(t, 1.0, body.State().LinearVelocity.X(), 1e-12)
	assert.Equal(t, uint64(1), sp.Interpolations())

	// 回滚结束后立即沿用重放中学到的基线
	sp.RollbackEnd()
	observe(sp, body, 0.5, 0)
	assert.InDelta(t, 0.75, body.State().LinearVelocity.X(), 1e-12)
	assert.Equal(t, uint64(2), sp.Interpolations())
}

func TestSpectator_DampingFollowsBroadcast(t *testing.T) {
	sp, body := newSpectated(core.Vec2{1, 0}, 0, 0)
	sp.Receive(protocol.SpectatorState{State: body.State(), Damping: 8})
	assert.Zero(t, body.Damping(), "收到广播时不直接改动刚体")

	sp.PostSimulate()
	assert.Equal(t, 8.0, body.Damping())
}

func TestSpectator_RollbackWithoutStateOnlySuspends(t *testing.T) {
	sp, body := newSpectated(core.Vec2{10, 0}, 0, 0.5)
	before := body.State()

	sp.RollbackStart()
	assert.Equal(t, before, body.State())
	sp.RollbackEnd()
}
