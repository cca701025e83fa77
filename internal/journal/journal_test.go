package journal

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doggos/pkg/core"
	"doggos/pkg/physics"
	"doggos/pkg/tick"
)

const step = 0.02

func testConfig() ReplayConfig {
	return ReplayConfig{
		Movement: core.DefaultMovementParams(),
		Body:     physics.DefaultBodyConfig(),
		Step:     step,
	}
}

// record 模拟权威端：每 tick 先应用规则，再步进，再记录
func record(t *testing.T, ticks int, tamper func(*Record)) *bytes.Buffer {
	t.Helper()
	cfg := testConfig()

	var buf bytes.Buffer
	w := NewWriter(&buf)

	spawn := core.BodyState{Position: core.Vec2{3, -4}}
	body := physics.NewBody(cfg.Body, spawn)
	world := physics.NewWorld()
	world.Add(body)
	require.NoError(t, w.Write(Record{Kind: RecordSpawn, ActorID: 1, State: spawn}))

	for i := 1; i <= ticks; i++ {
		in := core.InputSample{Horizontal: 1, Vertical: float64(i%3) - 1, Tick: tick.Number(i)}
		if i%4 == 0 {
			in.Flags = core.ActionSprint
		}
		applied := i%5 != 0
		if applied {
			core.Simulate(body, in, cfg.Movement, step)
		}
		world.Step(step)

		rec := Record{Kind: RecordTick, Tick: tick.Number(i), ActorID: 1, Applied: applied, Input: in, State: body.State()}
		if tamper != nil && i == ticks/2 {
			tamper(&rec)
		}
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Write(Record{Kind: RecordRemove, ActorID: 1}))
	require.NoError(t, w.Flush())
	assert.Equal(t, uint64(ticks+2), w.Count())
	return &buf
}

func TestReplay_Deterministic(t *testing.T) {
	buf := record(t, 60, nil)

	report, err := Replay(buf, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 62, report.Records)
	assert.Equal(t, 1, report.Actors)
	assert.Equal(t, 60, report.Ticks)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	buf := record(t, 60, func(rec *Record) {
		rec.State.Position[0] += 1e-9
	})

	_, err := Replay(buf, testConfig())
	var div *DivergenceError
	require.True(t, errors.As(err, &div))
	assert.Equal(t, tick.Number(30), div.Tick)
	assert.Equal(t, uint32(1), div.ActorID)
}

func TestReplay_TickWithoutSpawn(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Record{Kind: RecordTick, Tick: 1, ActorID: 9}))
	require.NoError(t, w.Flush())

	_, err := Replay(&buf, testConfig())
	assert.Error(t, err)
}

func TestReader_EOF(t *testing.T) {
	_, err := NewReader(&bytes.Buffer{}).Next()
	assert.ErrorIs(t, err, io.EOF)
}
