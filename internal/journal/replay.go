package journal

import (
	"errors"
	"fmt"
	"io"

	"doggos/pkg/core"
	"doggos/pkg/physics"
	"doggos/pkg/tick"
)

// DivergenceError 重放结果与记录不一致
type DivergenceError struct {
	Tick    tick.Number
	ActorID uint32
	Want    core.BodyState
	Got     core.BodyState
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("角色 %d 在 tick %d 分叉: 记录 %+v, 重放 %+v", e.ActorID, e.Tick, e.Want, e.Got)
}

// ReplayConfig 重放所需参数，必须与权威端一致
type ReplayConfig struct {
	Movement core.MovementParams
	Body     physics.BodyConfig
	Step     float64
}

// Report 重放统计
type Report struct {
	Records int
	Actors  int
	Ticks   int
}

// Replay 按记录逐 tick 重新模拟每个角色，发现第一处不逐位一致的状态时返回 *DivergenceError
// 角色之间没有相互作用，每个角色放在各自的物理世界中重放
func Replay(r io.Reader, cfg ReplayConfig) (Report, error) {
	var report Report
	reader := NewReader(r)
	worlds := make(map[uint32]*physics.World)
	bodies := make(map[uint32]*physics.Body)

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return report, nil
		}
		if err != nil {
			return report, err
		}
		report.Records++

		switch rec.Kind {
		case RecordSpawn:
			body := physics.NewBody(cfg.Body, rec.State)
			world := physics.NewWorld()
			world.Add(body)
			bodies[rec.ActorID] = body
			worlds[rec.ActorID] = world
			report.Actors++

		case RecordRemove:
			delete(bodies, rec.ActorID)
			delete(worlds, rec.ActorID)

		case RecordTick:
			body, ok := bodies[rec.ActorID]
			if !ok {
				return report, fmt.Errorf("tick %d: 角色 %d 没有出生记录", rec.Tick, rec.ActorID)
			}
			if rec.Applied {
				core.Simulate(body, rec.Input, cfg.Movement, cfg.Step)
			}
			worlds[rec.ActorID].Step(cfg.Step)
			report.Ticks++

			if got := body.State(); got != rec.State {
				return report, &DivergenceError{Tick: rec.Tick, ActorID: rec.ActorID, Want: rec.State, Got: got}
			}

		default:
			return report, fmt.Errorf("未知记录类型 %d", rec.Kind)
		}
	}
}
