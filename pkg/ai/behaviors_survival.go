package ai

import (
	"doggos/pkg/ai/bt"
	"doggos/pkg/core"
)

// condTooFar 离原点超过 HomeRadius
func condTooFar(board *Blackboard) bool {
	if board.Config.HomeRadius <= 0 {
		return false
	}
	pos, ok := board.Position.Get()
	if !ok {
		return false
	}
	return pos.Len() > board.Config.HomeRadius
}

// actReturnHome 朝原点走，并清空游荡方向让回到范围内后重新选择
func actReturnHome(board *Blackboard) bt.Status {
	pos, ok := board.Position.Get()
	if !ok {
		return bt.StatusFailure
	}

	board.Heading = core.Normalized(pos.Mul(-1))
	board.HeadingUntil = board.Now
	board.Next.Axis = board.Heading
	return bt.StatusSuccess
}
