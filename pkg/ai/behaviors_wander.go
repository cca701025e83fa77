package ai

import (
	"math"
	"time"

	"doggos/pkg/ai/bt"
	"doggos/pkg/core"
)

// actWander 保持当前方向直到超时，然后随机换一个方向或停下
func actWander(board *Blackboard) bt.Status {
	if board.RNG == nil {
		return bt.StatusFailure
	}

	if board.Now.Before(board.HeadingUntil) {
		board.Next.Axis = board.Heading
		return bt.StatusSuccess
	}

	if board.RNG.Float64() < board.Config.IdleChance {
		board.Heading = core.Vec2{}
	} else {
		board.Heading = randomHeading(board)
	}
	board.HeadingUntil = board.Now.Add(randomDuration(board, board.Config.HeadingMin, board.Config.HeadingMax))
	board.Next.Axis = board.Heading
	return bt.StatusSuccess
}

// randomHeading 均匀随机的单位方向
func randomHeading(board *Blackboard) core.Vec2 {
	angle := board.RNG.Float64() * 2 * math.Pi
	return core.Vec2{math.Cos(angle), math.Sin(angle)}
}

func randomDuration(board *Blackboard, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(board.RNG.Int63n(int64(hi-lo)))
}
