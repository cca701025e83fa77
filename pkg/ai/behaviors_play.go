package ai

import "doggos/pkg/ai/bt"

func condSprinting(board *Blackboard) bool {
	return board.Now.Before(board.SprintUntil)
}

func condSprintReady(board *Blackboard) bool {
	return !board.Now.Before(board.SprintReady) && board.RNG.Float64() < board.Config.SprintChance
}

// actStartSprint 开始一段冲刺，结束后进入冷却
func actStartSprint(board *Blackboard) bt.Status {
	board.SprintUntil = board.Now.Add(board.Config.SprintDuration)
	board.SprintReady = board.SprintUntil.Add(board.Config.SprintCooldown)
	board.Next.Sprint = true
	return bt.StatusSuccess
}

func actHoldSprint(board *Blackboard) bt.Status {
	board.Next.Sprint = true
	return bt.StatusSuccess
}

func condBarkReady(board *Blackboard) bool {
	return !board.Now.Before(board.BarkReady) && board.RNG.Float64() < board.Config.BarkChance
}

func actBark(board *Blackboard) bt.Status {
	board.BarkReady = board.Now.Add(board.Config.BarkCooldown)
	board.Next.Bark = true
	return bt.StatusSuccess
}
