package bt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type trace struct {
	visited []string
}

func action(name string, status Status) Node[*trace] {
	return &Action[*trace]{Do: func(bb *trace) Status {
		bb.visited = append(bb.visited, name)
		return status
	}}
}

func TestSelector_StopsAtFirstSuccess(t *testing.T) {
	bb := &trace{}
	root := &Selector[*trace]{Children: []Node[*trace]{
		action("a", StatusFailure),
		action("b", StatusSuccess),
		action("c", StatusSuccess),
	}}

	assert.Equal(t, StatusSuccess, root.Tick(bb))
	assert.Equal(t, []string{"a", "b"}, bb.visited)
}

func TestSequence_StopsAtFirstFailure(t *testing.T) {
	bb := &trace{}
	root := &Sequence[*trace]{Children: []Node[*trace]{
		action("a", StatusSuccess),
		action("b", StatusFailure),
		action("c", StatusSuccess),
	}}

	assert.Equal(t, StatusFailure, root.Tick(bb))
	assert.Equal(t, []string{"a", "b"}, bb.visited)
}

func TestRunningPropagates(t *testing.T) {
	bb := &trace{}
	seq := &Sequence[*trace]{Children: []Node[*trace]{action("a", StatusRunning), action("b", StatusSuccess)}}
	sel := &Selector[*trace]{Children: []Node[*trace]{action("c", StatusRunning), action("d", StatusSuccess)}}

	assert.Equal(t, StatusRunning, seq.Tick(bb))
	assert.Equal(t, StatusRunning, sel.Tick(bb))
	assert.Equal(t, []string{"a", "c"}, bb.visited)
}

func TestConditionAndNilFuncs(t *testing.T) {
	yes := &Condition[*trace]{Check: func(*trace) bool { return true }}
	no := &Condition[*trace]{Check: func(*trace) bool { return false }}

	assert.Equal(t, StatusSuccess, yes.Tick(&trace{}))
	assert.Equal(t, StatusFailure, no.Tick(&trace{}))
	assert.Equal(t, StatusFailure, (&Condition[*trace]{}).Tick(&trace{}))
	assert.Equal(t, StatusFailure, (&Action[*trace]{}).Tick(&trace{}))
	assert.Equal(t, StatusSuccess, Succeed[*trace]{}.Tick(&trace{}))
}
