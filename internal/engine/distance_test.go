package engine

import (
	"math"
	"testing"
)

func TestCompareDistance(t *testing.T) {
	tests := []struct {
		op   string
		a, b any
		want Distance
	}{
		{"operator_gt", 5, 3, Distance{0, 2}},
		{"operator_gt", 3, 5, Distance{3, 0}},
		{"operator_gt", 4, 4, Distance{1, 0}},
		{"operator_lt", 5, 3, Distance{3, 0}},
		{"operator_lt", 3, 5, Distance{0, 2}},
		{"operator_lt", "2", "10", Distance{0, 8}},
		{"operator_equals", 2, 2, Distance{0, 1}},
		{"operator_equals", 2, 7, Distance{5, 0}},
		{"operator_equals", "abc", "ABC", Distance{0, 1}},
		{"operator_equals", "abc", "abd", Distance{1, 0}},
		{"operator_gt", "b", "a", Distance{0, 1}},
		{"operator_lt", "b", "a", Distance{1, 0}},
	}
	for _, tt := range tests {
		if got := compareDistance(tt.op, tt.a, tt.b); got != tt.want {
			t.Errorf("%s(%v, %v) = %v, want %v", tt.op, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareDistancePolarity(t *testing.T) {
	for a := -3.0; a <= 3; a++ {
		for b := -3.0; b <= 3; b++ {
			gt := compareDistance("operator_gt", a, b)
			if (a > b) != (gt.True == 0) {
				t.Fatalf("gt(%v,%v) true distance %v disagrees with outcome", a, b, gt.True)
			}
			if a > b && gt.False <= 0 {
				t.Fatalf("gt(%v,%v) taken but false distance is %v", a, b, gt.False)
			}
		}
	}
}

func logical(opcode string, children ...Distance) Distance {
	return logicalDistance(&BlockCached{Opcode: opcode, args: Args{}, distances: children})
}

func TestLogicalDistanceLaws(t *testing.T) {
	a, b := Distance{3, 1}, Distance{1, 2}
	if got := logical("operator_and", a, b); got != (Distance{4, 1}) {
		t.Fatalf("and: %v", got)
	}
	if got := logical("operator_or", a, b); got != (Distance{1, 3}) {
		t.Fatalf("or: %v", got)
	}
	if got := logical("operator_not", a); got != (Distance{1, 3}) {
		t.Fatalf("not: %v", got)
	}
	// a missing operand counts as [1, 0]
	if got := logical("operator_and"); got != (Distance{2, 0}) {
		t.Fatalf("and without children: %v", got)
	}
	// operands that were never cached still produce a distance
	bare := &BlockCached{Opcode: "operator_not", distances: []Distance{a}}
	if got := logicalDistance(bare); got != (Distance{1, 3}) {
		t.Fatalf("not without args: %v", got)
	}
}

func TestLoopDistances(t *testing.T) {
	f := newFixture(t)
	c := newExecContext()
	th := f.thread("loop")
	util := &BlockUtility{sequencer: f.seq, thread: th}

	until := &BlockCached{Opcode: "control_repeat_until", args: Args{}, distances: []Distance{{2, 0}}}
	if d, _ := c.branchDistance(until, nil, util); d != (Distance{0, 2}) {
		t.Fatalf("repeat_until must swap its condition: %v", d)
	}

	repeat := &BlockCached{Opcode: "control_repeat", args: Args{"TIMES": "3.6"}}
	if d, _ := c.branchDistance(repeat, nil, util); d != (Distance{0, 4}) {
		t.Fatalf("repeat from TIMES: %v", d)
	}
	util.StackFrame().LoopCounter = 2
	util.StackFrame().HasLoopCounter = true
	if d, _ := c.branchDistance(repeat, nil, util); d != (Distance{0, 2}) {
		t.Fatalf("repeat from loop counter: %v", d)
	}
	repeat.args["TIMES"] = 0
	util.StackFrame().LoopCounter = 0
	if d, _ := c.branchDistance(repeat, nil, util); d != distNotTaken {
		t.Fatalf("repeat with nothing left: %v", d)
	}

	forever := &BlockCached{Opcode: "control_forever", args: Args{}}
	if d, _ := c.branchDistance(forever, nil, util); d != distTaken {
		t.Fatalf("forever: %v", d)
	}
}

func TestUnknownOpcodeKeepsChildDistance(t *testing.T) {
	f := newFixture(t)
	c := newExecContext()
	util := &BlockUtility{sequencer: f.seq, thread: f.thread("x")}

	op := &BlockCached{Opcode: "control_if", args: Args{}, distances: []Distance{{7, 0}}}
	if d, ok := c.branchDistance(op, nil, util); !ok || d != (Distance{7, 0}) {
		t.Fatalf("got %v %v", d, ok)
	}
	op.distances = nil
	if _, ok := c.branchDistance(op, nil, util); ok {
		t.Fatalf("no distance expected without children")
	}
}

func TestTimeDependentWithoutTimer(t *testing.T) {
	f := newFixture(t)
	c := newExecContext()
	util := &BlockUtility{sequencer: f.seq, thread: f.thread("w")}
	op := &BlockCached{Opcode: "control_wait", args: Args{}, timeDependent: true}
	if d, _ := c.branchDistance(op, nil, util); d != distNotTaken {
		t.Fatalf("no timer: %v", d)
	}
	util.StartStackTimer(1000)
	f.clock.Advance(400)
	d, _ := c.branchDistance(op, nil, util)
	if math.Abs(d.True-0.6) > 1e-9 || d.False != 0 {
		t.Fatalf("running timer: %v", d)
	}
}
