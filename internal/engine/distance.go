package engine

import (
	"math"

	"blockvm/internal/cast"
)

// Distance is a branch distance pair. True is how far the predicate is from
// evaluating true, False how far from evaluating false; 0 means the branch was
// taken.
type Distance struct {
	True  float64 `json:"true" msgpack:"true"`
	False float64 `json:"false" msgpack:"false"`
}

// Swap exchanges the true and false components.
func (d Distance) Swap() Distance { return Distance{True: d.False, False: d.True} }

// Min returns the pointwise minimum of d and o.
func (d Distance) Min(o Distance) Distance {
	return Distance{True: math.Min(d.True, o.True), False: math.Min(d.False, o.False)}
}

// IsZero reports whether both components are zero.
func (d Distance) IsZero() bool { return d.True == 0 && d.False == 0 }

var (
	distTaken    = Distance{True: 0, False: 1}
	distNotTaken = Distance{True: 1, False: 0}
)

// child returns the i-th pair collected from children, defaulting to
// "not yet true".
func (bc *BlockCached) child(i int) Distance {
	if i < len(bc.distances) {
		return bc.distances[i]
	}
	return distNotTaken
}

// boolDistance maps a boolean outcome to its pair.
func boolDistance(v any) Distance {
	if b, ok := v.(bool); ok && b {
		return distTaken
	}
	return distNotTaken
}

// branchDistance evaluates the distance of op after its implementation
// returned value. ok is false when no distance can be computed.
func (c *execContext) branchDistance(op *BlockCached, value any, util *BlockUtility) (Distance, bool) {
	switch op.Opcode {
	case "control_forever":
		return distTaken, true

	case "control_repeat":
		times := math.Round(cast.ToNumber(op.args["TIMES"]))
		if frame := c.blockFrame(util); frame != nil && frame.Context != nil &&
			frame.Context.HasLoopCounter && frame.Context.LoopCounter != 0 {
			times = float64(frame.Context.LoopCounter)
		}
		if times > 0 {
			return Distance{True: 0, False: times}, true
		}
		return distNotTaken, true

	case "control_repeat_until":
		// the loop body runs while the condition is false
		return op.child(0).Swap(), true

	case "sensing_keypressed", "sensing_mousedown":
		return boolDistance(value), true

	case "text2speech_speakAndWait":
		remaining, ok := util.ScaledRemainingHaltingTime()
		if !ok {
			return distNotTaken, true
		}
		if remaining == 0 {
			return distTaken, true
		}
		return Distance{True: remaining, False: 0}, true

	case "sensing_touchingcolor":
		if value == true {
			return distTaken, true
		}
		return c.sensingFor(util.Runtime()).touchingColorDistance(op.args, util.Target()), true

	case "sensing_coloristouchingcolor":
		if value == true {
			return distTaken, true
		}
		return c.sensingFor(util.Runtime()).colorTouchingColorDistance(op.args, util.Target()), true

	case "sensing_touchingobject":
		if value == true {
			return distTaken, true
		}
		return c.sensingFor(util.Runtime()).touchingObjectDistance(op.args, util.Target()), true

	case "operator_and", "operator_or", "operator_not":
		return logicalDistance(op), true

	case "operator_gt", "operator_lt", "operator_equals":
		return compareDistance(op.Opcode, op.args["OPERAND1"], op.args["OPERAND2"]), true
	}

	if op.timeDependent {
		remaining, ok := util.ScaledRemainingHaltingTime()
		switch {
		case !ok:
			return distNotTaken, true
		case remaining == 0:
			return distTaken, true
		default:
			return Distance{True: remaining, False: 0}, true
		}
	}

	// keep whatever a child reported so wrappers like control_if pass it on
	if len(op.distances) > 0 {
		return op.distances[0], true
	}
	return Distance{}, false
}

// gap is 0 when d < 0 (the strict comparison holds) and d+1 otherwise, so a
// tie still counts as one step away.
func gap(d float64) float64 {
	if d < 0 {
		return 0
	}
	return d + 1
}

func logicalDistance(op *BlockCached) Distance {
	switch op.Opcode {
	case "operator_and":
		a, b := op.child(0), op.child(1)
		return Distance{True: a.True + b.True, False: math.Min(a.False, b.False)}
	case "operator_or":
		a, b := op.child(0), op.child(1)
		return Distance{True: math.Min(a.True, b.True), False: a.False + b.False}
	default:
		return op.child(0).Swap()
	}
}

// compareDistance computes comparison distances. Operands that compare as
// numbers use their difference; text operands get 0/1 flags from the same
// ordering the comparison block uses.
func compareDistance(opcode string, a, b any) Distance {
	if cast.ComparesNumerically(a, b) {
		x, y := cast.ToNumber(a), cast.ToNumber(b)
		switch opcode {
		case "operator_gt":
			return Distance{True: gap(y - x), False: math.Max(0, x-y)}
		case "operator_lt":
			return Distance{True: gap(x - y), False: math.Max(0, y-x)}
		default:
			if x == y {
				return Distance{True: 0, False: 1}
			}
			return Distance{True: math.Abs(x - y), False: 0}
		}
	}

	cmp := cast.Compare(a, b)
	var holds bool
	switch opcode {
	case "operator_gt":
		holds = cmp > 0
	case "operator_lt":
		holds = cmp < 0
	default:
		holds = cmp == 0
	}
	if holds {
		return distTaken
	}
	return distNotTaken
}
