package primitives

import (
	"math"
	"strconv"
	"strings"

	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

type operators struct {
	rt *engine.Runtime
}

func (o *operators) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"operator_add":       o.add,
		"operator_subtract":  o.subtract,
		"operator_multiply":  o.multiply,
		"operator_divide":    o.divide,
		"operator_lt":        o.lt,
		"operator_equals":    o.equals,
		"operator_gt":        o.gt,
		"operator_and":       o.and,
		"operator_or":        o.or,
		"operator_not":       o.not,
		"operator_random":    o.random,
		"operator_join":      o.join,
		"operator_letter_of": o.letterOf,
		"operator_length":    o.length,
		"operator_contains":  o.contains,
		"operator_mod":       o.mod,
		"operator_round":     o.round,
		"operator_mathop":    o.mathop,
	}
}

func (o *operators) hats() map[string]engine.HatInfo { return noHats() }

func num1(args engine.Args) float64 { return cast.ToNumber(args["NUM1"]) }
func num2(args engine.Args) float64 { return cast.ToNumber(args["NUM2"]) }

func (o *operators) add(args engine.Args, _ *engine.BlockUtility) any {
	return num1(args) + num2(args)
}

func (o *operators) subtract(args engine.Args, _ *engine.BlockUtility) any {
	return num1(args) - num2(args)
}

func (o *operators) multiply(args engine.Args, _ *engine.BlockUtility) any {
	return num1(args) * num2(args)
}

func (o *operators) divide(args engine.Args, _ *engine.BlockUtility) any {
	return num1(args) / num2(args)
}

func (o *operators) lt(args engine.Args, _ *engine.BlockUtility) any {
	return cast.Compare(args["OPERAND1"], args["OPERAND2"]) < 0
}

func (o *operators) equals(args engine.Args, _ *engine.BlockUtility) any {
	return cast.Compare(args["OPERAND1"], args["OPERAND2"]) == 0
}

func (o *operators) gt(args engine.Args, _ *engine.BlockUtility) any {
	return cast.Compare(args["OPERAND1"], args["OPERAND2"]) > 0
}

func (o *operators) and(args engine.Args, _ *engine.BlockUtility) any {
	return cast.ToBoolean(args["OPERAND1"]) && cast.ToBoolean(args["OPERAND2"])
}

func (o *operators) or(args engine.Args, _ *engine.BlockUtility) any {
	return cast.ToBoolean(args["OPERAND1"]) || cast.ToBoolean(args["OPERAND2"])
}

func (o *operators) not(args engine.Args, _ *engine.BlockUtility) any {
	return !cast.ToBoolean(args["OPERAND"])
}

// random picks an integer when both bounds are integers and a float
// otherwise. Bounds may come in either order.
func (o *operators) random(args engine.Args, _ *engine.BlockUtility) any {
	from, to := cast.ToNumber(args["FROM"]), cast.ToNumber(args["TO"])
	low, high := math.Min(from, to), math.Max(from, to)
	if low == high {
		return low
	}
	if cast.IsInt(args["FROM"]) && cast.IsInt(args["TO"]) {
		return low + math.Floor(o.rt.Rand.Float64()*(high-low+1))
	}
	return o.rt.Rand.Float64()*(high-low) + low
}

func (o *operators) join(args engine.Args, _ *engine.BlockUtility) any {
	return cast.ToString(args["STRING1"]) + cast.ToString(args["STRING2"])
}

func (o *operators) letterOf(args engine.Args, _ *engine.BlockUtility) any {
	index := int(cast.ToNumber(args["LETTER"])) - 1
	s := []rune(cast.ToString(args["STRING"]))
	if index < 0 || index >= len(s) {
		return ""
	}
	return string(s[index])
}

func (o *operators) length(args engine.Args, _ *engine.BlockUtility) any {
	return float64(len([]rune(cast.ToString(args["STRING"]))))
}

func (o *operators) contains(args engine.Args, _ *engine.BlockUtility) any {
	haystack := strings.ToLower(cast.ToString(args["STRING1"]))
	return strings.Contains(haystack, strings.ToLower(cast.ToString(args["STRING2"])))
}

// mod takes the sign of the divisor.
func (o *operators) mod(args engine.Args, _ *engine.BlockUtility) any {
	n, m := num1(args), num2(args)
	result := math.Mod(n, m)
	if result/m < 0 {
		result += m
	}
	return result
}

func (o *operators) round(args engine.Args, _ *engine.BlockUtility) any {
	return jsRound(cast.ToNumber(args["NUM"]))
}

// jsRound rounds half up, so -2.5 becomes -2.
func jsRound(n float64) float64 { return math.Floor(n + 0.5) }

// roundTo10 trims float noise from trigonometric results.
func roundTo10(n float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(n, 'f', 10, 64), 64)
	if err != nil {
		return n
	}
	return v
}

func (o *operators) mathop(args engine.Args, _ *engine.BlockUtility) any {
	n := cast.ToNumber(args["NUM"])
	switch strings.ToLower(cast.ToString(args["OPERATOR"])) {
	case "abs":
		return math.Abs(n)
	case "floor":
		return math.Floor(n)
	case "ceiling":
		return math.Ceil(n)
	case "sqrt":
		return math.Sqrt(n)
	case "sin":
		return roundTo10(math.Sin(math.Pi * n / 180))
	case "cos":
		return roundTo10(math.Cos(math.Pi * n / 180))
	case "tan":
		return tan(n)
	case "asin":
		return math.Asin(n) * 180 / math.Pi
	case "acos":
		return math.Acos(n) * 180 / math.Pi
	case "atan":
		return math.Atan(n) * 180 / math.Pi
	case "ln":
		return math.Log(n)
	case "log":
		return math.Log10(n)
	case "e ^":
		return math.Exp(n)
	case "10 ^":
		return math.Pow(10, n)
	}
	return 0.0
}

func tan(deg float64) float64 {
	deg = math.Mod(deg, 360)
	switch deg {
	case -270, 90:
		return math.Inf(1)
	case -90, 270:
		return math.Inf(-1)
	}
	return roundTo10(math.Tan(math.Pi * deg / 180))
}
