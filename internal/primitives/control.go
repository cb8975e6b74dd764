package primitives

import (
	"math"

	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

// maxLoop caps repeat counts.
const maxLoop = math.MaxInt32

type control struct {
	rt      *engine.Runtime
	counter int
}

func (c *control) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"control_repeat":            c.repeat,
		"control_repeat_until":      c.repeatUntil,
		"control_while":             c.repeatWhile,
		"control_for_each":          c.forEach,
		"control_forever":           c.forever,
		"control_wait":              c.wait,
		"control_wait_until":        c.waitUntil,
		"control_if":                c.ifThen,
		"control_if_else":           c.ifElse,
		"control_stop":              c.stop,
		"control_create_clone_of":   c.createClone,
		"control_delete_this_clone": c.deleteClone,
		"control_get_counter":       c.getCounter,
		"control_incr_counter":      c.incrCounter,
		"control_clear_counter":     c.clearCounter,
		"control_all_at_once":       c.allAtOnce,
	}
}

func (c *control) hats() map[string]engine.HatInfo { return noHats() }

func (c *control) repeat(args engine.Args, util *engine.BlockUtility) any {
	frame := util.StackFrame()
	if !frame.HasLoopCounter {
		frame.LoopCounter = clampInt(cast.ToNumber(args["TIMES"]), maxLoop)
		frame.HasLoopCounter = true
	}
	frame.LoopCounter--
	if frame.LoopCounter >= 0 {
		util.StartBranch(1, true)
	}
	return nil
}

func (c *control) repeatUntil(args engine.Args, util *engine.BlockUtility) any {
	if !cast.ToBoolean(args["CONDITION"]) {
		util.StartBranch(1, true)
	}
	return nil
}

func (c *control) repeatWhile(args engine.Args, util *engine.BlockUtility) any {
	if cast.ToBoolean(args["CONDITION"]) {
		util.StartBranch(1, true)
	}
	return nil
}

func (c *control) forEach(args engine.Args, util *engine.BlockUtility) any {
	ref, _ := args["VARIABLE"].(engine.VarRef)
	v := util.Target().LookupOrCreateVariable(ref, engine.VarScalar)
	frame := util.StackFrame()
	index := 0
	if n, ok := frame.Value("index"); ok {
		index = n.(int)
	}
	if float64(index) < cast.ToNumber(args["VALUE"]) {
		index++
		frame.SetValue("index", index)
		v.Value = float64(index)
		util.StartBranch(1, true)
	}
	return nil
}

func (c *control) forever(_ engine.Args, util *engine.BlockUtility) any {
	util.StartBranch(1, true)
	return nil
}

func (c *control) wait(args engine.Args, util *engine.BlockUtility) any {
	timed(util, 1000*cast.ToNumber(args["DURATION"]), nil, nil, nil)
	return nil
}

func (c *control) waitUntil(args engine.Args, util *engine.BlockUtility) any {
	if !cast.ToBoolean(args["CONDITION"]) {
		util.Yield()
	}
	return nil
}

func (c *control) ifThen(args engine.Args, util *engine.BlockUtility) any {
	if cast.ToBoolean(args["CONDITION"]) {
		util.StartBranch(1, false)
	}
	return nil
}

func (c *control) ifElse(args engine.Args, util *engine.BlockUtility) any {
	if cast.ToBoolean(args["CONDITION"]) {
		util.StartBranch(1, false)
	} else {
		util.StartBranch(2, false)
	}
	return nil
}

func (c *control) stop(args engine.Args, util *engine.BlockUtility) any {
	switch cast.ToString(args["STOP_OPTION"]) {
	case "all":
		util.StopAll()
	case "this script":
		util.StopThisScript()
	case "other scripts in sprite", "other scripts in stage":
		util.StopOtherTargetThreads()
	}
	return nil
}

func (c *control) createClone(args engine.Args, util *engine.BlockUtility) any {
	option := cast.ToString(args["CLONE_OPTION"])
	source := util.Target()
	if option != "_myself_" {
		source = c.rt.SpriteByName(option)
	}
	if source == nil {
		return nil
	}
	clone := source.MakeClone()
	if clone == nil {
		return nil
	}
	c.rt.AddClone(clone)
	util.StartHats("control_start_as_clone", nil, clone)
	return nil
}

func (c *control) deleteClone(_ engine.Args, util *engine.BlockUtility) any {
	target := util.Target()
	if target.IsOriginal {
		return nil
	}
	c.rt.DisposeTarget(target)
	return nil
}

func (c *control) getCounter(engine.Args, *engine.BlockUtility) any { return float64(c.counter) }

func (c *control) incrCounter(engine.Args, *engine.BlockUtility) any {
	c.counter++
	return nil
}

func (c *control) clearCounter(engine.Args, *engine.BlockUtility) any {
	c.counter = 0
	return nil
}

func (c *control) allAtOnce(_ engine.Args, util *engine.BlockUtility) any {
	util.StartBranch(1, false)
	return nil
}
