package primitives

import (
	"blockvm/internal/blocks"
	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

type procedures struct{}

func (p *procedures) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"procedures_definition":           p.definition,
		"procedures_call":                 p.call,
		"argument_reporter_string_number": p.argumentReporterStringNumber,
		"argument_reporter_boolean":       p.argumentReporterBoolean,
	}
}

func (p *procedures) hats() map[string]engine.HatInfo { return noHats() }

func (p *procedures) definition(engine.Args, *engine.BlockUtility) any { return nil }

// call binds the arguments on the caller's frame and enters the definition.
// A frame calls at most once; the flag survives yields of recursive calls.
func (p *procedures) call(args engine.Args, util *engine.BlockUtility) any {
	frame := util.StackFrame()
	if _, done := frame.Value("executed"); done {
		return nil
	}
	m, _ := args[engine.ArgMutation].(*blocks.Mutation)
	if m == nil {
		return nil
	}
	names, ids, defaults, ok := util.ProcedureParams(m.ProcCode)
	if !ok {
		return nil
	}
	util.InitParams()
	for i, id := range ids {
		if i >= len(names) {
			break
		}
		if v, ok := args[id]; ok {
			util.PushParam(names[i], v)
		} else if i < len(defaults) {
			util.PushParam(names[i], defaults[i])
		} else {
			util.PushParam(names[i], "")
		}
	}
	frame.SetValue("executed", true)
	util.StartProcedure(m.ProcCode)
	return nil
}

func (p *procedures) argumentReporterStringNumber(args engine.Args, util *engine.BlockUtility) any {
	v, ok := util.GetParam(cast.ToString(args["VALUE"]))
	if !ok {
		return 0.0
	}
	return v
}

func (p *procedures) argumentReporterBoolean(args engine.Args, util *engine.BlockUtility) any {
	v, ok := util.GetParam(cast.ToString(args["VALUE"]))
	if !ok {
		return false
	}
	return v
}
