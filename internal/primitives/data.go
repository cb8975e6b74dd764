package primitives

import (
	"math"

	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

// maxListLength caps list growth.
const maxListLength = 200000

// list index results that are not positions.
const (
	indexInvalid = 0
	indexAll     = -1
)

type data struct {
	rt *engine.Runtime
}

func (d *data) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"data_variable":          d.getVariable,
		"data_setvariableto":     d.setVariableTo,
		"data_changevariableby":  d.changeVariableBy,
		"data_showvariable":      d.noop,
		"data_hidevariable":      d.noop,
		"data_listcontents":      d.listContents,
		"data_addtolist":         d.addToList,
		"data_deleteoflist":      d.deleteOfList,
		"data_deletealloflist":   d.deleteAllOfList,
		"data_insertatlist":      d.insertAtList,
		"data_replaceitemoflist": d.replaceItemOfList,
		"data_itemoflist":        d.getItemOfList,
		"data_itemnumoflist":     d.getItemNumOfList,
		"data_lengthoflist":      d.lengthOfList,
		"data_listcontainsitem":  d.listContainsItem,
		"data_showlist":          d.noop,
		"data_hidelist":          d.noop,
	}
}

func (d *data) hats() map[string]engine.HatInfo { return noHats() }

func (d *data) noop(engine.Args, *engine.BlockUtility) any { return nil }

func variable(args engine.Args, util *engine.BlockUtility) *engine.Variable {
	ref, _ := args["VARIABLE"].(engine.VarRef)
	return util.Target().LookupOrCreateVariable(ref, engine.VarScalar)
}

func list(args engine.Args, util *engine.BlockUtility) *engine.Variable {
	ref, _ := args["LIST"].(engine.VarRef)
	v := util.Target().LookupOrCreateVariable(ref, engine.VarList)
	if _, ok := v.Value.([]any); !ok {
		v.Value = []any{}
	}
	return v
}

func items(v *engine.Variable) []any { return v.Value.([]any) }

func (d *data) getVariable(args engine.Args, util *engine.BlockUtility) any {
	return variable(args, util).Value
}

func (d *data) setVariableTo(args engine.Args, util *engine.BlockUtility) any {
	variable(args, util).Value = args["VALUE"]
	return nil
}

func (d *data) changeVariableBy(args engine.Args, util *engine.BlockUtility) any {
	v := variable(args, util)
	v.Value = cast.ToNumber(v.Value) + cast.ToNumber(args["VALUE"])
	return nil
}

func (d *data) listContents(args engine.Args, util *engine.BlockUtility) any {
	return cast.ToString(items(list(args, util)))
}

func (d *data) addToList(args engine.Args, util *engine.BlockUtility) any {
	l := list(args, util)
	if len(items(l)) < maxListLength {
		l.Value = append(items(l), args["ITEM"])
	}
	return nil
}

// toListIndex maps an INDEX argument to a 1-based position, indexAll or
// indexInvalid. "last", "random" and "any" pick positions; "all" is only
// accepted when acceptAll is set.
func (d *data) toListIndex(index any, length int, acceptAll bool) int {
	if s, ok := index.(string); ok && !cast.IsNumeric(s) {
		switch s {
		case "all":
			if acceptAll {
				return indexAll
			}
			return indexInvalid
		case "last":
			if length > 0 {
				return length
			}
			return indexInvalid
		case "random", "any":
			if length > 0 {
				return 1 + d.rt.Rand.Intn(length)
			}
			return indexInvalid
		}
	}
	n := math.Floor(cast.ToNumber(index))
	if n < 1 || n > float64(length) {
		return indexInvalid
	}
	return int(n)
}

func (d *data) deleteOfList(args engine.Args, util *engine.BlockUtility) any {
	l := list(args, util)
	values := items(l)
	index := d.toListIndex(args["INDEX"], len(values), true)
	switch index {
	case indexInvalid:
	case indexAll:
		l.Value = []any{}
	default:
		l.Value = append(values[:index-1:index-1], values[index:]...)
	}
	return nil
}

func (d *data) deleteAllOfList(args engine.Args, util *engine.BlockUtility) any {
	list(args, util).Value = []any{}
	return nil
}

func (d *data) insertAtList(args engine.Args, util *engine.BlockUtility) any {
	l := list(args, util)
	values := items(l)
	index := d.toListIndex(args["INDEX"], len(values)+1, false)
	if index == indexInvalid || len(values) >= maxListLength {
		return nil
	}
	out := make([]any, 0, len(values)+1)
	out = append(out, values[:index-1]...)
	out = append(out, args["ITEM"])
	l.Value = append(out, values[index-1:]...)
	return nil
}

func (d *data) replaceItemOfList(args engine.Args, util *engine.BlockUtility) any {
	values := items(list(args, util))
	index := d.toListIndex(args["INDEX"], len(values), false)
	if index != indexInvalid {
		values[index-1] = args["ITEM"]
	}
	return nil
}

func (d *data) getItemOfList(args engine.Args, util *engine.BlockUtility) any {
	values := items(list(args, util))
	index := d.toListIndex(args["INDEX"], len(values), false)
	if index == indexInvalid {
		return ""
	}
	return values[index-1]
}

func (d *data) getItemNumOfList(args engine.Args, util *engine.BlockUtility) any {
	for i, item := range items(list(args, util)) {
		if cast.Compare(item, args["ITEM"]) == 0 {
			return float64(i + 1)
		}
	}
	return 0.0
}

func (d *data) lengthOfList(args engine.Args, util *engine.BlockUtility) any {
	return float64(len(items(list(args, util))))
}

func (d *data) listContainsItem(args engine.Args, util *engine.BlockUtility) any {
	for _, item := range items(list(args, util)) {
		if cast.Compare(item, args["ITEM"]) == 0 {
			return true
		}
	}
	return false
}
