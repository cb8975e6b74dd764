package primitives

import (
	"strings"

	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

type events struct {
	rt *engine.Runtime
}

func (e *events) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"event_whentouchingobject": e.touchingObject,
		"event_whengreaterthan":    e.whenGreaterThan,
		"event_broadcast":          e.broadcast,
		"event_broadcastandwait":   e.broadcastAndWait,
	}
}

func (e *events) hats() map[string]engine.HatInfo {
	return map[string]engine.HatInfo{
		"event_whenflagclicked":        {RestartExistingThreads: true},
		"event_whenkeypressed":         {},
		"event_whenthisspriteclicked":  {RestartExistingThreads: true},
		"event_whenstageclicked":       {RestartExistingThreads: true},
		"event_whentouchingobject":     {EdgeActivated: true},
		"event_whenbackdropswitchesto": {},
		"event_whengreaterthan":        {EdgeActivated: true},
		"event_whenbroadcastreceived":  {RestartExistingThreads: true},
		"control_start_as_clone":       {},
	}
}

func (e *events) touchingObject(args engine.Args, util *engine.BlockUtility) any {
	return e.rt.Sensing().TouchingObject(cast.ToString(args["TOUCHINGOBJECTMENU"]), util.Target())
}

func (e *events) whenGreaterThan(args engine.Args, _ *engine.BlockUtility) any {
	value := cast.ToNumber(args["VALUE"])
	switch strings.ToLower(cast.ToString(args["WHENGREATERTHANMENU"])) {
	case "timer":
		return e.rt.TimerSeconds() > value
	case "loudness":
		// no microphone: loudness is -1
		return -1 > value
	}
	return false
}

// broadcastName resolves the BROADCAST_OPTION reference to a message name.
func broadcastName(args engine.Args, util *engine.BlockUtility) (string, bool) {
	ref, ok := args["BROADCAST_OPTION"].(engine.VarRef)
	if !ok {
		return "", false
	}
	if msg := util.Target().LookupBroadcastMsg(ref); msg != nil {
		return msg.Name, true
	}
	if ref.Name == "" {
		return "", false
	}
	return ref.Name, true
}

func (e *events) broadcast(args engine.Args, util *engine.BlockUtility) any {
	name, ok := broadcastName(args, util)
	if !ok {
		return nil
	}
	util.StartHats("event_whenbroadcastreceived", map[string]string{"BROADCAST_OPTION": name}, nil)
	return nil
}

const startedKey = "startedThreads"

func (e *events) broadcastAndWait(args engine.Args, util *engine.BlockUtility) any {
	frame := util.StackFrame()
	started, ok := frame.Value(startedKey)
	if !ok {
		name, found := broadcastName(args, util)
		if !found {
			return nil
		}
		threads := util.StartHats("event_whenbroadcastreceived", map[string]string{"BROADCAST_OPTION": name}, nil)
		if len(threads) == 0 {
			return nil
		}
		frame.SetValue(startedKey, threads)
		started = threads
	}
	for _, th := range started.([]*engine.Thread) {
		if e.rt.IsActiveThread(th) {
			util.Yield()
			return nil
		}
	}
	return nil
}
