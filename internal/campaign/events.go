package campaign

import "time"

// Stage describes a phase of a campaign.
type Stage string

const (
	// StageSetup builds the runtime of one run.
	StageSetup Stage = "setup"
	// StageRun is the tick loop of one run.
	StageRun Stage = "run"
	// StageMerge folds the run reports together.
	StageMerge Stage = "merge"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the run is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the run is executing.
	StatusWorking Status = "working"
	// StatusDone indicates the run finished.
	StatusDone Status = "done"
	// StatusError indicates the run was cancelled or failed.
	StatusError Status = "error"
)

// Event reports progress for one run, or for the whole campaign when Run is
// negative.
type Event struct {
	Run     int
	Stage   Stage
	Status  Status
	Tick    int
	Ticks   int
	Covered int
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent is called from the worker
// goroutines and must be safe for concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) { f(evt) }

func emit(sink ProgressSink, evt Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(evt)
}
