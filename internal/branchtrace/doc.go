// Package branchtrace records which blocks a program run executed and how far
// each predicate was from flipping its outcome.
//
// A Tracer is attached to an engine.Runtime as its BlockTracer. Every block
// handed over by the executor is covered; blocks that produced fitness
// relevant information are additionally recorded as a Trace holding the best
// (pointwise minimum) distance pair seen during the run together with a
// snapshot of every target's observable state.
//
// Traces are keyed by "<blockId>-<spriteName>" so code shared by clones, or
// code living on the stage but run by sprites, is tracked once per owner.
package branchtrace
