// Package fuzztests houses Go fuzz harnesses for the project loader and the
// runtime: arbitrary bytes go through project decoding and validation, and
// every project that validates is instantiated and run for a few ticks. The
// goal is to catch panics and hangs on hostile input.
package fuzztests
