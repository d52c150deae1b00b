// Package runloop drives frame composition.
//
// A Loop polls one surface event per iteration and tracks visibility.
// While the surface is visible it advances the opacity animation, refreshes
// the renderer's planes and overlay, draws, presents and then sleeps out
// the rest of the frame interval. Every ReportEvery presented frames it
// reports the framerate.
//
// Time is read through a Clock so pacing and reporting can be tested
// without sleeping.
package runloop
