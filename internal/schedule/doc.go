// Package schedule holds the pure scheduling math: deterministic per-day
// slot generation and calendar recurrence evaluation.
//
// Nothing in this package does I/O or reads the wall clock; given identical
// inputs the results are identical across ticks and process restarts. That
// property is what lets the daemon recompute "today's send times" on every
// tick instead of persisting them in advance.
package schedule
