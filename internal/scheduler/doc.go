// Package scheduler runs the minute tick that turns campaign definitions
// into delivered notifications.
//
// Every minute it rebuilds the day's slot set from campaign data, finds the
// slots whose time falls within the lookback behind the current minute, and
// delivers each one exactly once. The send log is the only state: a slot is
// delivered iff its key is absent there, and it is logged only after the
// sender accepted the message. Missed minutes (restart, pause, clock
// suspend) are covered by the same lookback on the next tick.
package scheduler
