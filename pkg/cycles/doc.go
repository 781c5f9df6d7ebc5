// Package cycles extracts heating-duration training examples from sensor
// history.
//
// A heating cycle starts when the heating is on and the room is more than
// 0.2 °C below its target, and ends when the heating stops or the room
// reaches the target. Two detectors exist:
//
//   - the boolean detector reads an on/off heating signal and ends a cycle on
//     the first off record;
//   - the counter detector reads a cumulative on-time sensor and only ends a
//     cycle after the sensor has been idle for a buffer (15 minutes by
//     default), so radiators that pulse on and off produce one cycle.
//
// Closed cycles are validated (known temperatures, 0 < duration < 300
// minutes) and optionally split into fixed-length sub-cycles by SplitCycle.
// Cycles still open when the history ends never produce examples.
package cycles
