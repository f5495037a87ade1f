// Package ffmpeg runs ffmpeg invocations and turns their stderr into a
// stream of lifecycle events.
//
// Key types:
//   - Engine: runs one invocation and reports Start, Line, Progress and End
//     events to a handler
//   - Runner: the interface pipeline phases depend on, satisfied by Engine
//   - Executor: the subprocess seam, replaceable in tests
//   - RunError: a failed invocation together with the last diagnostic lines
//
// Progress is derived from the "Duration:" header and "time=" status lines;
// a caller that knows the expected duration can seed it with WithDuration.
package ffmpeg
