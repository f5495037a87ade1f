// Package pipeline runs one processing job end to end.
//
// The Orchestrator walks a job through an explicit phase machine:
//
//	idle -> detecting_silence -> planning_segments -> extracting_segments
//	     -> concatenating -> mixing_music -> completed
//
// with normalizing_audio standing in for the cut phases when silence removal
// is off or finds nothing to cut, and failed reachable from every
// non-terminal phase. Transitions are checked against a fixed table.
//
// Job-scoped state (ID, temp directory, segment files, current phase) lives
// in a JobContext owned by one Run call. Callers observe progress through a
// Reporter and receive a Completion. Mixing is best effort: any error while
// preparing or mixing music degrades to a plain copy of the pre-mix file.
package pipeline
