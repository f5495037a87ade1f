// Package jobs records processing runs in SQLite so past and in-flight jobs
// can be listed and inspected from the CLI.
//
// Every job is keyed by a UUID and tracks its lifecycle status, the pipeline
// phase it last reached, progress, the expected and produced outputs and the
// failure message when it did not complete. The store is history, not a work
// queue: the pipeline owns execution and reports into it.
//
// Schema changes bump schemaVersion; users clear the database with
// `klyppr jobs clear --all` to adopt the new schema.
package jobs
