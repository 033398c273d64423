// Package compiler turns inventory and context into stored device
// configurations.
//
// # Pipeline
//
// Each device passes through the same stages, in order: resolve the
// applicable context blobs into a typed record, validate the record
// against its role's required fields, gate it through the policy
// engine, render the vendor syntax, and write the artifact. The stages
// are provided by the resolver, fabric, policy, render, and artifact
// packages; this package only sequences them and classifies their
// failures.
//
// # Batch semantics
//
// A run fans its devices over a bounded worker pool. Devices are
// independent: a failure is recorded on the device that caused it and
// the rest of the batch keeps compiling. Results always come back in
// the input order of the selection, so output and ledger rows are
// stable across runs regardless of scheduling. Cancelling the context
// stops devices that have not started; a device already in flight
// finishes or fails whole, never leaving a partial artifact behind.
//
// # Check mode
//
// Options.Check runs the full pipeline, including the diff against the
// stored artifact, but suppresses the write. The would-create and
// would-update statuses mirror what a build would have done, which lets
// CI gate on pending changes without touching the artifact directory.
//
// # Selection
//
// Runs are scoped by explicit hostnames, by a tag expression such as
//
//	role=leaf and site=dc1 and not group=maintenance
//
// or by both, in which case the expression filters the named devices.
// See Selector for the grammar.
//
// # Recording
//
// Every run writes a row to the run ledger, one row per device result,
// and an artifact index entry per written artifact. The ledger is the
// basis for the runs and drift commands; compile-time telemetry flows
// separately through the telemetry package when the context carries an
// instance.
package compiler
