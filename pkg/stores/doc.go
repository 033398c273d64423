// Package stores provides the compile ledger for loom.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for runs, per-device results, the artifact
// index used by drift detection, and append-only events.
package stores
