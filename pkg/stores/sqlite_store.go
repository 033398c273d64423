package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, mode, selector, status, devices_total, started_at, completed_at, error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Mode,
		run.Selector,
		run.Status,
		run.DevicesTotal,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
		run.Metadata,
		run.CreatedAt,
		run.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, mode, selector, status, devices_total,
			   (SELECT COUNT(*) FROM device_results dr WHERE dr.run_id = runs.id AND dr.status = 'failed'),
			   started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Mode,
		&run.Selector,
		&run.Status,
		&run.DevicesTotal,
		&run.DevicesFailed,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&run.Metadata,
		&run.CreatedAt,
		&run.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// UpdateRunStatus updates the status of a run
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == RunStatusCompleted || status == RunStatusFailed || status == RunStatusCancelled {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns lists runs with pagination, most recent first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, mode, selector, status, devices_total,
			   (SELECT COUNT(*) FROM device_results dr WHERE dr.run_id = runs.id AND dr.status = 'failed'),
			   started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(
			&run.ID,
			&run.Mode,
			&run.Selector,
			&run.Status,
			&run.DevicesTotal,
			&run.DevicesFailed,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
			&run.Metadata,
			&run.CreatedAt,
			&run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run by ID; its device results cascade. Events are
// kept, the audit log outlives run pruning.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	query := `DELETE FROM runs WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// CreateDeviceResult creates a new device result record
func (s *SQLiteStore) CreateDeviceResult(ctx context.Context, result *DeviceResult) error {
	query := `
		INSERT INTO device_results (
			id, run_id, seq, hostname, role, status,
			error_class, error, artifact_sha256, diff, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		result.ID,
		result.RunID,
		result.Seq,
		result.Hostname,
		result.Role,
		result.Status,
		result.ErrorClass,
		result.Error,
		result.ArtifactSHA256,
		result.Diff,
		result.DurationMS,
		result.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create device result: %w", err)
	}

	return nil
}

// GetDeviceResult retrieves one device's result within a run
func (s *SQLiteStore) GetDeviceResult(ctx context.Context, runID, hostname string) (*DeviceResult, error) {
	query := `
		SELECT id, run_id, seq, hostname, role, status,
			   error_class, error, artifact_sha256, diff, duration_ms, created_at
		FROM device_results
		WHERE run_id = ? AND hostname = ?
	`

	result := &DeviceResult{}
	err := s.db.QueryRowContext(ctx, query, runID, hostname).Scan(
		&result.ID,
		&result.RunID,
		&result.Seq,
		&result.Hostname,
		&result.Role,
		&result.Status,
		&result.ErrorClass,
		&result.Error,
		&result.ArtifactSHA256,
		&result.Diff,
		&result.DurationMS,
		&result.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device result not found: %s/%s", runID, hostname)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device result: %w", err)
	}

	return result, nil
}

// ListDeviceResultsByRun lists all device results for a run in input order
func (s *SQLiteStore) ListDeviceResultsByRun(ctx context.Context, runID string) ([]*DeviceResult, error) {
	query := `
		SELECT id, run_id, seq, hostname, role, status,
			   error_class, error, artifact_sha256, diff, duration_ms, created_at
		FROM device_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device results: %w", err)
	}
	defer rows.Close()

	results := []*DeviceResult{}
	for rows.Next() {
		result := &DeviceResult{}
		err := rows.Scan(
			&result.ID,
			&result.RunID,
			&result.Seq,
			&result.Hostname,
			&result.Role,
			&result.Status,
			&result.ErrorClass,
			&result.Error,
			&result.ArtifactSHA256,
			&result.Diff,
			&result.DurationMS,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device results: %w", err)
	}

	return results, nil
}

// UpsertArtifact inserts or updates the artifact record for a device
func (s *SQLiteStore) UpsertArtifact(ctx context.Context, artifact *Artifact) error {
	query := `
		INSERT INTO artifacts (
			hostname, role, run_id, sha256, size, rendered_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hostname) DO UPDATE SET
			role = excluded.role,
			run_id = excluded.run_id,
			sha256 = excluded.sha256,
			size = excluded.size,
			rendered_at = excluded.rendered_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		artifact.Hostname,
		artifact.Role,
		artifact.RunID,
		artifact.SHA256,
		artifact.Size,
		artifact.RenderedAt,
		artifact.CreatedAt,
		artifact.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert artifact: %w", err)
	}

	return nil
}

// GetArtifact retrieves the artifact record for a device
func (s *SQLiteStore) GetArtifact(ctx context.Context, hostname string) (*Artifact, error) {
	query := `
		SELECT hostname, role, run_id, sha256, size, rendered_at, created_at, updated_at
		FROM artifacts
		WHERE hostname = ?
	`

	artifact := &Artifact{}
	err := s.db.QueryRowContext(ctx, query, hostname).Scan(
		&artifact.Hostname,
		&artifact.Role,
		&artifact.RunID,
		&artifact.SHA256,
		&artifact.Size,
		&artifact.RenderedAt,
		&artifact.CreatedAt,
		&artifact.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact not found: %s", hostname)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	return artifact, nil
}

// ListArtifacts lists artifact records with pagination
func (s *SQLiteStore) ListArtifacts(ctx context.Context, limit, offset int) ([]*Artifact, error) {
	query := `
		SELECT hostname, role, run_id, sha256, size, rendered_at, created_at, updated_at
		FROM artifacts
		ORDER BY hostname ASC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []*Artifact{}
	for rows.Next() {
		artifact := &Artifact{}
		err := rows.Scan(
			&artifact.Hostname,
			&artifact.Role,
			&artifact.RunID,
			&artifact.SHA256,
			&artifact.Size,
			&artifact.RenderedAt,
			&artifact.CreatedAt,
			&artifact.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	return artifacts, nil
}

// DeleteArtifact deletes the artifact record for a device
func (s *SQLiteStore) DeleteArtifact(ctx context.Context, hostname string) error {
	query := `DELETE FROM artifacts WHERE hostname = ?`

	result, err := s.db.ExecContext(ctx, query, hostname)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("artifact not found: %s", hostname)
	}

	return nil
}

// AppendEvent appends a new event to the log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (run_id, hostname, type, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.RunID,
		event.Hostname,
		event.Type,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvents retrieves events with optional filters and pagination
func (s *SQLiteStore) GetEvents(ctx context.Context, runID *string, hostname *string, level *EventLevel, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, run_id, hostname, type, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR run_id = ?)
		  AND (? IS NULL OR hostname = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, runID, runID, hostname, hostname, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Hostname,
			&event.Type,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
