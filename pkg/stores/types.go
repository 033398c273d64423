package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the status of a compile run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunMode represents how a run was invoked
type RunMode string

const (
	RunModeBuild RunMode = "build"
	RunModeCheck RunMode = "check"
)

// DeviceStatus represents the outcome of a single device compile
type DeviceStatus string

const (
	DeviceStatusCreated     DeviceStatus = "created"
	DeviceStatusUpdated     DeviceStatus = "updated"
	DeviceStatusUnchanged   DeviceStatus = "unchanged"
	DeviceStatusWouldCreate DeviceStatus = "would-create"
	DeviceStatusWouldUpdate DeviceStatus = "would-update"
	DeviceStatusFailed      DeviceStatus = "failed"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run represents a compile run over a set of selected devices
type Run struct {
	ID            string     `json:"id"`
	Mode          RunMode    `json:"mode"`
	Selector      string     `json:"selector"` // hostname list or tag expression as given
	Status        RunStatus  `json:"status"`
	DevicesTotal  int        `json:"devices_total"`
	DevicesFailed int        `json:"devices_failed"` // derived from device_results
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         *string    `json:"error,omitempty"`
	Metadata      string     `json:"metadata"` // JSON blob
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DeviceResult represents the outcome of one device within a run
type DeviceResult struct {
	ID             string       `json:"id"`
	RunID          string       `json:"run_id"`
	Seq            int          `json:"seq"` // position in the run's input order
	Hostname       string       `json:"hostname"`
	Role           string       `json:"role"`
	Status         DeviceStatus `json:"status"`
	ErrorClass     *string      `json:"error_class,omitempty"`
	Error          *string      `json:"error,omitempty"`
	ArtifactSHA256 *string      `json:"artifact_sha256,omitempty"`
	Diff           *string      `json:"diff,omitempty"`
	DurationMS     int64        `json:"duration_ms"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Artifact is the ledger's record of the last artifact written per
// device. Drift detection compares the on-disk artifact against the
// sha256 recorded here.
type Artifact struct {
	Hostname   string    `json:"hostname"`
	Role       string    `json:"role"`
	RunID      string    `json:"run_id"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	RenderedAt time.Time `json:"rendered_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Event represents an append-only ledger event
type Event struct {
	ID        int64      `json:"id"`
	RunID     *string    `json:"run_id,omitempty"`
	Hostname  *string    `json:"hostname,omitempty"`
	Type      string     `json:"type"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// Store defines the interface for the compile ledger
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// DeviceResult operations
	CreateDeviceResult(ctx context.Context, result *DeviceResult) error
	GetDeviceResult(ctx context.Context, runID, hostname string) (*DeviceResult, error)
	ListDeviceResultsByRun(ctx context.Context, runID string) ([]*DeviceResult, error)

	// Artifact operations
	UpsertArtifact(ctx context.Context, artifact *Artifact) error
	GetArtifact(ctx context.Context, hostname string) (*Artifact, error)
	ListArtifacts(ctx context.Context, limit, offset int) ([]*Artifact, error)
	DeleteArtifact(ctx context.Context, hostname string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, hostname *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
