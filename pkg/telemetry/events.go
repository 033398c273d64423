package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the loom system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated build run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Hostname is the associated device, if applicable.
	Hostname string `json:"hostname,omitempty"`

	// Role is the device role, if applicable.
	Role string `json:"role,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeBuildStarted    = "build.started"
	EventTypeBuildCompleted  = "build.completed"
	EventTypeBuildFailed     = "build.failed"
	EventTypeDeviceCompiled  = "device.compiled"
	EventTypeDeviceFailed    = "device.failed"
	EventTypeDriftDetected   = "drift.detected"
	EventTypePolicyViolation = "policy.violation"
	EventTypeMirrorCompleted = "mirror.completed"
	EventTypeMirrorFailed    = "mirror.failed"
	EventTypeError           = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishBuildStarted publishes a build started event.
func (ep *EventPublisher) PublishBuildStarted(runID, mode string, targets int) error {
	return ep.Publish(Event{
		Type:    EventTypeBuildStarted,
		Source:  "compiler",
		RunID:   runID,
		Message: fmt.Sprintf("Build %s started in %s mode for %d devices", runID, mode, targets),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"mode":    mode,
			"targets": targets,
		},
	})
}

// PublishBuildCompleted publishes a build completed event.
func (ep *EventPublisher) PublishBuildCompleted(runID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeBuildCompleted,
		Source:  "compiler",
		RunID:   runID,
		Message: fmt.Sprintf("Build %s completed with status: %s", runID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishBuildFailed publishes a build failed event.
func (ep *EventPublisher) PublishBuildFailed(runID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeBuildFailed,
		Source:  "compiler",
		RunID:   runID,
		Message: fmt.Sprintf("Build %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishDeviceCompiled publishes a per-device compile result event.
func (ep *EventPublisher) PublishDeviceCompiled(runID, hostname, role, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:     EventTypeDeviceCompiled,
		Source:   "compiler",
		RunID:    runID,
		Hostname: hostname,
		Role:     role,
		Message:  fmt.Sprintf("Device %s compiled: %s", hostname, status),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishDeviceFailed publishes a per-device compile failure event.
func (ep *EventPublisher) PublishDeviceFailed(runID, hostname, role, class, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeDeviceFailed,
		Source:   "compiler",
		RunID:    runID,
		Hostname: hostname,
		Role:     role,
		Message:  fmt.Sprintf("Device %s failed in %s: %s", hostname, class, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"class":  class,
			"reason": reason,
		},
	})
}

// PublishDriftDetected publishes a drift detected event.
func (ep *EventPublisher) PublishDriftDetected(hostname, kind string) error {
	return ep.Publish(Event{
		Type:     EventTypeDriftDetected,
		Source:   "artifact",
		Hostname: hostname,
		Message:  fmt.Sprintf("Drift detected on %s: %s", hostname, kind),
		Level:    EventLevelWarning,
		Data: map[string]interface{}{
			"kind": kind,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(runID, hostname, policy, severity, reason string) error {
	level := EventLevelWarning
	if severity == "error" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:     EventTypePolicyViolation,
		Source:   "policy",
		RunID:    runID,
		Hostname: hostname,
		Message:  fmt.Sprintf("Policy violation on %s: %s - %s", hostname, policy, reason),
		Level:    level,
		Data: map[string]interface{}{
			"policy":   policy,
			"severity": severity,
			"reason":   reason,
		},
	})
}

// PublishMirrorCompleted publishes a mirror completed event.
func (ep *EventPublisher) PublishMirrorCompleted(runID, host string, files int, bytes int64) error {
	return ep.Publish(Event{
		Type:    EventTypeMirrorCompleted,
		Source:  "mirror",
		RunID:   runID,
		Message: fmt.Sprintf("Mirrored %d artifacts (%d bytes) to %s", files, bytes, host),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"host":  host,
			"files": files,
			"bytes": bytes,
		},
	})
}

// PublishMirrorFailed publishes a mirror failed event.
func (ep *EventPublisher) PublishMirrorFailed(runID, host, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeMirrorFailed,
		Source:  "mirror",
		RunID:   runID,
		Message: fmt.Sprintf("Mirror to %s failed: %s", host, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"host":   host,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-time.After(ep.config.FlushInterval):
			if len(batch) > 0 {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Drain whatever is still buffered before shutting down
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						ep.flushBatch(batch)
					}
					return
				}
			}
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRunID creates a filter that only allows events for a specific run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}

// FilterByHostname creates a filter that only allows events for a specific device.
func FilterByHostname(hostname string) EventFilter {
	return func(event Event) bool {
		return event.Hostname == hostname
	}
}
