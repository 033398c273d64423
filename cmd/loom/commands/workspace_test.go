package commands

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openloom/openloom/pkg/stores"
	"github.com/openloom/openloom/pkg/telemetry"
)

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{
		"routing.maximum_paths=8",
		"routing.overlay.route_reflector_client=true",
		"dns_servers=[192.0.2.53, 192.0.2.54]",
		"snmp.location=row 12",
		"tunnel.flood_lists=null",
	})
	if err != nil {
		t.Fatalf("parseOverrides: %v", err)
	}

	want := map[string]any{
		"routing": map[string]any{
			"maximum_paths": 8,
			"overlay": map[string]any{
				"route_reflector_client": true,
			},
		},
		"dns_servers": []any{"192.0.2.53", "192.0.2.54"},
		"snmp": map[string]any{
			"location": "row 12",
		},
		"tunnel": map[string]any{
			"flood_lists": nil,
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseOverrides = %#v, want %#v", got, want)
	}
}

func TestParseOverridesEmpty(t *testing.T) {
	got, err := parseOverrides(nil)
	if err != nil {
		t.Fatalf("parseOverrides: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil overrides, got %#v", got)
	}
}

func TestParseOverridesRejectsMalformedPairs(t *testing.T) {
	tests := []struct {
		name string
		pair string
	}{
		{"no separator", "routing.maximum_paths"},
		{"empty path", "=8"},
		{"unclosed flow list", "vlans=[{id: 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseOverrides([]string{tt.pair}); err == nil {
				t.Errorf("expected error for %q", tt.pair)
			}
		})
	}
}

// eventRecorder captures appended events. Only AppendEvent is
// implemented; the embedded interface covers the rest.
type eventRecorder struct {
	stores.Store
	events []*stores.Event
}

func (r *eventRecorder) AppendEvent(_ context.Context, ev *stores.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestPersistEventMapsFields(t *testing.T) {
	rec := &eventRecorder{}
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	subscriber := persistEvent(rec, logger)

	now := time.Now()
	subscriber(telemetry.Event{
		Type:      "device.compiled",
		Level:     telemetry.EventLevelWarning,
		Message:   "Device compiled",
		RunID:     "run-1",
		Hostname:  "leaf11",
		Timestamp: now,
		Data:      map[string]interface{}{"status": "updated"},
	})

	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	row := rec.events[0]
	if row.Type != "device.compiled" || row.Message != "Device compiled" {
		t.Errorf("unexpected row %+v", row)
	}
	if row.Level != stores.EventLevelWarning {
		t.Errorf("level = %q, want %q", row.Level, stores.EventLevelWarning)
	}
	if row.RunID == nil || *row.RunID != "run-1" {
		t.Errorf("run id = %v, want run-1", row.RunID)
	}
	if row.Hostname == nil || *row.Hostname != "leaf11" {
		t.Errorf("hostname = %v, want leaf11", row.Hostname)
	}
	if row.Details == nil || !strings.Contains(*row.Details, `"status":"updated"`) {
		t.Errorf("details = %v, want status payload", row.Details)
	}
	if !row.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", row.Timestamp, now)
	}
}

func TestPersistEventOmitsEmptyScope(t *testing.T) {
	rec := &eventRecorder{}
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	subscriber := persistEvent(rec, logger)

	subscriber(telemetry.Event{
		Type:      "run.started",
		Level:     telemetry.EventLevelInfo,
		Message:   "Run started",
		Timestamp: time.Now(),
	})

	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	row := rec.events[0]
	if row.RunID != nil || row.Hostname != nil || row.Details != nil {
		t.Errorf("expected empty scope fields to stay nil, got %+v", row)
	}
}
