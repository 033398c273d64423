package policy

import (
	"time"

	"github.com/openloom/openloom/pkg/fabric"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// block a build.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block a build.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity fails the gate.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations that do not carry
	// their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Device is the hostname the violation applies to. Fabric-wide
	// violations name the device the rule attributes them to.
	Device string `json:"device,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains additional violation details.
	Details map[string]interface{} `json:"details,omitempty"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the outcome of one policy evaluation pass.
type Result struct {
	// Allowed is false when any violation carries a blocking severity.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations, blocking or not.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that could not be evaluated. A policy that
	// fails to evaluate never blocks.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of the policies that ran.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation finished.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document handed to Rego as input. Device-scoped rules match
// on input.record, fabric-scoped rules on input.fabric; a rule guarding on
// the wrong one is simply undefined for that pass.
type Input struct {
	// Device is the identity of the device under evaluation.
	Device *fabric.DeviceIdentity `json:"device,omitempty"`

	// Record is the resolved record for the device under evaluation.
	Record *fabric.Record `json:"record,omitempty"`

	// Fabric is every resolved record in the fleet, set only for
	// fabric-wide evaluation.
	Fabric []*fabric.Record `json:"fabric,omitempty"`

	// Context provides additional evaluation context.
	Context *EvalContext `json:"context"`
}

// EvalContext provides context information for policy evaluation.
type EvalContext struct {
	// Operation is the evaluation pass: "device" or "fabric".
	Operation string `json:"operation,omitempty"`

	// RunID ties the evaluation to a compile run when one exists.
	RunID string `json:"run_id,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Bundle represents a collection of related policies distributed as one
// JSON document.
type Bundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}

// Report aggregates policy results across a fleet evaluation: one result
// per device plus the fabric-wide pass.
type Report struct {
	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// Devices maps hostname to that device's evaluation result.
	Devices map[string]*Result `json:"devices,omitempty"`

	// Fabric is the fabric-wide evaluation result.
	Fabric *Result `json:"fabric,omitempty"`

	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`
}

// Summary provides aggregate statistics for a fleet evaluation.
type Summary struct {
	// DevicesEvaluated is the number of devices that were evaluated.
	DevicesEvaluated int `json:"devices_evaluated"`

	// DevicesBlocked is the number of devices with a blocking violation.
	DevicesBlocked int `json:"devices_blocked"`

	// TotalViolations counts violations across all passes, the fabric
	// pass included.
	TotalViolations int `json:"total_violations"`

	// ViolationsBySeverity breaks down violations by severity.
	ViolationsBySeverity map[Severity]int `json:"violations_by_severity"`

	// Duration is the summed evaluation time of all passes.
	Duration time.Duration `json:"duration"`
}

// BuildReport assembles a Report from per-device results and an optional
// fabric-wide result, computing the summary as it goes.
func BuildReport(devices map[string]*Result, fabricResult *Result) *Report {
	report := &Report{
		GeneratedAt: time.Now(),
		Devices:     devices,
		Fabric:      fabricResult,
		Summary: Summary{
			DevicesEvaluated:     len(devices),
			ViolationsBySeverity: make(map[Severity]int),
		},
	}

	tally := func(r *Result) {
		report.Summary.TotalViolations += len(r.Violations)
		report.Summary.Duration += r.Duration
		for i := range r.Violations {
			report.Summary.ViolationsBySeverity[r.Violations[i].Severity]++
		}
	}

	for _, r := range devices {
		if !r.Allowed {
			report.Summary.DevicesBlocked++
		}
		tally(r)
	}
	if fabricResult != nil {
		tally(fabricResult)
	}

	return report
}
