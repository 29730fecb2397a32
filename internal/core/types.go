// Package core defines the persistent entities, rule evaluation primitives,
// and transactional store used to track spectrum synthesis runs and their
// supporting data.
package core

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityRun identifies a synthesis run record.
	EntityRun EntityType = "run"
	// EntityLineList identifies a line list record.
	EntityLineList EntityType = "line_list"
	// EntityAtmosphere identifies a model atmosphere record.
	EntityAtmosphere EntityType = "atmosphere"
	// EntityArtifact identifies a spectrum artifact record.
	EntityArtifact EntityType = "artifact"
)

// RunStatus enumerates the synthesis run workflow states.
type RunStatus string

// Canonical run statuses used for scheduling and validation.
const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SynthesisRun records one requested spectrum synthesis: the stellar
// parameters, the wavelength grid, and the inputs it was run against.
type SynthesisRun struct {
	Base
	Name         string    `json:"name"`
	Status       RunStatus `json:"status"`
	Teff         float64   `json:"teff"`
	LogG         float64   `json:"logg"`
	FeH          float64   `json:"feh"`
	VMicro       float64   `json:"vmicro"`
	AlphaFe      float64   `json:"alphafe"`
	LambdaMin    float64   `json:"lambda_min"`
	LambdaMax    float64   `json:"lambda_max"`
	LambdaStep   float64   `json:"lambda_step"`
	AtmosphereID *string   `json:"atmosphere_id"`
	LineListIDs  []string  `json:"line_list_ids"`
	ArtifactIDs  []string  `json:"artifact_ids"`
	// Abundances carries per-element logeps overrides keyed by symbol.
	Abundances map[string]float64 `json:"abundances,omitempty"`
	Error      *string            `json:"error,omitempty"`
}

// Points returns the number of wavelength grid points the run spans.
func (r SynthesisRun) Points() int {
	if r.LambdaStep <= 0 || r.LambdaMax <= r.LambdaMin {
		return 0
	}
	return int((r.LambdaMax-r.LambdaMin)/r.LambdaStep) + 1
}

// LineList describes an atomic or molecular line list file available to runs.
type LineList struct {
	Base
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Species  string  `json:"species"`
	MinWave  float64 `json:"min_wave"`
	MaxWave  float64 `json:"max_wave"`
	Checksum string  `json:"checksum,omitempty"`
}

// Covers reports whether the list's wavelength coverage overlaps the
// interval.
func (l LineList) Covers(min, max float64) bool {
	if l.MinWave == 0 && l.MaxWave == 0 {
		return true
	}
	return l.MinWave <= max && l.MaxWave >= min
}

// AtmosphereModel describes a model atmosphere file and the parameters it
// was computed for.
type AtmosphereModel struct {
	Base
	Name         string  `json:"name"`
	Path         string  `json:"path"`
	Teff         float64 `json:"teff"`
	LogG         float64 `json:"logg"`
	FeH          float64 `json:"feh"`
	Spherical    bool    `json:"spherical"`
	Interpolated bool    `json:"interpolated"`
}

// SpectrumArtifact records an output file produced by a completed run,
// addressed by its blob storage key.
type SpectrumArtifact struct {
	Base
	RunID       string  `json:"run_id"`
	Kind        string  `json:"kind"` // spec, eqw, conv
	BlobKey     string  `json:"blob_key"`
	SizeBytes   int64   `json:"size_bytes"`
	LambdaMin   float64 `json:"lambda_min"`
	LambdaMax   float64 `json:"lambda_max"`
	ContentType string  `json:"content_type,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
