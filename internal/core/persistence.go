package core

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateRun(SynthesisRun) (SynthesisRun, error)
	UpdateRun(id string, mutator func(*SynthesisRun) error) (SynthesisRun, error)
	DeleteRun(id string) error
	CreateLineList(LineList) (LineList, error)
	UpdateLineList(id string, mutator func(*LineList) error) (LineList, error)
	DeleteLineList(id string) error
	CreateAtmosphere(AtmosphereModel) (AtmosphereModel, error)
	UpdateAtmosphere(id string, mutator func(*AtmosphereModel) error) (AtmosphereModel, error)
	DeleteAtmosphere(id string) error
	CreateArtifact(SpectrumArtifact) (SpectrumArtifact, error)
	DeleteArtifact(id string) error
	FindLineList(id string) (LineList, bool)
	FindAtmosphere(id string) (AtmosphereModel, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListRuns() []SynthesisRun
	ListLineLists() []LineList
	ListAtmospheres() []AtmosphereModel
	ListArtifacts() []SpectrumArtifact
	FindRun(id string) (SynthesisRun, bool)
	FindLineList(id string) (LineList, bool)
	FindAtmosphere(id string) (AtmosphereModel, bool)
	FindArtifact(id string) (SpectrumArtifact, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetRun(id string) (SynthesisRun, bool)
	ListRuns() []SynthesisRun
	GetLineList(id string) (LineList, bool)
	ListLineLists() []LineList
	ListAtmospheres() []AtmosphereModel
	ListArtifacts() []SpectrumArtifact
}
