package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time contract assertion ensuring MemoryStore adheres to the
// persistence interface.
var _ PersistentStore = (*MemoryStore)(nil)

type memoryState struct {
	runs        map[string]SynthesisRun
	lineLists   map[string]LineList
	atmospheres map[string]AtmosphereModel
	artifacts   map[string]SpectrumArtifact
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Runs        map[string]SynthesisRun     `json:"runs"`
	LineLists   map[string]LineList         `json:"line_lists"`
	Atmospheres map[string]AtmosphereModel  `json:"atmospheres"`
	Artifacts   map[string]SpectrumArtifact `json:"artifacts"`
}

func newMemoryState() memoryState {
	return memoryState{
		runs:        make(map[string]SynthesisRun),
		lineLists:   make(map[string]LineList),
		atmospheres: make(map[string]AtmosphereModel),
		artifacts:   make(map[string]SpectrumArtifact),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Runs:        make(map[string]SynthesisRun, len(state.runs)),
		LineLists:   make(map[string]LineList, len(state.lineLists)),
		Atmospheres: make(map[string]AtmosphereModel, len(state.atmospheres)),
		Artifacts:   make(map[string]SpectrumArtifact, len(state.artifacts)),
	}
	for k, v := range state.runs {
		s.Runs[k] = cloneRun(v)
	}
	for k, v := range state.lineLists {
		s.LineLists[k] = cloneLineList(v)
	}
	for k, v := range state.atmospheres {
		s.Atmospheres[k] = cloneAtmosphere(v)
	}
	for k, v := range state.artifacts {
		s.Artifacts[k] = cloneArtifact(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Runs {
		state.runs[k] = cloneRun(v)
	}
	for k, v := range s.LineLists {
		state.lineLists[k] = cloneLineList(v)
	}
	for k, v := range s.Atmospheres {
		state.atmospheres[k] = cloneAtmosphere(v)
	}
	for k, v := range s.Artifacts {
		state.artifacts[k] = cloneArtifact(v)
	}
	return state
}

// migrateSnapshot repairs snapshots written by earlier versions: missing
// buckets become empty maps, dangling references are dropped, and run
// artifact listings are rebuilt from the artifact bucket.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Runs == nil {
		snapshot.Runs = map[string]SynthesisRun{}
	}
	if snapshot.LineLists == nil {
		snapshot.LineLists = map[string]LineList{}
	}
	if snapshot.Atmospheres == nil {
		snapshot.Atmospheres = map[string]AtmosphereModel{}
	}
	if snapshot.Artifacts == nil {
		snapshot.Artifacts = map[string]SpectrumArtifact{}
	}

	runExists := func(id string) bool {
		_, ok := snapshot.Runs[id]
		return ok
	}
	lineListExists := func(id string) bool {
		_, ok := snapshot.LineLists[id]
		return ok
	}

	for id, artifact := range snapshot.Artifacts {
		if artifact.RunID == "" || !runExists(artifact.RunID) {
			delete(snapshot.Artifacts, id)
		}
	}

	for id, run := range snapshot.Runs {
		if run.AtmosphereID != nil {
			if _, ok := snapshot.Atmospheres[*run.AtmosphereID]; !ok {
				run.AtmosphereID = nil
			}
		}
		if filtered, changed := filterIDs(run.LineListIDs, lineListExists); changed {
			run.LineListIDs = filtered
		}
		var artifactIDs []string
		for _, artifact := range snapshot.Artifacts {
			if artifact.RunID == id {
				artifactIDs = append(artifactIDs, artifact.ID)
			}
		}
		sort.Strings(artifactIDs)
		run.ArtifactIDs = artifactIDs
		snapshot.Runs[id] = run
	}

	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.runs {
		cloned.runs[k] = cloneRun(v)
	}
	for k, v := range s.lineLists {
		cloned.lineLists[k] = cloneLineList(v)
	}
	for k, v := range s.atmospheres {
		cloned.atmospheres[k] = cloneAtmosphere(v)
	}
	for k, v := range s.artifacts {
		cloned.artifacts[k] = cloneArtifact(v)
	}
	return cloned
}

func cloneRun(r SynthesisRun) SynthesisRun {
	cp := r
	cp.LineListIDs = append([]string(nil), r.LineListIDs...)
	cp.ArtifactIDs = append([]string(nil), r.ArtifactIDs...)
	if r.Abundances != nil {
		cp.Abundances = make(map[string]float64, len(r.Abundances))
		for sym, v := range r.Abundances {
			cp.Abundances[sym] = v
		}
	}
	return cp
}

func cloneLineList(l LineList) LineList                 { return l }
func cloneAtmosphere(a AtmosphereModel) AtmosphereModel { return a }
func cloneArtifact(a SpectrumArtifact) SpectrumArtifact { return a }

func filterIDs(values []string, exists func(string) bool) ([]string, bool) {
	if len(values) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	changed := false
	for _, v := range values {
		if _, ok := seen[v]; ok {
			changed = true
			continue
		}
		seen[v] = struct{}{}
		if !exists(v) {
			changed = true
			continue
		}
		out = append(out, v)
	}
	if !changed && len(out) == len(values) {
		return values, false
	}
	return out, true
}

func runArtifactIDs(state *memoryState, runID string) []string {
	var ids []string
	for _, artifact := range state.artifacts {
		if artifact.RunID == runID {
			ids = append(ids, artifact.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func decorateRun(state *memoryState, run SynthesisRun) SynthesisRun {
	run.ArtifactIDs = runArtifactIDs(state, run.ID)
	return run
}

// MemoryStore provides an in-memory transactional store for the core domain.
type MemoryStore struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewMemoryStore constructs an in-memory store backed by the provided rules engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	if engine == nil {
		engine = NewRulesEngine()
	}
	return &MemoryStore{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *MemoryStore) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *MemoryStore) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *MemoryStore) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *MemoryStore) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

type transaction struct {
	store   *MemoryStore
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListRuns returns all synthesis runs within the transaction snapshot.
func (v transactionView) ListRuns() []SynthesisRun {
	out := make([]SynthesisRun, 0, len(v.state.runs))
	for _, r := range v.state.runs {
		out = append(out, cloneRun(decorateRun(v.state, r)))
	}
	return out
}

// ListLineLists returns all line lists.
func (v transactionView) ListLineLists() []LineList {
	out := make([]LineList, 0, len(v.state.lineLists))
	for _, l := range v.state.lineLists {
		out = append(out, cloneLineList(l))
	}
	return out
}

// ListAtmospheres returns all model atmospheres.
func (v transactionView) ListAtmospheres() []AtmosphereModel {
	out := make([]AtmosphereModel, 0, len(v.state.atmospheres))
	for _, a := range v.state.atmospheres {
		out = append(out, cloneAtmosphere(a))
	}
	return out
}

// ListArtifacts returns all spectrum artifacts.
func (v transactionView) ListArtifacts() []SpectrumArtifact {
	out := make([]SpectrumArtifact, 0, len(v.state.artifacts))
	for _, a := range v.state.artifacts {
		out = append(out, cloneArtifact(a))
	}
	return out
}

// FindRun retrieves a run by ID from the snapshot.
func (v transactionView) FindRun(id string) (SynthesisRun, bool) {
	r, ok := v.state.runs[id]
	if !ok {
		return SynthesisRun{}, false
	}
	return cloneRun(decorateRun(v.state, r)), true
}

// FindLineList retrieves a line list by ID from the snapshot.
func (v transactionView) FindLineList(id string) (LineList, bool) {
	l, ok := v.state.lineLists[id]
	if !ok {
		return LineList{}, false
	}
	return cloneLineList(l), true
}

// FindAtmosphere retrieves a model atmosphere by ID from the snapshot.
func (v transactionView) FindAtmosphere(id string) (AtmosphereModel, bool) {
	a, ok := v.state.atmospheres[id]
	if !ok {
		return AtmosphereModel{}, false
	}
	return cloneAtmosphere(a), true
}

// FindArtifact retrieves an artifact by ID from the snapshot.
func (v transactionView) FindArtifact(id string) (SpectrumArtifact, bool) {
	a, ok := v.state.artifacts[id]
	if !ok {
		return SpectrumArtifact{}, false
	}
	return cloneArtifact(a), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *MemoryStore) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetRun retrieves a run by ID.
func (s *MemoryStore) GetRun(id string) (SynthesisRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.runs[id]
	if !ok {
		return SynthesisRun{}, false
	}
	return cloneRun(decorateRun(&s.state, r)), true
}

// ListRuns returns all synthesis runs.
func (s *MemoryStore) ListRuns() []SynthesisRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SynthesisRun, 0, len(s.state.runs))
	for _, r := range s.state.runs {
		out = append(out, cloneRun(decorateRun(&s.state, r)))
	}
	return out
}

// GetLineList retrieves a line list by ID.
func (s *MemoryStore) GetLineList(id string) (LineList, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.lineLists[id]
	if !ok {
		return LineList{}, false
	}
	return cloneLineList(l), true
}

// ListLineLists returns all line lists.
func (s *MemoryStore) ListLineLists() []LineList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LineList, 0, len(s.state.lineLists))
	for _, l := range s.state.lineLists {
		out = append(out, cloneLineList(l))
	}
	return out
}

// ListAtmospheres returns all model atmospheres.
func (s *MemoryStore) ListAtmospheres() []AtmosphereModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AtmosphereModel, 0, len(s.state.atmospheres))
	for _, a := range s.state.atmospheres {
		out = append(out, cloneAtmosphere(a))
	}
	return out
}

// ListArtifacts returns all spectrum artifacts.
func (s *MemoryStore) ListArtifacts() []SpectrumArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SpectrumArtifact, 0, len(s.state.artifacts))
	for _, a := range s.state.artifacts {
		out = append(out, cloneArtifact(a))
	}
	return out
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindLineList exposes line list lookup within the transaction scope.
func (tx *transaction) FindLineList(id string) (LineList, bool) {
	l, ok := tx.state.lineLists[id]
	if !ok {
		return LineList{}, false
	}
	return cloneLineList(l), true
}

// FindAtmosphere exposes atmosphere lookup within the transaction scope.
func (tx *transaction) FindAtmosphere(id string) (AtmosphereModel, bool) {
	a, ok := tx.state.atmospheres[id]
	if !ok {
		return AtmosphereModel{}, false
	}
	return cloneAtmosphere(a), true
}

// CreateRun stores a new synthesis run within the transaction.
func (tx *transaction) CreateRun(r SynthesisRun) (SynthesisRun, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.runs[r.ID]; exists {
		return SynthesisRun{}, fmt.Errorf("run %q already exists", r.ID)
	}
	if r.Status == "" {
		r.Status = RunStatusPending
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	r.ArtifactIDs = nil
	tx.state.runs[r.ID] = cloneRun(r)
	created := decorateRun(&tx.state, r)
	tx.recordChange(Change{Entity: EntityRun, Action: ActionCreate, After: cloneRun(created)})
	return cloneRun(created), nil
}

// UpdateRun mutates a run using the provided mutator function.
func (tx *transaction) UpdateRun(id string, mutator func(*SynthesisRun) error) (SynthesisRun, error) {
	current, ok := tx.state.runs[id]
	if !ok {
		return SynthesisRun{}, fmt.Errorf("run %q not found", id)
	}
	before := cloneRun(decorateRun(&tx.state, current))
	if err := mutator(&current); err != nil {
		return SynthesisRun{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	current.ArtifactIDs = nil
	tx.state.runs[id] = cloneRun(current)
	after := decorateRun(&tx.state, current)
	tx.recordChange(Change{Entity: EntityRun, Action: ActionUpdate, Before: before, After: cloneRun(after)})
	return cloneRun(after), nil
}

// DeleteRun removes a run from the transaction state.
func (tx *transaction) DeleteRun(id string) error {
	current, ok := tx.state.runs[id]
	if !ok {
		return fmt.Errorf("run %q not found", id)
	}
	for _, artifact := range tx.state.artifacts {
		if artifact.RunID == id {
			return fmt.Errorf("run %q still referenced by artifact %q", id, artifact.ID)
		}
	}
	delete(tx.state.runs, id)
	tx.recordChange(Change{Entity: EntityRun, Action: ActionDelete, Before: cloneRun(decorateRun(&tx.state, current))})
	return nil
}

// CreateLineList stores a new line list record.
func (tx *transaction) CreateLineList(l LineList) (LineList, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.lineLists[l.ID]; exists {
		return LineList{}, fmt.Errorf("line list %q already exists", l.ID)
	}
	if l.Path == "" {
		return LineList{}, errors.New("line list requires a path")
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.lineLists[l.ID] = cloneLineList(l)
	tx.recordChange(Change{Entity: EntityLineList, Action: ActionCreate, After: cloneLineList(l)})
	return cloneLineList(l), nil
}

// UpdateLineList mutates an existing line list.
func (tx *transaction) UpdateLineList(id string, mutator func(*LineList) error) (LineList, error) {
	current, ok := tx.state.lineLists[id]
	if !ok {
		return LineList{}, fmt.Errorf("line list %q not found", id)
	}
	before := cloneLineList(current)
	if err := mutator(&current); err != nil {
		return LineList{}, err
	}
	if current.Path == "" {
		return LineList{}, errors.New("line list requires a path")
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.lineLists[id] = cloneLineList(current)
	tx.recordChange(Change{Entity: EntityLineList, Action: ActionUpdate, Before: before, After: cloneLineList(current)})
	return cloneLineList(current), nil
}

// DeleteLineList removes a line list from state.
func (tx *transaction) DeleteLineList(id string) error {
	current, ok := tx.state.lineLists[id]
	if !ok {
		return fmt.Errorf("line list %q not found", id)
	}
	for _, run := range tx.state.runs {
		for _, listID := range run.LineListIDs {
			if listID == id {
				return fmt.Errorf("line list %q still referenced by run %q", id, run.ID)
			}
		}
	}
	delete(tx.state.lineLists, id)
	tx.recordChange(Change{Entity: EntityLineList, Action: ActionDelete, Before: cloneLineList(current)})
	return nil
}

// CreateAtmosphere stores a new model atmosphere record.
func (tx *transaction) CreateAtmosphere(a AtmosphereModel) (AtmosphereModel, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.atmospheres[a.ID]; exists {
		return AtmosphereModel{}, fmt.Errorf("atmosphere %q already exists", a.ID)
	}
	if a.Path == "" {
		return AtmosphereModel{}, errors.New("atmosphere requires a path")
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.atmospheres[a.ID] = cloneAtmosphere(a)
	tx.recordChange(Change{Entity: EntityAtmosphere, Action: ActionCreate, After: cloneAtmosphere(a)})
	return cloneAtmosphere(a), nil
}

// UpdateAtmosphere mutates an existing model atmosphere.
func (tx *transaction) UpdateAtmosphere(id string, mutator func(*AtmosphereModel) error) (AtmosphereModel, error) {
	current, ok := tx.state.atmospheres[id]
	if !ok {
		return AtmosphereModel{}, fmt.Errorf("atmosphere %q not found", id)
	}
	before := cloneAtmosphere(current)
	if err := mutator(&current); err != nil {
		return AtmosphereModel{}, err
	}
	if current.Path == "" {
		return AtmosphereModel{}, errors.New("atmosphere requires a path")
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.atmospheres[id] = cloneAtmosphere(current)
	tx.recordChange(Change{Entity: EntityAtmosphere, Action: ActionUpdate, Before: before, After: cloneAtmosphere(current)})
	return cloneAtmosphere(current), nil
}

// DeleteAtmosphere removes a model atmosphere from state.
func (tx *transaction) DeleteAtmosphere(id string) error {
	current, ok := tx.state.atmospheres[id]
	if !ok {
		return fmt.Errorf("atmosphere %q not found", id)
	}
	for _, run := range tx.state.runs {
		if run.AtmosphereID != nil && *run.AtmosphereID == id {
			return fmt.Errorf("atmosphere %q still referenced by run %q", id, run.ID)
		}
	}
	delete(tx.state.atmospheres, id)
	tx.recordChange(Change{Entity: EntityAtmosphere, Action: ActionDelete, Before: cloneAtmosphere(current)})
	return nil
}

// CreateArtifact stores a spectrum artifact produced by a run.
func (tx *transaction) CreateArtifact(a SpectrumArtifact) (SpectrumArtifact, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.artifacts[a.ID]; exists {
		return SpectrumArtifact{}, fmt.Errorf("artifact %q already exists", a.ID)
	}
	if a.RunID == "" {
		return SpectrumArtifact{}, errors.New("artifact requires a run id")
	}
	if _, ok := tx.state.runs[a.RunID]; !ok {
		return SpectrumArtifact{}, fmt.Errorf("run %q not found", a.RunID)
	}
	if a.BlobKey == "" {
		return SpectrumArtifact{}, errors.New("artifact requires a blob key")
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.artifacts[a.ID] = cloneArtifact(a)
	tx.recordChange(Change{Entity: EntityArtifact, Action: ActionCreate, After: cloneArtifact(a)})
	return cloneArtifact(a), nil
}

// DeleteArtifact removes an artifact record.
func (tx *transaction) DeleteArtifact(id string) error {
	current, ok := tx.state.artifacts[id]
	if !ok {
		return fmt.Errorf("artifact %q not found", id)
	}
	delete(tx.state.artifacts, id)
	tx.recordChange(Change{Entity: EntityArtifact, Action: ActionDelete, Before: cloneArtifact(current)})
	return nil
}
