package core

import (
	"context"
	"fmt"
	"time"
)

// Service exposes higher-level transactional operations over a persistent
// store, instrumented with logging, metrics, tracing, and audit seams.
type Service struct {
	store   PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	nowFn   func() time.Time
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger attaches a structured logger to the service.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder to the service.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) { s.metrics = recorder }
}

// WithTracer attaches a tracer to the service.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithAuditRecorder attaches an audit recorder to the service.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) { s.audit = recorder }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: noopLogger{},
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// instrument wraps one service operation with the observability seams. The
// entityID callback runs after fn so created IDs are available.
func (s *Service) instrument(ctx context.Context, operation string, entity EntityType, fn func(context.Context) error, entityID func() string) error {
	started := s.nowFn()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	err := fn(ctx)
	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, s.nowFn().Sub(started))
	}
	id := ""
	if entityID != nil {
		id = entityID()
	}
	if s.audit != nil {
		entry := AuditEntry{
			Operation: operation,
			Status:    AuditStatusSuccess,
			Entity:    entity,
			EntityID:  id,
			At:        s.nowFn(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	if err != nil {
		s.logger.Error(operation+" failed", "entity", string(entity), "id", id, "error", err)
	} else {
		s.logger.Info(operation, "entity", string(entity), "id", id)
	}
	return err
}

// CreateRun persists a new synthesis run.
func (s *Service) CreateRun(ctx context.Context, run SynthesisRun) (SynthesisRun, Result, error) {
	var created SynthesisRun
	var res Result
	err := s.instrument(ctx, "create_run", EntityRun, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateRun(run)
			return err
		})
		return err
	}, func() string { return created.ID })
	return created, res, err
}

// UpdateRun mutates a run using the provided mutator.
func (s *Service) UpdateRun(ctx context.Context, id string, mutator func(*SynthesisRun) error) (SynthesisRun, Result, error) {
	var updated SynthesisRun
	var res Result
	err := s.instrument(ctx, "update_run", EntityRun, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateRun(id, mutator)
			return err
		})
		return err
	}, func() string { return id })
	return updated, res, err
}

// DeleteRun removes a run record.
func (s *Service) DeleteRun(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_run", EntityRun, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteRun(id)
		})
		return err
	}, func() string { return id })
	return res, err
}

// StartRun marks a pending run as running.
func (s *Service) StartRun(ctx context.Context, id string) (SynthesisRun, Result, error) {
	return s.transitionRun(ctx, "start_run", id, RunStatusPending, RunStatusRunning, nil)
}

// CompleteRun marks a running run as completed.
func (s *Service) CompleteRun(ctx context.Context, id string) (SynthesisRun, Result, error) {
	return s.transitionRun(ctx, "complete_run", id, RunStatusRunning, RunStatusCompleted, nil)
}

// FailRun marks a running run as failed and records the failure message.
func (s *Service) FailRun(ctx context.Context, id string, cause error) (SynthesisRun, Result, error) {
	var msg *string
	if cause != nil {
		text := cause.Error()
		msg = &text
	}
	return s.transitionRun(ctx, "fail_run", id, RunStatusRunning, RunStatusFailed, msg)
}

func (s *Service) transitionRun(ctx context.Context, operation, id string, from, to RunStatus, errMsg *string) (SynthesisRun, Result, error) {
	var updated SynthesisRun
	var res Result
	err := s.instrument(ctx, operation, EntityRun, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateRun(id, func(r *SynthesisRun) error {
				if r.Status != from {
					return fmt.Errorf("run %q is %s, expected %s", id, r.Status, from)
				}
				r.Status = to
				r.Error = errMsg
				return nil
			})
			return err
		})
		return err
	}, func() string { return id })
	return updated, res, err
}

// AttachArtifact records an output file for a run. The run must exist; the
// artifact is linked through its run id.
func (s *Service) AttachArtifact(ctx context.Context, artifact SpectrumArtifact) (SpectrumArtifact, Result, error) {
	var created SpectrumArtifact
	var res Result
	err := s.instrument(ctx, "attach_artifact", EntityArtifact, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateArtifact(artifact)
			return err
		})
		return err
	}, func() string { return created.ID })
	return created, res, err
}

// CreateLineList persists a new line list record.
func (s *Service) CreateLineList(ctx context.Context, list LineList) (LineList, Result, error) {
	var created LineList
	var res Result
	err := s.instrument(ctx, "create_line_list", EntityLineList, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateLineList(list)
			return err
		})
		return err
	}, func() string { return created.ID })
	return created, res, err
}

// UpdateLineList mutates a line list record.
func (s *Service) UpdateLineList(ctx context.Context, id string, mutator func(*LineList) error) (LineList, Result, error) {
	var updated LineList
	var res Result
	err := s.instrument(ctx, "update_line_list", EntityLineList, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateLineList(id, mutator)
			return err
		})
		return err
	}, func() string { return id })
	return updated, res, err
}

// DeleteLineList removes a line list record.
func (s *Service) DeleteLineList(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_line_list", EntityLineList, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteLineList(id)
		})
		return err
	}, func() string { return id })
	return res, err
}

// CreateAtmosphere persists a new model atmosphere record.
func (s *Service) CreateAtmosphere(ctx context.Context, model AtmosphereModel) (AtmosphereModel, Result, error) {
	var created AtmosphereModel
	var res Result
	err := s.instrument(ctx, "create_atmosphere", EntityAtmosphere, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateAtmosphere(model)
			return err
		})
		return err
	}, func() string { return created.ID })
	return created, res, err
}

// UpdateAtmosphere mutates a model atmosphere record.
func (s *Service) UpdateAtmosphere(ctx context.Context, id string, mutator func(*AtmosphereModel) error) (AtmosphereModel, Result, error) {
	var updated AtmosphereModel
	var res Result
	err := s.instrument(ctx, "update_atmosphere", EntityAtmosphere, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateAtmosphere(id, mutator)
			return err
		})
		return err
	}, func() string { return id })
	return updated, res, err
}

// DeleteAtmosphere removes a model atmosphere record.
func (s *Service) DeleteAtmosphere(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_atmosphere", EntityAtmosphere, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteAtmosphere(id)
		})
		return err
	}, func() string { return id })
	return res, err
}

// AssignRunAtmosphere links a run to a model atmosphere within one
// transaction that validates the reference.
func (s *Service) AssignRunAtmosphere(ctx context.Context, runID, atmosphereID string) (SynthesisRun, Result, error) {
	var updated SynthesisRun
	var res Result
	err := s.instrument(ctx, "assign_run_atmosphere", EntityRun, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, ok := tx.FindAtmosphere(atmosphereID); !ok {
				return ErrNotFound{Entity: EntityAtmosphere, ID: atmosphereID}
			}
			var err error
			updated, err = tx.UpdateRun(runID, func(r *SynthesisRun) error {
				r.AtmosphereID = &atmosphereID
				return nil
			})
			return err
		})
		return err
	}, func() string { return runID })
	return updated, res, err
}

// AssignRunLineLists replaces a run's line list references within one
// transaction that validates every reference.
func (s *Service) AssignRunLineLists(ctx context.Context, runID string, listIDs []string) (SynthesisRun, Result, error) {
	var updated SynthesisRun
	var res Result
	err := s.instrument(ctx, "assign_run_line_lists", EntityRun, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			for _, id := range listIDs {
				if _, ok := tx.FindLineList(id); !ok {
					return ErrNotFound{Entity: EntityLineList, ID: id}
				}
			}
			var err error
			updated, err = tx.UpdateRun(runID, func(r *SynthesisRun) error {
				r.LineListIDs = append([]string(nil), listIDs...)
				return nil
			})
			return err
		})
		return err
	}, func() string { return runID })
	return updated, res, err
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(id string) (SynthesisRun, bool) { return s.store.GetRun(id) }

// ListRuns returns all synthesis runs.
func (s *Service) ListRuns() []SynthesisRun { return s.store.ListRuns() }

// ListLineLists returns all line lists.
func (s *Service) ListLineLists() []LineList { return s.store.ListLineLists() }

// ListAtmospheres returns all model atmospheres.
func (s *Service) ListAtmospheres() []AtmosphereModel { return s.store.ListAtmospheres() }

// ListArtifacts returns all spectrum artifacts.
func (s *Service) ListArtifacts() []SpectrumArtifact { return s.store.ListArtifacts() }

// ErrNotFound is returned when reference validation fails within transactional helpers.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
