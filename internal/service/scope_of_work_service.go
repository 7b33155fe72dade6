package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/events"
	"github.com/spec-kit/sow-service/internal/observability"
	"github.com/spec-kit/sow-service/internal/repository"
	"github.com/spec-kit/sow-service/internal/sequence"
	apperrors "github.com/spec-kit/sow-service/pkg/util/errorutil"
)

// Operation names used for metrics and logs.
const (
	OpCreate           = "create"
	OpAssignContractor = "assign_contractor"
	OpAddTicket        = "add_ticket"
	OpRemoveTicket     = "remove_ticket"
	OpAccept           = "accept"
	OpRefuse           = "refuse"
	OpMarkInReview     = "mark_in_review"
	OpClose            = "close"
	OpRemove           = "remove"
)

// Actor identifies who performs an operation. The zero value is an
// anonymous system caller.
type Actor struct {
	UserID string
	Role   domain.Role
}

func (a Actor) userID() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}

func (a Actor) event() events.Actor {
	out := events.Actor{UserID: a.userID()}
	if a.Role != "" {
		role := a.Role
		out.Role = &role
	}
	return out
}

// ScopeOfWorkService runs the scope-of-work lifecycle. Every mutation runs in
// one store transaction; events are published only after it commits.
type ScopeOfWorkService struct {
	store      repository.TransactionalStore
	numbers    *sequence.Generator
	propagator *Propagator
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// ScopeOfWorkDependencies bundles collaborators for the service.
type ScopeOfWorkDependencies struct {
	Store               repository.TransactionalStore
	Numbers             *sequence.Generator
	Dispatcher          events.Dispatcher
	Metrics             *observability.Metrics
	Logger              *zap.Logger
	MaxPropagationDepth int
	Now                 func() time.Time
}

// NewScopeOfWorkService constructs the service.
func NewScopeOfWorkService(deps ScopeOfWorkDependencies) *ScopeOfWorkService {
	s := &ScopeOfWorkService{
		store:      deps.Store,
		numbers:    deps.Numbers,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.numbers == nil {
		s.numbers = sequence.NewGenerator(defaultSequenceConfig, sequence.Dependencies{
			Recorder: deps.Metrics,
			Logger:   s.logger,
		})
	}
	s.propagator = NewPropagator(deps.MaxPropagationDepth, deps.Metrics)
	return s
}

// transact runs fn in a transaction and publishes the events it queued once
// the transaction commits.
func (s *ScopeOfWorkService) transact(ctx context.Context, op string, fn func(tx repository.Store, emit func(events.Event)) error) error {
	var pending []events.Event
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		pending = pending[:0]
		return fn(tx, func(event events.Event) {
			pending = append(pending, event)
		})
	})
	if err != nil {
		return s.fail(op, err)
	}
	s.metrics.RecordOperation(op, observability.ResultSuccess)
	for _, event := range pending {
		s.publishEvent(ctx, event)
	}
	return nil
}

// fail maps err to a DomainError, records the outcome and logs internals.
func (s *ScopeOfWorkService) fail(op string, err error) error {
	if errors.Is(err, errNumberTaken) && !apperrors.IsInternal(err) {
		return err
	}
	domainErr := apperrors.ToDomainError(err)
	switch domainErr.Code {
	case apperrors.CodeNotFound:
		s.metrics.RecordOperation(op, observability.ResultNotFound)
	case apperrors.CodeConflict, apperrors.CodeValidation:
		s.metrics.RecordOperation(op, observability.ResultRejected)
	default:
		s.metrics.RecordOperation(op, observability.ResultError)
		s.logger.Error("scope of work operation failed", zap.String("operation", op), zap.Error(err))
	}
	return domainErr
}

func (s *ScopeOfWorkService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *ScopeOfWorkService) recordHistory(ctx context.Context, tx repository.Store, actor Actor, sowID string, change domain.ChangeType, oldValue, newValue map[string]any) error {
	entry := &domain.ScopeOfWorkHistory{
		ScopeOfWorkID: sowID,
		ChangedByID:   actor.userID(),
		ChangeType:    change,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	return tx.History().Create(ctx, entry)
}

func newEvent(eventType events.EventType, actor Actor, sow *domain.ScopeOfWork, payload any) events.Event {
	return events.Event{
		Type:          eventType,
		ScopeOfWorkID: sow.ID,
		Number:        sow.Number,
		Actor:         actor.event(),
		Payload:       payload,
	}
}

// loadScopeOfWork resolves id or returns a NOT_FOUND domain error.
func loadScopeOfWork(ctx context.Context, store repository.Store, id string) (*domain.ScopeOfWork, error) {
	sow, err := store.ScopesOfWork().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "scope of work", map[string]any{"scope_of_work_id": id})
	}
	return sow, nil
}

func loadTicket(ctx context.Context, store repository.Store, id string) (*domain.MaintenanceTicket, error) {
	ticket, err := store.Tickets().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.NewInternalError(err)
}

func ticketIDs(tickets []domain.MaintenanceTicket) []string {
	ids := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		ids = append(ids, ticket.ID)
	}
	return ids
}

func derefString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
