package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sow-service/internal/config"
	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/events"
	"github.com/spec-kit/sow-service/internal/observability"
	"github.com/spec-kit/sow-service/internal/repository/memstore"
	"github.com/spec-kit/sow-service/internal/sequence"
)

var fixedNow = time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	t          *testing.T
	store      *memstore.Store
	svc        *ScopeOfWorkService
	metrics    *observability.Metrics
	recorder   *eventRecorder
	landlord   Actor
	contractor domain.Contractor
	worker     domain.User
}

type fixtureOption func(*ScopeOfWorkDependencies, *config.SequenceConfig)

func withMaxDepth(depth int) fixtureOption {
	return func(deps *ScopeOfWorkDependencies, _ *config.SequenceConfig) {
		deps.MaxPropagationDepth = depth
	}
}

func withMaxAttempts(attempts int) fixtureOption {
	return func(_ *ScopeOfWorkDependencies, cfg *config.SequenceConfig) {
		cfg.MaxAttempts = attempts
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	clock := func() time.Time { return fixedNow }
	store := memstore.New(memstore.WithClock(clock))
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	recorder := &eventRecorder{}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, recorder.handle)
	}

	seqCfg := config.SequenceConfig{MaxAttempts: 5, RetryDelayMillis: 0}
	deps := ScopeOfWorkDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     zap.NewNop(),
		Now:        clock,
	}
	for _, opt := range opts {
		opt(&deps, &seqCfg)
	}
	deps.Numbers = sequence.NewGenerator(seqCfg, sequence.Dependencies{
		Recorder: metrics,
		Now:      clock,
		Sleep:    func(context.Context, time.Duration) error { return nil },
	})

	landlord := store.PutUser(domain.User{Name: "Lena Landlord", Role: domain.RoleLandlord, Status: domain.UserStatusActive})
	contractor := store.PutContractor(domain.Contractor{CompanyName: "Fixit Ltd", Active: true})
	worker := store.PutUser(domain.User{
		Name:         "Carl Contractor",
		Role:         domain.RoleContractor,
		ContractorID: &contractor.ID,
		Status:       domain.UserStatusActive,
	})

	return &fixture{
		t:          t,
		store:      store,
		svc:        NewScopeOfWorkService(deps),
		metrics:    metrics,
		recorder:   recorder,
		landlord:   Actor{UserID: landlord.ID, Role: domain.RoleLandlord},
		contractor: contractor,
		worker:     worker,
	}
}

func (f *fixture) ticket(status domain.TicketStatus) domain.MaintenanceTicket {
	return f.store.PutTicket(domain.MaintenanceTicket{Title: "leaking tap", Status: status})
}

func (f *fixture) create(parentID *string, tickets ...domain.MaintenanceTicket) *domain.AggregateView {
	f.t.Helper()
	ids := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		ids = append(ids, ticket.ID)
	}
	view, err := f.svc.Create(context.Background(), f.landlord, CreateInput{TicketIDs: ids, ParentID: parentID})
	require.NoError(f.t, err)
	return view
}

func (f *fixture) scope(id string) domain.ScopeOfWork {
	f.t.Helper()
	sow, ok := f.store.ScopeOfWorkRaw(id)
	require.True(f.t, ok, "scope %s not stored", id)
	return sow
}

func (f *fixture) storedTicket(id string) domain.MaintenanceTicket {
	f.t.Helper()
	ticket, ok := f.store.TicketRaw(id)
	require.True(f.t, ok, "ticket %s not stored", id)
	return ticket
}

// setTicketStatus changes a ticket the way the ticketing module would.
func (f *fixture) setTicketStatus(id string, status domain.TicketStatus) {
	f.t.Helper()
	ticket := f.storedTicket(id)
	ticket.Status = status
	f.store.PutTicket(ticket)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

func (r *eventRecorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func strPtr(v string) *string {
	return &v
}
