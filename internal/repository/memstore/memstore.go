// Package memstore is an in-memory repository.TransactionalStore. Transactions
// run against a private copy of the data that replaces the shared copy only
// when the callback succeeds, so a failed operation leaves nothing behind.
// Transactions are serialized.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/repository"
)

type data struct {
	scopes      map[string]domain.ScopeOfWork
	tickets     map[string]domain.MaintenanceTicket
	users       map[string]domain.User
	contractors map[string]domain.Contractor
	history     []domain.ScopeOfWorkHistory
	invoices    []domain.InvoiceSummary
	threads     []domain.ThreadSummary
}

func newData() *data {
	return &data{
		scopes:      map[string]domain.ScopeOfWork{},
		tickets:     map[string]domain.MaintenanceTicket{},
		users:       map[string]domain.User{},
		contractors: map[string]domain.Contractor{},
	}
}

// clone copies every map. Records are stored by value and their pointer
// fields are never mutated in place, so a shallow copy per record suffices.
func (d *data) clone() *data {
	out := newData()
	for k, v := range d.scopes {
		out.scopes[k] = v
	}
	for k, v := range d.tickets {
		out.tickets[k] = v
	}
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.contractors {
		out.contractors[k] = v
	}
	out.history = append(out.history, d.history...)
	out.invoices = append(out.invoices, d.invoices...)
	out.threads = append(out.threads, d.threads...)
	return out
}

// Store is the in-memory TransactionalStore.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *data
	now  func() time.Time
	view *view
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{data: newData(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.view = &view{store: s}
	return s
}

var _ repository.TransactionalStore = (*Store)(nil)

func (s *Store) ScopesOfWork() repository.ScopeOfWorkRepository { return s.view.ScopesOfWork() }
func (s *Store) Tickets() repository.TicketRepository { return s.view.Tickets() }
func (s *Store) Users() repository.UserRepository { return s.view.Users() }
func (s *Store) Contractors() repository.ContractorRepository { return s.view.Contractors() }
func (s *Store) History() repository.ScopeOfWorkHistoryRepository { return s.view.History() }
func (s *Store) Invoices() repository.InvoiceRepository { return s.view.Invoices() }
func (s *Store) Threads() repository.ThreadRepository { return s.view.Threads() }

// WithinTx runs fn against a private copy and publishes it on success.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	working := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&view{store: s, tx: working}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = working
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// PutTicket inserts or replaces a ticket, filling in id and timestamps.
func (s *Store) PutTicket(ticket domain.MaintenanceTicket) domain.MaintenanceTicket {
	s.write(func(d *data) {
		if ticket.ID == "" {
			ticket.ID = uuid.NewString()
		}
		if ticket.CreatedAt.IsZero() {
			ticket.CreatedAt = s.now()
		}
		ticket.UpdatedAt = s.now()
		d.tickets[ticket.ID] = ticket
	})
	return ticket
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(user domain.User) domain.User {
	s.write(func(d *data) {
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = s.now()
		}
		user.UpdatedAt = s.now()
		d.users[user.ID] = user
	})
	return user
}

// PutContractor inserts or replaces a contractor.
func (s *Store) PutContractor(contractor domain.Contractor) domain.Contractor {
	s.write(func(d *data) {
		if contractor.ID == "" {
			contractor.ID = uuid.NewString()
		}
		if contractor.CreatedAt.IsZero() {
			contractor.CreatedAt = s.now()
		}
		contractor.UpdatedAt = s.now()
		d.contractors[contractor.ID] = contractor
	})
	return contractor
}

// PutInvoice attaches an invoice summary.
func (s *Store) PutInvoice(invoice domain.InvoiceSummary) domain.InvoiceSummary {
	s.write(func(d *data) {
		if invoice.ID == "" {
			invoice.ID = uuid.NewString()
		}
		if invoice.CreatedAt.IsZero() {
			invoice.CreatedAt = s.now()
		}
		d.invoices = append(d.invoices, invoice)
	})
	return invoice
}

// PutThread attaches a thread summary.
func (s *Store) PutThread(thread domain.ThreadSummary) domain.ThreadSummary {
	s.write(func(d *data) {
		if thread.ID == "" {
			thread.ID = uuid.NewString()
		}
		if thread.CreatedAt.IsZero() {
			thread.CreatedAt = s.now()
		}
		d.threads = append(d.threads, thread)
	})
	return thread
}

// PutScopeOfWork stores a scope as given, bypassing numbering and parent
// checks. Tests use it to build trees the service would never produce.
func (s *Store) PutScopeOfWork(sow domain.ScopeOfWork) domain.ScopeOfWork {
	s.write(func(d *data) {
		if sow.ID == "" {
			sow.ID = uuid.NewString()
		}
		if sow.CreatedAt.IsZero() {
			sow.CreatedAt = s.now()
		}
		sow.UpdatedAt = s.now()
		d.scopes[sow.ID] = sow
	})
	return sow
}

// ScopeOfWorkRaw returns a scope including soft-deleted ones.
func (s *Store) ScopeOfWorkRaw(id string) (domain.ScopeOfWork, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sow, ok := s.data.scopes[id]
	return sow, ok
}

// TicketRaw returns a ticket as stored.
func (s *Store) TicketRaw(id string) (domain.MaintenanceTicket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.data.tickets[id]
	return ticket, ok
}

func (s *Store) write(fn func(d *data)) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// view binds repositories either to the shared data (tx == nil) or to a
// transaction's private copy.
type view struct {
	store *Store
	tx    *data
}

func (v *view) read(fn func(d *data) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.data)
}

// mutate applies fn outside a transaction through the same copy-and-swap
// path, so a failing fn leaves the shared data untouched.
func (v *view) mutate(fn func(d *data) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	return v.store.WithinTx(context.Background(), func(tx repository.Store) error {
		return fn(tx.(*view).tx)
	})
}

func (v *view) now() time.Time {
	return v.store.now()
}

func (v *view) ScopesOfWork() repository.ScopeOfWorkRepository { return scopeRepo{v} }
func (v *view) Tickets() repository.TicketRepository { return ticketRepo{v} }
func (v *view) Users() repository.UserRepository { return userRepo{v} }
func (v *view) Contractors() repository.ContractorRepository { return contractorRepo{v} }
func (v *view) History() repository.ScopeOfWorkHistoryRepository { return historyRepo{v} }
func (v *view) Invoices() repository.InvoiceRepository { return invoiceRepo{v} }
func (v *view) Threads() repository.ThreadRepository { return threadRepo{v} }
