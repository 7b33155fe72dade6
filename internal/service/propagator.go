package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/observability"
	"github.com/spec-kit/sow-service/internal/repository"
	apperrors "github.com/spec-kit/sow-service/pkg/util/errorutil"
)

// DefaultMaxPropagationDepth bounds the ancestor walk.
const DefaultMaxPropagationDepth = 100

// ErrPropagationDepthExceeded means the parent chain is longer than the
// configured bound or loops back on itself.
var ErrPropagationDepthExceeded = errors.New("status propagation exceeded maximum depth")

// AncestorChange describes one ancestor updated by a propagation walk.
type AncestorChange struct {
	ID        string
	Number    string
	OldStatus domain.TicketStatus
}

// Propagator applies a status to every ancestor of a scope of work and to
// each ancestor's member tickets.
type Propagator struct {
	maxDepth int
	metrics  *observability.Metrics
}

// NewPropagator returns a propagator; maxDepth <= 0 selects the default.
func NewPropagator(maxDepth int, metrics *observability.Metrics) *Propagator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPropagationDepth
	}
	return &Propagator{maxDepth: maxDepth, metrics: metrics}
}

// Propagate walks upward from startParentID. A missing or deleted ancestor
// ends the walk. Exceeding the depth bound or revisiting an ancestor aborts
// with an internal error so the caller's transaction rolls back.
func (p *Propagator) Propagate(ctx context.Context, tx repository.Store, startParentID *string, status domain.TicketStatus) ([]AncestorChange, error) {
	var changes []AncestorChange
	visited := map[string]bool{}
	next := startParentID

	for next != nil {
		if len(changes) >= p.maxDepth || visited[*next] {
			return nil, apperrors.NewInternalError(fmt.Errorf("%w: stopped at %s after %d ancestors",
				ErrPropagationDepthExceeded, *next, len(changes)))
		}
		visited[*next] = true

		parent, err := tx.ScopesOfWork().GetByID(ctx, *next)
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}

		changes = append(changes, AncestorChange{ID: parent.ID, Number: parent.Number, OldStatus: parent.Status})
		parent.Status = status
		if err := tx.ScopesOfWork().Update(ctx, parent); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if _, err := tx.Tickets().UpdateMany(ctx,
			repository.TicketFilter{ScopeOfWorkID: &parent.ID},
			repository.TicketPatch{Status: &status},
		); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		next = parent.ParentID
	}

	p.metrics.ObservePropagationDepth(len(changes))
	return changes, nil
}
