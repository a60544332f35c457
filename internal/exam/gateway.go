package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// Gateway is the only writer of attempt records for one session. It refuses
// to write twice and reports a write lost to another tab as
// ErrAlreadyAttempted together with the stored record.
type Gateway struct {
	store AttemptStore
	clock Clock

	mu        sync.Mutex
	inFlight  bool
	submitted bool
}

// NewGateway wraps store.
func NewGateway(store AttemptStore, clock Clock) *Gateway {
	if clock == nil {
		clock = SystemClock
	}
	return &Gateway{store: store, clock: clock}
}

// CheckExistingAttempt returns the candidate's stored attempt, or nil when
// there is none.
func (g *Gateway) CheckExistingAttempt(ctx context.Context, track model.Track, quizID, userID string) (*model.AttemptRecord, error) {
	rec, err := g.store.FindAttempt(ctx, track, quizID, userID)
	if errors.Is(err, model.ErrAttemptNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: check attempt: %w", ErrFetchFailed, err)
	}
	return rec, nil
}

// Submit writes the draft. A failed write leaves the gateway ready for a
// retry with the same draft.
func (g *Gateway) Submit(ctx context.Context, draft model.AttemptDraft) (*model.AttemptRecord, error) {
	g.mu.Lock()
	if g.submitted {
		g.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if g.inFlight {
		g.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	g.inFlight = true
	g.mu.Unlock()

	rec := draft.Record()
	rec.SubmittedAt = g.clock.Now().UTC()
	err := g.store.CreateAttempt(ctx, rec)

	var (
		existing *model.AttemptRecord
		findErr  error
	)
	if errors.Is(err, model.ErrDuplicateAttempt) {
		existing, findErr = g.store.FindAttempt(ctx, draft.Track, draft.QuizID, draft.Candidate.UserID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false

	switch {
	case err == nil:
		g.submitted = true
		return rec, nil
	case errors.Is(err, model.ErrDuplicateAttempt):
		g.submitted = true
		if findErr != nil {
			return nil, fmt.Errorf("%w: read stored attempt: %w", ErrAlreadyAttempted, findErr)
		}
		return existing, ErrAlreadyAttempted
	default:
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
}

// Submitted reports whether a record has been written or found.
func (g *Gateway) Submitted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitted
}
