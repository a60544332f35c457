package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-quiz/internal/exam"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// CandidateDirectory looks up candidates by user id.
type CandidateDirectory interface {
	GetByUserID(ctx context.Context, userID string) (*model.Candidate, error)
}

// IdentityService turns an authenticated user id into a Candidate.
type IdentityService struct {
	dir CandidateDirectory
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(dir CandidateDirectory) *IdentityService {
	return &IdentityService{dir: dir}
}

// Resolve returns the candidate for userID. Unknown users yield
// exam.ErrIdentityUnresolved.
func (s *IdentityService) Resolve(ctx context.Context, userID string) (model.Candidate, error) {
	if userID == "" {
		return model.Candidate{}, exam.ErrIdentityUnresolved
	}
	c, err := s.dir.GetByUserID(ctx, userID)
	if errors.Is(err, model.ErrCandidateNotFound) {
		return model.Candidate{}, fmt.Errorf("%w: unknown user %s", exam.ErrIdentityUnresolved, userID)
	}
	if err != nil {
		return model.Candidate{}, fmt.Errorf("lookup candidate %s: %w", userID, err)
	}
	return *c, nil
}

// Provider binds Resolve to one user for a session.
func (s *IdentityService) Provider(userID string) exam.IdentityProvider {
	return exam.IdentityFunc(func(ctx context.Context) (model.Candidate, error) {
		return s.Resolve(ctx, userID)
	})
}
