package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// CandidateRepository reads the user directory.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

// GetByUserID returns the candidate or model.ErrCandidateNotFound.
func (r *CandidateRepository) GetByUserID(ctx context.Context, userID string) (*model.Candidate, error) {
	c := &model.Candidate{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, email, display_name, roll_number
		 FROM candidates
		 WHERE user_id = $1`, userID,
	).Scan(&c.UserID, &c.Email, &c.DisplayName, &c.RollNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrCandidateNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Upsert creates or refreshes a directory entry.
func (r *CandidateRepository) Upsert(ctx context.Context, c *model.Candidate) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO candidates (user_id, email, display_name, roll_number)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		     email = EXCLUDED.email,
		     display_name = EXCLUDED.display_name,
		     roll_number = EXCLUDED.roll_number,
		     updated_at = NOW()`,
		c.UserID, c.Email, c.DisplayName, c.RollNumber)
	return err
}
