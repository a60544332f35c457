package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuizRepository reads and writes quiz definitions. Each track keeps its
// quizzes in its own table.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetByID returns the quiz or model.ErrQuizNotFound.
func (r *QuizRepository) GetByID(ctx context.Context, track model.Track, id string) (*model.Quiz, error) {
	q := &model.Quiz{Track: track}
	var questions, profile []byte

	err := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT id, name, language, description, time_limit_minutes, exam_opens_at,
		        questions, security_profile, created_at, updated_at
		 FROM %s
		 WHERE id = $1`, track.QuizTable()), id,
	).Scan(&q.ID, &q.Name, &q.Language, &q.Description, &q.TimeLimitMinutes, &q.ExamOpensAt,
		&questions, &profile, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of %s/%s: %w", track, id, err)
	}
	if len(profile) > 0 {
		var sp model.SecurityProfile
		if err := json.Unmarshal(profile, &sp); err != nil {
			return nil, fmt.Errorf("decode security profile of %s/%s: %w", track, id, err)
		}
		q.SecurityProfile = &sp
	}
	return q, nil
}

// Upsert creates the quiz or replaces its definition. Existing attempts are
// kept.
func (r *QuizRepository) Upsert(ctx context.Context, q *model.Quiz) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	var profile *string
	if q.SecurityProfile != nil {
		b, err := json.Marshal(q.SecurityProfile)
		if err != nil {
			return err
		}
		s := string(b)
		profile = &s
	}

	return r.pool.QueryRow(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, name, language, description, time_limit_minutes, exam_opens_at, questions, security_profile)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb)
		 ON CONFLICT (id) DO UPDATE SET
		     name = EXCLUDED.name,
		     language = EXCLUDED.language,
		     description = EXCLUDED.description,
		     time_limit_minutes = EXCLUDED.time_limit_minutes,
		     exam_opens_at = EXCLUDED.exam_opens_at,
		     questions = EXCLUDED.questions,
		     security_profile = EXCLUDED.security_profile,
		     updated_at = NOW()
		 RETURNING created_at, updated_at`, q.Track.QuizTable()),
		q.ID, q.Name, q.Language, q.Description, q.TimeLimitMinutes, q.ExamOpensAt, string(questions), profile,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
}
