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

// AttemptStats aggregates the attempts recorded for one quiz.
type AttemptStats struct {
	Total        int
	Disqualified int
	AverageScore float64
}

// AttemptRepository stores attempt records. The (quiz_id, user_id) unique
// constraint of each track's attempt table is what makes an attempt single
// across processes.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// FindAttempt returns the candidate's attempt or model.ErrAttemptNotFound.
func (r *AttemptRepository) FindAttempt(ctx context.Context, track model.Track, quizID, userID string) (*model.AttemptRecord, error) {
	rec := &model.AttemptRecord{Track: track}
	var answers []byte
	var trigger string

	err := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT id, quiz_id, user_id, email, name, roll_number, score, total_questions, answers,
		        time_taken_seconds, disqualified, reason, violation_count, submit_trigger, submitted_at
		 FROM %s
		 WHERE quiz_id = $1 AND user_id = $2`, track.AttemptTable()), quizID, userID,
	).Scan(&rec.ID, &rec.QuizID, &rec.UserID, &rec.Email, &rec.Name, &rec.RollNumber, &rec.Score, &rec.TotalQuestions, &answers,
		&rec.TimeTakenSeconds, &rec.Disqualified, &rec.Reason, &rec.ViolationCount, &trigger, &rec.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Trigger = model.SubmitTrigger(trigger)
	if err := json.Unmarshal(answers, &rec.Answers); err != nil {
		return nil, fmt.Errorf("decode answers of attempt %s: %w", rec.ID, err)
	}
	return rec, nil
}

// CreateAttempt inserts the record. A second attempt for the same candidate
// and quiz yields model.ErrDuplicateAttempt and leaves the first untouched.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, rec *model.AttemptRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, quiz_id, user_id, email, name, roll_number, score, total_questions, answers,
		                 time_taken_seconds, disqualified, reason, violation_count, submit_trigger, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (quiz_id, user_id) DO NOTHING
		 RETURNING id`, rec.Track.AttemptTable()),
		rec.ID, rec.QuizID, rec.UserID, rec.Email, rec.Name, rec.RollNumber, rec.Score, rec.TotalQuestions, string(answers),
		rec.TimeTakenSeconds, rec.Disqualified, rec.Reason, rec.ViolationCount, string(rec.Trigger), rec.SubmittedAt,
	).Scan(&rec.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrDuplicateAttempt
	}
	return err
}

// Stats aggregates the recorded attempts of a quiz.
func (r *AttemptRepository) Stats(ctx context.Context, track model.Track, quizID string) (AttemptStats, error) {
	var s AttemptStats
	err := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE disqualified),
		        COALESCE(AVG(score), 0)::float8
		 FROM %s
		 WHERE quiz_id = $1`, track.AttemptTable()), quizID,
	).Scan(&s.Total, &s.Disqualified, &s.AverageScore)
	return s, err
}
