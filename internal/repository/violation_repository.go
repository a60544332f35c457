package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

var violationColumns = []string{"track", "quiz_id", "user_id", "kind", "level", "violation_count", "message", "recorded_at"}

// ViolationRepository persists the proctoring audit trail.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// CopyViolations bulk-loads a batch with the COPY protocol.
func (r *ViolationRepository) CopyViolations(ctx context.Context, batch []model.ViolationEvent) error {
	rows := make([][]any, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, violationRow(v))
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"quiz_violations"}, violationColumns, pgx.CopyFromRows(rows))
	return err
}

// InsertViolation writes a single event.
func (r *ViolationRepository) InsertViolation(ctx context.Context, v model.ViolationEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_violations (track, quiz_id, user_id, kind, level, violation_count, message, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		violationRow(v)...)
	return err
}

func violationRow(v model.ViolationEvent) []any {
	return []any{
		string(v.Track), v.QuizID, v.UserID, string(v.Kind), string(v.Level),
		v.ViolationCount, v.Message, time.Unix(v.RecordedAt, 0).UTC(),
	}
}
