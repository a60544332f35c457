// Package notify delivers exam session notifications outside the process.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/exam"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Fanout delivers each notification to every sink in order. Nil sinks are
// skipped.
type Fanout []exam.Notifier

func (f Fanout) Notify(n model.Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(n)
		}
	}
}

// RedisSink publishes notifications to the quiz monitor channel and queues
// violations for the audit trail. Ticks stay local.
type RedisSink struct {
	rdb     *redis.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewRedisSink creates a RedisSink.
func NewRedisSink(rdb *redis.Client, log zerolog.Logger) *RedisSink {
	return &RedisSink{
		rdb:     rdb,
		timeout: 2 * time.Second,
		log:     log.With().Str("component", "notify_redis").Logger(),
	}
}

func (s *RedisSink) Notify(n model.Notification) {
	if n.Kind == model.NotifyTick {
		return
	}

	data, err := json.Marshal(n)
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(n.Kind)).Msg("Failed to encode notification")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	pipe := s.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.QuizMonitorChannel(string(n.Track), n.QuizID), data)
	if ev, ok := ViolationFrom(n); ok {
		payload, _ := json.Marshal(ev)
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).
			Str("kind", string(n.Kind)).
			Str("quiz_id", n.QuizID).
			Str("user_id", n.UserID).
			Msg("Failed to publish notification")
	}
}

// ViolationFrom extracts the audit event carried by a warning or a
// disqualification.
func ViolationFrom(n model.Notification) (model.ViolationEvent, bool) {
	if n.Kind != model.NotifyViolationWarning && n.Kind != model.NotifyDisqualified {
		return model.ViolationEvent{}, false
	}
	return model.ViolationEvent{
		Track:          n.Track,
		QuizID:         n.QuizID,
		UserID:         n.UserID,
		Kind:           n.Violation,
		Level:          n.Kind,
		ViolationCount: n.Count,
		Message:        n.Message,
		RecordedAt:     n.At.Unix(),
	}, true
}
