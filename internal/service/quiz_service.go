package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"golang.org/x/sync/singleflight"
)

// QuizStore is the durable home of quiz definitions.
type QuizStore interface {
	GetByID(ctx context.Context, track model.Track, id string) (*model.Quiz, error)
	Upsert(ctx context.Context, q *model.Quiz) error
}

// QuizService serves quiz definitions from Redis and falls back to the store
// on a miss. Concurrent misses for the same quiz share one store read.
type QuizService struct {
	store QuizStore
	rdb   *redis.Client
	ttl   time.Duration
	sf    singleflight.Group
	log   zerolog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewQuizService creates a new QuizService.
func NewQuizService(store QuizStore, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *QuizService {
	return &QuizService{
		store: store,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "quiz_service").Logger(),
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetQuiz returns the quiz definition, or model.ErrQuizNotFound.
func (s *QuizService) GetQuiz(ctx context.Context, track model.Track, quizID string) (*model.Quiz, error) {
	key := config.CacheKey.QuizDefinitionKey(string(track), quizID)
	if q, ok := s.cached(ctx, key); ok {
		return q, nil
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Another caller may have filled the cache meanwhile.
		if q, ok := s.cached(ctx, key); ok {
			return q, nil
		}

		q, err := s.store.GetByID(ctx, track, quizID)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, key, q)
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Quiz), nil
}

// Save validates an imported quiz, writes it and drops the cached copy.
func (s *QuizService) Save(ctx context.Context, q *model.Quiz) error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: a quiz needs at least one question", model.ErrInvalidQuiz)
	}
	if err := s.store.Upsert(ctx, q); err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}
	if err := s.Invalidate(ctx, q.Track, q.ID); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", q.ID).Msg("Failed to invalidate cached quiz")
	}

	s.log.Info().
		Str("track", string(q.Track)).
		Str("quiz_id", q.ID).
		Int("questions", len(q.Questions)).
		Msg("Quiz saved")
	return nil
}

// Invalidate removes the cached definition.
func (s *QuizService) Invalidate(ctx context.Context, track model.Track, quizID string) error {
	return s.rdb.Del(ctx, config.CacheKey.QuizDefinitionKey(string(track), quizID)).Err()
}

func (s *QuizService) cached(ctx context.Context, key string) (*model.Quiz, bool) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("Quiz cache read failed, falling back to database")
		}
		return nil, false
	}

	var q model.Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt cached quiz")
		return nil, false
	}
	return &q, true
}

func (s *QuizService) fill(ctx context.Context, key string, q *model.Quiz) {
	data, err := json.Marshal(q)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to encode quiz for cache")
		return
	}
	if err := s.rdb.Set(ctx, key, data, s.ttlWithJitter()).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache quiz")
	}
}

// ttlWithJitter spreads expiries by up to 10% of the base TTL.
func (s *QuizService) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(int64(s.ttl)/10+1))
}
