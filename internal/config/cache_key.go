package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizDefinitionKey returns the cache key for a quiz definition
func (r *CacheKeyStruct) QuizDefinitionKey(track, quizID string) string {
	return fmt.Sprintf("quiz:%s:%s:definition", track, quizID)
}

// QuizMonitorChannel returns the Redis PubSub channel name for a quiz monitor
func (r *CacheKeyStruct) QuizMonitorChannel(track, quizID string) string {
	return fmt.Sprintf("quiz:%s:%s:monitor", track, quizID)
}

var CacheKey = NewCacheKeyStruct()
