package database

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCheckReportsEachProbe(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	status, healthy := Check(context.Background(), map[string]func(context.Context) error{
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	if healthy {
		t.Fatalf("expected unhealthy result")
	}
	if status["redis"] != "ok" {
		t.Fatalf("expected redis ok, got %q", status["redis"])
	}
	if status["postgres"] != "connection refused" {
		t.Fatalf("expected postgres error text, got %q", status["postgres"])
	}
}
