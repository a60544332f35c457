package database

import (
	"context"
	"time"
)

// Check runs each named probe with a shared short timeout and reports "ok" or
// the error text per name. The bool is false if any probe failed.
func Check(ctx context.Context, probes map[string]func(context.Context) error) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	healthy := true
	status := make(map[string]string, len(probes))
	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	return status, healthy
}
