package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/importer"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

func main() {
	var file string
	flag.StringVar(&file, "file", "candidates.yaml", "candidate roster (YAML or JSON)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	candidates, err := importer.ReadCandidates(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	candidateRepo := repository.NewCandidateRepository(pool)

	fmt.Printf("=== Seeding %d Candidates ===\n", len(candidates))

	successCount := 0
	for i := range candidates {
		c := &candidates[i]
		if err := candidateRepo.Upsert(ctx, c); err != nil {
			fmt.Printf("Error saving candidate %s (%s): %v\n", c.DisplayName, c.UserID, err)
			continue
		}
		successCount++
		if successCount%10 == 0 {
			fmt.Printf("Saved %d candidates...\n", successCount)
		}
	}

	fmt.Printf("\nSeed completed! Successfully saved %d/%d candidates.\n", successCount, len(candidates))
}
