package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/importer"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:          "import-quiz <file.yaml|file.json>...",
		Short:        "Validate quiz documents and upsert them into their track",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			validator.Setup()
			return run(cmd.Context(), args, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only, do not write")
	return cmd
}

type document struct {
	path string
	quiz *model.Quiz
}

func run(ctx context.Context, paths []string, dryRun bool) error {
	// Validate every document before touching the database.
	docs := make([]document, 0, len(paths))
	for _, p := range paths {
		q, err := importer.ReadQuiz(p)
		if err != nil {
			return err
		}
		docs = append(docs, document{path: p, quiz: q})
		fmt.Printf("OK  %s -> %s/%s (%d questions)\n", p, q.Track, q.ID, len(q.Questions))
	}
	if dryRun {
		return nil
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	quizService := service.NewQuizService(repository.NewQuizRepository(pool), rdb, cfg.QuizCacheTTL, log)
	for _, r := range docs {
		if err := quizService.Save(ctx, r.quiz); err != nil {
			return fmt.Errorf("%s: %w", r.path, err)
		}
		fmt.Printf("Imported %s/%s\n", r.quiz.Track, r.quiz.ID)
	}
	return nil
}
