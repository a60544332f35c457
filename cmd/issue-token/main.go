package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
	"golang.org/x/term"
)

// issue-token mints an access token for local testing. Production tokens come
// from the user directory that owns the candidates.
func main() {
	var userID, tokenType string
	flag.StringVar(&userID, "user", "", "user id to put in the token")
	flag.StringVar(&tokenType, "type", string(service.TokenTypeCandidate), "token type: candidate or admin")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── CLI Input ─────────────────────────────────────────────────────
	if userID == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		reader := bufio.NewReader(os.Stdin)
		fmt.Println("=== Issue Access Token ===")
		fmt.Print("Enter User ID: ")
		line, _ := reader.ReadString('\n')
		userID = strings.TrimSpace(line)
	}
	if userID == "" {
		fmt.Println("Error: User ID is required")
		os.Exit(1)
	}

	tt := service.TokenType(tokenType)
	if tt != service.TokenTypeCandidate && tt != service.TokenTypeAdmin {
		fmt.Println("Error: type must be candidate or admin")
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────

	// Candidate tokens are only useful for users present in the directory.
	if tt == service.TokenTypeCandidate {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		_, err = repository.NewCandidateRepository(pool).GetByUserID(ctx, userID)
		if errors.Is(err, model.ErrCandidateNotFound) {
			fmt.Printf("Warning: candidate %q is not in the directory; sessions will fail to load\n", userID)
		} else if err != nil {
			log.Fatal().Err(err).Msg("Failed to look up candidate")
		}
	}

	token, err := service.NewAuthService(cfg).GenerateToken(userID, tt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("\nToken for %s '%s' (expires in %s):\n", tt, userID, cfg.JWTExpiry)
	}
	fmt.Println(token)
}
