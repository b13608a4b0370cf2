package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/enrolment-backend/internal/cache"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/database"
	"github.com/stemsi/enrolment-backend/internal/logger"
	"github.com/stemsi/enrolment-backend/internal/repository"
	"github.com/stemsi/enrolment-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	var email string
	var activate bool
	flag.StringVar(&email, "email", "", "Email of the account to reset")
	flag.BoolVar(&activate, "activate", false, "Also re-activate the account")
	flag.Parse()

	if email == "" {
		fmt.Println("Usage: reset-password -email <email> [-activate]")
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL + Redis ─────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	accountRepo := repository.NewAccountRepository(pool)
	authService := service.NewAuthService(cfg, accountRepo, cache.NewRevocationStore(rdb, cfg.JWTExpiry), log)

	fmt.Println("=== Reset Account Password ===")

	account, err := accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			fmt.Printf("Error: no account with email %s\n", email)
			return
		}
		log.Fatal().Err(err).Msg("Failed to load account")
	}

	fmt.Printf("Account #%d %s (%s)\n", account.ID, account.FullName(), account.Role)
	fmt.Print("Enter New Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	fmt.Println()
	if len(bytePassword) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		return
	}

	hash, err := authService.HashSecret(string(bytePassword))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}
	if err := accountRepo.UpdatePassword(ctx, account.ID, hash); err != nil {
		log.Fatal().Err(err).Msg("Failed to update password")
	}

	// Sessions opened with the old password are no longer valid.
	if err := authService.RevokeAccountSessions(ctx, account.ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to revoke existing sessions")
	}

	if activate && !account.IsActive {
		if err := accountRepo.SetActive(ctx, account.ID, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to activate account")
		}
		fmt.Println("Account re-activated.")
	}

	fmt.Println("\nSuccess! Password updated and existing sessions revoked.")
}
