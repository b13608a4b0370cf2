package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/database"
	"github.com/stemsi/enrolment-backend/internal/logger"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/repository"
	"github.com/stemsi/enrolment-backend/internal/service"
)

func main() {
	var count int
	var password string
	flag.IntVar(&count, "count", 20, "Number of demo students to create")
	flag.StringVar(&password, "password", "enrolment-demo", "Password shared by every seeded account")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	accountRepo := repository.NewAccountRepository(pool)
	authService := service.NewAuthService(cfg, accountRepo, nil, log)

	hash, err := authService.HashSecret(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	fmt.Printf("=== Seeding %d Students + 1 Tutor ===\n", count)

	tutor := &model.Account{
		Email:        "tutor@example.com",
		PasswordHash: hash,
		Role:         model.RoleTutor,
		IsActive:     true,
		FirstName:    "Demo",
		LastName:     "Tutor",
	}
	if err := accountRepo.Create(ctx, tutor); err != nil {
		fmt.Printf("Tutor not created: %v\n", err)
	}

	firstNames := []string{"Ada", "Bola", "Chidi", "Dayo", "Emeka", "Funmi", "Gozie", "Halima", "Ifeoma", "Jide"}
	lastNames := []string{"Okafor", "Adeyemi", "Bello", "Eze", "Nwosu"}
	departments := []string{"Science", "Commercial", "Art"}
	dob := time.Date(2005, time.March, 14, 0, 0, 0, 0, time.UTC)

	successCount := 0
	for i := 0; i < count; i++ {
		student := &model.Account{
			Email:         fmt.Sprintf("student%d@example.com", i+1),
			PasswordHash:  hash,
			Role:          model.RoleStudent,
			IsActive:      true,
			FirstName:     firstNames[i%len(firstNames)],
			LastName:      lastNames[i%len(lastNames)],
			Phone:         fmt.Sprintf("+23480%08d", i+1),
			ProfilePhoto:  "https://example.com/photos/default.png",
			MaritalStatus: "Single",
			DOB:           &dob,
			State:         "Lagos",
			LocalGovt:     "Ikeja",
			Address:       fmt.Sprintf("%d Allen Avenue", i+1),
			Nationality:   "Nigerian",
			NIN:           fmt.Sprintf("%011d", 10000000000+i),
			Department:    departments[i%len(departments)],
			Gender:        "female",
			PrivacyPolicy: true,
			PaymentStatus: model.PaymentPending,
		}
		if i%2 != 0 {
			student.Gender = "male"
		}

		if err := accountRepo.Create(ctx, student); err != nil {
			fmt.Printf("Error creating student %s: %v\n", student.Email, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d students...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, count)
}
