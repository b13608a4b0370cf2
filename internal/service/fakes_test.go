package service

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/service/servicetest"
)

type (
	memAccounts        = servicetest.Accounts
	memRevocations     = servicetest.Revocations
	memExams           = servicetest.Exams
	memPapers          = servicetest.Papers
	fakeGateway        = servicetest.Gateway
	recordingPublisher = servicetest.Publisher
	recordingMailer    = servicetest.Mailer
)

var (
	newMemAccounts    = servicetest.NewAccounts
	newMemRevocations = servicetest.NewRevocations
	newMemExams       = servicetest.NewExams
	newMemQuestions   = servicetest.NewQuestions
	newMemPapers      = servicetest.NewPapers
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
		Registration: config.RegistrationFee{
			Amount:   2.50,
			Currency: "USD",
		},
	}
}

func newTestAuth(accounts AccountStore, revocations RevocationStore) *AuthService {
	return NewAuthService(testConfig(), accounts, revocations, zerolog.Nop())
}

func staff(id int) *Claims {
	return &Claims{UserID: id, Role: model.RoleAdmin}
}

func superadmin(id int) *Claims {
	return &Claims{UserID: id, Role: model.RoleSuperadmin}
}

func tutor(id int) *Claims {
	return &Claims{UserID: id, Role: model.RoleTutor}
}

func student(id int) *Claims {
	return &Claims{UserID: id, Role: model.RoleStudent}
}
