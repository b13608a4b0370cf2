package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountFixture struct {
	svc         *AccountService
	auth        *AuthService
	accounts    *memAccounts
	revocations *memRevocations
}

func newAccountFixture() *accountFixture {
	f := &accountFixture{accounts: newMemAccounts(), revocations: newMemRevocations()}
	f.auth = newTestAuth(f.accounts, f.revocations)
	f.svc = NewAccountService(f.accounts, f.auth, zerolog.Nop())
	return f
}

func createRequest(email string, role model.Role) model.CreateAccountRequest {
	return model.CreateAccountRequest{
		Email:     email,
		Password:  "password123",
		Role:      role,
		FirstName: "Grace",
		LastName:  "Hopper",
	}
}

func TestCreateAccountByAdmin(t *testing.T) {
	f := newAccountFixture()

	a, err := f.svc.Create(context.Background(), staff(1), createRequest("Tutor@Example.com", model.RoleTutor))
	require.NoError(t, err)
	assert.Equal(t, "tutor@example.com", a.Email)
	assert.Equal(t, model.RoleTutor, a.Role)
	require.NotNil(t, a.CreatedBy)
	assert.Equal(t, 1, *a.CreatedBy)
	assert.Empty(t, a.PaymentStatus)
	assert.True(t, f.auth.VerifySecret(a.PasswordHash, "password123"))
}

func TestCreateStaffRequiresSuperadmin(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, staff(1), createRequest("admin2@example.com", model.RoleAdmin))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Create(ctx, superadmin(1), createRequest("admin2@example.com", model.RoleAdmin))
	assert.NoError(t, err)

	_, err = f.svc.Create(ctx, tutor(2), createRequest("x@example.com", model.RoleStudent))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateAccountDuplicate(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, staff(1), createRequest("dup@example.com", model.RoleParent))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, staff(1), createRequest("DUP@example.com", model.RoleParent))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestListAccountsFiltersByRole(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := f.svc.Create(ctx, staff(1), createRequest(email, model.RoleTutor))
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, staff(1), createRequest("p@example.com", model.RoleParent))
	require.NoError(t, err)

	accounts, pagination, err := f.svc.List(ctx, model.ListAccountsFilter{Role: model.RoleTutor}, 1, 1)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, 2, pagination.TotalItems)

	_, _, err = f.svc.List(ctx, model.ListAccountsFilter{Role: "root"}, 1, 10)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetForActor(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, staff(1), createRequest("s@example.com", model.RoleStudent))
	require.NoError(t, err)

	_, err = f.svc.GetForActor(ctx, student(a.ID), a.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetForActor(ctx, student(a.ID+1), a.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetForActor(ctx, staff(99), a.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetForActor(ctx, staff(99), 12345)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, staff(1), createRequest("s@example.com", model.RoleStudent))
	require.NoError(t, err)

	updated, err := f.svc.UpdateProfile(ctx, student(a.ID), a.ID, model.UpdateProfileRequest{
		Address: "5 Marina Road",
		State:   "Lagos",
	})
	require.NoError(t, err)
	assert.Equal(t, "5 Marina Road", updated.Address)
	assert.Equal(t, "Grace", updated.FirstName)

	stored, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lagos", stored.State)
}

func TestUpdateProfilePasswordNeedsCurrentPassword(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, staff(1), createRequest("s@example.com", model.RoleStudent))
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, student(a.ID), a.ID, model.UpdateProfileRequest{
		FirstName:       "Changed",
		Password:        "new-password",
		CurrentPassword: "wrong",
	})
	assert.ErrorIs(t, err, ErrWrongPassword)

	stored, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", stored.FirstName, "rejected password change leaves the profile untouched")

	_, err = f.svc.UpdateProfile(ctx, student(a.ID), a.ID, model.UpdateProfileRequest{
		Password:        "new-password",
		CurrentPassword: "password123",
	})
	require.NoError(t, err)
	stored, err = f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, f.auth.VerifySecret(stored.PasswordHash, "new-password"))
}

func TestPasswordChangeRevokesSessions(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f.auth.now = func() time.Time { return now }
	a, err := f.svc.Create(ctx, staff(1), createRequest("s@example.com", model.RoleStudent))
	require.NoError(t, err)
	_, old, err := f.auth.IssueToken(a.ID, a.Email, a.Role)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = f.svc.UpdateProfile(ctx, student(a.ID), a.ID, model.UpdateProfileRequest{
		State:           "Kano",
		Password:        "secret1",
		CurrentPassword: "password123",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, f.auth.CheckRevocation(ctx, old), ErrTokenRevoked)

	stored, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kano", stored.State)
	assert.True(t, f.auth.VerifySecret(stored.PasswordHash, "secret1"))

	now = now.Add(time.Second)
	login, err := f.auth.Login(ctx, model.LoginRequest{Email: "s@example.com", Password: "secret1", Role: model.RoleStudent})
	require.NoError(t, err)
	claims, err := f.auth.VerifyToken(login.Token)
	require.NoError(t, err)
	assert.NoError(t, f.auth.CheckRevocation(ctx, claims))
}

func TestProfileEditWithoutPasswordKeepsSessions(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, staff(1), createRequest("s@example.com", model.RoleStudent))
	require.NoError(t, err)
	_, claims, err := f.auth.IssueToken(a.ID, a.Email, a.Role)
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, student(a.ID), a.ID, model.UpdateProfileRequest{Address: "1 Broad Street"})
	require.NoError(t, err)
	assert.NoError(t, f.auth.CheckRevocation(ctx, claims))

	stored, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, f.auth.VerifySecret(stored.PasswordHash, "password123"), "hash is written back unchanged")
}

func TestStaffResetsPasswordWithoutCurrent(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, staff(1), createRequest("s@example.com", model.RoleStudent))
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, staff(1), a.ID, model.UpdateProfileRequest{Password: "reset-password"})
	require.NoError(t, err)
	stored, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, f.auth.VerifySecret(stored.PasswordHash, "reset-password"))
}

func TestSetActiveRevokesSessions(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, staff(1), createRequest("s@example.com", model.RoleStudent))
	require.NoError(t, err)

	_, claims, err := f.auth.IssueToken(a.ID, a.Email, a.Role)
	require.NoError(t, err)

	updated, err := f.svc.SetActive(ctx, staff(1), a.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.ErrorIs(t, f.auth.CheckRevocation(ctx, claims), ErrTokenRevoked)
}

func TestLoginRightAfterReactivation(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 30, 15, 400*int(time.Millisecond), time.UTC)
	f.auth.now = func() time.Time { return now }

	a, err := f.svc.Create(ctx, staff(1), createRequest("s@example.com", model.RoleStudent))
	require.NoError(t, err)
	_, before, err := f.auth.IssueToken(a.ID, a.Email, a.Role)
	require.NoError(t, err)

	_, err = f.svc.SetActive(ctx, staff(1), a.ID, false)
	require.NoError(t, err)
	now = now.Add(20 * time.Millisecond)
	_, err = f.svc.SetActive(ctx, staff(1), a.ID, true)
	require.NoError(t, err)
	now = now.Add(20 * time.Millisecond)

	login, err := f.auth.Login(ctx, model.LoginRequest{Email: "s@example.com", Password: "password123", Role: model.RoleStudent})
	require.NoError(t, err)
	claims, err := f.auth.VerifyToken(login.Token)
	require.NoError(t, err)

	assert.NoError(t, f.auth.CheckRevocation(ctx, claims), "same-second login after reactivation")
	assert.ErrorIs(t, f.auth.CheckRevocation(ctx, before), ErrTokenRevoked)
}

func TestSetActiveGuards(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()
	admin, err := f.svc.Create(ctx, superadmin(1), createRequest("admin@example.com", model.RoleAdmin))
	require.NoError(t, err)

	_, err = f.svc.SetActive(ctx, staff(admin.ID), admin.ID, false)
	assert.ErrorIs(t, err, ErrCannotDeactivateSelf)

	_, err = f.svc.SetActive(ctx, staff(77), admin.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SetActive(ctx, superadmin(1), admin.ID, false)
	assert.NoError(t, err)

	_, err = f.svc.SetActive(ctx, staff(77), 999, true)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestEnsureSuperadmin(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()

	created, err := f.svc.EnsureSuperadmin(ctx, "Root@Example.com", "password123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.EnsureSuperadmin(ctx, "other@example.com", "password123")
	require.NoError(t, err)
	assert.False(t, created)

	root, err := f.accounts.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperadmin, root.Role)
}
