package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/enrolment-backend/internal/model"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("account with this email already exists")
	// ErrStaleState means a conditional payment update matched no row because
	// the account was no longer in the expected state.
	ErrStaleState = errors.New("payment state changed concurrently")
	// ErrCaptureClaimed means another request holds the capture claim for the order.
	ErrCaptureClaimed = errors.New("capture already claimed")
)

const uniqueViolation = "23505"

const accountColumns = `id, email, password_hash, role, is_active, created_by,
	first_name, last_name, phone, profile_photo, marital_status, dob, state, local_govt,
	address, nationality, nin, department, gender, privacy_policy,
	payment_status, payment_order_id, payment_amount, payment_currency, payment_date, capture_claimed_at,
	created_at, updated_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// AccountRepository handles account data access.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	var (
		paymentStatus, orderID, currency *string
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedBy,
		&a.FirstName, &a.LastName, &a.Phone, &a.ProfilePhoto, &a.MaritalStatus, &a.DOB, &a.State, &a.LocalGovt,
		&a.Address, &a.Nationality, &a.NIN, &a.Department, &a.Gender, &a.PrivacyPolicy,
		&paymentStatus, &orderID, &a.PaymentAmount, &currency, &a.PaymentDate, &a.CaptureClaimedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if paymentStatus != nil {
		a.PaymentStatus = model.PaymentStatus(*paymentStatus)
	}
	if orderID != nil {
		a.PaymentOrderID = *orderID
	}
	if currency != nil {
		a.PaymentCurrency = strings.TrimSpace(*currency)
	}
	return a, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetByEmail retrieves an account by its normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email))
}

// GetByOrderID retrieves the account that owns a gateway order.
func (r *AccountRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE payment_order_id = $1`, orderID))
}

// ExistsWithRole reports whether at least one account holds role.
func (r *AccountRepository) ExistsWithRole(ctx context.Context, role model.Role) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE role = $1)`, role,
	).Scan(&exists)
	return exists, err
}

// ListPaginated retrieves accounts with pagination and an optional role filter.
func (r *AccountRepository) ListPaginated(ctx context.Context, filter model.ListAccountsFilter, limit, offset int) ([]model.Account, int, error) {
	where := ""
	var args []interface{}
	if filter.Role != "" {
		where = ` WHERE role = $1`
		args = append(args, filter.Role)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	argIdx := len(args) + 1
	query := `SELECT ` + accountColumns + ` FROM accounts` + where +
		` ORDER BY id LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	accounts := make([]model.Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, total, rows.Err()
}

// Create inserts a new account. The unique email index reports duplicates as ErrDuplicateEmail.
func (r *AccountRepository) Create(ctx context.Context, a *model.Account) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (
			email, password_hash, role, is_active, created_by,
			first_name, last_name, phone, profile_photo, marital_status, dob, state, local_govt,
			address, nationality, nin, department, gender, privacy_policy, payment_status
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NULLIF($20, ''))
		 RETURNING id, created_at, updated_at`,
		a.Email, a.PasswordHash, a.Role, a.IsActive, a.CreatedBy,
		a.FirstName, a.LastName, a.Phone, a.ProfilePhoto, a.MaritalStatus, a.DOB, a.State, a.LocalGovt,
		a.Address, a.Nationality, a.NIN, a.Department, a.Gender, a.PrivacyPolicy, string(a.PaymentStatus),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// UpdateProfile writes the editable profile fields and the password hash of
// an account in one statement.
func (r *AccountRepository) UpdateProfile(ctx context.Context, a *model.Account) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET first_name = $1, last_name = $2, phone = $3, profile_photo = $4,
			marital_status = $5, state = $6, local_govt = $7, address = $8, nationality = $9,
			password_hash = $10, updated_at = NOW()
		 WHERE id = $11`,
		a.FirstName, a.LastName, a.Phone, a.ProfilePhoto,
		a.MaritalStatus, a.State, a.LocalGovt, a.Address, a.Nationality, a.PasswordHash, a.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces an account's password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive activates or deactivates an account.
func (r *AccountRepository) SetActive(ctx context.Context, id int, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET is_active = $1, updated_at = NOW() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Payment transitions ──────────────────────────────────────────────
// Every transition is a conditional UPDATE on the expected source state, so
// concurrent requests can never skip or repeat a step.

// AttachOrder records the gateway order and moves the account pending -> processing.
func (r *AccountRepository) AttachOrder(ctx context.Context, accountID int, orderID string, amount float64, currency string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET payment_order_id = $1, payment_amount = $2, payment_currency = $3,
			payment_status = 'processing', updated_at = NOW()
		 WHERE id = $4 AND payment_status = 'pending' AND payment_order_id IS NULL`,
		orderID, amount, currency, accountID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrStaleState
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// ClaimCapture marks a capture as in flight. Claims older than staleAfter are
// considered abandoned and may be taken over.
func (r *AccountRepository) ClaimCapture(ctx context.Context, orderID string, staleAfter time.Duration) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET capture_claimed_at = NOW()
		 WHERE payment_order_id = $1 AND payment_status = 'processing'
		   AND (capture_claimed_at IS NULL OR capture_claimed_at < NOW() - make_interval(secs => $2))`,
		orderID, staleAfter.Seconds(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaptureClaimed
	}
	return nil
}

// ReleaseCapture drops the capture claim so the capture may be retried.
func (r *AccountRepository) ReleaseCapture(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET capture_claimed_at = NULL
		 WHERE payment_order_id = $1 AND payment_status = 'processing'`,
		orderID,
	)
	return err
}

// CompletePayment moves processing -> completed and stamps the payment date.
func (r *AccountRepository) CompletePayment(ctx context.Context, orderID string, paidAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET payment_status = 'completed', payment_date = $1,
			capture_claimed_at = NULL, updated_at = NOW()
		 WHERE payment_order_id = $2 AND payment_status = 'processing'`,
		paidAt, orderID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// FailPayment moves pending or processing -> failed.
func (r *AccountRepository) FailPayment(ctx context.Context, orderID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET payment_status = 'failed', capture_claimed_at = NULL, updated_at = NOW()
		 WHERE payment_order_id = $1 AND payment_status IN ('pending', 'processing')`,
		orderID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}
