package model

import "time"

// Role is the fixed set of account roles.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTutor      Role = "tutor"
	RoleParent     Role = "parent"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// AllRoles lists every valid role.
var AllRoles = []Role{RoleStudent, RoleTutor, RoleParent, RoleAdmin, RoleSuperadmin}

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleParent, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// IsStaff reports whether r may manage other accounts.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// Account is a user of the system. Students carry registration profile and
// payment fields; admin-provisioned accounts leave PaymentStatus empty.
type Account struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	IsActive     bool   `json:"is_active"`
	CreatedBy    *int   `json:"created_by,omitempty"`

	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Phone         string     `json:"phone"`
	ProfilePhoto  string     `json:"profile_photo"`
	MaritalStatus string     `json:"marital_status"`
	DOB           *time.Time `json:"dob,omitempty"`
	State         string     `json:"state"`
	LocalGovt     string     `json:"local_govt"`
	Address       string     `json:"address"`
	Nationality   string     `json:"nationality"`
	NIN           string     `json:"nin"`
	Department    string     `json:"department"`
	Gender        string     `json:"gender"`
	PrivacyPolicy bool       `json:"privacy_policy"`

	PaymentStatus    PaymentStatus `json:"payment_status,omitempty"`
	PaymentOrderID   string        `json:"payment_order_id,omitempty"`
	PaymentAmount    *float64      `json:"payment_amount,omitempty"`
	PaymentCurrency  string        `json:"payment_currency,omitempty"`
	PaymentDate      *time.Time    `json:"payment_date,omitempty"`
	CaptureClaimedAt *time.Time    `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// ─── Requests ─────────────────────────────────────────────────────────

// LoginRequest is the payload for authentication. Role selects which account
// kind the credentials are checked against.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	Role     Role   `json:"role" binding:"required,oneof=student tutor parent admin superadmin"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *Account  `json:"user"`
}

// RegisterRequest is the self-registration payload of a student.
type RegisterRequest struct {
	FirstName     string `json:"first_name" binding:"required,max=100,personname"`
	LastName      string `json:"last_name" binding:"required,max=100,personname"`
	Email         string `json:"email" binding:"required,email,max=255"`
	Password      string `json:"password" binding:"required,min=6,max=128"`
	Phone         string `json:"phone" binding:"required,phone"`
	ProfilePhoto  string `json:"profile_photo" binding:"required,max=2048"`
	MaritalStatus string `json:"marital_status" binding:"required,oneof=Single Married Divorced Widowed"`
	DOB           string `json:"dob" binding:"required,pastdate"`
	State         string `json:"state" binding:"required,max=100"`
	LocalGovt     string `json:"local_govt" binding:"required,max=100"`
	Address       string `json:"address" binding:"required,max=500"`
	Nationality   string `json:"nationality" binding:"required,max=100"`
	NIN           string `json:"nin" binding:"required,numeric,max=20"`
	Department    string `json:"department" binding:"required,oneof=Science Commercial Art"`
	Gender        string `json:"gender" binding:"required,oneof=male female"`
	PrivacyPolicy bool   `json:"privacy_policy" binding:"required"`
}

// RegisterResponse is returned after a successful self-registration.
type RegisterResponse struct {
	AccountID     int           `json:"account_id"`
	Email         string        `json:"email"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// CreateAccountRequest is the payload an admin uses to provision an account.
type CreateAccountRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=6,max=128"`
	Role      Role   `json:"role" binding:"required,oneof=student tutor parent admin superadmin"`
	FirstName string `json:"first_name" binding:"required,max=100,personname"`
	LastName  string `json:"last_name" binding:"required,max=100,personname"`
	Phone     string `json:"phone" binding:"omitempty,phone"`
}

// UpdateProfileRequest carries the editable profile fields. Empty fields are
// left unchanged. Password requires CurrentPassword unless a staff member
// edits someone else's profile.
type UpdateProfileRequest struct {
	FirstName       string `json:"first_name" binding:"omitempty,max=100,personname"`
	LastName        string `json:"last_name" binding:"omitempty,max=100,personname"`
	Phone           string `json:"phone" binding:"omitempty,phone"`
	ProfilePhoto    string `json:"profile_photo" binding:"omitempty,max=2048"`
	MaritalStatus   string `json:"marital_status" binding:"omitempty,oneof=Single Married Divorced Widowed"`
	State           string `json:"state" binding:"omitempty,max=100"`
	LocalGovt       string `json:"local_govt" binding:"omitempty,max=100"`
	Address         string `json:"address" binding:"omitempty,max=500"`
	Nationality     string `json:"nationality" binding:"omitempty,max=100"`
	Password        string `json:"password" binding:"omitempty,min=6,max=128"`
	CurrentPassword string `json:"current_password" binding:"omitempty,max=128"`
}

// UpdateStatusRequest activates or deactivates an account.
type UpdateStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// ListAccountsFilter narrows an account listing.
type ListAccountsFilter struct {
	Role Role
}
