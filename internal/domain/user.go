package domain

import "time"

// User represents an authenticated tenant. Every CRM row belongs to exactly
// one user; the store layer scopes all statements to the owner's ID.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string

	// API key credential. Only the keyed hash is stored; the raw key is
	// returned to the caller once at issuance and never again retrievable.
	APIKeyHash      *string
	APIKeyExpiresAt *time.Time
	APIKeyActive    bool

	CreatedAt time.Time
}

// PendingSignup is a pre-verification signup: the account is created only
// after the emailed code is confirmed.
type PendingSignup struct {
	Email        string
	Code         string
	Name         string
	PasswordHash string
	ExpiresAt    time.Time
}

// Session is a server-side interactive session, consulted only when a request
// carries no Authorization header.
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SignupRequest holds parameters for starting a signup.
type SignupRequest struct {
	Name     string
	Email    string
	Password string
}

// Validate checks that the request is well-formed.
func (r *SignupRequest) Validate() error {
	if r.Name == "" || r.Email == "" || r.Password == "" {
		return ErrValidation("name, email and password are required")
	}
	return nil
}

// LoginRequest holds credentials for an interactive login.
type LoginRequest struct {
	Email    string
	Password string
}

// Validate checks that the request is well-formed.
func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return ErrValidation("email and password are required")
	}
	return nil
}

// BusinessSeed holds the prospect fields used to seed a default record
// bundle (prospect + interaction + deal + payment) in one transaction.
type BusinessSeed struct {
	Name      string
	Website   string
	Email     string
	Phone     string
	Pain      string
	PainScore int64
	Status    string
}

// BusinessIDs reports the identifiers created by a business seed.
type BusinessIDs struct {
	ProspectID    int64
	InteractionID int64
	DealID        int64
	PaymentID     int64
}
