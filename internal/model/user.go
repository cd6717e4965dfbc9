package model

import "time"

// Staff roles carried in the JWT "role" claim.
const (
	RoleAgent      = "AGENT"
	RoleSupervisor = "SUPERVISOR"
)

// Staff represents an airline staff account as stored in the
// `staff_users` table.  Staff act as lease holders: the string form of
// ID is the holder id written into every SeatLease they acquire.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique login email.
//  DisplayName  – name shown to other terminals.
//  PasswordHash – bcrypt hashed password.
//  Role         – AGENT or SUPERVISOR.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Staff struct {
	ID           uint64    // staff_users.id
	Email        string    // staff_users.email
	DisplayName  string    // staff_users.display_name
	PasswordHash string    // staff_users.password_hash
	Role         string    // staff_users.role
	IsActive     bool      // staff_users.is_active
	CreatedAt    time.Time // staff_users.created_at
	UpdatedAt    time.Time // staff_users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	StaffID   uint64     // refresh_tokens.staff_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
