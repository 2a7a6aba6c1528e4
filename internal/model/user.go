package model

import "time"

// User represents an authorized identity as stored in the
// `authorized_users` table.  Email is the canonical, case-insensitive
// key; it is lowercased before every read or write.  Name and Phone
// start empty and are filled in during onboarding after the first
// login.  Role is either ADMIN or PARTICIPANT.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, normalized email address.
//  Name         – display name (empty until onboarding).
//  Phone        – contact phone (empty until onboarding).
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or PARTICIPANT.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // authorized_users.id
	Email        string    // authorized_users.email
	Name         string    // authorized_users.name
	Phone        string    // authorized_users.phone
	PasswordHash string    // authorized_users.password_hash
	Role         string    // authorized_users.role
	IsActive     bool      // authorized_users.is_active
	CreatedAt    time.Time // authorized_users.created_at
	UpdatedAt    time.Time // authorized_users.updated_at
}

// Role names stored in authorized_users.role and carried in JWT claims.
const (
	RoleAdmin       = "ADMIN"
	RoleParticipant = "PARTICIPANT"
)

// Onboarded reports whether the profile fields required before
// booking have been provided.
func (u User) Onboarded() bool {
	return u.Name != "" && u.Phone != ""
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
