package models

import "time"

// UserType is the privilege tier of an account. Only super admins may change
// global authentication settings.
type UserType int

const (
	// UserTypeUser is a regular account with no administrative rights.
	UserTypeUser UserType = 1
	// UserTypeAdmin may administer monitoring objects but not global settings.
	UserTypeAdmin UserType = 2
	// UserTypeSuperAdmin may change global settings, including authentication.
	UserTypeSuperAdmin UserType = 3
)

// User represents an account acting on the system. Credential material and
// login execution live outside this subsystem; the engine only needs the
// identity and privilege tier of the acting principal.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Active indicates whether the user account is active and can log in.
	Active bool
	// Username is the unique username for login.
	Username string `gorm:"unique;size:100;not null"`
	// Type is the privilege tier of the account.
	Type UserType `gorm:"column:user_type;not null;default:1"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
}
