package models

import "time"

// Group represents a user group. Groups backed by an external directory keep
// a reference to the provider they were synchronized from; that reference
// guards the provider against deletion while the group exists.
type Group struct {
	// ID is the unique identifier for the group.
	ID uint64 `gorm:"primaryKey"`
	// Name is the display name of the group as it appears in the system.
	Name string `gorm:"size:100;not null"`
	// DirectoryProviderID references the LDAP provider this group is bound
	// to. Nil for locally managed groups.
	DirectoryProviderID *uint64 `gorm:"column:directory_provider_id;index"`
	// Description provides a human-readable explanation of the group's purpose.
	Description string `gorm:"size:255"`
	// CreatedAt is the timestamp when the group was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the group was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Group model.
// This overrides GORM's default pluralized table naming.
func (Group) TableName() string {
	return "groups"
}
