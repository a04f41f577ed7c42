package models

import "time"

// StartTLS policy values for DirectoryProvider.StartTLS.
const (
	// StartTLSOff connects in plaintext.
	StartTLSOff = 0
	// StartTLSOn upgrades the connection with the LDAP StartTLS extension.
	StartTLSOn = 1
)

// DefaultLDAPPort is the standard plaintext LDAP port.
const DefaultLDAPPort = 389

// DirectoryProvider is one configured external LDAP identity source.
// Providers are ordered by creation (ascending id); at most one of them is
// referenced as the default by the AuthConfig singleton.
type DirectoryProvider struct {
	// ID is assigned on creation and never reused.
	ID uint64 `gorm:"primaryKey"`
	// Name is the unique display label.
	Name string `gorm:"size:128;not null;unique"`
	// Host is the LDAP server hostname or IP address.
	Host string `gorm:"size:255;not null"`
	// Port is the LDAP server port (typically 389 for LDAP, 636 for LDAPS).
	Port int `gorm:"not null;default:389"`
	// BaseDN is the base distinguished name for user searches.
	BaseDN string `gorm:"column:base_dn;size:255;not null"`
	// SearchAttribute is the attribute matched against the login name
	// (e.g. "uid", "sAMAccountName").
	SearchAttribute string `gorm:"size:128;not null"`
	// BindDN is the distinguished name for non-anonymous bind. Empty means
	// anonymous bind.
	BindDN string `gorm:"column:bind_dn;size:255;not null;default:''"`
	// BindPassword is the password for the bind DN.
	BindPassword string `gorm:"size:128;not null;default:''"`
	// Description is an optional human-readable note.
	Description string `gorm:"size:255;not null;default:''"`
	// StartTLS upgrades the connection to TLS after connect.
	StartTLS int `gorm:"column:start_tls;not null;default:0"`
	// SearchFilter overrides the default search filter built from
	// SearchAttribute.
	SearchFilter string `gorm:"size:255;not null;default:''"`
	// CreatedAt is the timestamp when the provider was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the DirectoryProvider model.
func (DirectoryProvider) TableName() string {
	return "directory_providers"
}
