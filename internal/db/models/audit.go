package models

import "time"

// Audit actions.
const (
	AuditActionAdd    = "add"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

// Audit resource kinds.
const (
	AuditResourceAuthentication = "authentication"
	AuditResourceDirectory      = "directory"
)

// AuditEntry is one immutable change record. Entries are appended in the
// same transaction as the mutation they describe and are never updated.
type AuditEntry struct {
	// ID is the unique identifier for the entry.
	ID uint64 `gorm:"primaryKey"`
	// CUID is a random correlation id, stable across log shipping.
	CUID string `gorm:"column:cuid;size:32;not null;index"`
	// ActorID is the id of the acting principal.
	ActorID uint64 `gorm:"not null;index"`
	// Action is one of the AuditAction constants.
	Action string `gorm:"size:16;not null"`
	// ResourceKind is one of the AuditResource constants.
	ResourceKind string `gorm:"size:32;not null;index"`
	// ResourceID is the primary key of the mutated record.
	ResourceID uint64 `gorm:"not null"`
	// Before holds the prior values of the touched record, JSON encoded and
	// restricted to fields that actually changed.
	Before []byte `gorm:"type:blob"`
	// After holds the full proposed input, JSON encoded, including fields
	// whose value did not change.
	After []byte `gorm:"type:blob"`
	// Clock is the commit-time timestamp assigned by the recorder.
	Clock time.Time `gorm:"not null"`
}

// TableName specifies the database table name for the AuditEntry model.
func (AuditEntry) TableName() string {
	return "audit_log"
}
