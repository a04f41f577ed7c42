package authcfg

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/zenwatch/zenwatch/internal/db/models"
	"github.com/zenwatch/zenwatch/internal/uniuri"
)

// recordChange appends one immutable audit entry inside the caller's
// transaction. The before map is restricted to fields that actually changed;
// the after map carries the full proposed input. The commit-time clock and a
// random correlation id are assigned here.
//
// Audit-on-write is part of the durability contract: a failed append fails
// the enclosing mutation, and the shared transaction rolls the data write
// back with it.
func recordChange(tx *gorm.DB, actor Actor, action, resourceKind string, resourceID uint64,
	before, after map[string]any,
) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return errors.Wrap(err, "failed to encode audit before snapshot")
	}

	afterJSON, err := json.Marshal(after)
	if err != nil {
		return errors.Wrap(err, "failed to encode audit after snapshot")
	}

	entry := models.AuditEntry{
		CUID:         uniuri.New(),
		ActorID:      actor.ID,
		Action:       action,
		ResourceKind: resourceKind,
		ResourceID:   resourceID,
		Before:       beforeJSON,
		After:        afterJSON,
		Clock:        time.Now(),
	}

	if err := tx.Create(&entry).Error; err != nil {
		return errors.Wrap(ErrStorage, "failed to append audit entry: "+err.Error())
	}

	log.Debug().
		Str("cuid", entry.CUID).
		Str("action", action).
		Str("resource", resourceKind).
		Uint64("resourceid", resourceID).
		Uint64("actorid", actor.ID).
		Msg("audit entry recorded")

	return nil
}

// redactedFields are never written to the audit log in clear text.
var redactedFields = map[string]bool{
	"bind_password": true,
}

// redact replaces sensitive values in a snapshot map before encoding.
func redact(snapshot map[string]any) map[string]any {
	out := make(map[string]any, len(snapshot))
	for name, value := range snapshot {
		if redactedFields[name] {
			out[name] = "******"
			continue
		}
		out[name] = value
	}

	return out
}
