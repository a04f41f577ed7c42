package authcfg

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/zenwatch/zenwatch/internal/db/models"
)

// AuthConfigStore holds the singleton authentication record and computes
// field-level diffs against proposed updates. Mutation orchestration
// (locking, transactions, audit) lives in Service.
type AuthConfigStore struct {
	db *gorm.DB
}

// NewAuthConfigStore creates a store over the given database handle.
func NewAuthConfigStore(db *gorm.DB) *AuthConfigStore {
	return &AuthConfigStore{db: db}
}

// load reads the singleton row. ErrNotFound only occurs when the system has
// never been provisioned.
func (s *AuthConfigStore) load(tx *gorm.DB) (*models.AuthConfig, error) {
	var cfg models.AuthConfig

	err := tx.First(&cfg, models.AuthConfigID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(ErrNotFound, "authentication configuration is not provisioned")
		}
		return nil, pkgerrors.Wrap(ErrStorage, err.Error())
	}

	return &cfg, nil
}

// Get returns the requested fields of the current configuration, or all
// fields when none are requested.
func (s *AuthConfigStore) Get(fields []string) (map[string]any, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	cfg, err := s.load(s.db)
	if err != nil {
		return nil, err
	}

	return Project(cfg, fields)
}

// diffAuthConfig computes the minimal update set: a field is changed only if
// it is present in the patch and its value differs from the stored one.
// Strings compare exactly, numeric fields loosely. Returns the values to
// persist keyed by column name, plus the prior values of exactly those
// fields.
func diffAuthConfig(current *models.AuthConfig, patch *AuthConfigPatch) (updates, before map[string]any) {
	updates = make(map[string]any)
	before = make(map[string]any)

	for _, b := range authConfigFields {
		proposed, present := b.proposed(patch)
		if !present {
			continue
		}

		stored := b.current(current)
		if looseEqual(proposed, stored) {
			continue
		}

		value := proposed
		// Stored as NULL when the weak reference is cleared.
		if b.rule.name == FieldLDAPDefaultProviderID {
			if n, _ := asInt64(proposed); n == 0 {
				value = nil
			}
		}

		updates[b.rule.name] = value
		before[b.rule.name] = stored
	}

	return updates, before
}

// apply persists exactly the given fields of the singleton row. The caller
// passes a transaction so the write and its audit entry commit together.
func (s *AuthConfigStore) apply(tx *gorm.DB, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	err := tx.Model(&models.AuthConfig{}).
		Where("id = ?", models.AuthConfigID).
		Updates(updates).Error
	if err != nil {
		return pkgerrors.Wrap(ErrStorage, err.Error())
	}

	return nil
}

// patchMap renders the present fields of a patch as a wire map. Used as the
// audit "after" snapshot, which carries the full proposed input rather than
// the persisted diff.
func patchMap(patch *AuthConfigPatch) map[string]any {
	out := make(map[string]any)
	for _, b := range authConfigFields {
		if value, present := b.proposed(patch); present {
			out[b.rule.name] = value
		}
	}

	return out
}

// effectivePolicy resolves the password policy pair an update would result
// in: proposed values where present, stored values otherwise.
func effectivePolicy(current *models.AuthConfig, patch *AuthConfigPatch) (int, models.PasswdCheckRules) {
	minLength := current.PasswdMinLength
	if patch.PasswdMinLength != nil {
		minLength = *patch.PasswdMinLength
	}

	rules := current.PasswdCheckRules
	if patch.PasswdCheckRules != nil {
		rules = *patch.PasswdCheckRules
	}

	return minLength, rules
}
