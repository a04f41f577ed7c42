package authcfg

import (
	"errors"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/zenwatch/zenwatch/internal/db/models"
)

// Service composes the gate, validators, store and registry into the
// caller-facing operation surface.
//
// A single mutex serializes every mutation: the whole
// validate-diff-persist-audit pipeline of one call completes inside the lock
// and inside one transaction, so invariants spanning the singleton and the
// provider collection (the default pointer, reference counts) are never
// checked against a half-applied state. Reads bypass the lock; each read is
// one linearizable storage call and observes either the pre- or post-state
// of any mutation.
type Service struct {
	db       *gorm.DB
	store    *AuthConfigStore
	registry *DirectoryRegistry
	binder   Binder

	mu sync.Mutex
}

// NewService creates the configuration service. The binder is only used by
// TestProvider; pass an LDAPBinder in production.
func NewService(db *gorm.DB, binder Binder) *Service {
	return &Service{
		db:       db,
		store:    NewAuthConfigStore(db),
		registry: NewDirectoryRegistry(db, NewGroupStore(db)),
		binder:   binder,
	}
}

// GetAuthConfig returns the requested fields of the authentication
// configuration, or all fields when none are given.
func (s *Service) GetAuthConfig(actor Actor, fields []string) (map[string]any, error) {
	if err := Authorize(actor, OpGetAuthConfig); err != nil {
		return nil, err
	}

	return s.store.Get(fields)
}

// TestResult reports the outcome of a directory connectivity test.
type TestResult struct {
	Outcome BindOutcome
	Message string
}

// UpdateAuthConfig validates and applies a partial update of the singleton
// and returns the names of the fields that actually changed. Supplying only
// values equal to the stored ones is a successful no-op returning an empty
// set. An audit entry is written for every successful call.
func (s *Service) UpdateAuthConfig(actor Actor, patch *AuthConfigPatch) ([]string, error) {
	if err := Authorize(actor, OpUpdateAuthConfig); err != nil {
		return nil, err
	}

	if patch == nil || patch.Empty() {
		return nil, ValidationErrors{{Field: "input", Reason: "cannot be empty"}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var applied []string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.store.load(tx)
		if err != nil {
			return err
		}

		errs := ValidatePatch(patch)

		if fe := CheckPasswordPolicy(effectivePolicy(current, patch)); fe != nil {
			errs = append(errs, *fe)
		}

		if err := errs.ErrOrNil(); err != nil {
			return err
		}

		if err := s.checkDefaultProviderInvariant(tx, current, patch); err != nil {
			return err
		}

		updates, before := diffAuthConfig(current, patch)
		if err := s.store.apply(tx, updates); err != nil {
			return err
		}

		if err := recordChange(tx, actor, models.AuditActionUpdate, models.AuditResourceAuthentication,
			current.ID, redact(before), redact(patchMap(patch))); err != nil {
			return err
		}

		applied = sortedKeys(updates)

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Strs("fields", applied).Uint64("actorid", actor.ID).
		Msg("authentication configuration updated")

	return applied, nil
}

// checkDefaultProviderInvariant enforces that the default pointer resolves to
// an existing provider whenever LDAP is configured, using the effective
// (proposed else stored) view. An explicitly proposed default is checked for
// existence even when LDAP stays off.
func (s *Service) checkDefaultProviderInvariant(tx *gorm.DB, current *models.AuthConfig,
	patch *AuthConfigPatch,
) error {
	var defaultID uint64
	if current.LDAPDefaultProviderID != nil {
		defaultID = *current.LDAPDefaultProviderID
	}
	if patch.LDAPDefaultProviderID != nil {
		defaultID = *patch.LDAPDefaultProviderID
	}

	if patch.LDAPDefaultProviderID != nil && defaultID != 0 {
		if _, err := providerByID(tx, defaultID); err != nil {
			return err
		}
	}

	configured := current.LDAPConfigured
	if patch.LDAPConfigured != nil {
		configured = *patch.LDAPConfigured
	}

	if configured == 1 {
		if defaultID == 0 {
			return pkgerrors.Wrap(ErrConflict,
				"cannot enable LDAP without a default directory provider")
		}
		if _, err := providerByID(tx, defaultID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.Wrap(ErrConflict,
					"default directory provider does not exist")
			}
			return err
		}
	}

	return nil
}

// ListProviders returns all directory providers in creation order.
func (s *Service) ListProviders(actor Actor) ([]models.DirectoryProvider, error) {
	if err := Authorize(actor, OpListProviders); err != nil {
		return nil, err
	}

	return s.registry.List()
}

// AddProvider creates a directory provider and returns its new id. The first
// provider becomes the default automatically; ldap_configured is left as is.
func (s *Service) AddProvider(actor Actor, candidate *ProviderCandidate) (uint64, error) {
	if err := Authorize(actor, OpAddProvider); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id uint64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.store.load(tx)
		if err != nil {
			return err
		}

		id, err = s.registry.add(tx, cfg, candidate)
		if err != nil {
			return err
		}

		return recordChange(tx, actor, models.AuditActionAdd, models.AuditResourceDirectory,
			id, map[string]any{}, redact(candidateMap(candidate)))
	})
	if err != nil {
		return 0, err
	}

	log.Info().Uint64("providerid", id).Str("name", candidate.Name).
		Uint64("actorid", actor.ID).Msg("directory provider added")

	return id, nil
}

// UpdateProvider applies a partial update to one provider and returns the
// names of the fields that actually changed. Required fields are validated
// on the merged view so a partial update cannot blank them.
func (s *Service) UpdateProvider(actor Actor, id uint64, patch *ProviderPatch) ([]string, error) {
	if err := Authorize(actor, OpUpdateProvider); err != nil {
		return nil, err
	}

	if patch == nil {
		return nil, ValidationErrors{{Field: "input", Reason: "cannot be empty"}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var applied []string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.store.load(tx)
		if err != nil {
			return err
		}

		var before map[string]any
		applied, before, err = s.registry.update(tx, cfg, id, patch)
		if err != nil {
			return err
		}

		return recordChange(tx, actor, models.AuditActionUpdate, models.AuditResourceDirectory,
			id, redact(before), redact(providerPatchMap(patch)))
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(applied)

	return applied, nil
}

// RemoveProvider deletes one provider, reassigning or clearing the default
// as needed. A provider referenced by user groups cannot be removed, and the
// sole provider cannot be removed while LDAP authentication is active.
func (s *Service) RemoveProvider(actor Actor, id uint64) error {
	if err := Authorize(actor, OpRemoveProvider); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.store.load(tx)
		if err != nil {
			return err
		}

		provider, err := providerByID(tx, id)
		if err != nil {
			return err
		}

		if err := s.registry.remove(tx, cfg, id); err != nil {
			return err
		}

		return recordChange(tx, actor, models.AuditActionDelete, models.AuditResourceDirectory,
			id, redact(providerMap(provider)), map[string]any{})
	})
	if err != nil {
		return err
	}

	log.Info().Uint64("providerid", id).Uint64("actorid", actor.ID).
		Msg("directory provider removed")

	return nil
}

// SetDefaultProvider repoints the default at an existing provider. A missing
// id is NotFound, never silently ignored.
func (s *Service) SetDefaultProvider(actor Actor, id uint64) error {
	if err := Authorize(actor, OpSetDefaultProvider); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.store.load(tx)
		if err != nil {
			return err
		}

		var before map[string]any
		if cfg.LDAPDefaultProviderID == nil {
			before = map[string]any{FieldLDAPDefaultProviderID: int64(0)}
		} else {
			before = map[string]any{FieldLDAPDefaultProviderID: int64(*cfg.LDAPDefaultProviderID)}
		}

		if err := s.registry.setDefault(tx, id); err != nil {
			return err
		}

		return recordChange(tx, actor, models.AuditActionUpdate, models.AuditResourceAuthentication,
			cfg.ID, before, map[string]any{FieldLDAPDefaultProviderID: int64(id)})
	})
}

// TestProvider validates the candidate and credentials, then delegates the
// network bind to the binder and reports its outcome. No retries: a failed
// bind is a definitive, user-facing result.
func (s *Service) TestProvider(actor Actor, candidate *ProviderCandidate, creds *TestCredentials,
) (*TestResult, error) {
	if err := Authorize(actor, OpTestProvider); err != nil {
		return nil, err
	}

	var errs ValidationErrors
	errs = append(errs, validateStruct(candidate)...)
	errs = append(errs, validateStruct(creds)...)
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	outcome := s.binder.Bind(candidate, creds)

	log.Info().Str("host", candidate.Host).Str("outcome", outcome.String()).
		Uint64("actorid", actor.ID).Msg("directory provider tested")

	return &TestResult{Outcome: outcome, Message: outcome.String()}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// candidateMap renders a provider candidate as a wire map for auditing.
func candidateMap(c *ProviderCandidate) map[string]any {
	return map[string]any{
		ProviderFieldName:            c.Name,
		ProviderFieldHost:            c.Host,
		ProviderFieldPort:            c.Port,
		ProviderFieldBaseDN:          c.BaseDN,
		ProviderFieldSearchAttribute: c.SearchAttribute,
		ProviderFieldBindDN:          c.BindDN,
		ProviderFieldBindPassword:    c.BindPassword,
		ProviderFieldDescription:     c.Description,
		ProviderFieldStartTLS:        c.StartTLS,
		ProviderFieldSearchFilter:    c.SearchFilter,
	}
}

// providerMap renders a stored provider as a wire map for auditing.
func providerMap(p *models.DirectoryProvider) map[string]any {
	return map[string]any{
		ProviderFieldName:            p.Name,
		ProviderFieldHost:            p.Host,
		ProviderFieldPort:            p.Port,
		ProviderFieldBaseDN:          p.BaseDN,
		ProviderFieldSearchAttribute: p.SearchAttribute,
		ProviderFieldBindDN:          p.BindDN,
		ProviderFieldBindPassword:    p.BindPassword,
		ProviderFieldDescription:     p.Description,
		ProviderFieldStartTLS:        p.StartTLS,
		ProviderFieldSearchFilter:    p.SearchFilter,
	}
}

// providerPatchMap renders the present fields of a provider patch for
// auditing.
func providerPatchMap(p *ProviderPatch) map[string]any {
	out := make(map[string]any)

	if p.Name != nil {
		out[ProviderFieldName] = *p.Name
	}
	if p.Host != nil {
		out[ProviderFieldHost] = *p.Host
	}
	if p.Port != nil {
		out[ProviderFieldPort] = *p.Port
	}
	if p.BaseDN != nil {
		out[ProviderFieldBaseDN] = *p.BaseDN
	}
	if p.SearchAttribute != nil {
		out[ProviderFieldSearchAttribute] = *p.SearchAttribute
	}
	if p.BindDN != nil {
		out[ProviderFieldBindDN] = *p.BindDN
	}
	if p.BindPassword != nil {
		out[ProviderFieldBindPassword] = *p.BindPassword
	}
	if p.Description != nil {
		out[ProviderFieldDescription] = *p.Description
	}
	if p.StartTLS != nil {
		out[ProviderFieldStartTLS] = *p.StartTLS
	}
	if p.SearchFilter != nil {
		out[ProviderFieldSearchFilter] = *p.SearchFilter
	}

	return out
}
