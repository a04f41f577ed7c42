package authcfg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/zenwatch/zenwatch/internal/db/models"
)

// Wire names of the directory provider fields.
const (
	ProviderFieldName            = "name"
	ProviderFieldHost            = "host"
	ProviderFieldPort            = "port"
	ProviderFieldBaseDN          = "base_dn"
	ProviderFieldSearchAttribute = "search_attribute"
	ProviderFieldBindDN          = "bind_dn"
	ProviderFieldBindPassword    = "bind_password"
	ProviderFieldDescription     = "description"
	ProviderFieldStartTLS        = "start_tls"
	ProviderFieldSearchFilter    = "search_filter"
)

// GroupDirectory is the read-only collaborator owning group records. The
// registry consults it before removing a provider: a provider referenced by
// any group must not be deleted.
type GroupDirectory interface {
	CountGroupsUsingProvider(id uint64) (int64, error)
}

// GroupStore is the gorm-backed GroupDirectory.
type GroupStore struct {
	db *gorm.DB
}

// NewGroupStore creates a GroupStore over the given database handle.
func NewGroupStore(db *gorm.DB) *GroupStore {
	return &GroupStore{db: db}
}

// CountGroupsUsingProvider returns the number of groups bound to a provider.
func (g *GroupStore) CountGroupsUsingProvider(id uint64) (int64, error) {
	if g.db == nil {
		return 0, ErrDBNil
	}

	var count int64
	err := g.db.Model(&models.Group{}).
		Where("directory_provider_id = ?", id).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(ErrStorage, err.Error())
	}

	return count, nil
}

// ProviderCandidate is the input for creating a directory provider, or the
// candidate under test for TestProvider.
type ProviderCandidate struct {
	Name            string `validate:"required,max=128"`
	Host            string `validate:"required,max=255"`
	Port            int    `validate:"gte=0,lte=65535"`
	BaseDN          string `validate:"required,max=255"`
	SearchAttribute string `validate:"required,max=128"`
	BindDN          string `validate:"max=255"`
	BindPassword    string `validate:"max=128"`
	Description     string `validate:"max=255"`
	StartTLS        int    `validate:"gte=0,lte=1"`
	SearchFilter    string `validate:"max=255"`
}

// ProviderPatch is a partial update of one provider; nil fields are absent.
type ProviderPatch struct {
	Name            *string
	Host            *string
	Port            *int
	BaseDN          *string
	SearchAttribute *string
	BindDN          *string
	BindPassword    *string
	Description     *string
	StartTLS        *int
	SearchFilter    *string
}

// TestCredentials carry the account a provider test authenticates as.
type TestCredentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

var structValidate = validator.New()

// providerWireNames maps Go struct field names to their wire names for error
// reporting.
var providerWireNames = map[string]string{
	"Name":            ProviderFieldName,
	"Host":            ProviderFieldHost,
	"Port":            ProviderFieldPort,
	"BaseDN":          ProviderFieldBaseDN,
	"SearchAttribute": ProviderFieldSearchAttribute,
	"BindDN":          ProviderFieldBindDN,
	"BindPassword":    ProviderFieldBindPassword,
	"Description":     ProviderFieldDescription,
	"StartTLS":        ProviderFieldStartTLS,
	"SearchFilter":    ProviderFieldSearchFilter,
	"Username":        "username",
	"Password":        "password",
}

// validateStruct runs tag-based validation and converts the result into the
// aggregated field-error form shared with the config validator.
func validateStruct(v any) ValidationErrors {
	err := structValidate.Struct(v)
	if err == nil {
		return nil
	}

	var (
		errs      ValidationErrors
		fieldErrs validator.ValidationErrors
	)

	if !errors.As(err, &fieldErrs) {
		errs = append(errs, FieldError{Field: "input", Reason: err.Error()})
		return errs
	}

	for _, fe := range fieldErrs {
		name := fe.Field()
		if wire, ok := providerWireNames[name]; ok {
			name = wire
		}
		errs = append(errs, FieldError{Field: name, Reason: tagReason(fe)})
	}

	return errs
}

func tagReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "cannot be empty"
	case "max":
		return fmt.Sprintf("value is too long, maximum length is %s characters", fe.Param())
	case "gte", "lte":
		return "value is out of range"
	default:
		return fmt.Sprintf("failed %s constraint", fe.Tag())
	}
}

// DirectoryRegistry owns the ordered collection of LDAP provider records. It
// enforces name uniqueness, the default-selection invariant and
// deletion safety. All mutating methods run inside the service's
// single-writer section and receive the shared transaction.
type DirectoryRegistry struct {
	db     *gorm.DB
	groups GroupDirectory
}

// NewDirectoryRegistry creates a registry over the given database handle and
// group collaborator.
func NewDirectoryRegistry(db *gorm.DB, groups GroupDirectory) *DirectoryRegistry {
	return &DirectoryRegistry{db: db, groups: groups}
}

// List returns all providers in creation order.
func (r *DirectoryRegistry) List() ([]models.DirectoryProvider, error) {
	if r.db == nil {
		return nil, ErrDBNil
	}

	return listProviders(r.db)
}

func listProviders(tx *gorm.DB) ([]models.DirectoryProvider, error) {
	var providers []models.DirectoryProvider
	if err := tx.Order("id asc").Find(&providers).Error; err != nil {
		return nil, pkgerrors.Wrap(ErrStorage, err.Error())
	}

	return providers, nil
}

func providerByID(tx *gorm.DB, id uint64) (*models.DirectoryProvider, error) {
	var provider models.DirectoryProvider

	err := tx.First(&provider, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrapf(ErrNotFound, "directory provider %d does not exist", id)
		}
		return nil, pkgerrors.Wrap(ErrStorage, err.Error())
	}

	return &provider, nil
}

// nameTaken checks provider-name uniqueness. Comparison honors the LDAP
// case-sensitivity policy; excludeID skips the provider being updated.
func nameTaken(tx *gorm.DB, name string, caseSensitive bool, excludeID uint64) (bool, error) {
	providers, err := listProviders(tx)
	if err != nil {
		return false, err
	}

	for i := range providers {
		if providers[i].ID == excludeID {
			continue
		}
		if caseSensitive {
			if providers[i].Name == name {
				return true, nil
			}
		} else if strings.EqualFold(providers[i].Name, name) {
			return true, nil
		}
	}

	return false, nil
}

// add inserts a new provider. The first provider becomes the default when no
// default is set; adding alone never touches ldap_configured.
func (r *DirectoryRegistry) add(tx *gorm.DB, cfg *models.AuthConfig, candidate *ProviderCandidate) (uint64, error) {
	if errs := validateStruct(candidate); len(errs) > 0 {
		return 0, errs
	}

	caseSensitive := cfg.LDAPCaseSensitive == models.CaseSensitive
	taken, err := nameTaken(tx, candidate.Name, caseSensitive, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, pkgerrors.Wrapf(ErrConflict, "directory provider %q already exists", candidate.Name)
	}

	port := candidate.Port
	if port == 0 {
		port = models.DefaultLDAPPort
	}

	provider := models.DirectoryProvider{
		Name:            candidate.Name,
		Host:            candidate.Host,
		Port:            port,
		BaseDN:          candidate.BaseDN,
		SearchAttribute: candidate.SearchAttribute,
		BindDN:          candidate.BindDN,
		BindPassword:    candidate.BindPassword,
		Description:     candidate.Description,
		StartTLS:        candidate.StartTLS,
		SearchFilter:    candidate.SearchFilter,
	}

	if err := tx.Create(&provider).Error; err != nil {
		return 0, pkgerrors.Wrap(ErrStorage, err.Error())
	}

	if cfg.LDAPDefaultProviderID == nil {
		err := tx.Model(&models.AuthConfig{}).
			Where("id = ?", models.AuthConfigID).
			Update("ldap_default_provider_id", provider.ID).Error
		if err != nil {
			return 0, pkgerrors.Wrap(ErrStorage, err.Error())
		}

		log.Info().Uint64("providerid", provider.ID).Msg("first directory provider set as default")
	}

	return provider.ID, nil
}

// diffProvider computes the changed fields of a partial provider update,
// returning the update set keyed by column name and the prior values of
// those fields.
func diffProvider(current *models.DirectoryProvider, patch *ProviderPatch) (updates, before map[string]any) {
	updates = make(map[string]any)
	before = make(map[string]any)

	set := func(name string, proposed, stored any) {
		if !looseEqual(proposed, stored) {
			updates[name] = proposed
			before[name] = stored
		}
	}

	if patch.Name != nil {
		set(ProviderFieldName, *patch.Name, current.Name)
	}
	if patch.Host != nil {
		set(ProviderFieldHost, *patch.Host, current.Host)
	}
	if patch.Port != nil {
		// Zero defaults to the standard port, as on create.
		port := *patch.Port
		if port == 0 {
			port = models.DefaultLDAPPort
		}
		set(ProviderFieldPort, port, current.Port)
	}
	if patch.BaseDN != nil {
		set(ProviderFieldBaseDN, *patch.BaseDN, current.BaseDN)
	}
	if patch.SearchAttribute != nil {
		set(ProviderFieldSearchAttribute, *patch.SearchAttribute, current.SearchAttribute)
	}
	if patch.BindDN != nil {
		set(ProviderFieldBindDN, *patch.BindDN, current.BindDN)
	}
	if patch.BindPassword != nil {
		set(ProviderFieldBindPassword, *patch.BindPassword, current.BindPassword)
	}
	if patch.Description != nil {
		set(ProviderFieldDescription, *patch.Description, current.Description)
	}
	if patch.StartTLS != nil {
		set(ProviderFieldStartTLS, *patch.StartTLS, current.StartTLS)
	}
	if patch.SearchFilter != nil {
		set(ProviderFieldSearchFilter, *patch.SearchFilter, current.SearchFilter)
	}

	return updates, before
}

// merged overlays a patch onto the stored provider. Partial updates are
// validated against this view so they cannot leave required fields empty.
func merged(current *models.DirectoryProvider, patch *ProviderPatch) *ProviderCandidate {
	out := &ProviderCandidate{
		Name:            current.Name,
		Host:            current.Host,
		Port:            current.Port,
		BaseDN:          current.BaseDN,
		SearchAttribute: current.SearchAttribute,
		BindDN:          current.BindDN,
		BindPassword:    current.BindPassword,
		Description:     current.Description,
		StartTLS:        current.StartTLS,
		SearchFilter:    current.SearchFilter,
	}

	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Host != nil {
		out.Host = *patch.Host
	}
	if patch.Port != nil {
		out.Port = *patch.Port
	}
	if patch.BaseDN != nil {
		out.BaseDN = *patch.BaseDN
	}
	if patch.SearchAttribute != nil {
		out.SearchAttribute = *patch.SearchAttribute
	}
	if patch.BindDN != nil {
		out.BindDN = *patch.BindDN
	}
	if patch.BindPassword != nil {
		out.BindPassword = *patch.BindPassword
	}
	if patch.Description != nil {
		out.Description = *patch.Description
	}
	if patch.StartTLS != nil {
		out.StartTLS = *patch.StartTLS
	}
	if patch.SearchFilter != nil {
		out.SearchFilter = *patch.SearchFilter
	}

	return out
}

// update applies a partial update to one provider and returns the names of
// the fields that actually changed.
func (r *DirectoryRegistry) update(tx *gorm.DB, cfg *models.AuthConfig, id uint64, patch *ProviderPatch,
) (applied []string, before map[string]any, err error) {
	current, err := providerByID(tx, id)
	if err != nil {
		return nil, nil, err
	}

	if errs := validateStruct(merged(current, patch)); len(errs) > 0 {
		return nil, nil, errs
	}

	if patch.Name != nil && *patch.Name != current.Name {
		caseSensitive := cfg.LDAPCaseSensitive == models.CaseSensitive
		taken, err := nameTaken(tx, *patch.Name, caseSensitive, id)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			return nil, nil, pkgerrors.Wrapf(ErrConflict, "directory provider %q already exists", *patch.Name)
		}
	}

	updates, before := diffProvider(current, patch)
	if len(updates) == 0 {
		return nil, before, nil
	}

	err = tx.Model(&models.DirectoryProvider{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return nil, nil, pkgerrors.Wrap(ErrStorage, err.Error())
	}

	applied = make([]string, 0, len(updates))
	for name := range updates {
		applied = append(applied, name)
	}

	return applied, before, nil
}

// remove deletes one provider. A referenced provider cannot be removed. When
// the default goes away the default moves to the next provider in creation
// order; when the collection empties, the default is cleared and
// ldap_configured is forced off. Removing the sole provider while LDAP is
// the active authentication type is rejected.
func (r *DirectoryRegistry) remove(tx *gorm.DB, cfg *models.AuthConfig, id uint64) error {
	provider, err := providerByID(tx, id)
	if err != nil {
		return err
	}

	refs, err := r.groups.CountGroupsUsingProvider(id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return pkgerrors.Wrapf(ErrConflict,
			"directory provider %q is referenced by %d user group(s)", provider.Name, refs)
	}

	providers, err := listProviders(tx)
	if err != nil {
		return err
	}

	if len(providers) == 1 && cfg.AuthenticationType == models.AuthTypeLDAP {
		return pkgerrors.Wrap(ErrConflict,
			"at least one directory provider must exist while LDAP authentication is active")
	}

	if err := tx.Delete(&models.DirectoryProvider{}, id).Error; err != nil {
		return pkgerrors.Wrap(ErrStorage, err.Error())
	}

	cfgUpdates := map[string]any{}

	wasDefault := cfg.LDAPDefaultProviderID != nil && *cfg.LDAPDefaultProviderID == id
	if wasDefault {
		if next := nextDefaultAfter(providers, id); next != nil {
			cfgUpdates["ldap_default_provider_id"] = *next
			log.Info().Uint64("providerid", *next).Msg("default directory provider reassigned")
		} else {
			cfgUpdates["ldap_default_provider_id"] = nil
		}
	}

	if len(providers) == 1 {
		// Collection is now empty.
		cfgUpdates["ldap_configured"] = 0
		if wasDefault {
			cfgUpdates["ldap_default_provider_id"] = nil
		}
	}

	if len(cfgUpdates) > 0 {
		err := tx.Model(&models.AuthConfig{}).
			Where("id = ?", models.AuthConfigID).
			Updates(cfgUpdates).Error
		if err != nil {
			return pkgerrors.Wrap(ErrStorage, err.Error())
		}
	}

	return nil
}

// nextDefaultAfter picks the next provider in creation order to inherit the
// default, or nil when the removed one was the last.
func nextDefaultAfter(providers []models.DirectoryProvider, removedID uint64) *uint64 {
	for i := range providers {
		if providers[i].ID != removedID {
			return &providers[i].ID
		}
	}

	return nil
}

// setDefault repoints the AuthConfig default at an existing provider.
func (r *DirectoryRegistry) setDefault(tx *gorm.DB, id uint64) error {
	if _, err := providerByID(tx, id); err != nil {
		return err
	}

	err := tx.Model(&models.AuthConfig{}).
		Where("id = ?", models.AuthConfigID).
		Update("ldap_default_provider_id", id).Error
	if err != nil {
		return pkgerrors.Wrap(ErrStorage, err.Error())
	}

	return nil
}
