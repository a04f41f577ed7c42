package authcfg

import (
	"encoding/json"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zenwatch/zenwatch/internal/db/models"
)

var (
	superAdmin = Actor{ID: 1, Type: models.UserTypeSuperAdmin}
	plainAdmin = Actor{ID: 2, Type: models.UserTypeAdmin}
)

// setupTestDB creates an in-memory SQLite database with the provisioned
// singleton row.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.AuthConfig{},
		&models.DirectoryProvider{},
		&models.AuditEntry{},
	)
	require.NoError(t, err, "failed to migrate test database")

	cfg := models.AuthConfig{
		ID:                 models.AuthConfigID,
		AuthenticationType: models.AuthTypeInternal,
		HTTPCaseSensitive:  models.CaseSensitive,
		LDAPCaseSensitive:  models.CaseSensitive,
		PasswdMinLength:    8,
		PasswdCheckRules:   models.PasswdCheckLength.With(models.PasswdCheckSimple),
	}
	require.NoError(t, db.Create(&cfg).Error, "failed to seed auth config")

	return db
}

// fakeBinder records the delegated call and returns a canned outcome.
type fakeBinder struct {
	outcome   BindOutcome
	called    bool
	candidate *ProviderCandidate
	creds     *TestCredentials
}

func (b *fakeBinder) Bind(candidate *ProviderCandidate, creds *TestCredentials) BindOutcome {
	b.called = true
	b.candidate = candidate
	b.creds = creds

	return b.outcome
}

func newTestService(t *testing.T) (*Service, *fakeBinder, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	binder := &fakeBinder{}

	return NewService(db, binder), binder, db
}

func loadConfig(t *testing.T, db *gorm.DB) *models.AuthConfig {
	t.Helper()

	var cfg models.AuthConfig
	require.NoError(t, db.First(&cfg, models.AuthConfigID).Error)

	return &cfg
}

func addTestProvider(t *testing.T, svc *Service, name string) uint64 {
	t.Helper()

	id, err := svc.AddProvider(superAdmin, &ProviderCandidate{
		Name:            name,
		Host:            "ldap.example.com",
		BaseDN:          "dc=example,dc=com",
		SearchAttribute: "uid",
	})
	require.NoError(t, err)

	return id
}

func TestGetAuthConfig(t *testing.T) {
	svc, _, _ := newTestService(t)

	t.Run("all fields by default", func(t *testing.T) {
		out, err := svc.GetAuthConfig(superAdmin, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(8), out[FieldPasswdMinLength])
		assert.Contains(t, out, FieldSAMLSsoURL)
	})

	t.Run("projection", func(t *testing.T) {
		out, err := svc.GetAuthConfig(superAdmin, []string{FieldAuthenticationType})
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Equal(t, int64(models.AuthTypeInternal), out[FieldAuthenticationType])
	})

	t.Run("reads are unrestricted", func(t *testing.T) {
		_, err := svc.GetAuthConfig(plainAdmin, nil)
		require.NoError(t, err)
	})
}

func TestUpdateAuthConfigDiffMinimality(t *testing.T) {
	svc, _, db := newTestService(t)

	applied, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
		PasswdMinLength:  intPtr(12),
		HTTPStripDomains: strPtr("example.com"),
		// Same value as stored, must not count as changed.
		AuthenticationType: intPtr(models.AuthTypeInternal),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{FieldHTTPStripDomains, FieldPasswdMinLength}, applied)

	cfg := loadConfig(t, db)
	assert.Equal(t, 12, cfg.PasswdMinLength)
	assert.Equal(t, "example.com", cfg.HTTPStripDomains)

	t.Run("identical values change nothing", func(t *testing.T) {
		applied, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			PasswdMinLength: intPtr(12),
		})
		require.NoError(t, err)
		assert.Empty(t, applied)
	})

	t.Run("numeric looking text compares byte exact", func(t *testing.T) {
		applied, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			HTTPStripDomains: strPtr("007"),
		})
		require.NoError(t, err)
		require.Equal(t, []string{FieldHTTPStripDomains}, applied)

		applied, err = svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			HTTPStripDomains: strPtr("7"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{FieldHTTPStripDomains}, applied)
		assert.Equal(t, "7", loadConfig(t, db).HTTPStripDomains)
	})
}

func TestUpdateAuthConfigPasswordPolicy(t *testing.T) {
	svc, _, _ := newTestService(t)

	t.Run("length 255 satisfies any combination", func(t *testing.T) {
		applied, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			PasswdMinLength: intPtr(255),
			PasswdCheckRules: rulesPtr(models.PasswdCheckCase |
				models.PasswdCheckDigits | models.PasswdCheckSpecial),
		})
		require.NoError(t, err)
		assert.Contains(t, applied, FieldPasswdCheckRules)
	})

	t.Run("length 1 with two classes is rejected", func(t *testing.T) {
		_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			PasswdMinLength:  intPtr(1),
			PasswdCheckRules: rulesPtr(models.PasswdCheckCase | models.PasswdCheckDigits),
		})
		require.Error(t, err)

		errs, ok := AsValidationErrors(err)
		require.True(t, ok)
		require.Len(t, errs, 1)
		assert.Equal(t, FieldPasswdCheckRules, errs[0].Field)
	})

	t.Run("policy is checked against effective values", func(t *testing.T) {
		// Stored rules now require all three classes; lowering the length
		// alone must fail even though the patch never mentions the rules.
		_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			PasswdMinLength: intPtr(2),
		})
		require.Error(t, err)

		_, ok := AsValidationErrors(err)
		assert.True(t, ok)
	})
}

func TestUpdateAuthConfigPermissions(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.UpdateAuthConfig(plainAdmin, &AuthConfigPatch{
		PasswdMinLength: intPtr(10),
	})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateAuthConfigEmptyInput(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{})
	require.Error(t, err)

	errs, ok := AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, "input", errs[0].Field)
}

func TestUpdateAuthConfigLDAPInvariant(t *testing.T) {
	svc, _, _ := newTestService(t)

	t.Run("enabling ldap without providers is a conflict", func(t *testing.T) {
		_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			LDAPConfigured: intPtr(1),
		})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("proposed default must exist", func(t *testing.T) {
		_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			LDAPDefaultProviderID: uint64Ptr(42),
		})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("enabling ldap with a resolving default succeeds", func(t *testing.T) {
		addTestProvider(t, svc, "corp")

		applied, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			LDAPConfigured: intPtr(1),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{FieldLDAPConfigured}, applied)
	})
}

func TestAddProvider(t *testing.T) {
	svc, _, db := newTestService(t)

	t.Run("first provider becomes default", func(t *testing.T) {
		id, err := svc.AddProvider(superAdmin, &ProviderCandidate{
			Name:            "AAAA",
			Host:            "ldap.example.com",
			BaseDN:          "dc=example,dc=com",
			SearchAttribute: "uid",
		})
		require.NoError(t, err)
		assert.NotZero(t, id)

		cfg := loadConfig(t, db)
		require.NotNil(t, cfg.LDAPDefaultProviderID)
		assert.Equal(t, id, *cfg.LDAPDefaultProviderID)
		// Adding alone never flips ldap_configured.
		assert.Equal(t, 0, cfg.LDAPConfigured)
	})

	t.Run("second provider does not steal the default", func(t *testing.T) {
		first := loadConfig(t, db).LDAPDefaultProviderID
		addTestProvider(t, svc, "BBBB")

		cfg := loadConfig(t, db)
		require.NotNil(t, cfg.LDAPDefaultProviderID)
		assert.Equal(t, *first, *cfg.LDAPDefaultProviderID)
	})

	t.Run("duplicate name is a conflict", func(t *testing.T) {
		_, err := svc.AddProvider(superAdmin, &ProviderCandidate{
			Name:            "AAAA",
			Host:            "other.example.com",
			BaseDN:          "dc=example,dc=com",
			SearchAttribute: "uid",
		})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("missing required fields aggregate", func(t *testing.T) {
		_, err := svc.AddProvider(superAdmin, &ProviderCandidate{Name: "CCCC"})
		require.Error(t, err)

		errs, ok := AsValidationErrors(err)
		require.True(t, ok)

		fields := make([]string, len(errs))
		for i, fe := range errs {
			fields[i] = fe.Field
		}
		assert.ElementsMatch(t,
			[]string{ProviderFieldHost, ProviderFieldBaseDN, ProviderFieldSearchAttribute},
			fields)
	})

	t.Run("permission gate applies", func(t *testing.T) {
		_, err := svc.AddProvider(plainAdmin, &ProviderCandidate{
			Name:            "DDDD",
			Host:            "ldap.example.com",
			BaseDN:          "dc=example,dc=com",
			SearchAttribute: "uid",
		})
		require.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestAddProviderNameCasePolicy(t *testing.T) {
	svc, _, db := newTestService(t)

	addTestProvider(t, svc, "Corp")

	t.Run("case sensitive policy allows different casing", func(t *testing.T) {
		_, err := svc.AddProvider(superAdmin, &ProviderCandidate{
			Name:            "CORP",
			Host:            "ldap.example.com",
			BaseDN:          "dc=example,dc=com",
			SearchAttribute: "uid",
		})
		require.NoError(t, err)
		require.NoError(t, db.Where("name = ?", "CORP").Delete(&models.DirectoryProvider{}).Error)
	})

	t.Run("case insensitive policy rejects different casing", func(t *testing.T) {
		require.NoError(t, db.Model(&models.AuthConfig{}).
			Where("id = ?", models.AuthConfigID).
			Update("ldap_case_sensitive", models.CaseInsensitive).Error)

		_, err := svc.AddProvider(superAdmin, &ProviderCandidate{
			Name:            "CORP",
			Host:            "ldap.example.com",
			BaseDN:          "dc=example,dc=com",
			SearchAttribute: "uid",
		})
		require.ErrorIs(t, err, ErrConflict)
	})
}

func TestUpdateProvider(t *testing.T) {
	svc, _, _ := newTestService(t)

	id := addTestProvider(t, svc, "corp")
	addTestProvider(t, svc, "lab")

	t.Run("diff returns changed fields only", func(t *testing.T) {
		applied, err := svc.UpdateProvider(superAdmin, id, &ProviderPatch{
			Host:            strPtr("new.example.com"),
			SearchAttribute: strPtr("uid"), // unchanged
		})
		require.NoError(t, err)
		assert.Equal(t, []string{ProviderFieldHost}, applied)
	})

	t.Run("no change is a successful no-op", func(t *testing.T) {
		applied, err := svc.UpdateProvider(superAdmin, id, &ProviderPatch{
			Host: strPtr("new.example.com"),
		})
		require.NoError(t, err)
		assert.Empty(t, applied)
	})

	t.Run("partial update cannot blank required fields", func(t *testing.T) {
		_, err := svc.UpdateProvider(superAdmin, id, &ProviderPatch{
			Host: strPtr(""),
		})
		require.Error(t, err)

		errs, ok := AsValidationErrors(err)
		require.True(t, ok)
		assert.Equal(t, ProviderFieldHost, errs[0].Field)
	})

	t.Run("zero port defaults to the standard port", func(t *testing.T) {
		applied, err := svc.UpdateProvider(superAdmin, id, &ProviderPatch{
			Port: intPtr(636),
		})
		require.NoError(t, err)
		require.Equal(t, []string{ProviderFieldPort}, applied)

		applied, err = svc.UpdateProvider(superAdmin, id, &ProviderPatch{
			Port: intPtr(0),
		})
		require.NoError(t, err)
		require.Equal(t, []string{ProviderFieldPort}, applied)

		providers, err := svc.ListProviders(superAdmin)
		require.NoError(t, err)
		assert.Equal(t, models.DefaultLDAPPort, providers[0].Port)

		// Zero against an already standard port is a no-op.
		applied, err = svc.UpdateProvider(superAdmin, id, &ProviderPatch{
			Port: intPtr(0),
		})
		require.NoError(t, err)
		assert.Empty(t, applied)
	})

	t.Run("numeric looking names compare byte exact", func(t *testing.T) {
		numeric := addTestProvider(t, svc, "01")

		applied, err := svc.UpdateProvider(superAdmin, numeric, &ProviderPatch{
			Name: strPtr("1"),
		})
		require.NoError(t, err)
		require.Equal(t, []string{ProviderFieldName}, applied)

		providers, err := svc.ListProviders(superAdmin)
		require.NoError(t, err)
		assert.Equal(t, "1", providers[len(providers)-1].Name)

		require.NoError(t, svc.RemoveProvider(superAdmin, numeric))
	})

	t.Run("renaming onto an existing name is a conflict", func(t *testing.T) {
		_, err := svc.UpdateProvider(superAdmin, id, &ProviderPatch{
			Name: strPtr("lab"),
		})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := svc.UpdateProvider(superAdmin, 9999, &ProviderPatch{
			Host: strPtr("x.example.com"),
		})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRemoveProvider(t *testing.T) {
	t.Run("referenced provider cannot be removed", func(t *testing.T) {
		svc, _, db := newTestService(t)
		id := addTestProvider(t, svc, "corp")

		group := models.Group{Name: "ops", DirectoryProviderID: &id}
		require.NoError(t, db.Create(&group).Error)

		err := svc.RemoveProvider(superAdmin, id)
		require.ErrorIs(t, err, ErrConflict)

		// Still present.
		providers, err := svc.ListProviders(superAdmin)
		require.NoError(t, err)
		assert.Len(t, providers, 1)
	})

	t.Run("removing the default reassigns in creation order", func(t *testing.T) {
		svc, _, db := newTestService(t)
		first := addTestProvider(t, svc, "corp")
		second := addTestProvider(t, svc, "lab")
		third := addTestProvider(t, svc, "dmz")

		require.NoError(t, svc.RemoveProvider(superAdmin, first))

		cfg := loadConfig(t, db)
		require.NotNil(t, cfg.LDAPDefaultProviderID)
		assert.Equal(t, second, *cfg.LDAPDefaultProviderID)

		// Removing a non-default leaves the pointer alone.
		require.NoError(t, svc.RemoveProvider(superAdmin, third))
		cfg = loadConfig(t, db)
		require.NotNil(t, cfg.LDAPDefaultProviderID)
		assert.Equal(t, second, *cfg.LDAPDefaultProviderID)
	})

	t.Run("removing the last provider clears ldap state", func(t *testing.T) {
		svc, _, db := newTestService(t)
		id := addTestProvider(t, svc, "corp")

		_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			LDAPConfigured: intPtr(1),
		})
		require.NoError(t, err)

		require.NoError(t, svc.RemoveProvider(superAdmin, id))

		cfg := loadConfig(t, db)
		assert.Nil(t, cfg.LDAPDefaultProviderID)
		assert.Equal(t, 0, cfg.LDAPConfigured)
	})

	t.Run("sole provider is kept while ldap authentication is active", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		id := addTestProvider(t, svc, "corp")

		_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
			LDAPConfigured:     intPtr(1),
			AuthenticationType: intPtr(models.AuthTypeLDAP),
		})
		require.NoError(t, err)

		err = svc.RemoveProvider(superAdmin, id)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		require.ErrorIs(t, svc.RemoveProvider(superAdmin, 9999), ErrNotFound)
	})
}

func TestSetDefaultProvider(t *testing.T) {
	svc, _, db := newTestService(t)

	first := addTestProvider(t, svc, "corp")
	second := addTestProvider(t, svc, "lab")

	t.Run("repoints the default", func(t *testing.T) {
		require.NoError(t, svc.SetDefaultProvider(superAdmin, second))

		cfg := loadConfig(t, db)
		require.NotNil(t, cfg.LDAPDefaultProviderID)
		assert.Equal(t, second, *cfg.LDAPDefaultProviderID)
		assert.NotEqual(t, first, *cfg.LDAPDefaultProviderID)
	})

	t.Run("missing id is not found, never silently dropped", func(t *testing.T) {
		require.ErrorIs(t, svc.SetDefaultProvider(superAdmin, 9999), ErrNotFound)

		cfg := loadConfig(t, db)
		require.NotNil(t, cfg.LDAPDefaultProviderID)
		assert.Equal(t, second, *cfg.LDAPDefaultProviderID)
	})
}

func TestListProvidersOrder(t *testing.T) {
	svc, _, _ := newTestService(t)

	addTestProvider(t, svc, "zulu")
	addTestProvider(t, svc, "alpha")
	addTestProvider(t, svc, "mike")

	providers, err := svc.ListProviders(superAdmin)
	require.NoError(t, err)
	require.Len(t, providers, 3)

	// Creation order, not name order.
	assert.Equal(t, "zulu", providers[0].Name)
	assert.Equal(t, "alpha", providers[1].Name)
	assert.Equal(t, "mike", providers[2].Name)
}

func TestTestProvider(t *testing.T) {
	svc, binder, _ := newTestService(t)

	candidate := &ProviderCandidate{
		Name:            "corp",
		Host:            "ldap.example.com",
		BaseDN:          "dc=example,dc=com",
		SearchAttribute: "uid",
	}

	t.Run("delegates and reports the outcome", func(t *testing.T) {
		binder.outcome = OutcomeInvalidCredentials

		result, err := svc.TestProvider(superAdmin, candidate, &TestCredentials{
			Username: "jdoe", Password: "secret",
		})
		require.NoError(t, err)
		assert.True(t, binder.called)
		assert.Equal(t, OutcomeInvalidCredentials, result.Outcome)
		assert.Equal(t, "login name or password is incorrect", result.Message)
	})

	t.Run("malformed input is rejected before delegation", func(t *testing.T) {
		binder.called = false

		_, err := svc.TestProvider(superAdmin, &ProviderCandidate{Name: "x"}, &TestCredentials{})
		require.Error(t, err)
		assert.False(t, binder.called)

		errs, ok := AsValidationErrors(err)
		require.True(t, ok)
		// host, base_dn, search_attribute, username, password all reported.
		assert.Len(t, errs, 5)
	})

	t.Run("gated like a mutation", func(t *testing.T) {
		_, err := svc.TestProvider(plainAdmin, candidate, &TestCredentials{
			Username: "jdoe", Password: "secret",
		})
		require.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestAuditTrail(t *testing.T) {
	svc, _, db := newTestService(t)

	_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
		PasswdMinLength:    intPtr(12),
		AuthenticationType: intPtr(models.AuthTypeInternal), // unchanged
	})
	require.NoError(t, err)

	var entries []models.AuditEntry
	require.NoError(t, db.Order("id asc").Find(&entries).Error)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, models.AuditActionUpdate, entry.Action)
	assert.Equal(t, models.AuditResourceAuthentication, entry.ResourceKind)
	assert.Equal(t, superAdmin.ID, entry.ActorID)
	assert.NotEmpty(t, entry.CUID)
	assert.False(t, entry.Clock.IsZero())

	var before map[string]any
	require.NoError(t, json.Unmarshal(entry.Before, &before))
	// Only the changed field, with its prior value.
	require.Len(t, before, 1)
	assert.EqualValues(t, 8, before[FieldPasswdMinLength])

	var after map[string]any
	require.NoError(t, json.Unmarshal(entry.After, &after))
	// The full proposed input, including the unchanged field.
	assert.Len(t, after, 2)

	t.Run("provider bind password is redacted", func(t *testing.T) {
		id, err := svc.AddProvider(superAdmin, &ProviderCandidate{
			Name:            "corp",
			Host:            "ldap.example.com",
			BaseDN:          "dc=example,dc=com",
			SearchAttribute: "uid",
			BindDN:          "cn=svc,dc=example,dc=com",
			BindPassword:    "hunter2",
		})
		require.NoError(t, err)

		var entry models.AuditEntry
		require.NoError(t, db.Where("resource_kind = ? AND resource_id = ?",
			models.AuditResourceDirectory, id).First(&entry).Error)

		var after map[string]any
		require.NoError(t, json.Unmarshal(entry.After, &after))
		assert.Equal(t, "******", after[ProviderFieldBindPassword])
	})
}

func TestFailedMutationWritesNothing(t *testing.T) {
	svc, _, db := newTestService(t)

	_, err := svc.UpdateAuthConfig(superAdmin, &AuthConfigPatch{
		PasswdMinLength:  intPtr(1),
		HTTPStripDomains: strPtr("example.com"),
		PasswdCheckRules: rulesPtr(models.PasswdCheckCase | models.PasswdCheckDigits),
	})
	require.Error(t, err)

	cfg := loadConfig(t, db)
	assert.Equal(t, 8, cfg.PasswdMinLength)
	assert.Empty(t, cfg.HTTPStripDomains)

	var count int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}
