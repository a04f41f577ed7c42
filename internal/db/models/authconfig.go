// Package models contains database model definitions.
package models

// AuthConfigID is the primary key of the singleton authentication
// configuration row. The row is created once at provisioning and is never
// deleted.
const AuthConfigID uint64 = 1

// Authentication type values for AuthConfig.AuthenticationType.
const (
	// AuthTypeInternal selects the internal password database at login time.
	AuthTypeInternal = 0
	// AuthTypeLDAP selects the default LDAP directory provider at login time.
	AuthTypeLDAP = 1
)

// HTTP login form values for AuthConfig.HTTPLoginForm.
const (
	// LoginFormZenWatch presents the built-in login form.
	LoginFormZenWatch = 0
	// LoginFormHTTP delegates to webserver HTTP authentication.
	LoginFormHTTP = 1
)

// Case sensitivity policy values shared by the HTTP, LDAP and SAML blocks.
const (
	CaseInsensitive = 0
	CaseSensitive   = 1
)

// PasswdCheckRules is the set of password strength requirements enforced on
// internal accounts. Rules combine via set operations; the stored form is a
// single integer column.
type PasswdCheckRules int

// Individual password check rules.
const (
	// PasswdCheckLength requires the password to meet the minimum length.
	PasswdCheckLength PasswdCheckRules = 1 << iota
	// PasswdCheckCase requires at least one upper- and one lowercase letter.
	PasswdCheckCase
	// PasswdCheckDigits requires at least one digit.
	PasswdCheckDigits
	// PasswdCheckSpecial requires at least one special character.
	PasswdCheckSpecial
	// PasswdCheckSimple rejects passwords found in common-password lists.
	PasswdCheckSimple
)

// PasswdCheckRulesAll is the full rule set, used as the upper validation bound.
const PasswdCheckRulesAll = PasswdCheckLength | PasswdCheckCase |
	PasswdCheckDigits | PasswdCheckSpecial | PasswdCheckSimple

// Has reports whether every rule in r is part of the set.
func (s PasswdCheckRules) Has(r PasswdCheckRules) bool {
	return s&r == r
}

// With returns the set extended by r.
func (s PasswdCheckRules) With(r PasswdCheckRules) PasswdCheckRules {
	return s | r
}

// AuthConfig is the singleton record describing how users authenticate.
// Exactly one row exists (id AuthConfigID); it is mutated only through the
// authcfg configuration service.
type AuthConfig struct {
	ID uint64 `gorm:"primaryKey;column:id"`

	// AuthenticationType selects the login mechanism (internal or LDAP).
	// Independent of whether SAML or LDAP providers are configured.
	AuthenticationType int `gorm:"not null;default:0"`

	HTTPAuthEnabled   int    `gorm:"column:http_auth_enabled;not null;default:0"`
	HTTPLoginForm     int    `gorm:"column:http_login_form;not null;default:0"`
	HTTPStripDomains  string `gorm:"column:http_strip_domains;size:2048;not null;default:''"`
	HTTPCaseSensitive int    `gorm:"column:http_case_sensitive;not null;default:1"`

	// LDAPConfigured records that directory providers are set up, regardless
	// of the active authentication type.
	LDAPConfigured    int `gorm:"column:ldap_configured;not null;default:0"`
	LDAPCaseSensitive int `gorm:"column:ldap_case_sensitive;not null;default:1"`
	// LDAPDefaultProviderID points at the directory consulted first when
	// multiple providers are configured. Must resolve to an existing provider
	// whenever LDAPConfigured is set.
	LDAPDefaultProviderID *uint64 `gorm:"column:ldap_default_provider_id"`

	SAMLAuthEnabled        int    `gorm:"column:saml_auth_enabled;not null;default:0"`
	SAMLIdpEntityID        string `gorm:"column:saml_idp_entityid;size:1024;not null;default:''"`
	SAMLSsoURL             string `gorm:"column:saml_sso_url;size:2048;not null;default:''"`
	SAMLSloURL             string `gorm:"column:saml_slo_url;size:2048;not null;default:''"`
	SAMLUsernameAttribute  string `gorm:"column:saml_username_attribute;size:128;not null;default:''"`
	SAMLSpEntityID         string `gorm:"column:saml_sp_entityid;size:1024;not null;default:''"`
	SAMLNameIDFormat       string `gorm:"column:saml_nameid_format;size:2048;not null;default:''"`
	SAMLSignMessages       int    `gorm:"column:saml_sign_messages;not null;default:0"`
	SAMLSignAssertions     int    `gorm:"column:saml_sign_assertions;not null;default:0"`
	SAMLSignAuthnRequests  int    `gorm:"column:saml_sign_authn_requests;not null;default:0"`
	SAMLSignLogoutRequests int    `gorm:"column:saml_sign_logout_requests;not null;default:0"`
	SAMLSignLogoutResponse int    `gorm:"column:saml_sign_logout_responses;not null;default:0"`
	SAMLEncryptNameID      int    `gorm:"column:saml_encrypt_nameid;not null;default:0"`
	SAMLEncryptAssertions  int    `gorm:"column:saml_encrypt_assertions;not null;default:0"`
	SAMLCaseSensitive      int    `gorm:"column:saml_case_sensitive;not null;default:0"`

	// PasswdMinLength and PasswdCheckRules must stay jointly satisfiable;
	// see authcfg.CheckPasswordPolicy.
	PasswdMinLength  int              `gorm:"column:passwd_min_length;not null;default:8"`
	PasswdCheckRules PasswdCheckRules `gorm:"column:passwd_check_rules;not null;default:17"`
}

// TableName specifies the database table name for the AuthConfig model.
func (AuthConfig) TableName() string {
	return "auth_config"
}
