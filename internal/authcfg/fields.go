package authcfg

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/zenwatch/zenwatch/internal/db/models"
)

// Wire names of the authentication configuration fields. These double as the
// storage column names.
const (
	FieldAuthenticationType     = "authentication_type"
	FieldHTTPAuthEnabled        = "http_auth_enabled"
	FieldHTTPLoginForm          = "http_login_form"
	FieldHTTPStripDomains       = "http_strip_domains"
	FieldHTTPCaseSensitive      = "http_case_sensitive"
	FieldLDAPConfigured         = "ldap_configured"
	FieldLDAPCaseSensitive      = "ldap_case_sensitive"
	FieldLDAPDefaultProviderID  = "ldap_default_provider_id"
	FieldSAMLAuthEnabled        = "saml_auth_enabled"
	FieldSAMLIdpEntityID        = "saml_idp_entityid"
	FieldSAMLSsoURL             = "saml_sso_url"
	FieldSAMLSloURL             = "saml_slo_url"
	FieldSAMLUsernameAttribute  = "saml_username_attribute"
	FieldSAMLSpEntityID         = "saml_sp_entityid"
	FieldSAMLNameIDFormat       = "saml_nameid_format"
	FieldSAMLSignMessages       = "saml_sign_messages"
	FieldSAMLSignAssertions     = "saml_sign_assertions"
	FieldSAMLSignAuthnRequests  = "saml_sign_authn_requests"
	FieldSAMLSignLogoutRequests = "saml_sign_logout_requests"
	FieldSAMLSignLogoutResponse = "saml_sign_logout_responses"
	FieldSAMLEncryptNameID      = "saml_encrypt_nameid"
	FieldSAMLEncryptAssertions  = "saml_encrypt_assertions"
	FieldSAMLCaseSensitive      = "saml_case_sensitive"
	FieldPasswdMinLength        = "passwd_min_length"
	FieldPasswdCheckRules       = "passwd_check_rules"
)

// String length bounds from the storage schema.
const (
	lenHTTPStripDomains      = 2048
	lenSAMLIdpEntityID       = 1024
	lenSAMLSsoURL            = 2048
	lenSAMLSloURL            = 2048
	lenSAMLUsernameAttribute = 128
	lenSAMLSpEntityID        = 1024
	lenSAMLNameIDFormat      = 2048
)

// AuthConfigPatch is a partial update of the AuthConfig singleton. A nil
// field is absent; a non-nil field is a proposed value, even when it equals
// the zero value. Presence drives both validation and diff computation.
type AuthConfigPatch struct {
	AuthenticationType     *int
	HTTPAuthEnabled        *int
	HTTPLoginForm          *int
	HTTPStripDomains       *string
	HTTPCaseSensitive      *int
	LDAPConfigured         *int
	LDAPCaseSensitive      *int
	LDAPDefaultProviderID  *uint64
	SAMLAuthEnabled        *int
	SAMLIdpEntityID        *string
	SAMLSsoURL             *string
	SAMLSloURL             *string
	SAMLUsernameAttribute  *string
	SAMLSpEntityID         *string
	SAMLNameIDFormat       *string
	SAMLSignMessages       *int
	SAMLSignAssertions     *int
	SAMLSignAuthnRequests  *int
	SAMLSignLogoutRequests *int
	SAMLSignLogoutResponse *int
	SAMLEncryptNameID      *int
	SAMLEncryptAssertions  *int
	SAMLCaseSensitive      *int
	PasswdMinLength        *int
	PasswdCheckRules       *models.PasswdCheckRules
}

// Empty reports whether no field of the patch is present.
func (p *AuthConfigPatch) Empty() bool {
	for _, b := range authConfigFields {
		if _, present := b.proposed(p); present {
			return false
		}
	}

	return true
}

type fieldKind int

const (
	kindInt fieldKind = iota
	kindString
	kindEnum
)

// fieldRule is the closed validation rule for one field: declared type plus
// its range, length or enum constraint.
type fieldRule struct {
	name     string
	kind     fieldKind
	min, max int64   // kindInt inclusive range
	maxLen   int     // kindString length bound
	in       []int64 // kindEnum allowed values
	notEmpty bool    // kindString must not be empty when present
}

// fieldBinding ties a rule to the patch and stored representations of the
// field. Numeric values surface as int64, text values as string.
type fieldBinding struct {
	rule     fieldRule
	proposed func(*AuthConfigPatch) (any, bool)
	current  func(*models.AuthConfig) any
}

func intBinding(rule fieldRule, p func(*AuthConfigPatch) *int, c func(*models.AuthConfig) int) fieldBinding {
	return fieldBinding{
		rule: rule,
		proposed: func(patch *AuthConfigPatch) (any, bool) {
			if v := p(patch); v != nil {
				return int64(*v), true
			}
			return nil, false
		},
		current: func(cfg *models.AuthConfig) any { return int64(c(cfg)) },
	}
}

func strBinding(rule fieldRule, p func(*AuthConfigPatch) *string, c func(*models.AuthConfig) string) fieldBinding {
	return fieldBinding{
		rule: rule,
		proposed: func(patch *AuthConfigPatch) (any, bool) {
			if v := p(patch); v != nil {
				return *v, true
			}
			return nil, false
		},
		current: func(cfg *models.AuthConfig) any { return c(cfg) },
	}
}

func enumRule(name string, in ...int64) fieldRule {
	return fieldRule{name: name, kind: kindEnum, in: in}
}

func toggleRule(name string) fieldRule {
	return enumRule(name, 0, 1)
}

func strRule(name string, maxLen int, notEmpty bool) fieldRule {
	return fieldRule{name: name, kind: kindString, maxLen: maxLen, notEmpty: notEmpty}
}

// authConfigFields is the full closed set of configurable fields, in output
// order. Unknown fields are rejected; every present field is checked against
// its rule.
var authConfigFields = []fieldBinding{
	intBinding(enumRule(FieldAuthenticationType, models.AuthTypeInternal, models.AuthTypeLDAP),
		func(p *AuthConfigPatch) *int { return p.AuthenticationType },
		func(c *models.AuthConfig) int { return c.AuthenticationType }),
	intBinding(toggleRule(FieldHTTPAuthEnabled),
		func(p *AuthConfigPatch) *int { return p.HTTPAuthEnabled },
		func(c *models.AuthConfig) int { return c.HTTPAuthEnabled }),
	intBinding(enumRule(FieldHTTPLoginForm, models.LoginFormZenWatch, models.LoginFormHTTP),
		func(p *AuthConfigPatch) *int { return p.HTTPLoginForm },
		func(c *models.AuthConfig) int { return c.HTTPLoginForm }),
	strBinding(strRule(FieldHTTPStripDomains, lenHTTPStripDomains, false),
		func(p *AuthConfigPatch) *string { return p.HTTPStripDomains },
		func(c *models.AuthConfig) string { return c.HTTPStripDomains }),
	intBinding(toggleRule(FieldHTTPCaseSensitive),
		func(p *AuthConfigPatch) *int { return p.HTTPCaseSensitive },
		func(c *models.AuthConfig) int { return c.HTTPCaseSensitive }),
	intBinding(toggleRule(FieldLDAPConfigured),
		func(p *AuthConfigPatch) *int { return p.LDAPConfigured },
		func(c *models.AuthConfig) int { return c.LDAPConfigured }),
	intBinding(toggleRule(FieldLDAPCaseSensitive),
		func(p *AuthConfigPatch) *int { return p.LDAPCaseSensitive },
		func(c *models.AuthConfig) int { return c.LDAPCaseSensitive }),
	{
		rule: fieldRule{name: FieldLDAPDefaultProviderID, kind: kindInt, min: 0, max: int64(^uint64(0) >> 1)},
		proposed: func(p *AuthConfigPatch) (any, bool) {
			if p.LDAPDefaultProviderID != nil {
				return int64(*p.LDAPDefaultProviderID), true
			}
			return nil, false
		},
		current: func(c *models.AuthConfig) any {
			if c.LDAPDefaultProviderID == nil {
				return int64(0)
			}
			return int64(*c.LDAPDefaultProviderID)
		},
	},
	intBinding(toggleRule(FieldSAMLAuthEnabled),
		func(p *AuthConfigPatch) *int { return p.SAMLAuthEnabled },
		func(c *models.AuthConfig) int { return c.SAMLAuthEnabled }),
	strBinding(strRule(FieldSAMLIdpEntityID, lenSAMLIdpEntityID, true),
		func(p *AuthConfigPatch) *string { return p.SAMLIdpEntityID },
		func(c *models.AuthConfig) string { return c.SAMLIdpEntityID }),
	strBinding(strRule(FieldSAMLSsoURL, lenSAMLSsoURL, true),
		func(p *AuthConfigPatch) *string { return p.SAMLSsoURL },
		func(c *models.AuthConfig) string { return c.SAMLSsoURL }),
	strBinding(strRule(FieldSAMLSloURL, lenSAMLSloURL, false),
		func(p *AuthConfigPatch) *string { return p.SAMLSloURL },
		func(c *models.AuthConfig) string { return c.SAMLSloURL }),
	strBinding(strRule(FieldSAMLUsernameAttribute, lenSAMLUsernameAttribute, true),
		func(p *AuthConfigPatch) *string { return p.SAMLUsernameAttribute },
		func(c *models.AuthConfig) string { return c.SAMLUsernameAttribute }),
	strBinding(strRule(FieldSAMLSpEntityID, lenSAMLSpEntityID, true),
		func(p *AuthConfigPatch) *string { return p.SAMLSpEntityID },
		func(c *models.AuthConfig) string { return c.SAMLSpEntityID }),
	strBinding(strRule(FieldSAMLNameIDFormat, lenSAMLNameIDFormat, false),
		func(p *AuthConfigPatch) *string { return p.SAMLNameIDFormat },
		func(c *models.AuthConfig) string { return c.SAMLNameIDFormat }),
	intBinding(toggleRule(FieldSAMLSignMessages),
		func(p *AuthConfigPatch) *int { return p.SAMLSignMessages },
		func(c *models.AuthConfig) int { return c.SAMLSignMessages }),
	intBinding(toggleRule(FieldSAMLSignAssertions),
		func(p *AuthConfigPatch) *int { return p.SAMLSignAssertions },
		func(c *models.AuthConfig) int { return c.SAMLSignAssertions }),
	intBinding(toggleRule(FieldSAMLSignAuthnRequests),
		func(p *AuthConfigPatch) *int { return p.SAMLSignAuthnRequests },
		func(c *models.AuthConfig) int { return c.SAMLSignAuthnRequests }),
	intBinding(toggleRule(FieldSAMLSignLogoutRequests),
		func(p *AuthConfigPatch) *int { return p.SAMLSignLogoutRequests },
		func(c *models.AuthConfig) int { return c.SAMLSignLogoutRequests }),
	intBinding(toggleRule(FieldSAMLSignLogoutResponse),
		func(p *AuthConfigPatch) *int { return p.SAMLSignLogoutResponse },
		func(c *models.AuthConfig) int { return c.SAMLSignLogoutResponse }),
	intBinding(toggleRule(FieldSAMLEncryptNameID),
		func(p *AuthConfigPatch) *int { return p.SAMLEncryptNameID },
		func(c *models.AuthConfig) int { return c.SAMLEncryptNameID }),
	intBinding(toggleRule(FieldSAMLEncryptAssertions),
		func(p *AuthConfigPatch) *int { return p.SAMLEncryptAssertions },
		func(c *models.AuthConfig) int { return c.SAMLEncryptAssertions }),
	intBinding(toggleRule(FieldSAMLCaseSensitive),
		func(p *AuthConfigPatch) *int { return p.SAMLCaseSensitive },
		func(c *models.AuthConfig) int { return c.SAMLCaseSensitive }),
	intBinding(fieldRule{name: FieldPasswdMinLength, kind: kindInt, min: 1, max: 255},
		func(p *AuthConfigPatch) *int { return p.PasswdMinLength },
		func(c *models.AuthConfig) int { return c.PasswdMinLength }),
	{
		rule: fieldRule{
			name: FieldPasswdCheckRules, kind: kindInt,
			min: int64(models.PasswdCheckLength), max: int64(models.PasswdCheckRulesAll),
		},
		proposed: func(p *AuthConfigPatch) (any, bool) {
			if p.PasswdCheckRules != nil {
				return int64(*p.PasswdCheckRules), true
			}
			return nil, false
		},
		current: func(c *models.AuthConfig) any { return int64(c.PasswdCheckRules) },
	},
}

// knownAuthConfigFields indexes the bindings by wire name.
var knownAuthConfigFields = func() map[string]fieldBinding {
	m := make(map[string]fieldBinding, len(authConfigFields))
	for _, b := range authConfigFields {
		m[b.rule.name] = b
	}
	return m
}()

// checkField validates one candidate value against its rule. It has no side
// effects and returns nil when the value is acceptable.
func checkField(rule fieldRule, value any) *FieldError {
	switch rule.kind {
	case kindInt:
		n, ok := value.(int64)
		if !ok {
			return &FieldError{Field: rule.name, Reason: "an integer is expected"}
		}
		if n < rule.min || n > rule.max {
			return &FieldError{
				Field:  rule.name,
				Reason: fmt.Sprintf("value must be within range %d:%d", rule.min, rule.max),
			}
		}
	case kindEnum:
		n, ok := value.(int64)
		if !ok {
			return &FieldError{Field: rule.name, Reason: "an integer is expected"}
		}
		for _, allowed := range rule.in {
			if n == allowed {
				return nil
			}
		}
		return &FieldError{Field: rule.name, Reason: fmt.Sprintf("value %d is not allowed", n)}
	case kindString:
		s, ok := value.(string)
		if !ok {
			return &FieldError{Field: rule.name, Reason: "a character string is expected"}
		}
		if !utf8.ValidString(s) {
			return &FieldError{Field: rule.name, Reason: "a valid UTF-8 string is expected"}
		}
		if rule.notEmpty && s == "" {
			return &FieldError{Field: rule.name, Reason: "cannot be empty"}
		}
		if utf8.RuneCountInString(s) > rule.maxLen {
			return &FieldError{
				Field:  rule.name,
				Reason: fmt.Sprintf("value is too long, maximum length is %d characters", rule.maxLen),
			}
		}
	}

	return nil
}

// ValidatePatch checks every present field of the patch against its rule and
// aggregates all violations. The password-policy cross check is separate; see
// CheckPasswordPolicy.
func ValidatePatch(patch *AuthConfigPatch) ValidationErrors {
	var errs ValidationErrors

	for _, b := range authConfigFields {
		value, present := b.proposed(patch)
		if !present {
			continue
		}
		if fe := checkField(b.rule, value); fe != nil {
			errs = append(errs, *fe)
		}
	}

	return errs
}

// ParsePatch converts text form input into a typed patch. Integer fields
// accept their decimal text form; unknown parameters are rejected. All parse
// failures are aggregated.
func ParsePatch(values map[string]string) (*AuthConfigPatch, error) {
	var (
		patch AuthConfigPatch
		errs  ValidationErrors
	)

	for name, raw := range values {
		b, ok := knownAuthConfigFields[name]
		if !ok {
			errs = append(errs, FieldError{Field: name, Reason: "unsupported parameter"})
			continue
		}

		if b.rule.kind == kindString {
			patch.setString(name, raw)
			continue
		}

		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, FieldError{Field: name, Reason: "an integer is expected"})
			continue
		}
		patch.setInt(name, n)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &patch, nil
}

func (p *AuthConfigPatch) setString(name, value string) {
	v := value
	switch name {
	case FieldHTTPStripDomains:
		p.HTTPStripDomains = &v
	case FieldSAMLIdpEntityID:
		p.SAMLIdpEntityID = &v
	case FieldSAMLSsoURL:
		p.SAMLSsoURL = &v
	case FieldSAMLSloURL:
		p.SAMLSloURL = &v
	case FieldSAMLUsernameAttribute:
		p.SAMLUsernameAttribute = &v
	case FieldSAMLSpEntityID:
		p.SAMLSpEntityID = &v
	case FieldSAMLNameIDFormat:
		p.SAMLNameIDFormat = &v
	}
}

func (p *AuthConfigPatch) setInt(name string, value int64) {
	n := int(value)
	switch name {
	case FieldAuthenticationType:
		p.AuthenticationType = &n
	case FieldHTTPAuthEnabled:
		p.HTTPAuthEnabled = &n
	case FieldHTTPLoginForm:
		p.HTTPLoginForm = &n
	case FieldHTTPCaseSensitive:
		p.HTTPCaseSensitive = &n
	case FieldLDAPConfigured:
		p.LDAPConfigured = &n
	case FieldLDAPCaseSensitive:
		p.LDAPCaseSensitive = &n
	case FieldLDAPDefaultProviderID:
		id := uint64(value)
		p.LDAPDefaultProviderID = &id
	case FieldSAMLAuthEnabled:
		p.SAMLAuthEnabled = &n
	case FieldSAMLSignMessages:
		p.SAMLSignMessages = &n
	case FieldSAMLSignAssertions:
		p.SAMLSignAssertions = &n
	case FieldSAMLSignAuthnRequests:
		p.SAMLSignAuthnRequests = &n
	case FieldSAMLSignLogoutRequests:
		p.SAMLSignLogoutRequests = &n
	case FieldSAMLSignLogoutResponse:
		p.SAMLSignLogoutResponse = &n
	case FieldSAMLEncryptNameID:
		p.SAMLEncryptNameID = &n
	case FieldSAMLEncryptAssertions:
		p.SAMLEncryptAssertions = &n
	case FieldSAMLCaseSensitive:
		p.SAMLCaseSensitive = &n
	case FieldPasswdMinLength:
		p.PasswdMinLength = &n
	case FieldPasswdCheckRules:
		r := models.PasswdCheckRules(value)
		p.PasswdCheckRules = &r
	}
}

// looseEqual compares two field values. Two strings always compare
// byte-exact, even when both look numeric ("01" differs from "1"). Numeric
// values compare numerically, and a numeric text form equals its number,
// since numeric inputs may arrive as text.
func looseEqual(a, b any) bool {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as == bs
	}

	an, aIsNum := asInt64(a)
	bn, bIsNum := asInt64(b)
	if aIsNum && bIsNum {
		return an == bn
	}

	return false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case models.PasswdCheckRules:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// Project returns the requested fields of the stored configuration as a wire
// map. An empty field list selects everything. Unknown field names fail
// validation.
func Project(cfg *models.AuthConfig, fields []string) (map[string]any, error) {
	out := make(map[string]any)

	if len(fields) == 0 {
		for _, b := range authConfigFields {
			out[b.rule.name] = b.current(cfg)
		}
		return out, nil
	}

	var errs ValidationErrors
	for _, name := range fields {
		b, ok := knownAuthConfigFields[name]
		if !ok {
			errs = append(errs, FieldError{Field: name, Reason: "unsupported output field"})
			continue
		}
		out[name] = b.current(cfg)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return out, nil
}
