// Package authcfg implements the global authentication configuration engine.
//
// The engine manages a singleton record describing how users authenticate
// (internal password database, LDAP, or SAML parameters) together with an
// ordered collection of external LDAP directory providers, one of which is
// the default. Login execution, the HTTP layer and the LDAP/SAML wire
// protocols live elsewhere; this package only decides what a login flow will
// be configured with.
//
// # Operation surface
//
// Service exposes the caller-facing operations:
//   - GetAuthConfig / UpdateAuthConfig for the singleton
//   - ListProviders, AddProvider, UpdateProvider, RemoveProvider,
//     SetDefaultProvider, TestProvider for the directory collection
//
// Every mutation runs the same pipeline under a single-writer lock and one
// transaction: authorize the actor, validate all fields (aggregating every
// violation), check the password-policy satisfiability and the
// default-provider invariant, compute the field-level diff against stored
// state, persist exactly the diff, and append an audit entry. Any failure
// leaves stored state untouched.
//
// # Cross-entity invariants
//
//   - passwd_min_length and passwd_check_rules must be jointly satisfiable
//   - the default provider pointer must resolve while LDAP is configured
//   - provider names are unique (per the case-sensitivity policy)
//   - a provider referenced by user groups cannot be removed
//   - removing the last provider clears the default and forces
//     ldap_configured off; it is rejected outright while LDAP is the active
//     authentication type
//
// # Audit
//
// Each successful mutation appends one immutable change record carrying the
// prior values of exactly the changed fields and the full proposed input,
// with bind passwords redacted. The append shares the mutation's transaction,
// so a failed append rolls the mutation back.
//
// Example usage:
//
//	svc := authcfg.NewService(db, &authcfg.LDAPBinder{})
//	actor := authcfg.Actor{ID: 1, Type: models.UserTypeSuperAdmin}
//
//	minLength := 12
//	applied, err := svc.UpdateAuthConfig(actor, &authcfg.AuthConfigPatch{
//	    PasswdMinLength: &minLength,
//	})
//
//	id, err := svc.AddProvider(actor, &authcfg.ProviderCandidate{
//	    Name: "corp", Host: "ldap.example.com",
//	    BaseDN: "dc=example,dc=com", SearchAttribute: "uid",
//	})
package authcfg
