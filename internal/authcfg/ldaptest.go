package authcfg

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/zenwatch/zenwatch/internal/db/models"
)

// BindOutcome is the uniform result of a directory connectivity test.
type BindOutcome int

const (
	// OutcomeSuccess means connect, bind and user search all succeeded.
	OutcomeSuccess BindOutcome = iota
	// OutcomeAnonymousBindFailed means the server rejected an anonymous bind.
	OutcomeAnonymousBindFailed
	// OutcomeBindFailed means the service-account bind was rejected.
	OutcomeBindFailed
	// OutcomeTLSFailed means the StartTLS upgrade failed.
	OutcomeTLSFailed
	// OutcomeSearchFailed means the user search errored or was ambiguous.
	OutcomeSearchFailed
	// OutcomeInvalidCredentials means the test user was not found or its
	// password was rejected.
	OutcomeInvalidCredentials
)

// String returns the user-facing description of the outcome.
func (o BindOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "connection successful"
	case OutcomeAnonymousBindFailed:
		return "anonymous bind failed"
	case OutcomeBindFailed:
		return "bind with service account failed"
	case OutcomeTLSFailed:
		return "starting TLS failed"
	case OutcomeSearchFailed:
		return "user search failed"
	case OutcomeInvalidCredentials:
		return "login name or password is incorrect"
	}

	return "unknown outcome"
}

// Binder performs the network part of a directory test. Implementations own
// the connection timeout; the engine performs no retries since a failed bind
// is a definitive result.
type Binder interface {
	Bind(candidate *ProviderCandidate, creds *TestCredentials) BindOutcome
}

// defaultBindTimeout bounds the only unbounded-latency step of the engine.
const defaultBindTimeout = 10 * time.Second

// LDAPBinder is the go-ldap backed Binder.
type LDAPBinder struct {
	// Timeout bounds dialing and each LDAP operation. Zero means the
	// default of ten seconds.
	Timeout time.Duration
}

func (b *LDAPBinder) timeout() time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}

	return defaultBindTimeout
}

// Bind connects to the candidate server, binds, searches for the test user
// and binds again as that user. Every failure path maps to one outcome.
func (b *LDAPBinder) Bind(candidate *ProviderCandidate, creds *TestCredentials) BindOutcome {
	conn, outcome := b.connect(candidate)
	if outcome != OutcomeSuccess {
		return outcome
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if candidate.BindDN == "" {
		if err := conn.UnauthenticatedBind(""); err != nil {
			log.Debug().Err(err).Str("host", candidate.Host).Msg("anonymous bind failed")
			return OutcomeAnonymousBindFailed
		}
	} else {
		if err := conn.Bind(candidate.BindDN, candidate.BindPassword); err != nil {
			log.Debug().Err(err).Str("host", candidate.Host).Msg("service account bind failed")
			return OutcomeBindFailed
		}
	}

	entry, outcome := b.searchTestUser(conn, candidate, creds.Username)
	if outcome != OutcomeSuccess {
		return outcome
	}

	if err := conn.Bind(entry.DN, creds.Password); err != nil {
		log.Debug().Err(err).Str("dn", entry.DN).Msg("test user bind rejected")
		return OutcomeInvalidCredentials
	}

	return OutcomeSuccess
}

func (b *LDAPBinder) connect(candidate *ProviderCandidate) (*ldap.Conn, BindOutcome) {
	port := candidate.Port
	if port == 0 {
		port = models.DefaultLDAPPort
	}

	ldapURL := "ldap://" + net.JoinHostPort(candidate.Host, strconv.Itoa(port))

	conn, err := ldap.DialURL(ldapURL, ldap.DialWithDialer(&net.Dialer{Timeout: b.timeout()}))
	if err != nil {
		log.Debug().Err(err).Str("url", ldapURL).Msg("failed to connect to LDAP server")
		return nil, OutcomeBindFailed
	}

	conn.SetTimeout(b.timeout())

	if candidate.StartTLS == models.StartTLSOn {
		tlsConfig := &tls.Config{ServerName: candidate.Host, MinVersion: tls.VersionTLS12}
		if err := conn.StartTLS(tlsConfig); err != nil {
			if errClose := conn.Close(); errClose != nil {
				log.Warn().Err(errClose).Msg("failed to close LDAP connection")
			}

			log.Debug().Err(err).Str("host", candidate.Host).Msg("StartTLS failed")

			return nil, OutcomeTLSFailed
		}
	}

	return conn, OutcomeSuccess
}

// searchTestUser resolves the test user's DN. A missing user reports as bad
// credentials; a search error or an ambiguous result reports as a search
// failure.
func (b *LDAPBinder) searchTestUser(conn *ldap.Conn, candidate *ProviderCandidate, username string,
) (*ldap.Entry, BindOutcome) {
	filter := candidate.SearchFilter
	if filter == "" {
		filter = fmt.Sprintf("(%s=%s)", candidate.SearchAttribute, ldap.EscapeFilter(username))
	}

	searchRequest := ldap.NewSearchRequest(
		candidate.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(b.timeout().Seconds()),
		false,
		filter,
		[]string{candidate.SearchAttribute, "dn"},
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		log.Debug().Err(err).Str("filter", filter).Msg("LDAP user search failed")
		return nil, OutcomeSearchFailed
	}

	switch len(searchResult.Entries) {
	case 0:
		return nil, OutcomeInvalidCredentials
	case 1:
		return searchResult.Entries[0], OutcomeSuccess
	default:
		log.Debug().Int("entries", len(searchResult.Entries)).Str("filter", filter).
			Msg("LDAP user search is ambiguous")
		return nil, OutcomeSearchFailed
	}
}
