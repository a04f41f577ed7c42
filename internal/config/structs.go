package config

import (
	"github.com/zenwatch/zenwatch/internal/logger"
)

// LDAP holds tunables for outbound directory connections.
type LDAP struct {
	// Timeout bounds dialing and each LDAP operation, in seconds.
	Timeout int
}

// Config overall data structure.
type Config struct {
	DevMode bool // enable dev mode for development
	DB      DB
	LDAP    LDAP
	Log     logger.Log
	Title   string
}
