// Package main provides the entry point for the ZenWatch administration
// backend. It exposes commands for provisioning the database and inspecting
// the global authentication configuration, which governs how users log in
// (internal password database, LDAP directory providers, or SAML) across the
// monitoring platform. The application uses gorm for data persistence and
// records every configuration change in an append-only audit log.
package main
