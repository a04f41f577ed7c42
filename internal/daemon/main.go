// Package daemon wires the database and the authentication configuration
// engine together for the command line entry points.
package daemon

import (
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/zenwatch/zenwatch/internal/authcfg"
	"github.com/zenwatch/zenwatch/internal/config"
	"github.com/zenwatch/zenwatch/internal/db/dsn"
	"github.com/zenwatch/zenwatch/internal/db/models"
)

// Daemon represents the main application daemon.
type Daemon struct {
	db      *gorm.DB
	authcfg *authcfg.Service
}

// AuthConfigService exposes the authentication configuration engine.
func (d *Daemon) AuthConfigService() *authcfg.Service {
	return d.authcfg
}

// New creates a new Daemon instance with the provided configuration. The
// database is opened with the configured gorm engine, migrated and seeded.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil, nil
	}

	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "mysql":
		dialector = gormmysql.Open(dsn.Create(cfg))
	case "postgres":
		dialector = gormpostgres.Open(dsn.CreatePostgres(cfg))
	default:
		dialector = sqlite.Open(cfg.DB.Name)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.AuthConfig{},
		&models.DirectoryProvider{},
		&models.AuditEntry{},
	); err != nil {
		return nil, err
	}

	if err = seed(cfg, db); err != nil {
		return nil, err
	}

	binder := &authcfg.LDAPBinder{
		Timeout: time.Duration(cfg.LDAP.Timeout) * time.Second,
	}

	return &Daemon{
		db:      db,
		authcfg: authcfg.NewService(db, binder),
	}, nil
}
