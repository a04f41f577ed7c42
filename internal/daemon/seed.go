package daemon

import (
	"errors"

	"gorm.io/gorm"

	"github.com/zenwatch/zenwatch/internal/config"
	"github.com/zenwatch/zenwatch/internal/db/models"
)

// seed provisions the singleton authentication configuration row and a
// bootstrap super admin. Both are created exactly once; repeated runs are
// no-ops.
func seed(_ *config.Config, db *gorm.DB) error {
	var cfg models.AuthConfig

	err := db.First(&cfg, models.AuthConfigID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.AuthConfig{
			ID:                 models.AuthConfigID,
			AuthenticationType: models.AuthTypeInternal,
			HTTPCaseSensitive:  models.CaseSensitive,
			LDAPCaseSensitive:  models.CaseSensitive,
			PasswdMinLength:    8,
			PasswdCheckRules:   models.PasswdCheckLength.With(models.PasswdCheckSimple),
		}
		if err := db.Create(&cfg).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count == 0 {
		return db.Create(
			&models.User{
				Username: "admin",
				Active:   true,
				Type:     models.UserTypeSuperAdmin,
			},
		).Error
	}

	return nil
}
