package config

import (
	"errors"
)

var (
	// ErrEmptyDBName error if config db.name is empty.
	ErrEmptyDBName = errors.New("toml config db.name can not be empty")

	// ErrEmptyDBEngine error if config db.gormEngine is empty.
	ErrEmptyDBEngine = errors.New("toml config db.gormEngine can not be empty")
)
