package config

import (
	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/validate"
)

// Validate checks field values shared by all commands.
func Validate(cfg *Config) error {
	return validate.Struct(cfg) //nolint:wrapcheck
}

// ValidateMigrate validates the Config of a full migration.
func ValidateMigrate(cfg *Config) error {
	err := Validate(cfg)
	if err != nil {
		return err
	}

	switch {
	case cfg.Source == "" && cfg.Target == "":
		return errors.New("source and target are empty")
	case cfg.Source == "":
		return errors.New("source is empty")
	case cfg.Target == "" && !cfg.DryRun:
		return errors.New("target is empty")
	case cfg.Source == cfg.Target:
		return errors.New("source and target are identical")
	case cfg.Collection == "":
		return errors.New("collection is empty")
	}

	return nil
}

// ValidateExport validates the Config of an export to a snapshot file.
func ValidateExport(cfg *Config) error {
	err := Validate(cfg)
	if err != nil {
		return err
	}

	switch {
	case cfg.Source == "":
		return errors.New("source is empty")
	case cfg.Collection == "":
		return errors.New("collection is empty")
	case cfg.Output == "":
		return errors.New("output is empty")
	}

	return nil
}

// ValidateImport validates the Config of an import from a snapshot file.
func ValidateImport(cfg *Config) error {
	err := Validate(cfg)
	if err != nil {
		return err
	}

	switch {
	case cfg.Target == "":
		return errors.New("target is empty")
	case cfg.Input == "":
		return errors.New("input is empty")
	}

	return nil
}
