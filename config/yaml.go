package config

import (
	"gopkg.in/yaml.v3"
)

// Every field is optional; only the ones present override the environment config.
type yamlOverlay struct {
	DB *struct {
		User     *string `yaml:"user"`
		Password *string `yaml:"password"`
		Host     *string `yaml:"host"`
		Port     *int    `yaml:"port"`
		Name     *string `yaml:"name"`
		SSLMode  *string `yaml:"sslmode"`
	} `yaml:"db"`
	Migrations *struct {
		TransactionPerMigration *bool   `yaml:"transaction_per_migration"`
		StructureFile           *string `yaml:"structure_file"`
	} `yaml:"migrations"`
	Backup *struct {
		Bucket    *string `yaml:"bucket"`
		Region    *string `yaml:"region"`
		KeepCount *int    `yaml:"keep_count"`
	} `yaml:"backup"`
}

func applyYAML(cfg *Config, data []byte) error {
	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}

	if db := overlay.DB; db != nil {
		setIfPresent(&cfg.DB.User, db.User)
		if db.Password != nil {
			password := *db.Password
			cfg.DB.MaybePassword = &password
		}
		setIfPresent(&cfg.DB.Host, db.Host)
		setIfPresent(&cfg.DB.Port, db.Port)
		setIfPresent(&cfg.DB.DBName, db.Name)
		setIfPresent(&cfg.DB.SSLMode, db.SSLMode)
	}
	if m := overlay.Migrations; m != nil {
		setIfPresent(&cfg.Migrations.TransactionPerMigration, m.TransactionPerMigration)
		setIfPresent(&cfg.Migrations.StructureFile, m.StructureFile)
	}
	if b := overlay.Backup; b != nil {
		setIfPresent(&cfg.Backup.Bucket, b.Bucket)
		setIfPresent(&cfg.Backup.Region, b.Region)
		setIfPresent(&cfg.Backup.KeepCount, b.KeepCount)
	}
	return nil
}

func setIfPresent[T any](dst *T, maybeValue *T) {
	if maybeValue != nil {
		*dst = *maybeValue
	}
}
