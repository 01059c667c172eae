package config

import (
	"fmt"
	"os"
)

type Config struct {
	Env        Env
	DB         DBConfig
	Migrations MigrationsConfig
	Backup     BackupConfig
}

type Env int

const (
	EnvDevelopment Env = iota
	EnvTesting
	EnvProduction
)

func (e Env) IsDevOrTest() bool {
	return e == EnvDevelopment || e == EnvTesting
}

func (e Env) String() string {
	switch e {
	case EnvDevelopment:
		return "development"
	case EnvTesting:
		return "testing"
	case EnvProduction:
		return "production"
	default:
		return fmt.Sprintf("Env(%d)", int(e))
	}
}

type DBConfig struct {
	User          string
	MaybePassword *string
	Host          string
	Port          int
	DBName        string
	SSLMode       string
}

func (c DBConfig) DSN() string {
	password := ""
	if c.MaybePassword != nil {
		password = fmt.Sprintf(" password=%s", *c.MaybePassword)
	}
	sslMode := ""
	if c.SSLMode != "" {
		sslMode = fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	return fmt.Sprintf(
		"user=%s%s host=%s port=%d dbname=%s%s", c.User, password, c.Host, c.Port, c.DBName, sslMode,
	)
}

type MigrationsConfig struct {
	// When false, a whole upgrade or downgrade runs in a single transaction.
	TransactionPerMigration bool
	StructureFile           string
}

type BackupConfig struct {
	Bucket             string
	Region             string
	AwsAccessKey       string
	AwsSecretAccessKey string
	KeepCount          int
}

func (c BackupConfig) IsConfigured() bool {
	return c.Bucket != ""
}

var Cfg Config

func init() {
	if isTesting {
		Cfg = testingConfig()
		return
	}

	_, ok := os.LookupEnv("REEVDB_ENV")
	if !ok {
		Cfg = developmentConfig()
	} else {
		Cfg = productionConfig()
	}

	if path, ok := os.LookupEnv("REEVDB_CONFIG"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			panic(err)
		}
		if err := applyYAML(&Cfg, data); err != nil {
			panic(fmt.Errorf("%s: %w", path, err))
		}
	}
}
