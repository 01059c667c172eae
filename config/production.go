package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

func productionConfig() Config {
	db, err := parseDatabaseUrl(mustLookupEnv("DATABASE_URL"))
	if err != nil {
		panic(err)
	}

	backup := BackupConfig{
		Bucket:             os.Getenv("REEVDB_BACKUP_BUCKET"),
		Region:             "eu-central-1",
		AwsAccessKey:       os.Getenv("AWS_ACCESS_KEY_ID"),
		AwsSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		KeepCount:          30,
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok {
		backup.Region = region
	}

	return Config{
		Env: EnvProduction,
		DB:  db,
		Migrations: MigrationsConfig{
			TransactionPerMigration: true,
			StructureFile:           "",
		},
		Backup: backup,
	}
}

func parseDatabaseUrl(databaseUrl string) (DBConfig, error) {
	dbUri, err := url.Parse(databaseUrl)
	if err != nil {
		return DBConfig{}, err
	}
	if dbUri.Scheme != "postgres" && dbUri.Scheme != "postgresql" {
		return DBConfig{}, fmt.Errorf("unexpected database url scheme: %s", dbUri.Scheme)
	}
	var maybePassword *string
	if dbUri.User != nil {
		if password, ok := dbUri.User.Password(); ok {
			maybePassword = &password
		}
	}
	dbPort := 5432
	if dbUri.Port() != "" {
		dbPort, err = strconv.Atoi(dbUri.Port())
		if err != nil {
			return DBConfig{}, err
		}
	}
	if len(dbUri.Path) <= 1 {
		return DBConfig{}, fmt.Errorf("database name is not in the database url")
	}
	user := ""
	if dbUri.User != nil {
		user = dbUri.User.Username()
	}

	return DBConfig{
		User:          user,
		MaybePassword: maybePassword,
		Host:          dbUri.Hostname(),
		Port:          dbPort,
		DBName:        dbUri.Path[1:],
		SSLMode:       dbUri.Query().Get("sslmode"),
	}, nil
}

func mustLookupEnv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		panic(fmt.Errorf("%s environment variable not set", key))
	}
	return value
}
