package config

import (
	"os"
	"strconv"
)

func developmentConfig() Config {
	host := "localhost"
	if pgHost, ok := os.LookupEnv("PGHOST"); ok {
		host = pgHost
	}
	port := 5432
	if pgPort, ok := os.LookupEnv("PGPORT"); ok {
		var err error
		port, err = strconv.Atoi(pgPort)
		if err != nil {
			panic(err)
		}
	}
	var maybePassword *string
	if pgPassword, ok := os.LookupEnv("PGPASSWORD"); ok {
		maybePassword = &pgPassword
	}

	return Config{
		Env: EnvDevelopment,
		DB: DBConfig{
			User:          "postgres",
			MaybePassword: maybePassword,
			Host:          host,
			Port:          port,
			DBName:        "reev_development",
			SSLMode:       "disable",
		},
		Migrations: MigrationsConfig{
			TransactionPerMigration: true,
			StructureFile:           "db/structure.sql",
		},
		Backup: BackupConfig{},
	}
}
