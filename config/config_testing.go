//go:build testing

package config

const isTesting = true

func testingConfig() Config {
	devCfg := developmentConfig()
	return Config{
		Env: EnvTesting,
		DB: DBConfig{
			User:          devCfg.DB.User,
			MaybePassword: devCfg.DB.MaybePassword,
			Host:          devCfg.DB.Host,
			Port:          devCfg.DB.Port,
			DBName:        "reev_test",
			SSLMode:       devCfg.DB.SSLMode,
		},
		Migrations: MigrationsConfig{
			TransactionPerMigration: true,
			StructureFile:           "",
		},
		Backup: BackupConfig{},
	}
}
