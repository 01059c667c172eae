package db

import (
	"context"
	"reevdb/config"
	"reevdb/db/migrations"
	"reevdb/db/pgw"
	"reevdb/oops"
)

var Pool *pgw.Pool

func init() {
	var err error
	Pool, err = pgw.NewPool(context.Background(), config.Cfg.DB.DSN())
	if err != nil {
		panic(err)
	}
}

// NewRunner builds a runner over every registered migration, keeping the revision in alembic_version.
func NewRunner() (*migrations.Runner, error) {
	graph, err := migrations.NewGraph(migrations.All)
	if err != nil {
		return nil, err
	}
	runner := migrations.NewRunner(graph, migrations.AlembicVersionStore{})
	runner.TransactionPerMigration = config.Cfg.Migrations.TransactionPerMigration
	return runner, nil
}

// EnsureLatestMigration fails unless the database is at the head revision.
func EnsureLatestMigration(q pgw.Queryable) error {
	runner, err := NewRunner()
	if err != nil {
		return err
	}
	pending, err := runner.Pending(q)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return oops.Newf(
			"%d migrations are not in db, first: %s", len(pending), pending[0].Revision(),
		)
	}
	return nil
}
