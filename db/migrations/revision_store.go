package migrations

import (
	"errors"
	"reevdb/db/pgw"
	"reevdb/oops"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// RevisionStore persists which revision a database currently satisfies. Empty means base.
type RevisionStore interface {
	CurrentRevision(q pgw.Queryable) (string, error)
	SetCurrentRevision(q pgw.Queryable, revision string) error
}

type tableEnsurer interface {
	EnsureTable(q pgw.Queryable) error
}

// AlembicVersionStore keeps the revision in alembic_version so databases created by the Python tooling
// keep working.
type AlembicVersionStore struct{}

func (AlembicVersionStore) EnsureTable(q pgw.Queryable) error {
	_, err := q.Exec(`
		create table if not exists alembic_version (
			version_num varchar(32) not null,
			constraint alembic_version_pkc primary key (version_num)
		)
	`)
	return err
}

// CurrentRevision treats a missing alembic_version table as base. Must not be called inside a
// transaction that should survive, as the failed lookup aborts it.
func (AlembicVersionStore) CurrentRevision(q pgw.Queryable) (string, error) {
	row := q.QueryRow(`select count(*), coalesce(min(version_num), '') from alembic_version`)
	var count int64
	var revision string
	err := row.Scan(&count, &revision)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return "", nil
	} else if err != nil {
		return "", err
	}
	if count > 1 {
		return "", oops.Wrapf(ErrMultipleHeads, "alembic_version has %d rows", count)
	}
	return revision, nil
}

func (AlembicVersionStore) SetCurrentRevision(q pgw.Queryable, revision string) error {
	if _, err := q.Exec(`delete from alembic_version`); err != nil {
		return err
	}
	if revision == "" {
		return nil
	}
	_, err := q.Exec(`insert into alembic_version (version_num) values ($1)`, revision)
	return err
}

// MemoryRevisionStore is not transactional: a value set inside a rolled back transaction stays set.
type MemoryRevisionStore struct {
	Revision string
}

func (s *MemoryRevisionStore) CurrentRevision(_ pgw.Queryable) (string, error) {
	return s.Revision, nil
}

func (s *MemoryRevisionStore) SetCurrentRevision(_ pgw.Queryable, revision string) error {
	s.Revision = revision
	return nil
}
