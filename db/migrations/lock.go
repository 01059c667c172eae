package migrations

import (
	"hash/crc32"
	"reevdb/db/pgw"
	"reevdb/oops"
)

const migratorSalt = 2053462845

func lockId(dbName string) int64 {
	dbNameHash := crc32.ChecksumIEEE([]byte(dbName))
	return migratorSalt * int64(dbNameHash)
}

// AcquireLock takes a session level advisory lock so only one migration process runs per database. The
// returned function releases it and must be called on the same connection.
func AcquireLock(q pgw.Queryable, dbName string) (func() error, error) {
	id := lockId(dbName)
	lockRow := q.QueryRow("select pg_try_advisory_lock($1)", id)
	var gotLock bool
	if err := lockRow.Scan(&gotLock); err != nil {
		return nil, err
	}
	if !gotLock {
		return nil, oops.Wrap(ErrLocked)
	}

	release := func() error {
		row := q.QueryRow("select pg_advisory_unlock($1)", id)
		var unlocked bool
		if err := row.Scan(&unlocked); err != nil {
			return err
		}
		if !unlocked {
			return oops.New("failed to release advisory lock")
		}
		return nil
	}
	return release, nil
}
