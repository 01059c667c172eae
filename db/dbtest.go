//go:build testing

package db

import (
	"fmt"
	"reevdb/db/pgw"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// WithTestSchema runs f in a transaction with search_path pointing at a fresh schema. Everything is rolled
// back afterwards.
func WithTestSchema(t *testing.T, f func(tx *pgw.Tx)) {
	t.Helper()

	conn, err := Pool.AcquireBackground()
	require.NoError(t, err)
	defer conn.Release()

	tx, err := conn.Begin()
	require.NoError(t, err)
	defer func() {
		_ = tx.Rollback()
	}()

	schema := fmt.Sprintf("test_%s", uuid.New().String()[:8])
	tx.MustExec("create schema " + schema)
	tx.MustExec("set local search_path to " + schema)

	f(tx)
}
