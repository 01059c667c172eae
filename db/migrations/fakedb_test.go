package migrations

import (
	"context"
	"errors"
	"fmt"
	"reevdb/db/pgw"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB records the statements pgx would have sent. Nested transactions work on a copy of the parent state
// that is only written back on commit, so rollbacks discard everything done inside them.
type fakeDB struct {
	failOn   string
	enumRefs map[string]string
	locked   bool
}

type fakeState struct {
	revision     string
	versionTable bool
	statements   []string
}

func (s fakeState) clone() fakeState {
	s.statements = append([]string(nil), s.statements...)
	return s
}

type fakeTx struct {
	db     *fakeDB
	parent *fakeTx
	state  fakeState
	closed bool
}

func newFakeSession(db *fakeDB) (*fakeTx, *pgw.Tx) {
	session := &fakeTx{db: db}
	return session, pgw.WrapTx(context.Background(), session)
}

// ddl is what was executed besides bookkeeping.
func (f *fakeTx) ddl() []string {
	var result []string
	for _, statement := range f.state.statements {
		if strings.Contains(statement, "alembic_version") {
			continue
		}
		result = append(result, statement)
	}
	return result
}

func normalize(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

func (f *fakeTx) Begin(_ context.Context) (pgx.Tx, error) {
	if f.closed {
		return nil, pgx.ErrTxClosed
	}
	return &fakeTx{
		db:     f.db,
		parent: f,
		state:  f.state.clone(),
	}, nil
}

func (f *fakeTx) Commit(_ context.Context) error {
	if f.closed {
		return pgx.ErrTxClosed
	}
	if f.parent == nil {
		return nil
	}
	f.parent.state = f.state
	f.closed = true
	return nil
}

func (f *fakeTx) Rollback(_ context.Context) error {
	if f.closed {
		return pgx.ErrTxClosed
	}
	if f.parent != nil {
		f.closed = true
	}
	return nil
}

func (f *fakeTx) CopyFrom(
	_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource,
) (int64, error) {
	return 0, errors.New("copy is not supported")
}

func (f *fakeTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults {
	panic("batches are not supported")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("large objects are not supported")
}

func (f *fakeTx) Prepare(_ context.Context, _ string, _ string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("prepare is not supported")
}

func (f *fakeTx) Exec(_ context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if f.closed {
		return pgconn.CommandTag{}, pgx.ErrTxClosed
	}
	statement := normalize(sql)
	if f.db.failOn != "" && strings.Contains(statement, f.db.failOn) {
		return pgconn.CommandTag{}, &pgconn.PgError{
			Severity: "ERROR",
			Code:     "42P07",
			Message:  fmt.Sprintf("failed on %q", f.db.failOn),
		}
	}

	switch {
	case strings.HasPrefix(statement, "create table if not exists alembic_version"):
		f.state.versionTable = true
	case strings.HasPrefix(statement, "delete from alembic_version"):
		f.state.revision = ""
	case strings.HasPrefix(statement, "insert into alembic_version"):
		f.state.revision = arguments[0].(string)
	}
	f.state.statements = append(f.state.statements, statement)
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query: %s", normalize(sql))
}

func (f *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	statement := normalize(sql)
	switch {
	case strings.Contains(statement, "from alembic_version"):
		if !f.state.versionTable {
			return fakeRow{err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}}
		}
		count := int64(0)
		if f.state.revision != "" {
			count = 1
		}
		return fakeRow{values: []any{count, f.state.revision}}
	case strings.Contains(statement, "information_schema.columns"):
		return fakeRow{values: []any{f.db.enumRefs[args[0].(string)]}}
	case strings.Contains(statement, "pg_try_advisory_lock"):
		gotLock := !f.db.locked
		f.db.locked = true
		return fakeRow{values: []any{gotLock}}
	case strings.Contains(statement, "pg_advisory_unlock"):
		wasLocked := f.db.locked
		f.db.locked = false
		return fakeRow{values: []any{wasLocked}}
	}
	return fakeRow{err: fmt.Errorf("unexpected query: %s", statement)}
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			*d = r.values[i].(string)
		case *int64:
			*d = r.values[i].(int64)
		case *bool:
			*d = r.values[i].(bool)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}
