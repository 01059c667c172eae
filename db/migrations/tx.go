package migrations

import (
	"fmt"
	"reevdb/db/pgw"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Tx is the handle migrations issue DDL through. Database errors are returned unmodified.
type Tx struct {
	impl *pgw.Tx
}

func WrapTx(tx *pgw.Tx) *Tx {
	return &Tx{impl: tx}
}

// Pgw exposes the underlying transaction for data migrations.
func (tx *Tx) Pgw() *pgw.Tx {
	return tx.impl
}

func (tx *Tx) Exec(sql string, args ...any) error {
	_, err := tx.impl.Exec(sql, args...)
	return err
}

func (tx *Tx) CreateEnum(name string, values ...string) error {
	quotedValues := make([]string, len(values))
	for i, value := range values {
		quotedValues[i] = quoteLiteral(value)
	}
	return tx.Exec(fmt.Sprintf(
		"create type %s as enum (%s)", quoteIdent(name), strings.Join(quotedValues, ", "),
	))
}

// EnumReferences lists "table.column" for every column in the current schema typed as the enum or an
// array of it.
func (tx *Tx) EnumReferences(name string) ([]string, error) {
	row := tx.impl.QueryRow(`
		select coalesce(string_agg(table_name || '.' || column_name, ',' order by table_name, column_name), '')
		from information_schema.columns
		where table_schema = current_schema() and udt_name::text in ($1::text, '_' || $1::text)
	`, name)
	var joined string
	if err := row.Scan(&joined); err != nil {
		return nil, err
	}
	if joined == "" {
		return nil, nil
	}
	return strings.Split(joined, ","), nil
}

type EnumInUseError struct {
	Name    string
	Columns []string
}

func (err *EnumInUseError) Error() string {
	return fmt.Sprintf("enum type %s is still used by %s", err.Name, strings.Join(err.Columns, ", "))
}

func (err *EnumInUseError) Is(target error) bool {
	return target == ErrEnumInUse
}

// DropEnum drops a named enum type after checking that no column references it anymore.
func (tx *Tx) DropEnum(name string) error {
	columns, err := tx.EnumReferences(name)
	if err != nil {
		return err
	}
	if len(columns) > 0 {
		return &EnumInUseError{
			Name:    name,
			Columns: columns,
		}
	}
	return tx.Exec("drop type " + quoteIdent(name))
}

func (tx *Tx) CreateIndex(name string, table string, columns []string, unique bool) error {
	quotedColumns := make([]string, len(columns))
	for i, column := range columns {
		quotedColumns[i] = quoteIdent(column)
	}
	uniqueStr := ""
	if unique {
		uniqueStr = "unique "
	}
	return tx.Exec(fmt.Sprintf(
		"create %sindex %s on %s (%s)",
		uniqueStr, quoteIdent(name), quoteIdent(table), strings.Join(quotedColumns, ", "),
	))
}

func (tx *Tx) DropIndex(name string) error {
	return tx.Exec("drop index " + quoteIdent(name))
}

func (tx *Tx) DropTable(name string) error {
	return tx.Exec("drop table " + quoteIdent(name))
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
