package schema

import (
	"reevdb/db/migrations"
	"reevdb/db/pgw"

	"github.com/jackc/pgx/v5"
)

// Introspect reads a table of the current schema. A missing table is returned as nil.
func Introspect(q pgw.Queryable, tableName string) (*Table, error) {
	rows, err := q.Query(`
		select
			column_name::text,
			case when data_type = 'USER-DEFINED' then udt_name::text else data_type::text end,
			coalesce(character_maximum_length::int, 0),
			is_nullable = 'YES'
		from information_schema.columns
		where table_schema = current_schema() and table_name = $1
		order by ordinal_position
	`, tableName)
	if err != nil {
		return nil, err
	}
	table := Table{
		Name:        tableName,
		CreatedBy:   "",
		Columns:     NewColumns(),
		Constraints: map[string]string{},
		Indexes:     map[string]Index{},
	}
	for rows.Next() {
		var name string
		var column Column
		if err := rows.Scan(&name, &column.Type, &column.MaxLength, &column.Nullable); err != nil {
			return nil, err
		}
		table.Columns.Set(name, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if table.Columns.Len() == 0 {
		return nil, nil
	}

	rows, err = q.Query(`
		select constraint_name::text, constraint_type::text
		from information_schema.table_constraints
		where table_schema = current_schema() and
			table_name = $1 and
			constraint_type in ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY', 'EXCLUDE')
	`, tableName)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name, constraintType string
		if err := rows.Scan(&name, &constraintType); err != nil {
			return nil, err
		}
		table.Constraints[name] = constraintType
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(`
		select index_class.relname::text, ix.indisunique, array_agg(a.attname::text order by k.ord)
		from pg_index ix
		join pg_class index_class on index_class.oid = ix.indexrelid
		join pg_class table_class on table_class.oid = ix.indrelid
		join pg_namespace n on n.oid = table_class.relnamespace
		cross join lateral unnest(ix.indkey) with ordinality as k(attnum, ord)
		join pg_attribute a on a.attrelid = table_class.oid and a.attnum = k.attnum
		where n.nspname = current_schema() and table_class.relname = $1
		group by index_class.relname, ix.indisunique
	`, tableName)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		var index Index
		if err := rows.Scan(&name, &index.Unique, &index.Columns); err != nil {
			return nil, err
		}
		table.Indexes[name] = index
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &table, nil
}

// EnumValues returns nil when the type does not exist.
func EnumValues(q pgw.Queryable, name string) ([]string, error) {
	rows, err := q.Query(`
		select e.enumlabel::text
		from pg_enum e
		join pg_type t on t.oid = e.enumtypid
		join pg_namespace n on n.oid = t.typnamespace
		where n.nspname = current_schema() and t.typname = $1
		order by e.enumsortorder
	`, name)
	if err != nil {
		return nil, err
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// Verify checks that the objects created by applied revisions exist exactly as declared and that objects
// of revisions not applied yet are absent.
func Verify(q pgw.Queryable, graph *migrations.Graph, current string) ([]Mismatch, error) {
	var mismatches []Mismatch
	for _, expected := range Tables {
		applied := graph.IsApplied(expected.CreatedBy, current)
		actual, err := Introspect(q, expected.Name)
		if err != nil {
			return nil, err
		}
		switch {
		case applied && actual == nil:
			mismatches = append(mismatches, Mismatch{
				Object: "table " + expected.Name, Expected: "table", Actual: missing,
			})
		case !applied && actual != nil:
			mismatches = append(mismatches, Mismatch{
				Object: "table " + expected.Name, Expected: missing, Actual: "table",
			})
		case applied:
			mismatches = append(mismatches, Diff(expected, *actual)...)
		}
	}

	for _, expected := range Enums {
		applied := graph.IsApplied(expected.CreatedBy, current)
		values, err := EnumValues(q, expected.Name)
		if err != nil {
			return nil, err
		}
		if applied {
			mismatches = append(mismatches, DiffEnum(expected, values)...)
		} else if values != nil {
			mismatches = append(mismatches, Mismatch{
				Object: "type " + expected.Name, Expected: missing, Actual: "type",
			})
		}
	}

	return mismatches, nil
}
