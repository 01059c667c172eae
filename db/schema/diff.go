package schema

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

type Mismatch struct {
	Object   string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %s, found %s", m.Object, m.Expected, m.Actual)
}

const missing = "nothing"

// Diff compares columns including their order, constraints and indexes by name.
func Diff(expected Table, actual Table) []Mismatch {
	var mismatches []Mismatch
	add := func(object string, expectedStr string, actualStr string) {
		mismatches = append(mismatches, Mismatch{
			Object:   fmt.Sprintf("%s.%s", expected.Name, object),
			Expected: expectedStr,
			Actual:   actualStr,
		})
	}

	var expectedOrder, actualOrder []string
	for pair := expected.Columns.Oldest(); pair != nil; pair = pair.Next() {
		actualColumn, ok := actual.Columns.Get(pair.Key)
		if !ok {
			add(pair.Key, pair.Value.String(), missing)
			continue
		}
		expectedOrder = append(expectedOrder, pair.Key)
		if actualColumn != pair.Value {
			add(pair.Key, pair.Value.String(), actualColumn.String())
		}
	}
	for pair := actual.Columns.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := expected.Columns.Get(pair.Key); !ok {
			add(pair.Key, missing, pair.Value.String())
			continue
		}
		actualOrder = append(actualOrder, pair.Key)
	}
	if !slices.Equal(expectedOrder, actualOrder) {
		add(
			"columns", "order ("+strings.Join(expectedOrder, ", ")+")",
			"("+strings.Join(actualOrder, ", ")+")",
		)
	}

	for _, name := range sortedKeys(expected.Constraints) {
		actualType, ok := actual.Constraints[name]
		if !ok {
			add(name, expected.Constraints[name], missing)
		} else if actualType != expected.Constraints[name] {
			add(name, expected.Constraints[name], actualType)
		}
	}
	for _, name := range sortedKeys(actual.Constraints) {
		if _, ok := expected.Constraints[name]; !ok {
			add(name, missing, actual.Constraints[name])
		}
	}

	for _, name := range sortedKeys(expected.Indexes) {
		expectedIndex := expected.Indexes[name]
		actualIndex, ok := actual.Indexes[name]
		if !ok {
			add(name, expectedIndex.String(), missing)
		} else if actualIndex.Unique != expectedIndex.Unique ||
			!slices.Equal(actualIndex.Columns, expectedIndex.Columns) {
			add(name, expectedIndex.String(), actualIndex.String())
		}
	}
	for _, name := range sortedKeys(actual.Indexes) {
		if _, ok := expected.Indexes[name]; !ok {
			add(name, missing, actual.Indexes[name].String())
		}
	}

	return mismatches
}

func DiffEnum(expected Enum, actualValues []string) []Mismatch {
	if slices.Equal(expected.Values, actualValues) {
		return nil
	}
	actualStr := missing
	if actualValues != nil {
		actualStr = "(" + strings.Join(actualValues, ", ") + ")"
	}
	return []Mismatch{{
		Object:   "type " + expected.Name,
		Expected: "(" + strings.Join(expected.Values, ", ") + ")",
		Actual:   actualStr,
	}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
