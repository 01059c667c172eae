// Run `golangci-lint cache clean` after modifying this file.

package gorules

import (
	"github.com/quasilyte/go-ruleguard/dsl"
)

func migrationsAreDeterministic(m dsl.Matcher) {
	m.Match(`time.Now()`, `uuid.New()`, `uuid.NewString()`).
		Where(m.File().PkgPath.Matches(`reevdb/db/migrations`) && m.File().Name.Matches(`^[0-9a-f]{12}_`)).
		Report(`migrations must produce the same schema every time they run`)
}

func queryableOutsideDb(m dsl.Matcher) {
	m.Match(`db.Pool`).
		Where(
			!m.File().PkgPath.Matches(`reevdb/db`) &&
				!m.File().PkgPath.Matches(`reevdb/cmd`) &&
				!m.File().Name.Matches(`_test\.go$`)).
		Report(`references to db.Pool are only allowed in db and cmd, use pgw.Queryable instead`)
	m.Match(`pgw.Tx`).
		Where(
			!m.File().PkgPath.Matches(`reevdb/db`) &&
				!m.File().Name.Matches(`_test\.go$`)).
		Report(`references to pgw.Tx are only allowed in db, use pgw.Queryable instead`)
}
