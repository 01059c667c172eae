package migrations

import (
	"errors"
	"reevdb/db/pgw"
	"reevdb/log"
	"reevdb/oops"
	"time"

	"github.com/jackc/pgx/v5"
)

type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

func (d Direction) String() string {
	if d == DirectionDown {
		return "down"
	}
	return "up"
}

// Step is one migration run in one direction, moving the bookkeeping revision From -> To.
type Step struct {
	Migration Migration
	Direction Direction
	From      string
	To        string
}

func (s Step) run(tx *Tx) error {
	if s.Direction == DirectionDown {
		return s.Migration.Down(tx)
	}
	return s.Migration.Up(tx)
}

// Runner applies migrations of a graph and records progress in a RevisionStore. Units run sequentially,
// and each runs together with its bookkeeping update in one transaction, so a failed unit is never
// recorded as applied.
type Runner struct {
	Graph *Graph
	Store RevisionStore
	// When false, all steps of one Upgrade/Downgrade share a single transaction.
	TransactionPerMigration bool
}

func NewRunner(graph *Graph, store RevisionStore) *Runner {
	return &Runner{
		Graph:                   graph,
		Store:                   store,
		TransactionPerMigration: true,
	}
}

func (r *Runner) Current(q pgw.Queryable) (string, error) {
	current, err := r.Store.CurrentRevision(q)
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", nil
	}
	if _, ok := r.Graph.Get(current); !ok {
		return "", oops.Wrapf(ErrUnknownRevision, "database is at %s which is not in code", current)
	}
	return current, nil
}

func (r *Runner) Pending(q pgw.Queryable) ([]Migration, error) {
	current, err := r.Current(q)
	if err != nil {
		return nil, err
	}
	return r.Graph.UpgradePath(current, r.Graph.Head())
}

func (r *Runner) PlanUpgrade(current string, target string) ([]Step, error) {
	to, err := r.Graph.Resolve(target, current)
	if err != nil {
		return nil, err
	}
	path, err := r.Graph.UpgradePath(current, to)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, len(path))
	for i, migration := range path {
		steps[i] = Step{
			Migration: migration,
			Direction: DirectionUp,
			From:      migration.DownRevision(),
			To:        migration.Revision(),
		}
	}
	return steps, nil
}

func (r *Runner) PlanDowngrade(current string, target string) ([]Step, error) {
	to, err := r.Graph.Resolve(target, current)
	if err != nil {
		return nil, err
	}
	path, err := r.Graph.DowngradePath(current, to)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, len(path))
	for i, migration := range path {
		steps[i] = Step{
			Migration: migration,
			Direction: DirectionDown,
			From:      migration.Revision(),
			To:        migration.DownRevision(),
		}
	}
	return steps, nil
}

func (r *Runner) Upgrade(q pgw.Queryable, target string) ([]Step, error) {
	current, err := r.prepare(q)
	if err != nil {
		return nil, err
	}
	steps, err := r.PlanUpgrade(current, target)
	if err != nil {
		return nil, err
	}
	return steps, r.execute(q, steps)
}

func (r *Runner) Downgrade(q pgw.Queryable, target string) ([]Step, error) {
	current, err := r.prepare(q)
	if err != nil {
		return nil, err
	}
	steps, err := r.PlanDowngrade(current, target)
	if err != nil {
		return nil, err
	}
	return steps, r.execute(q, steps)
}

// Apply runs the upgrade of exactly one migration, which must directly follow the current revision.
func (r *Runner) Apply(q pgw.Queryable, revision string) (Step, error) {
	revision, err := r.Graph.ResolveRevision(revision)
	if err != nil {
		return Step{}, err
	}
	current, err := r.prepare(q)
	if err != nil {
		return Step{}, err
	}
	migration, _ := r.Graph.Get(revision)
	if migration.DownRevision() != current {
		if r.Graph.IsApplied(revision, current) {
			return Step{}, oops.Wrapf(ErrAlreadyApplied, "%s (database is at %s)", revision, current)
		}
		return Step{}, oops.Wrapf(
			ErrDependencyNotApplied, "%s requires %s but database is at %s",
			revision, displayRevision(migration.DownRevision()), displayRevision(current),
		)
	}

	step := Step{
		Migration: migration,
		Direction: DirectionUp,
		From:      current,
		To:        revision,
	}
	return step, r.execute(q, []Step{step})
}

// Revert runs the downgrade of exactly one migration, which must be the current revision.
func (r *Runner) Revert(q pgw.Queryable, revision string) (Step, error) {
	revision, err := r.Graph.ResolveRevision(revision)
	if err != nil {
		return Step{}, err
	}
	current, err := r.prepare(q)
	if err != nil {
		return Step{}, err
	}
	if current != revision {
		return Step{}, oops.Wrapf(
			ErrNotCurrent, "%s (database is at %s)", revision, displayRevision(current),
		)
	}

	migration, _ := r.Graph.Get(revision)
	step := Step{
		Migration: migration,
		Direction: DirectionDown,
		From:      revision,
		To:        migration.DownRevision(),
	}
	return step, r.execute(q, []Step{step})
}

// Stamp records target as the current revision without running any migration.
func (r *Runner) Stamp(q pgw.Queryable, target string) (revision string, err error) {
	current, err := r.prepare(q)
	if err != nil {
		return "", err
	}
	revision, err = r.Graph.Resolve(target, current)
	if err != nil {
		return "", err
	}

	tx, err := q.Begin()
	if err != nil {
		return "", err
	}
	defer rollback(tx, &err)

	if err := r.Store.SetCurrentRevision(tx, revision); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	log.Info().
		Str("from", displayRevision(current)).
		Str("to", displayRevision(revision)).
		Msg("Stamped revision")
	return revision, nil
}

func (r *Runner) prepare(q pgw.Queryable) (string, error) {
	if ensurer, ok := r.Store.(tableEnsurer); ok {
		if err := ensurer.EnsureTable(q); err != nil {
			return "", err
		}
	}
	return r.Current(q)
}

func (r *Runner) execute(q pgw.Queryable, steps []Step) error {
	if len(steps) == 0 {
		log.Info().Msg("Nothing to migrate")
		return nil
	}

	if !r.TransactionPerMigration {
		return r.runInTx(q, steps)
	}
	for _, step := range steps {
		if err := r.runInTx(q, []Step{step}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runInTx(q pgw.Queryable, steps []Step) (err error) {
	tx, err := q.Begin()
	if err != nil {
		return err
	}
	defer rollback(tx, &err)

	for _, step := range steps {
		revision := step.Migration.Revision()
		t1 := time.Now()
		if err := step.run(WrapTx(tx)); err != nil {
			log.Error().
				Err(err).
				Str("revision", revision).
				Stringer("direction", step.Direction).
				Msg("Migration failed")
			return err
		}
		if err := r.Store.SetCurrentRevision(tx, step.To); err != nil {
			return err
		}
		log.Info().
			Str("revision", revision).
			Str("message", step.Migration.Message()).
			Stringer("direction", step.Direction).
			Dur("duration", time.Since(t1)).
			Msg("Migrated")
	}

	return tx.Commit()
}

func rollback(tx *pgw.Tx, errPtr *error) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, pgx.ErrTxClosed) && *errPtr == nil {
		*errPtr = oops.Wrapf(err, "rollback error")
	}
}
