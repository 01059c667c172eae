package migrations

import (
	"errors"
	"sort"
)

// Migration is one unit of the revision chain. DownRevision is empty for the root.
type Migration interface {
	Revision() string
	DownRevision() string
	Message() string
	Up(tx *Tx) error
	Down(tx *Tx) error
}

var All []Migration

func registerMigration(migration Migration) {
	All = append(All, migration)
	sort.SliceStable(All, func(i, j int) bool {
		return All[i].Revision() < All[j].Revision()
	})
}

var ErrInvalidRevision = errors.New("invalid revision")
var ErrDuplicateRevision = errors.New("duplicate revision")
var ErrUnknownRevision = errors.New("unknown revision")
var ErrAmbiguousRevision = errors.New("ambiguous revision")
var ErrNoRoot = errors.New("no root revision")
var ErrMultipleRoots = errors.New("multiple root revisions")
var ErrMultipleHeads = errors.New("multiple head revisions")
var ErrCycle = errors.New("revision cycle")
var ErrNotAncestor = errors.New("revisions are not connected by the chain")
var ErrRelativeOutOfRange = errors.New("relative revision is out of range")
var ErrDependencyNotApplied = errors.New("dependency is not applied")
var ErrAlreadyApplied = errors.New("revision is already applied")
var ErrNotCurrent = errors.New("revision is not the current revision")
var ErrEnumInUse = errors.New("enum type is still in use")
var ErrLocked = errors.New(
	"cannot run migrations because another migration process is currently running",
)
