package migrations

import (
	"reevdb/oops"
	"sort"
	"strings"
)

// Graph indexes migrations by revision with edges in both directions. Only a single linear chain is
// accepted, but children are kept as lists so merges can be supported later.
type Graph struct {
	byRevision map[string]Migration
	children   map[string][]string
	position   map[string]int
	history    []Migration
}

func NewGraph(all []Migration) (*Graph, error) {
	graph := &Graph{
		byRevision: make(map[string]Migration, len(all)),
		children:   make(map[string][]string, len(all)),
		position:   make(map[string]int, len(all)),
		history:    nil,
	}

	for _, migration := range all {
		revision := migration.Revision()
		if !isValidRevision(revision) {
			return nil, oops.Wrapf(ErrInvalidRevision, "%q", revision)
		}
		if _, ok := graph.byRevision[revision]; ok {
			return nil, oops.Wrapf(ErrDuplicateRevision, "%s", revision)
		}
		graph.byRevision[revision] = migration
	}
	if len(all) == 0 {
		return graph, nil
	}

	var roots []string
	for _, migration := range all {
		revision := migration.Revision()
		downRevision := migration.DownRevision()
		if downRevision == "" {
			roots = append(roots, revision)
			continue
		}
		if _, ok := graph.byRevision[downRevision]; !ok {
			return nil, oops.Wrapf(ErrUnknownRevision, "%s revises %s", revision, downRevision)
		}
		graph.children[downRevision] = append(graph.children[downRevision], revision)
	}

	switch len(roots) {
	case 0:
		return nil, oops.Wrap(ErrNoRoot)
	case 1:
	default:
		sort.Strings(roots)
		return nil, oops.Wrapf(ErrMultipleRoots, "%s", strings.Join(roots, ", "))
	}

	revision := roots[0]
	for {
		graph.position[revision] = len(graph.history)
		graph.history = append(graph.history, graph.byRevision[revision])
		children := graph.children[revision]
		if len(children) == 0 {
			break
		}
		if len(children) > 1 {
			return nil, oops.Wrapf(
				ErrMultipleHeads, "%s is revised by %s", revision, strings.Join(children, ", "),
			)
		}
		revision = children[0]
	}

	if len(graph.history) != len(all) {
		var unreachable []string
		for revision := range graph.byRevision {
			if _, ok := graph.position[revision]; !ok {
				unreachable = append(unreachable, revision)
			}
		}
		sort.Strings(unreachable)
		return nil, oops.Wrapf(ErrCycle, "not reachable from root: %s", strings.Join(unreachable, ", "))
	}

	return graph, nil
}

func isValidRevision(revision string) bool {
	if revision == "" || revision == "head" || revision == "heads" || revision == "base" {
		return false
	}
	return !strings.ContainsAny(revision, " \t\n+-@:")
}

func (g *Graph) Len() int {
	return len(g.history)
}

func (g *Graph) Get(revision string) (Migration, bool) {
	migration, ok := g.byRevision[revision]
	return migration, ok
}

// Root is the revision without a dependency, empty for an empty graph.
func (g *Graph) Root() string {
	if len(g.history) == 0 {
		return ""
	}
	return g.history[0].Revision()
}

func (g *Graph) Head() string {
	if len(g.history) == 0 {
		return ""
	}
	return g.history[len(g.history)-1].Revision()
}

func (g *Graph) Parent(revision string) (string, error) {
	migration, ok := g.byRevision[revision]
	if !ok {
		return "", oops.Wrapf(ErrUnknownRevision, "%s", revision)
	}
	return migration.DownRevision(), nil
}

func (g *Graph) Children(revision string) []string {
	return append([]string(nil), g.children[revision]...)
}

// History lists migrations from the root to the head.
func (g *Graph) History() []Migration {
	return append([]Migration(nil), g.history...)
}

// IsApplied reports whether revision is part of the schema when the database is at current.
func (g *Graph) IsApplied(revision string, current string) bool {
	if current == "" {
		return false
	}
	revisionPos, ok := g.position[revision]
	if !ok {
		return false
	}
	currentPos, ok := g.position[current]
	if !ok {
		return false
	}
	return revisionPos <= currentPos
}

// ResolveRevision expands a unique revision prefix.
func (g *Graph) ResolveRevision(prefix string) (string, error) {
	if _, ok := g.byRevision[prefix]; ok {
		return prefix, nil
	}
	if prefix == "" {
		return "", oops.Wrapf(ErrUnknownRevision, "empty revision")
	}

	var matches []string
	for revision := range g.byRevision {
		if strings.HasPrefix(revision, prefix) {
			matches = append(matches, revision)
		}
	}
	switch len(matches) {
	case 0:
		return "", oops.Wrapf(ErrUnknownRevision, "%s", prefix)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", oops.Wrapf(ErrAmbiguousRevision, "%s matches %s", prefix, strings.Join(matches, ", "))
	}
}

// UpgradePath returns the migrations to apply to get from one revision to another, in order.
func (g *Graph) UpgradePath(from string, to string) ([]Migration, error) {
	path, err := g.walkDown(to, from)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// DowngradePath returns the migrations to revert to get from one revision down to another, in order.
func (g *Graph) DowngradePath(from string, to string) ([]Migration, error) {
	return g.walkDown(from, to)
}

// walkDown follows down_revision links from start until stop, excluding stop. Empty revisions mean base.
func (g *Graph) walkDown(start string, stop string) ([]Migration, error) {
	if stop != "" {
		if _, ok := g.byRevision[stop]; !ok {
			return nil, oops.Wrapf(ErrUnknownRevision, "%s", stop)
		}
	}

	var path []Migration
	revision := start
	for revision != stop {
		if revision == "" {
			return nil, oops.Wrapf(ErrNotAncestor, "%s is not below %s", displayRevision(stop), displayRevision(start))
		}
		migration, ok := g.byRevision[revision]
		if !ok {
			return nil, oops.Wrapf(ErrUnknownRevision, "%s", revision)
		}
		path = append(path, migration)
		revision = migration.DownRevision()
	}
	return path, nil
}

func displayRevision(revision string) string {
	if revision == "" {
		return "base"
	}
	return revision
}
