package migrations

import (
	"reevdb/oops"
	"regexp"
	"strconv"
)

var relativeTargetRegex = regexp.MustCompile(`^([^+-]*)([+-])(\d+)$`)

// Resolve turns a target expression into a revision, empty meaning base:
//
//	head, heads   the latest revision
//	base          before the root
//	<rev>         a revision or a unique prefix of one
//	+N, -N        N steps from current
//	<rev>+N       N steps from rev
func (g *Graph) Resolve(target string, current string) (string, error) {
	switch target {
	case "head", "heads":
		return g.Head(), nil
	case "base":
		return "", nil
	}

	match := relativeTargetRegex.FindStringSubmatch(target)
	if match == nil {
		return g.ResolveRevision(target)
	}

	anchor := current
	if match[1] != "" {
		var err error
		anchor, err = g.Resolve(match[1], current)
		if err != nil {
			return "", err
		}
	}
	steps, err := strconv.Atoi(match[3])
	if err != nil {
		return "", oops.Wrapf(ErrInvalidRevision, "%s", target)
	}
	if match[2] == "-" {
		steps = -steps
	}

	anchorPos := -1
	if anchor != "" {
		pos, ok := g.position[anchor]
		if !ok {
			return "", oops.Wrapf(ErrUnknownRevision, "%s", anchor)
		}
		anchorPos = pos
	}
	targetPos := anchorPos + steps
	if targetPos < -1 || targetPos >= len(g.history) {
		return "", oops.Wrapf(
			ErrRelativeOutOfRange, "%s from %s", target, displayRevision(anchor),
		)
	}
	if targetPos == -1 {
		return "", nil
	}
	return g.history[targetPos].Revision(), nil
}
