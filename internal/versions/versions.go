// Package versions orders asset index identifiers.
//
// Identifiers that parse as (loose) semantic versions sort first, in version
// order. Everything else ("legacy", "pre-1.6", snapshot ids) follows in
// lexical order.
package versions

import (
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

type parsed struct {
	id string
	v  *semver.Version
}

// Sort orders ids in place.
func Sort(ids []string) {
	items := make([]parsed, len(ids))
	for i, id := range ids {
		items[i] = parse(id)
	}
	slices.SortStableFunc(items, compare)
	for i := range items {
		ids[i] = items[i].id
	}
}

// Compare orders two identifiers the same way Sort does.
func Compare(a, b string) int {
	return compare(parse(a), parse(b))
}

// Latest returns the highest semantic version in ids. When none parse, the
// lexically greatest identifier is returned. It returns "" for no ids.
func Latest(ids []string) string {
	var best *parsed
	var fallback string
	for _, id := range ids {
		p := parse(id)
		if p.v == nil {
			if id > fallback {
				fallback = id
			}
			continue
		}
		if best == nil || compare(p, *best) > 0 {
			best = &p
		}
	}
	if best != nil {
		return best.id
	}
	return fallback
}

func parse(id string) parsed {
	v, err := semver.NewVersion(id)
	if err != nil {
		return parsed{id: id}
	}
	return parsed{id: id, v: v}
}

func compare(a, b parsed) int {
	switch {
	case a.v != nil && b.v != nil:
		if c := a.v.Compare(b.v); c != 0 {
			return c
		}
	case a.v != nil:
		return -1
	case b.v != nil:
		return 1
	}
	return strings.Compare(a.id, b.id)
}
