// Package lock serializes work on individual students and projects.
package lock

import (
	"context"
	"sort"
)

// Locker hands out exclusive locks on entity keys such as "project:1".
type Locker interface {
	// Lock blocks until every key is held or ctx is done. The returned
	// func releases all of them.
	Lock(ctx context.Context, keys ...string) (func(), error)
	Close() error
}

func ProjectKey(id string) string { return "project:" + id }

func StudentKey(id string) string { return "student:" + id }

// SequenceKey guards allocation of the next id in a named sequence.
func SequenceKey(name string) string { return "sequence:" + name }

// normalize sorts and dedupes keys so that two callers locking the same set
// always acquire in the same order.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
