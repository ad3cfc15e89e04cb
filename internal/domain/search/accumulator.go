package search

import (
	"sync"

	"jan-server/services/grant-scout/internal/domain/grant"
)

// accumulator is the working result set shared between the workflow goroutines
// and the caller waiting on the deadline. Once sealed it ignores further
// writes, so a snapshot taken at the deadline stays stable.
type accumulator struct {
	mu       sync.Mutex
	base     []grant.Grant
	merged   []grant.Grant
	updated  int
	appended int
	sealed   bool
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

func (a *accumulator) setBase(grants []grant.Grant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return
	}
	a.base = append([]grant.Grant(nil), grants...)
}

// addMerged records a web result. A record with an id already merged replaces
// the earlier one.
func (a *accumulator) addMerged(g grant.Grant, updated bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return false
	}
	if updated {
		a.updated++
	} else {
		a.appended++
	}
	if g.ID != "" {
		for i := range a.merged {
			if a.merged[i].ID == g.ID {
				a.merged[i] = g
				return true
			}
		}
	}
	a.merged = append(a.merged, g)
	return true
}

// seal stops accepting writes and returns the working set: the generative
// results with every merged record either replacing the entry that shares its
// id or appended after them.
func (a *accumulator) seal() (grants []grant.Grant, updated, appended int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true

	out := make([]grant.Grant, 0, len(a.base)+len(a.merged))
	out = append(out, a.base...)

	index := make(map[string]int, len(out))
	for i := range out {
		if out[i].ID != "" {
			index[out[i].ID] = i
		}
	}
	for _, g := range a.merged {
		if i, ok := index[g.ID]; ok && g.ID != "" {
			out[i] = g
			continue
		}
		out = append(out, g)
		if g.ID != "" {
			index[g.ID] = len(out) - 1
		}
	}
	return out, a.updated, a.appended
}
