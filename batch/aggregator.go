package batch

import (
	"fmt"
	"sort"
)

// Group is one dispatchable batch: a key and the samples collected
// under it.
type Group struct {
	Key     Key
	Samples []string
}

// GroupCount is a read-only view of one pending group, used by
// monitoring endpoints.
type GroupCount struct {
	Key   Key
	Count int
}

// Aggregator groups pending unit tasks by their batch key. Scan order
// is the order keys were first seen, so pops and splits are
// deterministic. The aggregator does no locking of its own; the
// scheduler serializes access.
type Aggregator struct {
	groups map[Key]*group
	order  []Key
}

type group struct {
	samples []string
	seen    map[string]bool
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{groups: map[Key]*group{}}
}

// Add merges the given tasks into their groups. A sample already
// present under the same key is a no-op; unrelated groups keep their
// positions.
func (a *Aggregator) Add(tasks ...UnitTask) {
	for _, t := range tasks {
		key := t.Key()
		g, ok := a.groups[key]
		if !ok {
			g = &group{seen: map[string]bool{}}
			a.groups[key] = g
			a.order = append(a.order, key)
		}
		if g.seen[t.SampleID] {
			continue
		}
		g.seen[t.SampleID] = true
		g.samples = append(g.samples, t.SampleID)
	}
}

// TotalPending returns the sample count summed across all groups.
func (a *Aggregator) TotalPending() int {
	total := 0
	for _, g := range a.groups {
		total += len(g.samples)
	}
	return total
}

// LargestGroupSize returns the sample count of the largest group,
// 0 when the aggregator is empty.
func (a *Aggregator) LargestGroupSize() int {
	max := 0
	for _, g := range a.groups {
		if len(g.samples) > max {
			max = len(g.samples)
		}
	}
	return max
}

// PopIfAtLeast removes and returns the first group holding at least
// limit samples. Returns nil if no group qualifies.
func (a *Aggregator) PopIfAtLeast(limit int) (*Group, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit: %d must be a positive integer", limit)
	}
	for _, key := range a.order {
		if len(a.groups[key].samples) >= limit {
			return a.remove(key), nil
		}
	}
	return nil, nil
}

// PopLargest removes and returns the group with the most samples, ties
// broken by first-seen order. Returns nil if the aggregator is empty.
func (a *Aggregator) PopLargest() *Group {
	max := 0
	var best Key
	for _, key := range a.order {
		if n := len(a.groups[key].samples); n > max {
			max = n
			best = key
		}
	}
	if max == 0 {
		return nil
	}
	return a.remove(best)
}

// SplitOff removes exactly limit samples, in sorted order, from the
// first group holding at least limit samples and returns them as a new
// group. The remainder stays queued under the same key; an emptied key
// is removed. Returns nil if no group qualifies.
func (a *Aggregator) SplitOff(limit int) (*Group, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit: %d must be a positive integer", limit)
	}
	for _, key := range a.order {
		g := a.groups[key]
		if len(g.samples) < limit {
			continue
		}

		sort.Strings(g.samples)
		taken := make([]string, limit)
		copy(taken, g.samples[:limit])

		if len(g.samples) == limit {
			a.remove(key)
		} else {
			g.samples = g.samples[limit:]
			for _, id := range taken {
				delete(g.seen, id)
			}
		}
		return &Group{Key: key, Samples: taken}, nil
	}
	return nil, nil
}

// Counts returns a snapshot of pending group sizes in first-seen order.
func (a *Aggregator) Counts() []GroupCount {
	counts := make([]GroupCount, 0, len(a.order))
	for _, key := range a.order {
		counts = append(counts, GroupCount{Key: key, Count: len(a.groups[key].samples)})
	}
	return counts
}

// Clear drops all pending groups.
func (a *Aggregator) Clear() {
	a.groups = map[Key]*group{}
	a.order = nil
}

func (a *Aggregator) remove(key Key) *Group {
	g := a.groups[key]
	delete(a.groups, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return &Group{Key: key, Samples: g.samples}
}
