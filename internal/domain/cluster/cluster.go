// Package cluster groups name spellings into maximal similarity clusters.
package cluster

import (
	"sort"
	"strings"

	"github.com/okian/roster/internal/domain/similarity"
)

// Matcher is the pairwise similarity test clusters are built from.
type Matcher interface {
	Similar(a, b string) bool
}

// Cluster is a set of name spellings considered interchangeable.
type Cluster struct {
	members map[string]struct{}
	folded  map[string]struct{}
	order   []string
}

func newCluster(names ...string) Cluster {
	c := Cluster{
		members: make(map[string]struct{}, len(names)),
		folded:  make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		if _, ok := c.members[n]; ok {
			continue
		}
		c.members[n] = struct{}{}
		c.folded[similarity.Fold(n)] = struct{}{}
		c.order = append(c.order, n)
	}
	return c
}

// Contains reports whether name is an exact member of the cluster.
func (c Cluster) Contains(name string) bool {
	_, ok := c.members[name]
	return ok
}

// ContainsFold reports whether name is a member of the cluster ignoring case.
func (c Cluster) ContainsFold(name string) bool {
	return c.Contains(name) || c.ContainsFolded(similarity.Fold(name))
}

// ContainsFolded is ContainsFold for a name already passed through
// similarity.Fold.
func (c Cluster) ContainsFolded(folded string) bool {
	_, ok := c.folded[folded]
	return ok
}

// Len returns the number of spellings in the cluster.
func (c Cluster) Len() int { return len(c.order) }

// Members returns the spellings in first-seen order.
func (c Cluster) Members() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// subsetOf reports whether every member of c is also in other.
func (c Cluster) subsetOf(other Cluster) bool {
	if c.Len() > other.Len() {
		return false
	}
	for n := range c.members {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Set is the list of surviving clusters. Clusters may overlap.
type Set []Cluster

// Lookup returns the first cluster containing name, or a singleton cluster of
// name when none does. When a name sits in several overlapping clusters the
// first one wins.
func (s Set) Lookup(name string) Cluster {
	for _, c := range s {
		if c.Contains(name) {
			return c
		}
	}
	return newCluster(name)
}

// Build computes one candidate cluster per distinct non-blank name (the name
// plus every name similar to it), orders the candidates by size and keeps only
// those not contained in a later candidate.
func Build(names []string, m Matcher) Set {
	distinct := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		distinct = append(distinct, n)
	}

	candidates := make([]Cluster, 0, len(distinct))
	for _, n := range distinct {
		similar := make([]string, 0, 1)
		for _, other := range distinct {
			if other == n || m.Similar(other, n) {
				similar = append(similar, other)
			}
		}
		candidates = append(candidates, newCluster(similar...))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Len() < candidates[j].Len()
	})

	out := make(Set, 0, len(candidates))
	for i, c := range candidates {
		covered := false
		for _, later := range candidates[i+1:] {
			if c.subsetOf(later) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, c)
		}
	}
	return out
}
