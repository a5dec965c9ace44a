package trees

import (
	"fmt"
	"slices"
)

// Validate re-derives the tree invariants by traversal and reports every
// inconsistency with the incremental bookkeeping.
func (t *ContentTree) Validate() []error {
	var errors []error
	reachable := make(map[*Node]bool)

	t.root.walk(func(n *Node) bool {
		reachable[n] = true
		errors = append(errors, t.validateNode(n)...)
		return true
	})

	recount := t.Metrics().Stats
	if recount != *t.root.stats {
		errors = append(errors, fmt.Errorf("stats_mismatch: counters %+v, recount %+v", *t.root.stats, recount))
	}

	t.grafts.Walk(func(u *URINode) bool {
		for _, n := range u.nodes {
			if !reachable[n] {
				errors = append(errors, fmt.Errorf("graft_dangling: %s lists a node outside the tree", u.uri))
				continue
			}
			if n.Graft() != u {
				errors = append(errors, fmt.Errorf("graft_backref: %s grafted to %s but not back", u.uri, n.Path()))
			}
		}
		return true
	})

	if live := t.refs.len(); live != len(reachable) {
		errors = append(errors, fmt.Errorf("ref_count: %d live handles for %d nodes", live, len(reachable)))
	}

	for _, n := range t.joliet.nodes() {
		if !reachable[n] {
			errors = append(errors, fmt.Errorf("joliet_dangling: indexed node %q outside the tree", n.Name()))
		}
	}

	if len(errors) > 0 {
		t.logger.Warn("tree validation found issues", "error_count", len(errors))
	}
	return errors
}

func (t *ContentTree) validateNode(n *Node) []error {
	var errors []error
	path := n.Path()

	if t.refs.resolve(n.ref) != n {
		errors = append(errors, fmt.Errorf("ref_unresolved: %s", path))
	}

	if u := n.Graft(); u != nil {
		if existing, ok := t.grafts.Lookup(u.uri); !ok || existing != u || !slices.Contains(u.nodes, n) {
			errors = append(errors, fmt.Errorf("graft_missing: %s grafted to unregistered %s", path, u.uri))
		}
	}

	if !n.IsRoot() {
		switch {
		case n.IsDir():
			var expected int64
			for _, c := range n.children {
				if !c.IsGrafted() {
					expected += c.sectors
				}
			}
			if n.sectors != expected {
				errors = append(errors, fmt.Errorf("size_mismatch: %s has %d sectors, children sum to %d", path, n.sectors, expected))
			}
		case n.IsFile() && !n.IsImported() && !n.IsVirtual():
			if n.sectors != BytesToSectors(n.size) {
				errors = append(errors, fmt.Errorf("size_mismatch: %s has %d sectors for %d bytes", path, n.sectors, n.size))
			}
		}
		if n.IsDeep() != (!n.IsVirtual() && n.kind != KindUnknown && t.isDeepAt(n.Depth(), n.kind)) {
			errors = append(errors, fmt.Errorf("deep_flag: %s at depth %d", path, n.Depth()))
		}
		if !JolietCompatible(n.Name()) && !t.joliet.has(n) {
			errors = append(errors, fmt.Errorf("joliet_missing: %s", path))
		}
	}

	seen := make(map[string]bool)
	for i, c := range n.children {
		if c.parent != n {
			errors = append(errors, fmt.Errorf("parent_mismatch: %s", c.Path()))
		}
		if i > 0 {
			prev := n.children[i-1]
			if prev.IsHidden() && !c.IsHidden() {
				errors = append(errors, fmt.Errorf("hidden_order: %s sorts after hidden %s", c.Path(), prev.Path()))
			} else if t.sorter.compare(prev, c) > 0 {
				errors = append(errors, fmt.Errorf("sort_order: %s sorts after %s", c.Path(), prev.Path()))
			}
		}
		if c.IsHidden() {
			continue
		}
		if seen[c.Name()] {
			errors = append(errors, fmt.Errorf("name_collision: %s appears twice", c.Path()))
		}
		seen[c.Name()] = true
	}
	return errors
}
