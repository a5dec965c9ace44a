package trees

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/armon/go-radix"
)

// URINode is a graft record: a source URI and the nodes that materialise it
// away from its natural place. An entry without nodes marks the URI as
// excluded.
type URINode struct {
	uri   string
	nodes []*Node
}

func (u *URINode) URI() string { return u.uri }

// Nodes returns the nodes grafted to the URI.
func (u *URINode) Nodes() []*Node { return u.nodes }

func (u *URINode) IsEmpty() bool { return len(u.nodes) == 0 }

func (u *URINode) attach(n *Node) {
	if !slices.Contains(u.nodes, n) {
		u.nodes = append(u.nodes, n)
	}
}

func (u *URINode) detach(n *Node) {
	if i := slices.Index(u.nodes, n); i >= 0 {
		u.nodes = slices.Delete(u.nodes, i, i+1)
	}
}

// GraftIndex keys graft records by URI in a patricia tree so that the
// nearest recorded ancestor of a URI and every recorded descendant are
// found without scanning the registry.
type GraftIndex struct {
	tree   *radix.Tree
	logger *slog.Logger
}

func NewGraftIndex(logger *slog.Logger) *GraftIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraftIndex{
		tree:   radix.New(),
		logger: logger,
	}
}

// Lookup finds the record stored for exactly uri.
func (idx *GraftIndex) Lookup(uri string) (*URINode, bool) {
	v, ok := idx.tree.Get(trimURI(uri))
	if !ok {
		return nil, false
	}
	return v.(*URINode), true
}

// ensure returns the record for uri, creating an empty one if needed.
func (idx *GraftIndex) ensure(uri string) *URINode {
	uri = trimURI(uri)
	if u, ok := idx.Lookup(uri); ok {
		return u
	}
	u := &URINode{uri: uri}
	idx.tree.Insert(uri, u)
	idx.logger.Debug("graft record created", "uri", uri)
	return u
}

func (idx *GraftIndex) delete(uri string) bool {
	_, deleted := idx.tree.Delete(trimURI(uri))
	if deleted {
		idx.logger.Debug("graft record deleted", "uri", uri)
	}
	return deleted
}

// ancestors returns the records of strict ancestors of uri, outermost first.
func (idx *GraftIndex) ancestors(uri string) []*URINode {
	uri = trimURI(uri)
	var results []*URINode
	idx.tree.WalkPath(uri, func(key string, v interface{}) bool {
		if isURIAncestor(key, uri) {
			results = append(results, v.(*URINode))
		}
		return false
	})
	return results
}

// nearestAncestor returns the innermost strict ancestor record of uri.
func (idx *GraftIndex) nearestAncestor(uri string) *URINode {
	ancestors := idx.ancestors(uri)
	if len(ancestors) == 0 {
		return nil
	}
	return ancestors[len(ancestors)-1]
}

// hasGraftedAncestor reports whether a strict ancestor of uri has nodes.
func (idx *GraftIndex) hasGraftedAncestor(uri string) bool {
	for _, u := range idx.ancestors(uri) {
		if !u.IsEmpty() {
			return true
		}
	}
	return false
}

// descendants returns the records strictly below uri in key order.
func (idx *GraftIndex) descendants(uri string) []*URINode {
	uri = trimURI(uri)
	prefix := uri
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var results []*URINode
	idx.tree.WalkPrefix(prefix, func(key string, v interface{}) bool {
		if key != uri {
			results = append(results, v.(*URINode))
		}
		return false
	})
	return results
}

// needed reports whether a record must persist: it has nodes or it marks an
// exception under a grafted ancestor.
func (idx *GraftIndex) needed(u *URINode) bool {
	return !u.IsEmpty() || idx.hasGraftedAncestor(u.uri)
}

// rekey moves the record of from and all its descendants under to.
func (idx *GraftIndex) rekey(from, to string) int {
	from, to = trimURI(from), trimURI(to)
	moved := idx.descendants(from)
	if u, ok := idx.Lookup(from); ok {
		moved = append([]*URINode{u}, moved...)
	}
	for _, u := range moved {
		idx.tree.Delete(u.uri)
	}
	for _, u := range moved {
		u.uri = to + strings.TrimPrefix(u.uri, from)
		if existing, ok := idx.Lookup(u.uri); ok {
			for _, n := range existing.nodes {
				u.attach(n)
				n.id.(*graftRecord).uri = u
			}
		}
		idx.tree.Insert(u.uri, u)
	}
	if len(moved) > 0 {
		idx.logger.Debug("graft records re-keyed", "from", from, "to", to, "count", len(moved))
	}
	return len(moved)
}

// Walk calls fn for every record in URI order until fn returns false.
func (idx *GraftIndex) Walk(fn func(u *URINode) bool) {
	idx.tree.Walk(func(_ string, v interface{}) bool {
		return !fn(v.(*URINode))
	})
}

// Len returns the number of records, empty markers included.
func (idx *GraftIndex) Len() int { return idx.tree.Len() }

func (idx *GraftIndex) clear() {
	idx.tree = radix.New()
}
