package trees

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/indexing"
)

// Disc format defaults.
const (
	DefaultDeepDirectoryDepth       = 8
	DefaultOversizeLimit      int64 = 2 << 30
)

// ContentTree is the disc layout of a data project. It owns the node tree,
// the graft registry, the Joliet index and the reference table, and keeps
// them consistent across every mutation.
//
// A ContentTree is not safe for concurrent use. Loaders and monitors running
// on their own goroutines must hand their results to the goroutine owning
// the tree.
type ContentTree struct {
	ID uuid.UUID

	root    *Node
	refs    *refTable
	grafts  *GraftIndex
	joliet  *jolietIndex
	spanned *indexing.NodeSet
	sorter  sorter

	policy  PolicyHost
	loader  Loader
	monitor Monitor

	observers    []subscription
	nextObserver int

	logger        *slog.Logger
	deepDepth     int
	oversizeLimit int64
	refLimit      int
}

// TreeOption allows for customization of ContentTree
type TreeOption func(*ContentTree)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) TreeOption {
	return func(t *ContentTree) {
		t.logger = logger
	}
}

func WithPolicy(p PolicyHost) TreeOption {
	return func(t *ContentTree) {
		t.policy = p
	}
}

func WithLoader(l Loader) TreeOption {
	return func(t *ContentTree) {
		t.loader = l
	}
}

func WithMonitor(m Monitor) TreeOption {
	return func(t *ContentTree) {
		t.monitor = m
	}
}

func WithSortFunc(fn SortFunc) TreeOption {
	return func(t *ContentTree) {
		t.sorter.fn = fn
	}
}

func WithDescending(descending bool) TreeOption {
	return func(t *ContentTree) {
		t.sorter.descending = descending
	}
}

// WithDeepDirectoryDepth sets the first directory depth, counting top-level
// items as 1, that violates the ISO9660 hierarchy limit.
func WithDeepDirectoryDepth(depth int) TreeOption {
	return func(t *ContentTree) {
		t.deepDepth = depth
	}
}

func WithOversizeLimit(limit int64) TreeOption {
	return func(t *ContentTree) {
		t.oversizeLimit = limit
	}
}

// WithRefLimit bounds the number of live reference handles. Zero means
// unbounded.
func WithRefLimit(limit int) TreeOption {
	return func(t *ContentTree) {
		t.refLimit = limit
	}
}

func WithObserver(o Observer) TreeOption {
	return func(t *ContentTree) {
		t.Subscribe(o)
	}
}

func NewContentTree(opts ...TreeOption) *ContentTree {
	t := &ContentTree{
		ID:            uuid.New(),
		spanned:       indexing.NewNodeSet(),
		joliet:        newJolietIndex(),
		sorter:        sorter{fn: SortByName},
		policy:        DefaultPolicy{},
		logger:        slog.Default(),
		deepDepth:     DefaultDeepDirectoryDepth,
		oversizeLimit: DefaultOversizeLimit,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.sorter.fn == nil {
		t.sorter.fn = SortByName
	}
	if t.policy == nil {
		t.policy = DefaultPolicy{}
	}
	t.logger = t.logger.With("tree", t.ID.String())
	t.grafts = NewGraftIndex(t.logger)
	t.refs = newRefTable(t.refLimit)
	t.root = newRootNode()
	t.root.ref = t.refs.register(t.root)
	return t
}

// Root returns the root directory of the disc.
func (t *ContentTree) Root() *Node { return t.root }

// Grafts exposes the graft registry for read access.
func (t *ContentTree) Grafts() *GraftIndex { return t.grafts }

// Stats returns a copy of the aggregate counters.
func (t *ContentTree) Stats() FileTreeStats { return *t.root.stats }

// Resolve returns the node behind ref, nil if it is gone.
func (t *ContentTree) Resolve(ref Ref) *Node { return t.refs.resolve(ref) }

// SetLoader attaches the metadata loader after construction.
func (t *ContentTree) SetLoader(l Loader) { t.loader = l }

// SetMonitor attaches the file monitor after construction.
func (t *ContentTree) SetMonitor(m Monitor) { t.monitor = m }

func (t *ContentTree) SetPolicy(p PolicyHost) {
	if p == nil {
		p = DefaultPolicy{}
	}
	t.policy = p
}

// Walk visits every node, parents first, until fn returns false for a node,
// which skips its subtree.
func (t *ContentTree) Walk(fn func(*Node) bool) {
	t.root.walk(fn)
}

// NodeAtPath resolves an absolute disc path. Visible nodes win over hidden
// ones of the same name.
func (t *ContentTree) NodeAtPath(path string) *Node {
	n := t.root
	for _, seg := range splitDiscPath(path) {
		var next *Node
		for _, c := range n.children {
			if c.Name() == seg && (next == nil || next.IsHidden()) {
				next = c
			}
		}
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}

func splitDiscPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" && s != "." {
			segments = append(segments, s)
		}
	}
	return segments
}

// CaseInsensitiveSibling returns a child of parent, other than except,
// whose name equals name under Unicode case folding.
func (t *ContentTree) CaseInsensitiveSibling(parent *Node, name string, except *Node) *Node {
	if parent == nil {
		parent = t.root
	}
	fold := cases.Fold()
	folded := fold.String(name)
	for _, c := range parent.children {
		if c != except && fold.String(c.Name()) == folded {
			return c
		}
	}
	return nil
}

// JolietIncompatible returns every node whose name exceeds the Joliet limit,
// ordered by path.
func (t *ContentTree) JolietIncompatible() []*Node { return t.joliet.nodes() }

// JolietCollisions returns the groups of siblings whose names become equal
// once truncated for Joliet.
func (t *ContentTree) JolietCollisions() [][]*Node { return t.joliet.collisions() }

// HasImported reports whether a previous session is merged in the tree.
func (t *ContentTree) HasImported() bool {
	found := false
	t.root.walk(func(n *Node) bool {
		if n.IsImported() || n.HasShadowed() {
			found = true
		}
		return !found
	})
	return found
}

// NodeURI rebuilds the source URI of n from its nearest grafted ancestor.
// Fake, imported and virtual nodes have none.
func (t *ContentTree) NodeURI(n *Node) string {
	var segments []string
	for p := n; p != nil; p = p.parent {
		if p.IsRoot() || p.IsFake() || p.IsImported() || p.IsVirtual() {
			return ""
		}
		if u := p.Graft(); u != nil {
			uri := u.uri
			for i := len(segments) - 1; i >= 0; i-- {
				uri = ChildURI(uri, segments[i])
			}
			return uri
		}
		segments = append(segments, p.Name())
	}
	return ""
}

// URIToNodes returns every node materialising uri: the nodes grafted to it
// and the nodes found at its natural place below the nearest recorded
// ancestor.
func (t *ContentTree) URIToNodes(uri string) []*Node {
	uri = trimURI(uri)
	var nodes []*Node
	if u, ok := t.grafts.Lookup(uri); ok {
		nodes = append(nodes, u.nodes...)
	}
	return append(nodes, t.naturalNodes(uri)...)
}

// naturalNodes finds the ungrafted nodes whose URI derives to uri.
func (t *ContentTree) naturalNodes(uri string) []*Node {
	ancestor := t.grafts.nearestAncestor(uri)
	if ancestor == nil || ancestor.IsEmpty() {
		return nil
	}
	segments := uriSegments(ancestor.uri, uri)
	var nodes []*Node
	for _, start := range ancestor.nodes {
		n := start
		for _, seg := range segments {
			if n = n.naturalChild(seg); n == nil {
				break
			}
		}
		if n != nil && n != start {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// isDeepAt reports whether a node of kind at depth violates the hierarchy
// limit. Files are deep when their directory is.
func (t *ContentTree) isDeepAt(depth int, kind Kind) bool {
	if t.deepDepth <= 0 {
		return false
	}
	if kind == KindDirectory {
		return depth >= t.deepDepth
	}
	return depth > t.deepDepth
}

// setDeepFlag recomputes the deep flag of n alone.
func (t *ContentTree) setDeepFlag(n *Node) {
	n.flags &^= FlagDeep
	if !n.IsVirtual() && n.kind != KindUnknown && t.isDeepAt(n.Depth(), n.kind) {
		n.flags |= FlagDeep
	}
}

// refreshDeep recomputes the deep flag over n's subtree. Stats must have
// been withdrawn by the caller.
func (t *ContentTree) refreshDeep(n *Node) {
	base := 0
	if n.parent != nil {
		base = n.parent.Depth()
	}
	var visit func(c *Node, depth int)
	visit = func(c *Node, depth int) {
		c.flags &^= FlagDeep
		if !c.IsVirtual() && c.kind != KindUnknown && t.isDeepAt(depth, c.kind) {
			c.flags |= FlagDeep
		}
		for _, gc := range c.children {
			visit(gc, depth+1)
		}
	}
	visit(n, base+1)
}

// subtreeGetsDeep reports whether placing n at depth would make one of its
// directories newly exceed the limit.
func (t *ContentTree) subtreeGetsDeep(n *Node, depth int) bool {
	var visit func(c *Node, d int) bool
	visit = func(c *Node, d int) bool {
		if c.IsDir() && !c.IsDeep() && t.isDeepAt(d, KindDirectory) {
			return true
		}
		for _, gc := range c.children {
			if visit(gc, d+1) {
				return true
			}
		}
		return false
	}
	return visit(n, depth)
}

// SetSortFunc changes the sibling comparator and resorts every directory.
func (t *ContentTree) SetSortFunc(fn SortFunc) {
	if fn == nil {
		fn = SortByName
	}
	t.sorter.fn = fn
	t.reorderAll(t.sorter.resort)
}

// ReverseSortOrder flips the sort direction of every directory in place.
func (t *ContentTree) ReverseSortOrder() {
	t.sorter.descending = !t.sorter.descending
	t.reorderAll(t.sorter.reverse)
}

func (t *ContentTree) reorderAll(arrange func(parent *Node) []int) {
	t.root.walk(func(n *Node) bool {
		if len(n.children) < 2 {
			return true
		}
		if perm := arrange(n); perm != nil {
			t.emit(Event{Type: EventNodeReordered, Parent: n, Permutation: perm})
		}
		return true
	})
}

// Reset empties the project.
func (t *ContentTree) Reset() {
	previous := len(t.root.children)
	t.root.walkPost(func(n *Node) {
		if n.ref.IsValid() && t.monitor != nil && !n.IsRoot() {
			t.monitor.Unwatch(n.ref)
		}
	})
	t.refs.reset()
	t.grafts.clear()
	t.joliet.clear()
	t.spanned.Clear()
	t.root = newRootNode()
	t.root.ref = t.refs.register(t.root)
	t.logger.Info("tree reset", "previous_count", previous)
	t.emit(Event{Type: EventReset, PreviousCount: previous})
}
