package trees

// propagate adds delta sectors to the ancestors of n up to and including
// the first grafted one. The root keeps no total. Ancestors whose new size
// breaks sibling order are moved back into place.
func (t *ContentTree) propagate(n *Node, delta int64) {
	if delta == 0 {
		return
	}
	for p := n.parent; p != nil && !p.IsRoot(); p = p.parent {
		p.sectors += delta
		t.keepOrdered(p)
		if p.IsGrafted() {
			return
		}
	}
}

// keepOrdered repositions n after a change of its sort key and announces
// the new order of its level.
func (t *ContentTree) keepOrdered(n *Node) {
	parent := n.parent
	if parent == nil || t.sorter.inPlace(parent, n) {
		return
	}
	if perm := t.sorter.reposition(parent, n); perm != nil {
		t.emit(Event{Type: EventNodeReordered, Parent: parent, Permutation: perm})
	}
}

// link inserts n under parent at its sorted position and returns the index.
func (t *ContentTree) link(parent, n *Node) int {
	idx := t.sorter.insert(parent, n)
	if !n.IsGrafted() {
		t.propagate(n, n.sectors)
	}
	return idx
}

// unlink detaches n from its parent and returns its former index.
func (t *ContentTree) unlink(n *Node) int {
	parent := n.parent
	if parent == nil {
		return -1
	}
	if !n.IsGrafted() {
		t.propagate(n, -n.sectors)
	}
	idx := parent.indexOf(n)
	if idx >= 0 {
		parent.children = append(parent.children[:idx:idx], parent.children[idx+1:]...)
	}
	n.parent = nil
	return idx
}

// graft attaches n to u. The node's size leaves its former ancestor chain.
func (t *ContentTree) graft(n *Node, u *URINode) {
	switch id := n.id.(type) {
	case *graftRecord:
		if id.uri == u {
			return
		}
		id.uri.detach(n)
		id.uri = u
	case *plainName:
		t.propagate(n, -n.sectors)
		n.id = &graftRecord{name: id.name, uri: u}
	case *importShadow:
		t.logger.Warn("refusing to graft an import shadow host", "path", n.Path(), "uri", u.uri)
		return
	}
	u.attach(n)
	t.logger.Debug("node grafted", "path", n.Path(), "uri", u.uri)
}

// ungraft detaches n from its record and returns it to the ordinary
// ancestor chain. The record is returned for the caller to release.
func (t *ContentTree) ungraft(n *Node) *URINode {
	g, ok := n.id.(*graftRecord)
	if !ok {
		return nil
	}
	g.uri.detach(n)
	n.id = &plainName{name: g.name}
	t.propagate(n, n.sectors)
	t.logger.Debug("node ungrafted", "path", n.Path(), "uri", g.uri.uri)
	return g.uri
}

// detachGraft drops the graft of a node leaving the tree. Sizes are not
// touched since the node is already unlinked.
func detachGraft(n *Node) *URINode {
	g, ok := n.id.(*graftRecord)
	if !ok {
		return nil
	}
	g.uri.detach(n)
	n.id = &plainName{name: g.name}
	return g.uri
}

// graftRequired reports whether a node named name under parent must be
// grafted to uri, i.e. uri does not derive from the parent's URI.
func (t *ContentTree) graftRequired(parent *Node, name, uri string) bool {
	if parent.IsRoot() || parent.IsFake() || parent.IsImported() || parent.IsVirtual() {
		return true
	}
	parentURI := t.NodeURI(parent)
	if parentURI == "" {
		return true
	}
	if uriParent(uri) != trimURI(parentURI) {
		return true
	}
	return name != uriBase(uri)
}

// graftIfNeeded grafts an unlinked node about to be placed under parent.
func (t *ContentTree) graftIfNeeded(parent, n *Node, uri string) {
	if uri == "" {
		return
	}
	if t.graftRequired(parent, n.Name(), uri) {
		t.graft(n, t.grafts.ensure(uri))
		return
	}
	// A natural add of an excluded URI lifts the exclusion.
	if u, ok := t.grafts.Lookup(uri); ok && u.IsEmpty() {
		t.grafts.delete(uri)
	}
}

// dropGraftIfNatural ungrafts n when its location matches its source again.
func (t *ContentTree) dropGraftIfNatural(n *Node) {
	u := n.Graft()
	if u == nil || n.parent == nil || t.graftRequired(n.parent, n.Name(), u.uri) {
		return
	}
	t.ungraft(n)
	if u.IsEmpty() {
		t.grafts.delete(u.uri)
	}
}

// releaseGraft deletes u once it is no longer needed, then the empty markers
// below it that only existed because of it.
func (t *ContentTree) releaseGraft(u *URINode) {
	if u == nil {
		return
	}
	if existing, ok := t.grafts.Lookup(u.uri); !ok || existing != u {
		return
	}
	if t.grafts.needed(u) {
		return
	}
	t.grafts.delete(u.uri)
	t.emit(Event{Type: EventURIRemoved, URI: u.uri})
	for _, d := range t.grafts.descendants(u.uri) {
		if d.IsEmpty() && !t.grafts.needed(d) {
			t.grafts.delete(d.uri)
			t.emit(Event{Type: EventURIRemoved, URI: d.uri})
		}
	}
}

// excludeURI records uri as deliberately left out when exploring a grafted
// ancestor would otherwise bring it back.
func (t *ContentTree) excludeURI(uri string) {
	if uri == "" || !t.grafts.hasGraftedAncestor(uri) {
		return
	}
	if _, ok := t.grafts.Lookup(uri); ok {
		return
	}
	t.grafts.ensure(uri)
	t.logger.Debug("uri excluded", "uri", uri)
}

// invalidate releases the handle of n and every resource keyed by it.
func (t *ContentTree) invalidate(n *Node) {
	if !n.ref.IsValid() {
		return
	}
	if t.monitor != nil {
		t.monitor.Unwatch(n.ref)
	}
	t.spanned.Remove(n.ref.Index())
	t.refs.release(n.ref)
	n.ref = NoRef
}

// renewRef swaps the handle of n so that pending callbacks on the old one
// become no-ops.
func (t *ContentTree) renewRef(n *Node) {
	spanned := n.ref.IsValid() && t.spanned.Contains(n.ref.Index())
	t.invalidate(n)
	n.ref = t.refs.register(n)
	if spanned && n.ref.IsValid() {
		t.spanned.Add(n.ref.Index())
	}
}

// watch starts monitoring a settled node. Files are covered by their
// directory's watch unless grafted.
func (t *ContentTree) watch(n *Node, uri string) {
	if t.monitor == nil || uri == "" || n.IsLoading() || !n.ref.IsValid() {
		return
	}
	if !n.IsDir() && !n.IsGrafted() {
		return
	}
	if err := t.monitor.Watch(n.ref, uri, n.IsDir()); err != nil {
		t.logger.Warn("unable to watch node", "path", n.Path(), "uri", uri, "error", err)
	}
}

// convertToFake turns n into a fake directory, keeping its place and its
// real children. Virtual children are dropped.
func (t *ContentTree) convertToFake(n *Node) {
	for _, c := range append([]*Node(nil), n.children...) {
		if c.IsVirtual() {
			t.removeNode(c, removeOptions{})
		}
	}
	// Children lose the URI they derived from n.
	for _, c := range n.children {
		if c.IsGrafted() {
			continue
		}
		if uri := t.NodeURI(c); uri != "" {
			t.graft(c, t.grafts.ensure(uri))
		}
	}

	t.joliet.remove(n)
	u := t.ungraft(n)
	stats := t.root.stats
	stats.mutate(n, func() {
		n.flags &^= FlagLoading | FlagReloading | FlagExploring | FlagTmpParent | FlagSymlink | FlagOversized
		n.flags |= FlagFake
		if n.kind != KindDirectory {
			t.propagate(n, -n.sectors)
			n.sectors = 0
			n.size = 0
			n.kind = KindDirectory
		}
		n.mime = ""
		n.symlinkTarget = ""
		t.setDeepFlag(n)
	})
	t.renewRef(n)
	t.releaseGraft(u)
	t.keepOrdered(n)
	t.emitCollisions(joinCollisions(t.joliet.add(n)))
	t.logger.Debug("node converted to fake directory", "path", n.Path())
	t.emit(Event{Type: EventNodeChanged, Node: n})
}

func joinCollisions(list []*Node) [][]*Node {
	if list == nil {
		return nil
	}
	return [][]*Node{list}
}
