package trees

import "fmt"

type removeOptions struct {
	// exclude records the node's URI so that exploring a grafted ancestor
	// does not bring it back.
	exclude bool
	// keepShadowed leaves imported content shadowed by the node in place,
	// for callers about to reuse the slot.
	keepShadowed bool
}

// RemoveNode removes n and its subtree from the disc. Temporary parents and
// grafted nodes still loading are turned into fake directories instead.
// Imported session content is shadowed so that it comes back once the slot
// is free again.
func (t *ContentTree) RemoveNode(n *Node) error {
	if n == nil || n.IsRoot() || n.parent == nil {
		return ErrInvalidNode
	}
	switch {
	case n.IsTmpParent(), n.IsLoading() && n.IsGrafted():
		t.convertToFake(n)
	case n.IsImported():
		t.shadowImported(n)
	default:
		t.removeNode(n, removeOptions{exclude: true})
	}
	return nil
}

// RemoveRef removes the node behind ref.
func (t *ContentTree) RemoveRef(ref Ref) error {
	n := t.refs.resolve(ref)
	if n == nil {
		return fmt.Errorf("%s: %w", ref, ErrStaleRef)
	}
	return t.RemoveNode(n)
}

// removeNode destroys n and its subtree, reconciling every registry first.
func (t *ContentTree) removeNode(n *Node, opts removeOptions) {
	parent := n.parent
	if parent == nil {
		return
	}
	name := n.Name()
	imported := n.IsImported()

	var uri string
	if opts.exclude && !n.IsGrafted() {
		uri = t.NodeURI(n)
	}

	t.joliet.removeSubtree(n)
	t.root.stats.accountSubtree(n, -1)
	idx := t.unlink(n)

	var released []*URINode
	n.walkPost(func(c *Node) {
		t.invalidate(c)
		if u := detachGraft(c); u != nil {
			released = append(released, u)
		}
		if s, ok := c.id.(*importShadow); ok {
			destroyDetached(s.shadowed)
			c.id = &plainName{name: s.name}
		}
	})

	t.excludeURI(uri)
	for _, u := range released {
		t.releaseGraft(u)
	}

	t.logger.Debug("node removed", "path", joinPath(parent, name), "excluded", uri != "")
	t.emit(Event{Type: EventNodeRemoved, Parent: parent, Index: idx, Node: n})

	if !imported && !opts.keepShadowed {
		t.checkImportedSibling(parent, name)
	}
}

// destroyDetached drops nodes that are already out of every registry.
func destroyDetached(nodes []*Node) {
	for _, n := range nodes {
		n.walkPost(func(c *Node) {
			c.parent = nil
			c.children = nil
		})
	}
}

func joinPath(parent *Node, name string) string {
	if parent.IsRoot() {
		return "/" + name
	}
	return parent.Path() + "/" + name
}
