package trees

import "fmt"

// AddImportedSessionFile merges an entry of a previously burned session
// under parent, which must be the root or an imported directory. When new
// content already holds the name, the entry is shadowed right away and
// reappears once that content is removed.
func (t *ContentTree) AddImportedSessionFile(parent *Node, info ImportedInfo) (*Node, error) {
	if parent == nil {
		parent = t.root
	}
	if !parent.IsRoot() && !parent.IsImported() {
		return nil, fmt.Errorf("%s: imported entries need an imported parent: %w", parent.Path(), ErrInvalidNode)
	}
	if !parent.canHostChildren() {
		return nil, fmt.Errorf("%s: %w", parent.Path(), ErrNotDirectory)
	}
	n := newImportedNode(info)
	if sibling := parent.ChildByName(info.Name); sibling != nil && !sibling.IsVirtual() {
		if err := t.addShadowed(parent, n); err != nil {
			return nil, err
		}
		t.logger.Debug("imported entry shadowed on arrival", "path", joinPath(parent, info.Name))
		return n, nil
	}
	if err := t.insert(parent, n, insertOptions{}); err != nil {
		return nil, err
	}
	return n, nil
}

// addShadowed appends an unlinked imported node to the shadow list of host.
func (t *ContentTree) addShadowed(host, n *Node) error {
	switch id := host.id.(type) {
	case *plainName:
		host.id = &importShadow{name: id.name, shadowed: []*Node{n}}
	case *importShadow:
		id.shadowed = append(id.shadowed, n)
	default:
		return fmt.Errorf("%s: grafted nodes cannot host imported content: %w", host.Path(), ErrImportedNode)
	}
	n.parent = host
	return nil
}

// shadowImported takes imported n out of the tree and keeps it aside in its
// parent. Content of this session merged below n is removed.
func (t *ContentTree) shadowImported(n *Node) {
	parent := n.parent
	if parent == nil {
		return
	}

	var merged []*Node
	n.walk(func(c *Node) bool {
		if !c.IsImported() {
			merged = append(merged, c)
			return false
		}
		return true
	})
	for _, c := range merged {
		t.removeNode(c, removeOptions{keepShadowed: true})
	}

	t.joliet.removeSubtree(n)
	t.root.stats.accountSubtree(n, -1)
	idx := t.unlink(n)
	n.walk(func(c *Node) bool {
		t.invalidate(c)
		return true
	})
	if err := t.addShadowed(parent, n); err != nil {
		t.logger.Warn("dropping imported entry", "path", joinPath(parent, n.Name()), "error", err)
		destroyDetached([]*Node{n})
	}

	t.logger.Debug("imported entry shadowed", "path", joinPath(parent, n.Name()))
	t.emit(Event{Type: EventNodeRemoved, Parent: parent, Index: idx, Node: n})
}

// checkImportedSibling reinstates the imported entry called name that
// parent shadows, once no other child holds the name.
func (t *ContentTree) checkImportedSibling(parent *Node, name string) {
	s, ok := parent.id.(*importShadow)
	if !ok || parent.ChildByName(name) != nil {
		return
	}
	var n *Node
	for i, c := range s.shadowed {
		if c.Name() == name {
			n = c
			s.shadowed = append(s.shadowed[:i:i], s.shadowed[i+1:]...)
			break
		}
	}
	if n == nil {
		return
	}
	if len(s.shadowed) == 0 {
		parent.id = &plainName{name: s.name}
	}

	n.parent = nil
	t.link(parent, n)
	n.walk(func(c *Node) bool {
		c.ref = t.refs.register(c)
		if !c.ref.IsValid() {
			t.logger.Error("reference table exhausted", "path", c.Path())
		}
		return true
	})
	t.refreshDeep(n)
	t.root.stats.accountSubtree(n, 1)
	collisions := t.joliet.addSubtree(n)

	t.logger.Debug("imported entry reinstated", "path", n.Path())
	t.emit(Event{Type: EventNodeAdded, Node: n, Parent: parent})
	t.emitCollisions(collisions)
}

// RemoveImported drops the merged session: every imported node, with the
// content merged below it, and every shadowed entry.
func (t *ContentTree) RemoveImported() {
	var imported []*Node
	t.root.walk(func(n *Node) bool {
		if n.IsImported() {
			imported = append(imported, n)
			return false
		}
		return true
	})
	for _, n := range imported {
		t.removeNode(n, removeOptions{keepShadowed: true})
	}
	t.root.walk(func(n *Node) bool {
		if s, ok := n.id.(*importShadow); ok {
			destroyDetached(s.shadowed)
			n.id = &plainName{name: s.name}
		}
		return true
	})
	t.logger.Info("imported session removed", "nodes", len(imported))
}
