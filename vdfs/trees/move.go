package trees

import (
	"fmt"
	"strings"
)

// relocate detaches n from its parent and links it under newParent. Graft
// state is left to the caller.
func (t *ContentTree) relocate(n, newParent *Node) {
	oldParent := n.parent

	t.joliet.removeSubtree(n)
	t.root.stats.accountSubtree(n, -1)
	idx := t.unlink(n)
	t.emit(Event{Type: EventNodeRemoved, Parent: oldParent, Index: idx, Node: n})

	t.link(newParent, n)
	t.refreshDeep(n)
	t.root.stats.accountSubtree(n, 1)
	collisions := t.joliet.addSubtree(n)

	t.logger.Debug("node moved", "from", joinPath(oldParent, n.Name()), "to", n.Path())
	t.emit(Event{Type: EventNodeAdded, Node: n, Parent: newParent})
	t.emitCollisions(collisions)
}

// graftInPlace records the current URI of an ungrafted node so that it
// survives a change of name or location.
func (t *ContentTree) graftInPlace(n *Node) {
	if n.IsGrafted() || n.IsImported() {
		return
	}
	if uri := t.NodeURI(n); uri != "" {
		t.graft(n, t.grafts.ensure(uri))
	}
}

// Move places n under newParent.
func (t *ContentTree) Move(n, newParent *Node) error {
	if n == nil || n.IsRoot() || n.parent == nil {
		return ErrInvalidNode
	}
	if newParent == nil {
		newParent = t.root
	}
	switch {
	case n == newParent:
		return ErrMoveIntoSelf
	case n.IsAncestorOf(newParent):
		return fmt.Errorf("%s into %s: %w", n.Path(), newParent.Path(), ErrMoveIntoDescendant)
	case !newParent.canHostChildren():
		return fmt.Errorf("%s: %w", newParent.Path(), ErrNotDirectory)
	case newParent.IsLoading():
		return fmt.Errorf("%s: %w", newParent.Path(), ErrParentLoading)
	case n.IsImported():
		return fmt.Errorf("%s: %w", n.Path(), ErrImportedNode)
	case n.parent == newParent:
		return nil
	}

	if t.subtreeGetsDeep(n, newParent.Depth()+1) && t.policy.DeepDirectory(n.Name()) != Allow {
		t.logger.Info("move refused, too deep", "path", n.Path(), "destination", newParent.Path())
		return fmt.Errorf("%s: %w", n.Path(), ErrTooDeep)
	}

	// Replacing a sibling that contains n would take n down with it.
	if sibling := newParent.childByNameExcept(n.Name(), n); sibling != nil && sibling.IsAncestorOf(n) {
		return fmt.Errorf("%s replaces its ancestor %s: %w", n.Path(), sibling.Path(), ErrMoveIntoDescendant)
	}

	absorbed, err := t.resolveCollision(newParent, n.Name(), n)
	if err != nil {
		return err
	}

	oldParent := n.parent
	t.graftInPlace(n)
	t.relocate(n, newParent)
	t.absorb(absorbed, n)
	t.dropGraftIfNatural(n)
	t.checkImportedSibling(oldParent, n.Name())
	return nil
}

// Rename changes the disc name of n.
func (t *ContentTree) Rename(n *Node, name string) error {
	if n == nil || n.IsRoot() || n.parent == nil {
		return ErrInvalidNode
	}
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	oldName := n.Name()
	if name == oldName {
		return nil
	}
	parent := n.parent

	absorbed, err := t.resolveCollision(parent, name, n)
	if err != nil {
		return err
	}

	t.graftInPlace(n)
	t.setName(n, name)
	t.absorb(absorbed, n)
	t.dropGraftIfNatural(n)
	if !n.IsImported() {
		t.checkImportedSibling(parent, oldName)
	}
	t.logger.Debug("node renamed", "from", oldName, "to", name, "path", n.Path())
	return nil
}

// setName renames n in place, keeping sibling order and the Joliet index.
func (t *ContentTree) setName(n *Node, name string) {
	t.joliet.remove(n)
	n.setName(name)
	t.keepOrdered(n)
	t.emit(Event{Type: EventNodeChanged, Node: n})
	t.emitCollisions(joinCollisions(t.joliet.add(n)))
}
