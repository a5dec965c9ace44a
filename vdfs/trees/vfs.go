package trees

import (
	"errors"
	"fmt"
)

// NodeMetadataResolved delivers the attributes of a loading or reloading
// node. A stale ref is a silent no-op answered with Reject. A load error
// removes the node, or turns it into a fake directory when it already
// hosts content.
func (t *ContentTree) NodeMetadataResolved(ref Ref, uri string, info FileInfo, loadErr error) Response {
	n := t.refs.resolve(ref)
	if n == nil {
		t.logger.Debug("metadata for a node that is gone", "ref", ref.String(), "uri", uri)
		return Reject
	}
	if loadErr != nil {
		t.loadFailed(n, uri, loadErr)
		return Reject
	}

	if info.Name == "" {
		info.Name = n.Name()
	}
	depth := n.Depth()
	if info.IsDir && !n.IsDeep() && t.isDeepAt(depth, KindDirectory) && t.policy.DeepDirectory(n.Name()) != Allow {
		t.logger.Info("deep directory refused", "path", n.Path(), "depth", depth)
		t.removeNode(n, removeOptions{exclude: true})
		return Reject
	}
	oversized := !info.IsDir && t.oversizeLimit > 0 && info.Size >= t.oversizeLimit
	if oversized && !n.IsOversized() && t.policy.OversizeFile(n.Name()) != Allow {
		t.logger.Info("oversized file refused", "path", n.Path(), "size", info.Size)
		t.removeNode(n, removeOptions{exclude: true})
		return Reject
	}

	wasPending := n.IsLoading() || n.IsReloading()
	oldKind := n.kind
	if !info.IsDir {
		for _, c := range append([]*Node(nil), n.children...) {
			t.removeNode(c, removeOptions{keepShadowed: true})
		}
	}

	t.joliet.remove(n)
	before := n.sectors
	t.root.stats.mutate(n, func() {
		n.flags &^= FlagLoading | FlagReloading | FlagOversized
		n.applyInfo(info)
		if info.IsDir && oldKind != KindDirectory {
			n.sectors = 0
		}
		if oversized {
			n.flags |= FlagOversized
		}
		t.setDeepFlag(n)
	})
	if !n.IsGrafted() {
		t.propagate(n, n.sectors-before)
	}
	// A change of kind or size can move the node among its siblings.
	t.keepOrdered(n)
	t.emitCollisions(joinCollisions(t.joliet.add(n)))

	if n.IsDir() && wasPending && t.loader != nil {
		n.flags |= FlagExploring
		t.loader.LoadDirectory(n.ref, uri)
	}
	if oldKind == KindUnknown {
		t.watch(n, uri)
	}
	t.logger.Debug("metadata resolved", "path", n.Path(), "kind", n.kind.String(), "sectors", n.sectors)
	t.emit(Event{Type: EventNodeChanged, Node: n})
	return Accept
}

func (t *ContentTree) loadFailed(n *Node, uri string, loadErr error) {
	t.logger.Warn("unable to load metadata", "path", n.Path(), "uri", uri, "error", loadErr)
	t.emit(Event{Type: EventLoadFailed, Node: n, URI: uri, Err: loadErr})
	if n.parent == nil {
		return
	}
	if n.IsTmpParent() || len(n.children) > 0 {
		t.convertToFake(n)
		return
	}
	t.removeNode(n, removeOptions{exclude: !errors.Is(loadErr, ErrNotFound)})
}

// AddExploredChild adds an entry reported while exploring the directory
// behind dirRef. URIs with a registry entry are grafted elsewhere or
// excluded and are skipped, as are entries already in place.
func (t *ContentTree) AddExploredChild(dirRef Ref, uri string, info FileInfo) (*Node, error) {
	dir := t.refs.resolve(dirRef)
	if dir == nil {
		return nil, fmt.Errorf("%s: %w", dirRef, ErrStaleRef)
	}
	if _, ok := t.grafts.Lookup(uri); ok {
		return nil, fmt.Errorf("%s: %w", uri, ErrExcluded)
	}
	if info.Name == "" {
		info.Name = uriBase(uri)
	}
	if existing := dir.naturalChild(info.Name); existing != nil {
		return existing, nil
	}
	return t.AddFromMetadata(dir, uri, info)
}

// ExploredChildFailed reports an entry of the directory behind dirRef whose
// metadata could not be read. The entry is not added. Entries with a
// registry entry are skipped as in AddExploredChild.
func (t *ContentTree) ExploredChildFailed(dirRef Ref, uri string, loadErr error) {
	dir := t.refs.resolve(dirRef)
	if dir == nil {
		return
	}
	if _, ok := t.grafts.Lookup(uri); ok {
		return
	}
	t.logger.Warn("unable to load explored entry", "path", dir.Path(), "uri", uri, "error", loadErr)
	t.emit(Event{Type: EventLoadFailed, Node: dir, URI: uri, Err: loadErr})
}

// DirectoryContentsResolved ends the exploration of the directory behind
// ref. An error is forwarded, the entries reported so far stay.
func (t *ContentTree) DirectoryContentsResolved(ref Ref, uri string, loadErr error) {
	n := t.refs.resolve(ref)
	if n == nil {
		return
	}
	n.flags &^= FlagExploring
	if loadErr != nil {
		t.logger.Warn("unable to explore directory", "path", n.Path(), "uri", uri, "error", loadErr)
		t.emit(Event{Type: EventLoadFailed, Node: n, URI: uri, Err: loadErr})
	}
	t.emit(Event{Type: EventNodeChanged, Node: n})
}

// ReloadNode asks the loader for fresh metadata of n.
func (t *ContentTree) ReloadNode(n *Node) error {
	if n == nil || n.IsRoot() || n.parent == nil {
		return ErrInvalidNode
	}
	uri := t.NodeURI(n)
	if uri == "" {
		return fmt.Errorf("%s has no source: %w", n.Path(), ErrInvalidNode)
	}
	if n.IsLoading() || n.IsReloading() {
		return nil
	}
	n.flags |= FlagReloading
	t.emit(Event{Type: EventNodeChanged, Node: n})
	if t.loader != nil {
		t.loader.LoadInfo(n.ref, uri)
	}
	return nil
}

// ApplyMonitorEvent reflects a change reported on a watched node.
func (t *ContentTree) ApplyMonitorEvent(e MonitorEvent) error {
	watched := t.refs.resolve(e.Ref)
	if watched == nil {
		return fmt.Errorf("%s: %w", e.Ref, ErrStaleRef)
	}
	base := t.NodeURI(watched)
	if base == "" {
		return fmt.Errorf("%s has no source: %w", watched.Path(), ErrInvalidNode)
	}
	uri := base
	if e.Name != "" {
		uri = ChildURI(base, e.Name)
	}
	t.logger.Debug("monitor event", "type", e.Type.String(), "uri", uri)

	switch e.Type {
	case FileAdded:
		return t.monitorAdded(watched, e.Name, uri)
	case FileRemoved:
		t.monitorRemoved(uri)
	case FileModified:
		for _, n := range t.URIToNodes(uri) {
			if err := t.ReloadNode(n); err != nil {
				return err
			}
		}
	case FileRenamed:
		if e.Name == "" || e.NewName == "" {
			return fmt.Errorf("rename without names: %w", ErrInvalidName)
		}
		t.monitorRenamed(uri, ChildURI(base, e.NewName), e.NewName, nil)
	case FileMoved:
		dest := t.refs.resolve(e.DestRef)
		if dest == nil {
			t.monitorRemoved(uri)
			return nil
		}
		destURI := t.NodeURI(dest)
		name := e.DestName
		if name == "" {
			name = e.Name
		}
		if destURI == "" || name == "" {
			t.monitorRemoved(uri)
			return nil
		}
		t.monitorRenamed(uri, ChildURI(destURI, name), name, dest)
	default:
		return fmt.Errorf("unknown monitor event %d", e.Type)
	}
	return nil
}

func (t *ContentTree) monitorAdded(dir *Node, name, uri string) error {
	if name == "" || !dir.IsDir() {
		return nil
	}
	if _, ok := t.grafts.Lookup(uri); ok {
		return nil
	}
	if dir.naturalChild(name) != nil {
		return nil
	}
	_, err := t.addLoading(dir, name, uri)
	return err
}

// monitorRemoved drops every node materialising uri. The source is gone, so
// nothing is excluded.
func (t *ContentTree) monitorRemoved(uri string) {
	for _, n := range t.URIToNodes(uri) {
		if n.parent != nil {
			t.removeNode(n, removeOptions{})
		}
	}
	if u, ok := t.grafts.Lookup(uri); ok && u.IsEmpty() {
		t.grafts.delete(uri)
		t.emit(Event{Type: EventURIRemoved, URI: uri})
	}
}

// monitorRenamed follows a source that changed URI. Graft records move to
// the new URI and keep their disc names. Natural nodes take the new name,
// and move under dest when it is given.
func (t *ContentTree) monitorRenamed(from, to, newName string, dest *Node) {
	natural := t.naturalNodes(from)
	t.grafts.rekey(from, to)

	for _, n := range natural {
		if n.parent == nil {
			continue
		}
		target := n.parent
		if dest != nil {
			target = dest
		}
		if sibling := target.childByNameExcept(newName, n); sibling != nil && !sibling.IsVirtual() {
			t.logger.Info("renamed source collides, dropping node", "path", n.Path(), "name", newName)
			t.removeNode(n, removeOptions{})
			continue
		}
		if n.Name() != newName {
			t.setName(n, newName)
		}
		if target != n.parent {
			t.relocate(n, target)
		}
		t.dropGraftIfNatural(n)
		if t.graftRequired(n.parent, n.Name(), to) && !n.IsGrafted() {
			t.graft(n, t.grafts.ensure(to))
		}
	}
}
