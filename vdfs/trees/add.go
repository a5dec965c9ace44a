package trees

import (
	"fmt"
	"strings"
)

type insertOptions struct {
	uri string
	// explore asks the loader for the directory contents once linked.
	explore bool
	// load asks the loader for the node metadata once linked.
	load bool
	// skipCollision links the node even if a visible sibling has its name.
	skipCollision bool
}

// placeholder is a sibling waiting to be absorbed by the node taking its name.
type placeholder struct {
	node *Node
}

// resolveCollision settles a name clash before n is placed under parent
// with name. It returns a placeholder to absorb after linking, if any.
func (t *ContentTree) resolveCollision(parent *Node, name string, n *Node) (*placeholder, error) {
	sibling := parent.childByNameExcept(name, n)
	if sibling == nil {
		return nil, nil
	}
	if sibling.IsVirtual() {
		return &placeholder{node: sibling}, nil
	}
	if sibling.IsTmpParent() && n.IsDir() {
		return &placeholder{node: sibling}, nil
	}
	if t.policy.NameCollision(sibling) != Replace {
		t.logger.Info("name collision refused", "path", sibling.Path())
		return nil, fmt.Errorf("%s: %w", sibling.Path(), ErrNameCollision)
	}
	t.logger.Debug("replacing colliding sibling", "path", sibling.Path())
	if sibling.IsImported() {
		t.shadowImported(sibling)
	} else {
		t.removeNode(sibling, removeOptions{exclude: true, keepShadowed: true})
	}
	return nil, nil
}

// absorb hands the children of a placeholder over to n and drops it.
func (t *ContentTree) absorb(p *placeholder, n *Node) {
	if p == nil || p.node.parent == nil {
		return
	}
	if n.IsDir() {
		for _, c := range append([]*Node(nil), p.node.children...) {
			if n.ChildByName(c.Name()) != nil {
				continue
			}
			t.relocate(c, n)
			t.dropGraftIfNatural(c)
		}
	}
	t.logger.Debug("placeholder absorbed", "path", p.node.Path())
	t.removeNode(p.node, removeOptions{keepShadowed: true})
}

// insert places a new node under parent and runs the bookkeeping every add
// shares: collision resolution, grafting, stats, Joliet tracking,
// notification, loader and monitor requests.
func (t *ContentTree) insert(parent, n *Node, opts insertOptions) error {
	if parent == nil {
		parent = t.root
	}
	if !parent.canHostChildren() {
		return fmt.Errorf("%s: %w", parent.Path(), ErrNotDirectory)
	}
	if strings.Contains(n.Name(), "/") || n.Name() == "" {
		return fmt.Errorf("%q: %w", n.Name(), ErrInvalidName)
	}

	n.ref = t.refs.register(n)
	if !n.ref.IsValid() {
		t.logger.Error("reference table exhausted", "name", n.Name())
		return ErrNoHandle
	}

	var absorbed *placeholder
	if !opts.skipCollision {
		p, err := t.resolveCollision(parent, n.Name(), n)
		if err != nil {
			t.refs.release(n.ref)
			n.ref = NoRef
			return err
		}
		absorbed = p
	}

	t.graftIfNeeded(parent, n, opts.uri)
	t.link(parent, n)
	t.refreshDeep(n)
	t.root.stats.accountSubtree(n, 1)
	collisions := t.joliet.addSubtree(n)

	t.logger.Debug("node added", "path", n.Path(), "uri", opts.uri, "grafted", n.IsGrafted())
	if t.emit(Event{Type: EventNodeAdded, Node: n, Parent: parent, URI: opts.uri}) {
		t.logger.Debug("node rejected by observer", "path", n.Path())
		t.removeNode(n, removeOptions{})
		return ErrRejected
	}
	t.emitCollisions(collisions)
	t.absorb(absorbed, n)

	switch {
	case opts.load && t.loader != nil:
		t.loader.LoadInfo(n.ref, opts.uri)
	case opts.explore && t.loader != nil:
		n.flags |= FlagExploring
		t.loader.LoadDirectory(n.ref, opts.uri)
	}
	t.watch(n, opts.uri)
	return nil
}

// checkLimits asks the policy host about a node of info placed under
// parent. It returns the flags to set on the node.
func (t *ContentTree) checkLimits(parent *Node, info FileInfo) (Flags, error) {
	var flags Flags
	depth := parent.Depth() + 1
	name := info.Name
	if info.IsDir && t.isDeepAt(depth, KindDirectory) {
		if t.policy.DeepDirectory(name) != Allow {
			t.logger.Info("deep directory refused", "name", name, "depth", depth)
			return 0, fmt.Errorf("%s: %w", name, ErrTooDeep)
		}
		flags |= FlagDeep
	}
	if !info.IsDir && t.oversizeLimit > 0 && info.Size >= t.oversizeLimit {
		if t.policy.OversizeFile(name) != Allow {
			t.logger.Info("oversized file refused", "name", name, "size", info.Size)
			return 0, fmt.Errorf("%s: %w", name, ErrOversized)
		}
		flags |= FlagOversized
	}
	return flags, nil
}

// AddFromMetadata adds the node for uri with attributes already resolved.
// Directories are explored through the loader.
func (t *ContentTree) AddFromMetadata(parent *Node, uri string, info FileInfo) (*Node, error) {
	if parent == nil {
		parent = t.root
	}
	if info.Name == "" {
		info.Name = uriBase(uri)
	}
	flags, err := t.checkLimits(parent, info)
	if err != nil {
		t.excludeURI(uri)
		return nil, err
	}
	n := newNodeFromInfo(info.Name, info)
	n.flags |= flags
	if err := t.insert(parent, n, insertOptions{uri: uri, explore: info.IsDir}); err != nil {
		return nil, err
	}
	return n, nil
}

// AddLoadingNode adds a placeholder for uri and asks the loader for its
// metadata.
func (t *ContentTree) AddLoadingNode(parent *Node, uri string) (*Node, error) {
	return t.addLoading(parent, uriBase(uri), uri)
}

func (t *ContentTree) addLoading(parent *Node, name, uri string) (*Node, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty uri: %w", ErrInvalidName)
	}
	n := newLoadingNode(name)
	if err := t.insert(parent, n, insertOptions{uri: uri, load: true}); err != nil {
		return nil, err
	}
	return n, nil
}

// AddHiddenNode adds a hidden node. Depth and size limits do not apply.
func (t *ContentTree) AddHiddenNode(parent *Node, uri string, info FileInfo) (*Node, error) {
	if info.Name == "" {
		info.Name = uriBase(uri)
	}
	n := newNodeFromInfo(info.Name, info)
	n.flags |= FlagHidden
	if err := t.insert(parent, n, insertOptions{uri: uri, explore: info.IsDir}); err != nil {
		return nil, err
	}
	return n, nil
}

// AddVirtualNode reserves name under parent. A later node of the same name
// absorbs the placeholder.
func (t *ContentTree) AddVirtualNode(parent *Node, name string, isDir bool) (*Node, error) {
	if parent == nil {
		parent = t.root
	}
	if existing := parent.ChildByName(name); existing != nil {
		return nil, fmt.Errorf("%s: %w", existing.Path(), ErrNameCollision)
	}
	kind := KindFile
	if isDir {
		kind = KindDirectory
	}
	n := newVirtualNode(name, kind)
	if err := t.insert(parent, n, insertOptions{skipCollision: true}); err != nil {
		return nil, err
	}
	return n, nil
}

// AddEmptyDirectory adds a directory with no source on the file system.
func (t *ContentTree) AddEmptyDirectory(parent *Node, name string) (*Node, error) {
	n := newEmptyFolder(name)
	if err := t.insert(parent, n, insertOptions{}); err != nil {
		return nil, err
	}
	return n, nil
}

// AddPath adds uri at the absolute disc path, creating the missing
// directories on the way as temporary parents. With info nil the node is
// loaded asynchronously.
func (t *ContentTree) AddPath(discPath, uri string, info *FileInfo) (*Node, error) {
	segments := splitDiscPath(discPath)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%q: %w", discPath, ErrInvalidName)
	}

	parent := t.root
	var created []*Node
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			c := created[i]
			if c.parent != nil && c.IsTmpParent() && len(c.children) == 0 {
				t.removeNode(c, removeOptions{})
			}
		}
	}

	for _, seg := range segments[:len(segments)-1] {
		next := parent.ChildByName(seg)
		if next != nil && !next.IsVirtual() {
			if !next.canHostChildren() {
				rollback()
				return nil, fmt.Errorf("%s: %w", next.Path(), ErrNotDirectory)
			}
			parent = next
			continue
		}
		tmp := newTmpParent(seg)
		if err := t.insert(parent, tmp, insertOptions{}); err != nil {
			rollback()
			return nil, err
		}
		created = append(created, tmp)
		parent = tmp
	}

	name := segments[len(segments)-1]
	var (
		n   *Node
		err error
	)
	if info != nil {
		resolved := *info
		resolved.Name = name
		n, err = t.AddFromMetadata(parent, uri, resolved)
	} else {
		n, err = t.addLoading(parent, name, uri)
	}
	if err != nil {
		rollback()
		return nil, err
	}
	return n, nil
}
