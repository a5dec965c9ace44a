package trees

import (
	"strings"
)

// SectorSize is the ISO9660 logical block size in bytes.
const SectorSize = 2048

// BytesToSectors rounds a byte count up to whole sectors.
func BytesToSectors(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return (size + SectorSize - 1) / SectorSize
}

// Kind tells files from directories. Loading nodes have KindUnknown until
// their metadata arrives.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Flags are independent node attributes. Grafted and import-shadowed state
// is not a flag: it is carried by the node identity.
type Flags uint32

const (
	FlagRoot Flags = 1 << iota
	FlagFake
	FlagSymlink
	FlagImported
	FlagLoading
	FlagReloading
	FlagExploring
	FlagDeep
	FlagOversized
	FlagHidden
	FlagTmpParent
	FlagVirtual
)

// identity is the name-bearing state of a node: exactly one of plainName,
// graftRecord or importShadow.
type identity interface {
	displayName() string
}

type plainName struct {
	name string
}

// graftRecord is the identity of a node whose URI is stored in the registry
// rather than derived from its parent.
type graftRecord struct {
	name string
	uri  *URINode
}

// importShadow is the identity of a directory hosting imported nodes that
// were displaced by edits of the current session.
type importShadow struct {
	name     string
	shadowed []*Node
}

func (p *plainName) displayName() string    { return p.name }
func (g *graftRecord) displayName() string  { return g.name }
func (i *importShadow) displayName() string { return i.name }

// Node is a file or directory of the disc tree.
type Node struct {
	id       identity
	kind     Kind
	flags    Flags
	parent   *Node
	children []*Node

	// size is the byte size of a file. sectors is the file size in sectors,
	// or for a directory the sum over its descendants that are not separated
	// from it by a graft.
	size    int64
	sectors int64

	mime          string
	symlinkTarget string
	importAddress int64

	ref   Ref
	stats *FileTreeStats
}

func newRootNode() *Node {
	return &Node{
		id:    &plainName{},
		kind:  KindDirectory,
		flags: FlagRoot,
		stats: &FileTreeStats{},
	}
}

func newLoadingNode(name string) *Node {
	return &Node{
		id:    &plainName{name: name},
		kind:  KindUnknown,
		flags: FlagLoading,
	}
}

func newVirtualNode(name string, kind Kind) *Node {
	return &Node{
		id:    &plainName{name: name},
		kind:  kind,
		flags: FlagVirtual | FlagHidden | FlagFake,
	}
}

func newEmptyFolder(name string) *Node {
	return &Node{
		id:    &plainName{name: name},
		kind:  KindDirectory,
		flags: FlagFake,
	}
}

func newTmpParent(name string) *Node {
	return &Node{
		id:    &plainName{name: name},
		kind:  KindDirectory,
		flags: FlagFake | FlagTmpParent,
	}
}

func newNodeFromInfo(name string, info FileInfo) *Node {
	n := &Node{
		id: &plainName{name: name},
	}
	n.applyInfo(info)
	return n
}

func newImportedNode(info ImportedInfo) *Node {
	n := &Node{
		id:            &plainName{name: info.Name},
		kind:          KindFile,
		flags:         FlagImported,
		size:          info.Size,
		importAddress: info.Address,
	}
	if info.IsDir {
		n.kind = KindDirectory
		n.size = 0
	}
	return n
}

// applyInfo copies resolved attributes onto a node. Sizes are not propagated.
func (n *Node) applyInfo(info FileInfo) {
	n.flags &^= FlagSymlink
	if info.IsSymlink {
		n.flags |= FlagSymlink
	}
	n.symlinkTarget = info.SymlinkTarget
	if info.IsDir {
		n.kind = KindDirectory
		n.size = 0
		n.mime = ""
		return
	}
	n.kind = KindFile
	n.size = info.Size
	n.sectors = BytesToSectors(info.Size)
	n.mime = info.MimeType
}

// Name returns the name the node has on the disc.
func (n *Node) Name() string { return n.id.displayName() }

func (n *Node) setName(name string) {
	switch id := n.id.(type) {
	case *plainName:
		id.name = name
	case *graftRecord:
		id.name = name
	case *importShadow:
		id.name = name
	}
}

// Graft returns the registry entry the node is grafted to, or nil.
func (n *Node) Graft() *URINode {
	if g, ok := n.id.(*graftRecord); ok {
		return g.uri
	}
	return nil
}

func (n *Node) IsGrafted() bool {
	_, ok := n.id.(*graftRecord)
	return ok
}

// Shadowed returns the imported nodes this directory currently hides.
func (n *Node) Shadowed() []*Node {
	if s, ok := n.id.(*importShadow); ok {
		return append([]*Node(nil), s.shadowed...)
	}
	return nil
}

func (n *Node) HasShadowed() bool {
	_, ok := n.id.(*importShadow)
	return ok
}

func (n *Node) Kind() Kind       { return n.kind }
func (n *Node) IsDir() bool      { return n.kind == KindDirectory }
func (n *Node) IsFile() bool     { return n.kind == KindFile }
func (n *Node) Flags() Flags     { return n.flags }
func (n *Node) Has(f Flags) bool { return n.flags&f == f }

func (n *Node) IsRoot() bool      { return n.Has(FlagRoot) }
func (n *Node) IsFake() bool      { return n.Has(FlagFake) }
func (n *Node) IsSymlink() bool   { return n.Has(FlagSymlink) }
func (n *Node) IsImported() bool  { return n.Has(FlagImported) }
func (n *Node) IsLoading() bool   { return n.Has(FlagLoading) }
func (n *Node) IsReloading() bool { return n.Has(FlagReloading) }
func (n *Node) IsExploring() bool { return n.Has(FlagExploring) }
func (n *Node) IsDeep() bool      { return n.Has(FlagDeep) }
func (n *Node) IsOversized() bool { return n.Has(FlagOversized) }
func (n *Node) IsHidden() bool    { return n.Has(FlagHidden) }
func (n *Node) IsTmpParent() bool { return n.Has(FlagTmpParent) }
func (n *Node) IsVirtual() bool   { return n.Has(FlagVirtual) }

// Parent returns nil for the root and for nodes no longer in a tree.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the ordered child list. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Size is the byte size of a file, zero for directories.
func (n *Node) Size() int64 { return n.size }

// Sectors is the node's own sector count (see Node).
func (n *Node) Sectors() int64 { return n.sectors }

func (n *Node) MimeType() string      { return n.mime }
func (n *Node) SymlinkTarget() string { return n.symlinkTarget }
func (n *Node) ImportAddress() int64  { return n.importAddress }

// Ref returns the current reference handle of the node, NoRef once the node
// was removed or invalidated.
func (n *Node) Ref() Ref { return n.ref }

// Depth is 0 for the root and 1 for top-level items.
func (n *Node) Depth() int {
	depth := 0
	for p := n; p != nil && !p.IsRoot(); p = p.parent {
		depth++
	}
	return depth
}

// Path returns the absolute disc path of the node.
func (n *Node) Path() string {
	if n.IsRoot() {
		return "/"
	}
	var segments []string
	for p := n; p != nil && !p.IsRoot(); p = p.parent {
		segments = append(segments, p.Name())
	}
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segments[i])
	}
	return b.String()
}

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// inHiddenBranch reports whether the node or one of its ancestors is hidden.
func (n *Node) inHiddenBranch() bool {
	for p := n; p != nil; p = p.parent {
		if p.IsHidden() {
			return true
		}
	}
	return false
}

// topLevel returns the ancestor (or n itself) directly under the root.
func (n *Node) topLevel() *Node {
	p := n
	for p.parent != nil && !p.parent.IsRoot() {
		p = p.parent
	}
	if p.parent == nil {
		return nil
	}
	return p
}

// canHostChildren reports whether nodes may be linked under n.
func (n *Node) canHostChildren() bool {
	return n.kind != KindFile
}

// ChildByName returns the child carrying name, hidden ones included.
func (n *Node) ChildByName(name string) *Node {
	for _, c := range n.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func (n *Node) childByNameExcept(name string, except *Node) *Node {
	for _, c := range n.children {
		if c != except && c.Name() == name {
			return c
		}
	}
	return nil
}

// naturalChild returns the child whose URI derives from n's URI and name.
func (n *Node) naturalChild(name string) *Node {
	for _, c := range n.children {
		if c.Name() != name {
			continue
		}
		if c.IsGrafted() || c.IsFake() || c.IsImported() || c.IsVirtual() {
			continue
		}
		return c
	}
	return nil
}

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// walk visits n and its descendants depth first, parents before children.
// Returning false from fn skips the node's subtree.
func (n *Node) walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.walk(fn)
	}
}

// walkPost visits descendants before their parent on a snapshot of the child
// lists, so fn may unlink the node it is given.
func (n *Node) walkPost(fn func(*Node)) {
	children := append([]*Node(nil), n.children...)
	for _, c := range children {
		c.walkPost(fn)
	}
	fn(n)
}
