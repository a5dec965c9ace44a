package trees

import (
	"slices"
	"strings"
)

// Graft maps a source URI to a disc path. URI is empty for directories
// with no source.
type Graft struct {
	URI  string
	Path string
}

// Contents is the input of the image serializer: the grafts to place and
// the URIs to leave out of grafted directories.
type Contents struct {
	Grafts   []Graft
	Excluded []string
}

type ContentsOptions struct {
	IncludeHidden bool
	// JolietCompat grafts every Joliet-incompatible node explicitly so the
	// serializer can give it a shortened name.
	JolietCompat bool
	// TrailingSlash ends directory paths with "/".
	TrailingSlash bool
}

// GetContents flattens the tree. It returns false when there is nothing to
// burn.
func (t *ContentTree) GetContents(opts ContentsOptions) (*Contents, bool) {
	c := t.buildContents(opts, nil)
	if len(c.Grafts) == 0 {
		return nil, false
	}
	return c, true
}

// buildContents collects grafts of the nodes whose top-level item passes
// keep, every node when keep is nil.
func (t *ContentTree) buildContents(opts ContentsOptions, keep func(top *Node) bool) *Contents {
	c := &Contents{}
	excluded := make(map[string]struct{})
	include := func(n *Node) bool {
		if n.IsVirtual() || n.IsImported() || n.parent == nil {
			return false
		}
		if !opts.IncludeHidden && n.inHiddenBranch() {
			return false
		}
		return keep == nil || keep(n.topLevel())
	}
	path := func(n *Node) string {
		p := n.Path()
		if opts.TrailingSlash && n.IsDir() {
			p += "/"
		}
		return p
	}

	t.grafts.Walk(func(u *URINode) bool {
		if u.IsEmpty() {
			excluded[u.uri] = struct{}{}
			return true
		}
		for _, n := range u.nodes {
			if include(n) {
				c.Grafts = append(c.Grafts, Graft{URI: u.uri, Path: path(n)})
			}
		}
		// Relocated away from a grafted ancestor's tree.
		if t.grafts.hasGraftedAncestor(u.uri) && len(t.naturalNodes(u.uri)) == 0 {
			excluded[u.uri] = struct{}{}
		}
		return true
	})

	t.root.walk(func(n *Node) bool {
		if n.IsRoot() {
			return true
		}
		if n.IsImported() && !n.IsDir() {
			return false
		}
		if n.IsVirtual() {
			return false
		}
		hidden := !opts.IncludeHidden && n.IsHidden()
		if hidden {
			if !n.IsGrafted() {
				if uri := t.NodeURI(n); uri != "" {
					excluded[uri] = struct{}{}
				}
			}
			return false
		}
		if n.IsFake() && n.IsDir() && include(n) {
			c.Grafts = append(c.Grafts, Graft{Path: path(n)})
		}
		return true
	})

	if opts.JolietCompat {
		for _, n := range t.joliet.nodes() {
			if n.IsGrafted() || !include(n) {
				continue
			}
			uri := t.NodeURI(n)
			if uri == "" {
				continue
			}
			excluded[uri] = struct{}{}
			c.Grafts = append(c.Grafts, Graft{URI: uri, Path: path(n)})
		}
	}

	slices.SortFunc(c.Grafts, func(a, b Graft) int {
		if r := strings.Compare(a.Path, b.Path); r != 0 {
			return r
		}
		return strings.Compare(a.URI, b.URI)
	})
	c.Grafts = slices.Compact(c.Grafts)
	for uri := range excluded {
		c.Excluded = append(c.Excluded, uri)
	}
	slices.Sort(c.Excluded)
	return c
}

// itemSectors is the disc footprint of a top-level item: its own sectors
// plus those of every independently grafted node below it.
func (t *ContentTree) itemSectors(n *Node) int64 {
	total := n.sectors
	if !n.IsDir() {
		return total
	}
	t.grafts.Walk(func(u *URINode) bool {
		for _, g := range u.nodes {
			if n.IsAncestorOf(g) && !g.IsVirtual() {
				total += g.sectors
			}
		}
		return true
	})
	return total
}

// GetSectorCount returns the sectors of all content on the disc.
func (t *ContentTree) GetSectorCount() int64 {
	var total int64
	for _, c := range t.root.children {
		if !c.IsVirtual() {
			total += t.itemSectors(c)
		}
	}
	return total
}

// GetMaxTopLevelItemSize returns the sectors of the largest top-level item.
func (t *ContentTree) GetMaxTopLevelItemSize() int64 {
	var largest int64
	for _, c := range t.root.children {
		if c.IsVirtual() {
			continue
		}
		largest = max(largest, t.itemSectors(c))
	}
	return largest
}

// Fixed image overhead, in sectors.
const (
	systemAreaSectors  = 16
	descriptorSectors  = 2 // primary volume descriptor and set terminator
	pathTableSectors   = 4 // L and M tables, each with a copy
	imagePaddingSector = 150
	jolietSVDSectors   = 1
)

// EstimateImageSectors estimates the size of the whole image: content
// sectors, the fixed descriptor and padding overhead, and one directory
// record sector per directory, doubled under Joliet.
func (t *ContentTree) EstimateImageSectors(joliet bool) int64 {
	dirs := int64(t.root.stats.Dirs) + 1
	total := t.GetSectorCount() + systemAreaSectors + descriptorSectors + pathTableSectors + dirs + imagePaddingSector
	if joliet {
		total += jolietSVDSectors + pathTableSectors + dirs
	}
	return total
}
