package trees

// FileTreeStats holds the aggregate counters of a tree. It is owned by the
// root and kept current by every structural mutation.
type FileTreeStats struct {
	Files     int
	Dirs      int
	Deep      int
	Oversized int
	Symlinks  int
}

// account adds (delta = 1) or withdraws (delta = -1) the contribution of a
// single node. The root, virtual placeholders and nodes still waiting for
// their metadata do not count.
func (s *FileTreeStats) account(n *Node, delta int) {
	if n.IsRoot() || n.IsVirtual() || n.kind == KindUnknown {
		return
	}
	if n.IsDir() {
		s.Dirs += delta
	} else {
		s.Files += delta
	}
	if n.IsDeep() {
		s.Deep += delta
	}
	if n.IsOversized() {
		s.Oversized += delta
	}
	if n.IsSymlink() {
		s.Symlinks += delta
	}
}

func (s *FileTreeStats) accountSubtree(n *Node, delta int) {
	n.walk(func(c *Node) bool {
		s.account(c, delta)
		return true
	})
}

// mutate applies fn to n while keeping the counters consistent with any flag
// or kind change fn makes.
func (s *FileTreeStats) mutate(n *Node, fn func()) {
	s.account(n, -1)
	fn()
	s.account(n, 1)
}
