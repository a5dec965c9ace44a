package trees

import (
	"cmp"
	"slices"
	"sort"
	"strings"
)

// SortFunc orders two siblings. It only decides among nodes of the same
// class: hidden nodes always come last and directories before files.
type SortFunc func(a, b *Node) int

// SortByName orders siblings by name, case-insensitively first.
func SortByName(a, b *Node) int {
	if c := strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name())); c != 0 {
		return c
	}
	return strings.Compare(a.Name(), b.Name())
}

// SortBySize orders siblings by their sector count, then by name.
func SortBySize(a, b *Node) int {
	if c := cmp.Compare(a.sectors, b.sectors); c != 0 {
		return c
	}
	return SortByName(a, b)
}

type sorter struct {
	fn         SortFunc
	descending bool
}

// class groups siblings that the comparator never reorders across.
func sortClass(n *Node) int {
	c := 0
	if n.IsHidden() {
		c += 2
	}
	if !n.IsDir() {
		c++
	}
	return c
}

func (s *sorter) compare(a, b *Node) int {
	if c := cmp.Compare(sortClass(a), sortClass(b)); c != 0 {
		return c
	}
	c := s.fn(a, b)
	if s.descending {
		c = -c
	}
	return c
}

// insert links child into parent at its sorted position and returns it.
func (s *sorter) insert(parent, child *Node) int {
	i := sort.Search(len(parent.children), func(i int) bool {
		return s.compare(parent.children[i], child) > 0
	})
	parent.children = slices.Insert(parent.children, i, child)
	child.parent = parent
	return i
}

// resort sorts one level. The returned permutation maps every new index to
// the node's former index, nil when nothing moved.
func (s *sorter) resort(parent *Node) []int {
	return reorder(parent, func(order []int) {
		slices.SortStableFunc(order, func(a, b int) int {
			return s.compare(parent.children[a], parent.children[b])
		})
	})
}

// reverse flips each class block in place, keeping directories ahead of
// files and hidden nodes at the tail.
func (s *sorter) reverse(parent *Node) []int {
	return reorder(parent, func(order []int) {
		start := 0
		for i := 1; i <= len(order); i++ {
			if i == len(order) || sortClass(parent.children[order[i]]) != sortClass(parent.children[order[start]]) {
				slices.Reverse(order[start:i])
				start = i
			}
		}
	})
}

func reorder(parent *Node, arrange func(order []int)) []int {
	if len(parent.children) < 2 {
		return nil
	}
	order := make([]int, len(parent.children))
	for i := range order {
		order[i] = i
	}
	arrange(order)

	moved := false
	children := make([]*Node, len(order))
	for newIndex, oldIndex := range order {
		children[newIndex] = parent.children[oldIndex]
		if newIndex != oldIndex {
			moved = true
		}
	}
	if !moved {
		return nil
	}
	parent.children = children
	return order
}

// inPlace reports whether child still sorts between its neighbours.
func (s *sorter) inPlace(parent, child *Node) bool {
	i := parent.indexOf(child)
	if i < 0 {
		return true
	}
	if i > 0 && s.compare(parent.children[i-1], child) > 0 {
		return false
	}
	if i < len(parent.children)-1 && s.compare(child, parent.children[i+1]) > 0 {
		return false
	}
	return true
}

// reposition moves a single child whose sort key changed. It returns the
// permutation of the level, nil when the child stayed in place.
func (s *sorter) reposition(parent, child *Node) []int {
	old := parent.indexOf(child)
	if old < 0 {
		return nil
	}
	parent.children = slices.Delete(parent.children, old, old+1)
	idx := s.insert(parent, child)
	if idx == old {
		return nil
	}
	perm := make([]int, len(parent.children))
	for i := range perm {
		switch {
		case i == idx:
			perm[i] = old
		case idx < old && i > idx && i <= old:
			perm[i] = i - 1
		case idx > old && i >= old && i < idx:
			perm[i] = i + 1
		default:
			perm[i] = i
		}
	}
	return perm
}
