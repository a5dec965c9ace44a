package indexing

import (
	roaring "github.com/RoaringBitmap/roaring"
)

// NodeSet is a set of node slot indexes backed by a roaring bitmap.
type NodeSet struct {
	bm *roaring.Bitmap
}

func NewNodeSet(ids ...uint32) *NodeSet {
	s := &NodeSet{bm: roaring.New()}
	s.bm.AddMany(ids)
	return s
}

func (s *NodeSet) Add(id uint32)    { s.bm.Add(id) }
func (s *NodeSet) Remove(id uint32) { s.bm.Remove(id) }

func (s *NodeSet) Contains(id uint32) bool { return s.bm.Contains(id) }

func (s *NodeSet) Len() int { return int(s.bm.GetCardinality()) }

func (s *NodeSet) IsEmpty() bool { return s.bm.IsEmpty() }

func (s *NodeSet) Clear() { s.bm.Clear() }

// Union adds every member of other to s.
func (s *NodeSet) Union(other *NodeSet) {
	if other == nil {
		return
	}
	s.bm.Or(other.bm)
}

// Clone returns an independent copy.
func (s *NodeSet) Clone() *NodeSet {
	return &NodeSet{bm: s.bm.Clone()}
}

// IDs returns the members in ascending order.
func (s *NodeSet) IDs() []uint32 {
	return s.bm.ToArray()
}
