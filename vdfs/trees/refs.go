package trees

import "fmt"

// Ref is a generation-checked handle to a node. Asynchronous collaborators
// keep a Ref instead of a *Node and resolve it right before use.
type Ref struct {
	index uint32
	gen   uint32
}

// NoRef is the zero handle. It never resolves.
var NoRef = Ref{}

func (r Ref) IsValid() bool { return r.gen != 0 }

// Index is the slot number of the handle, stable for the life of the node.
func (r Ref) Index() uint32 { return r.index }

func (r Ref) String() string {
	if !r.IsValid() {
		return "ref(none)"
	}
	return fmt.Sprintf("ref(%d.%d)", r.index, r.gen)
}

type refSlot struct {
	gen  uint32
	node *Node
}

// refTable hands out handles from a slot arena with a free list.
type refTable struct {
	slots []refSlot
	free  []uint32
	limit int
	live  int
}

func newRefTable(limit int) *refTable {
	return &refTable{limit: limit}
}

// register returns NoRef when the table is exhausted.
func (t *refTable) register(n *Node) Ref {
	var index uint32
	switch {
	case len(t.free) > 0:
		index = t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
	case t.limit > 0 && len(t.slots) >= t.limit:
		return NoRef
	default:
		index = uint32(len(t.slots))
		t.slots = append(t.slots, refSlot{})
	}
	slot := &t.slots[index]
	slot.gen++
	if slot.gen == 0 {
		slot.gen = 1
	}
	slot.node = n
	t.live++
	return Ref{index: index, gen: slot.gen}
}

func (t *refTable) resolve(r Ref) *Node {
	if !r.IsValid() || int(r.index) >= len(t.slots) {
		return nil
	}
	slot := t.slots[r.index]
	if slot.gen != r.gen {
		return nil
	}
	return slot.node
}

// release invalidates every copy of r.
func (t *refTable) release(r Ref) {
	if t.resolve(r) == nil {
		return
	}
	slot := &t.slots[r.index]
	slot.gen++
	if slot.gen == 0 {
		slot.gen = 1
	}
	slot.node = nil
	t.free = append(t.free, r.index)
	t.live--
}

func (t *refTable) len() int { return t.live }

func (t *refTable) reset() {
	for i := range t.slots {
		if t.slots[i].node != nil {
			t.release(Ref{index: uint32(i), gen: t.slots[i].gen})
		}
	}
}
