package trees

// EventType identifies a tree notification.
type EventType int

const (
	// EventNodeAdded carries Node and the origin URI, if any. Observers may
	// return Reject to drop the node again.
	EventNodeAdded EventType = iota
	// EventNodeRemoved carries the former Parent, the former Index and Node.
	EventNodeRemoved
	EventNodeChanged
	// EventNodeReordered carries Parent and Permutation, where
	// Permutation[new] is the former index of the child now at new.
	EventNodeReordered
	EventURIRemoved
	// EventReset carries the former top-level count in PreviousCount.
	EventReset
	// EventJolietCollision carries the nodes sharing a truncated name.
	EventJolietCollision
	// EventLoadFailed carries Node, URI and the loader error.
	EventLoadFailed
)

func (t EventType) String() string {
	switch t {
	case EventNodeAdded:
		return "node_added"
	case EventNodeRemoved:
		return "node_removed"
	case EventNodeChanged:
		return "node_changed"
	case EventNodeReordered:
		return "node_reordered"
	case EventURIRemoved:
		return "uri_removed"
	case EventReset:
		return "reset"
	case EventJolietCollision:
		return "joliet_collision"
	case EventLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Event is a single tree notification. Only the fields documented for its
// Type are set.
type Event struct {
	Type          EventType
	Node          *Node
	Parent        *Node
	Index         int
	URI           string
	Permutation   []int
	PreviousCount int
	Nodes         []*Node
	Err           error
}

// Response is an observer's answer to an event.
type Response int

const (
	Accept Response = iota
	Reject
)

// Observer receives tree notifications synchronously, in emission order,
// before the mutating call returns.
type Observer interface {
	OnTreeEvent(Event) Response
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event) Response

func (f ObserverFunc) OnTreeEvent(e Event) Response { return f(e) }

// Subscribe registers an observer and returns a function removing it.
func (t *ContentTree) Subscribe(o Observer) func() {
	t.nextObserver++
	id := t.nextObserver
	t.observers = append(t.observers, subscription{id: id, observer: o})
	return func() {
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

type subscription struct {
	id       int
	observer Observer
}

// emit delivers e to every observer and reports whether one rejected it.
func (t *ContentTree) emit(e Event) bool {
	observers := t.observers
	rejected := false
	for _, s := range observers {
		if s.observer.OnTreeEvent(e) == Reject {
			rejected = true
		}
	}
	return rejected
}

func (t *ContentTree) emitCollisions(collisions [][]*Node) {
	for _, nodes := range collisions {
		t.logger.Info("joliet name collision", "path", nodes[0].Path(), "count", len(nodes))
		t.emit(Event{Type: EventJolietCollision, Parent: nodes[0].parent, Nodes: nodes})
	}
}
