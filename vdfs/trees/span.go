package trees

import (
	"fmt"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/indexing"
)

// SpanResult is the content selected for one disc.
type SpanResult struct {
	Contents *Contents
	Sectors  int64
	Items    []*Node
}

// SpanStatus tells whether the remaining content can be spanned.
type SpanStatus int

const (
	// SpanDone means every top-level item was spanned already.
	SpanDone SpanStatus = iota
	// SpanFits means every remaining item fits on an empty disc.
	SpanFits
	// SpanTooBig means a remaining item is larger than a whole disc.
	SpanTooBig
)

func (s SpanStatus) String() string {
	switch s {
	case SpanDone:
		return "done"
	case SpanFits:
		return "fits"
	case SpanTooBig:
		return "too_big"
	default:
		return "unknown"
	}
}

func (t *ContentTree) spannable(n *Node) bool {
	if n.IsVirtual() || n.IsImported() || !n.ref.IsValid() {
		return false
	}
	return !t.spanned.Contains(n.ref.Index())
}

// Span selects the content of the next disc of at most maxSectors. Top-level
// items are taken first-fit in sibling order; an item that does not fit is
// left for a later disc and is never split. Selected items are marked
// spanned.
func (t *ContentTree) Span(maxSectors int64, opts ContentsOptions) (*SpanResult, error) {
	remaining := maxSectors
	selected := indexing.NewNodeSet()
	result := &SpanResult{}
	left := 0

	for _, c := range t.root.children {
		if !t.spannable(c) {
			continue
		}
		left++
		size := t.itemSectors(c)
		if size > remaining {
			continue
		}
		remaining -= size
		result.Sectors += size
		result.Items = append(result.Items, c)
		selected.Add(c.ref.Index())
	}

	if len(result.Items) == 0 {
		if left == 0 {
			return nil, ErrNothingToSpan
		}
		return nil, fmt.Errorf("%d items left, none within %d sectors: %w", left, maxSectors, ErrSpanTooBig)
	}

	t.spanned.Union(selected)
	result.Contents = t.buildContents(opts, func(top *Node) bool {
		return top != nil && top.ref.IsValid() && selected.Contains(top.ref.Index())
	})
	t.logger.Info("disc spanned", "items", len(result.Items), "sectors", result.Sectors, "spanned_total", t.spanned.Len())
	return result, nil
}

// SpanAgain reports whether content is left for another disc.
func (t *ContentTree) SpanAgain() bool {
	for _, c := range t.root.children {
		if t.spannable(c) {
			return true
		}
	}
	return false
}

// SpanPossible tells whether spanning the remaining items on discs of
// maxSectors can complete.
func (t *ContentTree) SpanPossible(maxSectors int64) SpanStatus {
	status := SpanDone
	for _, c := range t.root.children {
		if !t.spannable(c) {
			continue
		}
		if t.itemSectors(c) > maxSectors {
			return SpanTooBig
		}
		status = SpanFits
	}
	return status
}

// SpanStop forgets which items were spanned.
func (t *ContentTree) SpanStop() {
	t.spanned.Clear()
}

// Spanned returns the nodes of the top-level items spanned so far.
func (t *ContentTree) Spanned() []*Node {
	var nodes []*Node
	for _, id := range t.spanned.IDs() {
		for _, c := range t.root.children {
			if c.ref.IsValid() && c.ref.Index() == id {
				nodes = append(nodes, c)
			}
		}
	}
	return nodes
}
