package trees

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const home = "file:///home/u"

type loaderCall struct {
	ref Ref
	uri string
}

type recordingLoader struct {
	infos []loaderCall
	dirs  []loaderCall
}

func (l *recordingLoader) LoadInfo(ref Ref, uri string) {
	l.infos = append(l.infos, loaderCall{ref: ref, uri: uri})
}

func (l *recordingLoader) LoadDirectory(ref Ref, uri string) {
	l.dirs = append(l.dirs, loaderCall{ref: ref, uri: uri})
}

type recordingMonitor struct {
	watched map[Ref]string
}

func newRecordingMonitor() *recordingMonitor {
	return &recordingMonitor{watched: make(map[Ref]string)}
}

func (m *recordingMonitor) Watch(ref Ref, uri string, _ bool) error {
	m.watched[ref] = uri
	return nil
}

func (m *recordingMonitor) Unwatch(ref Ref) {
	delete(m.watched, ref)
}

type eventLog struct {
	events []Event
}

func (l *eventLog) OnTreeEvent(e Event) Response {
	l.events = append(l.events, e)
	return Accept
}

func (l *eventLog) ofType(typ EventType) []Event {
	var out []Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) reset() { l.events = nil }

func fileInfo(name string, size int64) FileInfo {
	return FileInfo{Name: name, Size: size}
}

func dirInfo(name string) FileInfo {
	return FileInfo{Name: name, IsDir: true}
}

func requireValid(t *testing.T, tree *ContentTree) {
	t.Helper()
	require.Empty(t, tree.Validate())
}

// docsTree returns a tree with home/docs grafted at /docs holding a.txt.
func docsTree(t *testing.T, opts ...TreeOption) (*ContentTree, *Node, *Node) {
	t.Helper()
	tree := NewContentTree(opts...)
	docs, err := tree.AddFromMetadata(nil, home+"/docs", dirInfo("docs"))
	require.NoError(t, err)
	a, err := tree.AddExploredChild(docs.Ref(), home+"/docs/a.txt", fileInfo("a.txt", 5000))
	require.NoError(t, err)
	return tree, docs, a
}
