package trees

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetContents(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "empty tree has nothing to burn",
			test: func(t *testing.T) {
				c, ok := NewContentTree().GetContents(ContentsOptions{})
				assert.False(t, ok)
				assert.Nil(t, c)
			},
		},
		{
			name: "grafts and exclusions",
			test: func(t *testing.T) {
				tree, docs, _ := docsTree(t)
				b, err := tree.AddExploredChild(docs.Ref(), home+"/docs/b.txt", fileInfo("b.txt", 1))
				require.NoError(t, err)
				require.NoError(t, tree.RemoveNode(b))

				c, ok := tree.GetContents(ContentsOptions{})
				require.True(t, ok)
				assert.Equal(t, []Graft{{URI: home + "/docs", Path: "/docs"}}, c.Grafts)
				assert.Equal(t, []string{home + "/docs/b.txt"}, c.Excluded)

				c, ok = tree.GetContents(ContentsOptions{TrailingSlash: true})
				require.True(t, ok)
				assert.Equal(t, "/docs/", c.Grafts[0].Path)
			},
		},
		{
			name: "fake directories are grafted without a URI",
			test: func(t *testing.T) {
				tree := NewContentTree()
				_, err := tree.AddEmptyDirectory(nil, "empty")
				require.NoError(t, err)

				c, ok := tree.GetContents(ContentsOptions{})
				require.True(t, ok)
				assert.Equal(t, []Graft{{Path: "/empty"}}, c.Grafts)
			},
		},
		{
			name: "hidden content is left out unless asked",
			test: func(t *testing.T) {
				tree, docs, _ := docsTree(t)
				_, err := tree.AddHiddenNode(nil, home+"/secret", fileInfo("secret", 1))
				require.NoError(t, err)
				_, err = tree.AddHiddenNode(docs, home+"/docs/.cache", fileInfo(".cache", 1))
				require.NoError(t, err)

				c, ok := tree.GetContents(ContentsOptions{})
				require.True(t, ok)
				assert.Equal(t, []Graft{{URI: home + "/docs", Path: "/docs"}}, c.Grafts)
				assert.Equal(t, []string{home + "/docs/.cache"}, c.Excluded)

				c, ok = tree.GetContents(ContentsOptions{IncludeHidden: true})
				require.True(t, ok)
				assert.Contains(t, c.Grafts, Graft{URI: home + "/secret", Path: "/secret"})
				assert.Empty(t, c.Excluded)
			},
		},
		{
			name: "virtual and imported nodes are never grafted",
			test: func(t *testing.T) {
				tree := NewContentTree()
				_, err := tree.AddVirtualNode(nil, "reserved", true)
				require.NoError(t, err)
				_, err = tree.AddImportedSessionFile(nil, ImportedInfo{Name: "old", Size: 10})
				require.NoError(t, err)

				_, ok := tree.GetContents(ContentsOptions{IncludeHidden: true})
				assert.False(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func TestSectorCounts(t *testing.T) {
	tree, docs, _ := docsTree(t)
	_, err := tree.AddFromMetadata(docs, home+"/music/song.ogg", fileInfo("song.ogg", 10*SectorSize))
	require.NoError(t, err)
	_, err = tree.AddFromMetadata(nil, home+"/f", fileInfo("f", 4*SectorSize))
	require.NoError(t, err)

	assert.Equal(t, int64(3), docs.Sectors())
	assert.Equal(t, int64(17), tree.GetSectorCount())
	assert.Equal(t, int64(13), tree.GetMaxTopLevelItemSize())
	requireValid(t, tree)
}

func TestEstimateImageSectors(t *testing.T) {
	tree := NewContentTree()
	_, err := tree.AddFromMetadata(nil, home+"/c.txt", fileInfo("c.txt", 5000))
	require.NoError(t, err)

	assert.Equal(t, int64(176), tree.EstimateImageSectors(false))
	assert.Equal(t, int64(182), tree.EstimateImageSectors(true))
}

func spanTree(t *testing.T, sizes map[string]int64) *ContentTree {
	t.Helper()
	tree := NewContentTree()
	for name, sectors := range sizes {
		_, err := tree.AddFromMetadata(nil, home+"/"+name, fileInfo(name, sectors*SectorSize))
		require.NoError(t, err)
	}
	return tree
}

func TestSpan(t *testing.T) {
	tree := spanTree(t, map[string]int64{"a": 10, "b": 20, "c": 5})
	assert.Equal(t, SpanFits, tree.SpanPossible(25))

	first, err := tree.Span(25, ContentsOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(15), first.Sectors)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "a", first.Items[0].Name())
	assert.Equal(t, "c", first.Items[1].Name())
	assert.Equal(t, []Graft{
		{URI: home + "/a", Path: "/a"},
		{URI: home + "/c", Path: "/c"},
	}, first.Contents.Grafts)
	assert.True(t, tree.SpanAgain())
	assert.Equal(t, SpanFits, tree.SpanPossible(25))

	second, err := tree.Span(25, ContentsOptions{})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "b", second.Items[0].Name())
	assert.False(t, tree.SpanAgain())
	assert.Equal(t, SpanDone, tree.SpanPossible(25))
	assert.Len(t, tree.Spanned(), 3)

	_, err = tree.Span(25, ContentsOptions{})
	assert.ErrorIs(t, err, ErrNothingToSpan)

	tree.SpanStop()
	assert.True(t, tree.SpanAgain())
	assert.Empty(t, tree.Spanned())
}

func TestSpanTooBig(t *testing.T) {
	tree := spanTree(t, map[string]int64{"huge": 30})
	assert.Equal(t, SpanTooBig, tree.SpanPossible(25))
	_, err := tree.Span(25, ContentsOptions{})
	assert.ErrorIs(t, err, ErrSpanTooBig)
	assert.True(t, tree.SpanAgain())
}

func TestSpanForgetsRemovedItems(t *testing.T) {
	tree := spanTree(t, map[string]int64{"a": 1, "b": 1})
	_, err := tree.Span(1, ContentsOptions{})
	require.NoError(t, err)

	a := tree.NodeAtPath("/a")
	require.NoError(t, tree.RemoveNode(a))
	assert.Empty(t, tree.Spanned())
	assert.True(t, tree.SpanAgain())
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	tree, _, _ := docsTree(t, WithObserver(mc))

	require.NoError(t, mc.UpdateMetrics(context.Background(), tree))
	m := mc.Snapshot()
	assert.Equal(t, int64(2), m.TotalNodes)
	assert.Equal(t, int64(3), m.TotalSectors)
	assert.Equal(t, 2, m.MaxDepth)
	assert.Equal(t, 1, m.Grafts)
	assert.Equal(t, 0, m.Excluded)
	assert.Equal(t, 3, m.Refs)
	assert.Equal(t, FileTreeStats{Files: 1, Dirs: 1}, m.Stats)
	assert.Equal(t, int64(2), m.OperationCounts[EventNodeAdded.String()])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mc.UpdateMetrics(ctx, tree), context.Canceled)
	assert.Same(t, m, mc.Snapshot())
}
