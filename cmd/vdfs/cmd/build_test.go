package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/filesystem/loader"
	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/trees"
)

// sources creates one directory per name, each holding a file of size bytes.
func sources(t *testing.T, size int, names ...string) []string {
	t.Helper()
	root := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), bytes.Repeat([]byte("x"), size), 0o644))
		paths = append(paths, dir)
	}
	return paths
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: error\n"), 0o644))

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "prints grafts and sizes",
			test: func(t *testing.T) {
				paths := sources(t, 3000, "a", "b")
				out, err := run(t, append([]string{"build"}, paths...)...)
				require.NoError(t, err)

				assert.Contains(t, out, "/a <- "+trees.FileURI(paths[0]))
				assert.Contains(t, out, "/b <- "+trees.FileURI(paths[1]))
				assert.Contains(t, out, "files: 2, directories: 2")
				assert.Contains(t, out, "sectors: 4, largest item: 2")
			},
		},
		{
			name: "spans over several discs",
			test: func(t *testing.T) {
				paths := sources(t, 3000, "a", "b")
				out, err := run(t, append([]string{"build", "--span", "3"}, paths...)...)
				require.NoError(t, err)

				assert.Contains(t, out, "disc 1: 2 sectors, a")
				assert.Contains(t, out, "disc 2: 2 sectors, b")
				assert.NotContains(t, out, "disc 3")
			},
		},
		{
			name: "span refuses items larger than a disc",
			test: func(t *testing.T) {
				paths := sources(t, 3000, "a")
				_, err := run(t, "build", "--span", "1", paths[0])
				assert.ErrorIs(t, err, trees.ErrSpanTooBig)
			},
		},
		{
			name: "unknown disc medium",
			test: func(t *testing.T) {
				paths := sources(t, 1, "a")
				_, err := run(t, "build", "--disc", "floppy", paths[0])
				assert.ErrorContains(t, err, "unknown disc")
			},
		},
		{
			name: "empty project",
			test: func(t *testing.T) {
				out, err := run(t, "build", filepath.Join(t.TempDir(), "missing"))
				require.NoError(t, err)
				assert.Contains(t, out, "nothing to burn")
			},
		},
		{
			name: "requires a source",
			test: func(t *testing.T) {
				_, err := run(t, "build")
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func TestAddSource(t *testing.T) {
	paths := sources(t, 10, "docs")
	l := loader.New(afero.NewOsFs(), loader.Options{Workers: 1})
	defer l.Close()
	tree := trees.NewContentTree(trees.WithLoader(l))

	require.NoError(t, addSource(tree, "media/archive="+paths[0]))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Drain(ctx, tree))

	media := tree.NodeAtPath("/media")
	require.NotNil(t, media)
	assert.True(t, media.IsTmpParent())
	archive := tree.NodeAtPath("/media/archive")
	require.NotNil(t, archive)
	assert.True(t, archive.IsDir())
	assert.NotNil(t, tree.NodeAtPath("/media/archive/data.bin"))

	var out bytes.Buffer
	require.NoError(t, printProject(&out, tree, false, trees.ContentsOptions{}))
	assert.True(t, strings.Contains(out.String(), "/media/archive <- "+trees.FileURI(paths[0])), out.String())
	assert.Empty(t, tree.Validate())
}
