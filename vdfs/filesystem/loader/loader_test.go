package loader

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/trees"
)

func memFs(t *testing.T, files map[string]int) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for path, size := range files {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte(strings.Repeat("x", size)), 0o644))
	}
	return fsys
}

// lockedFs fails to stat entries named locked.
type lockedFs struct {
	afero.Fs
	locked string
}

func (f lockedFs) Stat(name string) (os.FileInfo, error) {
	if filepath.Base(name) == f.locked {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Stat(name)
}

func drain(t *testing.T, l *Loader, tree *trees.ContentTree) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Drain(ctx, tree))
}

func TestLoader(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "explores a directory recursively",
			test: func(t *testing.T) {
				fsys := memFs(t, map[string]int{
					"/home/u/docs/a.txt":     5000,
					"/home/u/docs/sub/b.txt": 10,
					"/home/u/docs/skip.tmp":  10,
				})
				l := New(fsys, Options{Workers: 2, Exclude: []string{"*.tmp"}})
				defer l.Close()
				tree := trees.NewContentTree(trees.WithLoader(l))

				docs, err := tree.AddLoadingNode(nil, trees.FileURI("/home/u/docs"))
				require.NoError(t, err)
				drain(t, l, tree)

				assert.True(t, docs.IsDir())
				assert.False(t, docs.IsLoading())
				assert.False(t, docs.IsExploring())

				a := tree.NodeAtPath("/docs/a.txt")
				require.NotNil(t, a)
				assert.Equal(t, int64(3), a.Sectors())
				assert.Equal(t, "text/plain; charset=utf-8", a.MimeType())
				assert.NotNil(t, tree.NodeAtPath("/docs/sub/b.txt"))
				assert.Nil(t, tree.NodeAtPath("/docs/skip.tmp"))

				assert.Equal(t, trees.FileTreeStats{Files: 2, Dirs: 2}, tree.Stats())
				assert.Equal(t, int64(4), tree.GetSectorCount())
				assert.Empty(t, tree.Validate())
				assert.Equal(t, int64(0), l.Pending())
			},
		},
		{
			name: "missing sources are dropped",
			test: func(t *testing.T) {
				l := New(afero.NewMemMapFs(), Options{Workers: 1})
				defer l.Close()
				tree := trees.NewContentTree(trees.WithLoader(l))

				var failures []error
				tree.Subscribe(trees.ObserverFunc(func(e trees.Event) trees.Response {
					if e.Type == trees.EventLoadFailed {
						failures = append(failures, e.Err)
					}
					return trees.Accept
				}))

				_, err := tree.AddLoadingNode(nil, trees.FileURI("/nope"))
				require.NoError(t, err)
				drain(t, l, tree)

				assert.Empty(t, tree.Root().Children())
				require.Len(t, failures, 1)
				assert.ErrorIs(t, failures[0], trees.ErrNotFound)
			},
		},
		{
			name: "unreadable entries are reported and skipped",
			test: func(t *testing.T) {
				fsys := lockedFs{
					Fs: memFs(t, map[string]int{
						"/home/u/docs/a.txt":      10,
						"/home/u/docs/secret.txt": 10,
					}),
					locked: "secret.txt",
				}
				l := New(fsys, Options{Workers: 1})
				defer l.Close()
				tree := trees.NewContentTree(trees.WithLoader(l))

				var failures []trees.Event
				tree.Subscribe(trees.ObserverFunc(func(e trees.Event) trees.Response {
					if e.Type == trees.EventLoadFailed {
						failures = append(failures, e)
					}
					return trees.Accept
				}))

				docs, err := tree.AddLoadingNode(nil, trees.FileURI("/home/u/docs"))
				require.NoError(t, err)
				drain(t, l, tree)

				require.Len(t, failures, 1)
				assert.Same(t, docs, failures[0].Node)
				assert.Equal(t, trees.FileURI("/home/u/docs/secret.txt"), failures[0].URI)
				assert.ErrorIs(t, failures[0].Err, trees.ErrUnreadable)

				assert.NotNil(t, tree.NodeAtPath("/docs/a.txt"))
				assert.Nil(t, tree.NodeAtPath("/docs/secret.txt"))
				assert.False(t, docs.IsExploring())
				assert.Empty(t, tree.Validate())
			},
		},
		{
			name: "excluded directories are not explored",
			test: func(t *testing.T) {
				fsys := memFs(t, map[string]int{
					"/src/main.go":        10,
					"/src/.git/HEAD":      10,
					"/src/vendor/x/x.go":  10,
					"/src/vendor.go.orig": 10,
				})
				l := New(fsys, Options{Exclude: []string{".git", "vendor/", "*.orig"}})
				defer l.Close()
				tree := trees.NewContentTree(trees.WithLoader(l))

				_, err := tree.AddLoadingNode(nil, trees.FileURI("/src"))
				require.NoError(t, err)
				drain(t, l, tree)

				src := tree.NodeAtPath("/src")
				require.NotNil(t, src)
				var names []string
				for _, c := range src.Children() {
					names = append(names, c.Name())
				}
				assert.Equal(t, []string{"main.go"}, names)
			},
		},
		{
			name: "results for removed nodes are ignored",
			test: func(t *testing.T) {
				fsys := memFs(t, map[string]int{"/data/f": 1})
				l := New(fsys, Options{Workers: 1})
				defer l.Close()
				tree := trees.NewContentTree(trees.WithLoader(l))

				n, err := tree.AddLoadingNode(nil, trees.FileURI("/data/f"))
				require.NoError(t, err)
				require.NoError(t, tree.RemoveNode(n))
				drain(t, l, tree)

				assert.True(t, n.IsFake())
				assert.Empty(t, tree.Validate())
			},
		},
		{
			name: "drain honours cancellation",
			test: func(t *testing.T) {
				l := New(afero.NewMemMapFs(), Options{Workers: 1})
				defer l.Close()
				tree := trees.NewContentTree()

				block := make(chan struct{})
				l.submit(func() { <-block })
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				assert.ErrorIs(t, l.Drain(ctx, tree), context.Canceled)
				close(block)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func TestStatSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Symlink("target.txt", filepath.Join(dir, "link")))
	require.NoError(t, os.Symlink("loop-b", filepath.Join(dir, "loop-a")))
	require.NoError(t, os.Symlink("loop-a", filepath.Join(dir, "loop-b")))

	t.Run("followed", func(t *testing.T) {
		l := New(afero.NewOsFs(), Options{FollowSymlinks: true})
		defer l.Close()
		info, err := l.stat(trees.FileURI(filepath.Join(dir, "link")))
		require.NoError(t, err)
		assert.True(t, info.IsSymlink)
		assert.Equal(t, "target.txt", info.SymlinkTarget)
		assert.Equal(t, int64(5), info.Size)

		_, err = l.stat(trees.FileURI(filepath.Join(dir, "loop-a")))
		assert.ErrorIs(t, err, trees.ErrSymlinkLoop)
	})

	t.Run("not followed", func(t *testing.T) {
		l := New(afero.NewOsFs(), Options{})
		defer l.Close()
		info, err := l.stat(trees.FileURI(filepath.Join(dir, "link")))
		require.NoError(t, err)
		assert.True(t, info.IsSymlink)
		assert.Equal(t, int64(0), info.Size)
	})
}
