// Package loader resolves node metadata for a content tree from an afero
// file system. Work runs on a bounded goroutine pool; results are queued
// and applied to the tree on the goroutine that owns it.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/trees"
)

// Options configures a Loader.
type Options struct {
	// Workers bounds the goroutines touching the file system. Zero picks a
	// value from the CPU count.
	Workers int
	// Exclude holds gitignore-style patterns skipped while exploring.
	Exclude        []string
	FollowSymlinks bool
	Logger         *slog.Logger
}

type resultKind int

const (
	resultInfo resultKind = iota
	resultChild
	resultDone
)

type result struct {
	kind resultKind
	ref  trees.Ref
	uri  string
	info trees.FileInfo
	err  error
}

// Loader implements trees.Loader over an afero.Fs.
type Loader struct {
	fs             afero.Fs
	pool           *pool.Pool
	ignore         *ignore.GitIgnore
	followSymlinks bool
	logger         *slog.Logger

	mu      sync.Mutex
	queue   []result
	notify  chan struct{}
	pending atomic.Int64
	closed  atomic.Bool
}

var _ trees.Loader = (*Loader)(nil)

func New(fsys afero.Fs, opts Options) *Loader {
	workers := opts.Workers
	if workers <= 0 {
		workers = min(max(runtime.NumCPU()*2, 4), 32)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		fs:             fsys,
		pool:           pool.New().WithMaxGoroutines(workers),
		followSymlinks: opts.FollowSymlinks,
		logger:         logger,
		notify:         make(chan struct{}, 1),
	}
	if len(opts.Exclude) > 0 {
		l.ignore = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	return l
}

// LoadInfo queues a metadata lookup for uri.
func (l *Loader) LoadInfo(ref trees.Ref, uri string) {
	l.submit(func() {
		info, err := l.stat(uri)
		l.push(result{kind: resultInfo, ref: ref, uri: uri, info: info, err: err})
	})
}

// LoadDirectory queues the exploration of the directory behind uri. Every
// entry not matching an exclude pattern is reported, then the end of the
// exploration.
func (l *Loader) LoadDirectory(ref trees.Ref, uri string) {
	l.submit(func() {
		err := l.explore(ref, uri)
		l.push(result{kind: resultDone, ref: ref, uri: uri, err: err})
	})
}

func (l *Loader) submit(task func()) {
	if l.closed.Load() {
		l.logger.Debug("loader closed, dropping request")
		return
	}
	l.pending.Add(1)
	l.pool.Go(func() {
		defer func() {
			l.pending.Add(-1)
			l.signal()
		}()
		task()
	})
}

func (l *Loader) explore(ref trees.Ref, uri string) error {
	dir, err := trees.URIPath(uri)
	if err != nil {
		return fmt.Errorf("%s: %w", uri, trees.ErrUnreadable)
	}
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return mapError(uri, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if l.excluded(path, entry.IsDir()) {
			l.logger.Debug("entry excluded by pattern", "path", path)
			continue
		}
		childURI := trees.ChildURI(uri, entry.Name())
		info, err := l.stat(childURI)
		if err != nil {
			l.logger.Debug("unreadable entry", "uri", childURI, "error", err)
		}
		l.push(result{kind: resultChild, ref: ref, uri: childURI, info: info, err: err})
	}
	return nil
}

func (l *Loader) excluded(path string, isDir bool) bool {
	if l.ignore == nil {
		return false
	}
	if isDir && l.ignore.MatchesPath(path+"/") {
		return true
	}
	return l.ignore.MatchesPath(path)
}

// stat resolves the attributes of uri without following a final symlink
// unless the loader is configured to.
func (l *Loader) stat(uri string) (trees.FileInfo, error) {
	path, err := trees.URIPath(uri)
	if err != nil {
		return trees.FileInfo{}, fmt.Errorf("%s: %w", uri, trees.ErrUnreadable)
	}

	fi, err := l.lstat(path)
	if err != nil {
		return trees.FileInfo{}, mapError(uri, err)
	}

	info := trees.FileInfo{
		Name:    fi.Name(),
		IsDir:   fi.IsDir(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		info.IsSymlink = true
		if r, ok := l.fs.(afero.LinkReader); ok {
			if target, err := r.ReadlinkIfPossible(path); err == nil {
				info.SymlinkTarget = target
			}
		}
		if l.followSymlinks {
			target, err := l.fs.Stat(path)
			if err != nil {
				return trees.FileInfo{}, mapError(uri, err)
			}
			info.IsDir = target.IsDir()
			info.Size = target.Size()
			info.ModTime = target.ModTime()
		} else {
			info.IsDir = false
			info.Size = 0
		}
	}
	if info.IsDir {
		info.Size = 0
	} else {
		info.MimeType = mime.TypeByExtension(filepath.Ext(info.Name))
	}
	return info, nil
}

func (l *Loader) lstat(path string) (os.FileInfo, error) {
	if ls, ok := l.fs.(afero.Lstater); ok {
		fi, _, err := ls.LstatIfPossible(path)
		return fi, err
	}
	return l.fs.Stat(path)
}

func mapError(uri string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", uri, trees.ErrNotFound)
	case errors.Is(err, syscall.ELOOP):
		return fmt.Errorf("%s: %w", uri, trees.ErrSymlinkLoop)
	default:
		return fmt.Errorf("%s: %w: %v", uri, trees.ErrUnreadable, err)
	}
}

func (l *Loader) push(r result) {
	l.mu.Lock()
	l.queue = append(l.queue, r)
	l.mu.Unlock()
	l.signal()
}

func (l *Loader) signal() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *Loader) take() []result {
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.queue
	l.queue = nil
	return queue
}

// Ready is signalled whenever results are waiting to be applied.
func (l *Loader) Ready() <-chan struct{} { return l.notify }

// Pending returns the number of requests still running or queued on the
// pool.
func (l *Loader) Pending() int64 { return l.pending.Load() }

// Apply hands every queued result to tree and returns how many were
// applied. It must run on the goroutine owning tree.
func (l *Loader) Apply(tree *trees.ContentTree) int {
	results := l.take()
	for _, r := range results {
		switch r.kind {
		case resultInfo:
			tree.NodeMetadataResolved(r.ref, r.uri, r.info, r.err)
		case resultChild:
			if r.err != nil {
				tree.ExploredChildFailed(r.ref, r.uri, r.err)
				continue
			}
			if _, err := tree.AddExploredChild(r.ref, r.uri, r.info); err != nil {
				l.logger.Debug("explored entry not added", "uri", r.uri, "error", err)
			}
		case resultDone:
			tree.DirectoryContentsResolved(r.ref, r.uri, r.err)
		}
	}
	return len(results)
}

// Drain applies results until no request is left or ctx is done.
func (l *Loader) Drain(ctx context.Context, tree *trees.ContentTree) error {
	for {
		l.Apply(tree)
		if l.pending.Load() == 0 {
			l.Apply(tree)
			if l.pending.Load() == 0 {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		}
	}
}

// Close stops accepting requests and waits for the running ones.
func (l *Loader) Close() {
	if l.closed.Swap(true) {
		return
	}
	l.pool.Wait()
}
