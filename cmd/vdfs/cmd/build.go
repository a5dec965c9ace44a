package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/config"
	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/filesystem/loader"
	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/filesystem/watcher"
	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/trees"
)

const (
	jolietFlag        = "joliet"
	includeHiddenFlag = "include-hidden"
	trailingSlashFlag = "trailing-slash"
	spanFlag          = "span"
	discFlag          = "disc"
	watchFlag         = "watch"
	excludeFlag       = "exclude"
	workersFlag       = "workers"
)

// discSectors maps common media to their capacity in 2048-byte sectors.
var discSectors = map[string]int64{
	"cd74":   333000,
	"cd80":   360000,
	"dvd":    2295104,
	"dvd-dl": 4173824,
	"bd":     12219392,
	"bd-dl":  24438784,
}

type buildOptions struct {
	includeHidden bool
	trailingSlash bool
	span          int64
}

func newBuildCmd(v *viper.Viper) *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build [flags] source... | /disc/path=source...",
		Short: "Assemble a disc project from local files and print its layout",
		Long: `Assemble a disc project from local files and print its layout.

Each source is added at the top level of the disc under its own name, or at
an explicit disc path with the /disc/path=source form. Missing directories on
the way are created.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			opts, err := buildFlags(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBuild(ctx, cmd.OutOrStdout(), cfg, opts, args)
		},
	}

	flags := buildCmd.Flags()
	flags.Bool(jolietFlag, true, "Graft names that are not Joliet compatible explicitly")
	flags.Bool(includeHiddenFlag, false, "Keep hidden nodes in the contents")
	flags.Bool(trailingSlashFlag, false, "End directory paths with a slash")
	flags.Int64(spanFlag, 0, "Split the project over discs of this many sectors")
	flags.String(discFlag, "", "Split the project over discs of this medium (cd74, cd80, dvd, dvd-dl, bd, bd-dl)")
	flags.Bool(watchFlag, false, "Keep running and follow changes of the sources")
	flags.StringSlice(excludeFlag, nil, "Gitignore-style pattern skipped while exploring (repeatable)")
	flags.Int(workersFlag, 0, "Concurrent metadata lookups")

	_ = v.BindPFlag("project.joliet", flags.Lookup(jolietFlag))
	_ = v.BindPFlag("watcher.enabled", flags.Lookup(watchFlag))
	_ = v.BindPFlag("loader.exclude", flags.Lookup(excludeFlag))
	_ = v.BindPFlag("loader.workers", flags.Lookup(workersFlag))
	return buildCmd
}

func buildFlags(cmd *cobra.Command) (buildOptions, error) {
	var opts buildOptions
	var err error
	flags := cmd.Flags()
	if opts.includeHidden, err = flags.GetBool(includeHiddenFlag); err != nil {
		return opts, err
	}
	if opts.trailingSlash, err = flags.GetBool(trailingSlashFlag); err != nil {
		return opts, err
	}
	if opts.span, err = flags.GetInt64(spanFlag); err != nil {
		return opts, err
	}
	disc, err := flags.GetString(discFlag)
	if err != nil {
		return opts, err
	}
	if disc != "" {
		sectors, ok := discSectors[strings.ToLower(disc)]
		if !ok {
			return opts, fmt.Errorf("unknown disc %q", disc)
		}
		opts.span = sectors
	}
	if opts.span < 0 {
		return opts, fmt.Errorf("span must not be negative")
	}
	return opts, nil
}

func runBuild(ctx context.Context, out io.Writer, cfg *config.Config, opts buildOptions, sources []string) error {
	logger, slogger := loggers(cfg.Log.Level)

	l := loader.New(afero.NewOsFs(), loader.Options{
		Workers:        cfg.Loader.Workers,
		Exclude:        cfg.Loader.Exclude,
		FollowSymlinks: cfg.Loader.FollowSymlinks,
		Logger:         slogger,
	})
	defer l.Close()

	metrics := trees.NewMetricsCollector()
	treeOpts := append(cfg.TreeOptions(),
		trees.WithLogger(slogger),
		trees.WithLoader(l),
		trees.WithObserver(metrics),
		trees.WithObserver(loadFailures(logger)),
	)

	var w *watcher.FSNotifyWatcher
	if cfg.Watcher.Enabled {
		var err error
		w, err = watcher.NewFSNotifyWatcher(watcher.WatcherConfig{
			QueueCapacity: cfg.Watcher.QueueCapacity,
			DebounceDelay: cfg.Watcher.DebounceDelay,
			Logger:        slogger,
		})
		if err != nil {
			return err
		}
		defer w.Close()
		treeOpts = append(treeOpts, trees.WithMonitor(w))
	}

	tree := trees.NewContentTree(treeOpts...)

	for _, source := range sources {
		if err := addSource(tree, source); err != nil {
			logger.Error().Err(err).Str("source", source).Msg("source not added")
		}
	}
	if err := l.Drain(ctx, tree); err != nil {
		return err
	}

	contentsOpts := trees.ContentsOptions{
		IncludeHidden: opts.includeHidden,
		JolietCompat:  cfg.Project.Joliet,
		TrailingSlash: opts.trailingSlash,
	}
	if err := printProject(out, tree, cfg.Project.Joliet, contentsOpts); err != nil {
		return err
	}
	if opts.span > 0 {
		if err := printSpan(out, tree, opts.span, contentsOpts); err != nil {
			return err
		}
	}

	if err := metrics.UpdateMetrics(ctx, tree); err == nil {
		snap := metrics.Snapshot()
		logger.Debug().
			Int64("nodes", snap.TotalNodes).
			Int("max_depth", snap.MaxDepth).
			Int("refs", snap.Refs).
			Interface("operations", snap.OperationCounts).
			Msg("project metrics")
	}

	if w == nil {
		return nil
	}
	return follow(ctx, logger, tree, l, w, cfg.Project.Joliet)
}

// addSource adds "source" at the top level or "/disc/path=source" at the
// given disc path.
func addSource(tree *trees.ContentTree, source string) error {
	discPath, path, explicit := strings.Cut(source, "=")
	if !explicit {
		path = source
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	uri := trees.FileURI(abs)
	if !explicit {
		_, err = tree.AddLoadingNode(nil, uri)
		return err
	}
	if !strings.HasPrefix(discPath, "/") {
		discPath = "/" + discPath
	}
	_, err = tree.AddPath(discPath, uri, nil)
	return err
}

func loadFailures(logger zerolog.Logger) trees.Observer {
	return trees.ObserverFunc(func(e trees.Event) trees.Response {
		if e.Type == trees.EventLoadFailed {
			logger.Warn().Err(e.Err).Str("uri", e.URI).Msg("source not loaded")
		}
		return trees.Accept
	})
}

func printProject(out io.Writer, tree *trees.ContentTree, joliet bool, opts trees.ContentsOptions) error {
	contents, ok := tree.GetContents(opts)
	if !ok {
		_, err := fmt.Fprintln(out, "nothing to burn")
		return err
	}
	if err := printContents(out, "", contents); err != nil {
		return err
	}

	stats := tree.Stats()
	fmt.Fprintf(out, "files: %d, directories: %d\n", stats.Files, stats.Dirs)
	fmt.Fprintf(out, "sectors: %d, largest item: %d, image estimate: %d\n",
		tree.GetSectorCount(), tree.GetMaxTopLevelItemSize(), tree.EstimateImageSectors(joliet))
	if joliet {
		fmt.Fprintf(out, "joliet: %d incompatible names, %d collisions\n",
			len(tree.JolietIncompatible()), len(tree.JolietCollisions()))
	}
	return nil
}

func printContents(out io.Writer, indent string, contents *trees.Contents) error {
	if _, err := fmt.Fprintf(out, "%sgrafts:\n", indent); err != nil {
		return err
	}
	for _, g := range contents.Grafts {
		if g.URI == "" {
			fmt.Fprintf(out, "%s  %s\n", indent, g.Path)
			continue
		}
		fmt.Fprintf(out, "%s  %s <- %s\n", indent, g.Path, g.URI)
	}
	if len(contents.Excluded) > 0 {
		fmt.Fprintf(out, "%sexcluded:\n", indent)
		for _, uri := range contents.Excluded {
			fmt.Fprintf(out, "%s  %s\n", indent, uri)
		}
	}
	return nil
}

func printSpan(out io.Writer, tree *trees.ContentTree, maxSectors int64, opts trees.ContentsOptions) error {
	defer tree.SpanStop()

	if tree.SpanPossible(maxSectors) == trees.SpanTooBig {
		return fmt.Errorf("an item is larger than %d sectors: %w", maxSectors, trees.ErrSpanTooBig)
	}
	for disc := 1; tree.SpanAgain(); disc++ {
		res, err := tree.Span(maxSectors, opts)
		if errors.Is(err, trees.ErrNothingToSpan) {
			break
		}
		if err != nil {
			return err
		}
		names := make([]string, 0, len(res.Items))
		for _, n := range res.Items {
			names = append(names, n.Name())
		}
		sort.Strings(names)
		fmt.Fprintf(out, "disc %d: %d sectors, %s\n", disc, res.Sectors, strings.Join(names, ", "))
		if err := printContents(out, "  ", res.Contents); err != nil {
			return err
		}
	}
	return nil
}

// follow applies loader results and monitor events until ctx is done. The
// tree is only touched from this goroutine.
func follow(ctx context.Context, logger zerolog.Logger, tree *trees.ContentTree, l *loader.Loader, w *watcher.FSNotifyWatcher, joliet bool) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	logger.Info().Int("watched", w.Watched()).Msg("following sources, interrupt to stop")

	report := func() {
		logger.Info().
			Int64("sectors", tree.GetSectorCount()).
			Int64("estimate", tree.EstimateImageSectors(joliet)).
			Msg("project changed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.Ready():
			if l.Apply(tree) > 0 {
				report()
			}
		case e, ok := <-w.Events():
			if !ok {
				return nil
			}
			if err := tree.ApplyMonitorEvent(e); err != nil {
				logger.Debug().Err(err).Str("type", e.Type.String()).Msg("monitor event not applied")
				continue
			}
			report()
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
