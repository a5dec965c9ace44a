package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/virtual-discfs/vdfs"
	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/trees"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Project ProjectConfig `mapstructure:"project"`
	Loader  LoaderConfig  `mapstructure:"loader"`
	Watcher WatcherConfig `mapstructure:"watcher"`
	Log     LogConfig     `mapstructure:"log"`
}

// ProjectConfig stores the disc format settings of a content tree.
type ProjectConfig struct {
	Joliet             bool   `mapstructure:"joliet"`
	DeepDirectoryDepth int    `mapstructure:"deepDirectoryDepth"`
	OversizeLimit      int64  `mapstructure:"oversizeLimit"`
	AllowDeep          bool   `mapstructure:"allowDeep"`
	AllowOversize      bool   `mapstructure:"allowOversize"`
	ReplaceOnCollision bool   `mapstructure:"replaceOnCollision"`
	Sort               string `mapstructure:"sort"`
	Descending         bool   `mapstructure:"descending"`
}

// LoaderConfig stores metadata loader settings.
type LoaderConfig struct {
	Workers        int      `mapstructure:"workers"`
	Exclude        []string `mapstructure:"exclude"`
	FollowSymlinks bool     `mapstructure:"followSymlinks"`
}

// WatcherConfig stores file monitor settings.
type WatcherConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	QueueCapacity int           `mapstructure:"queueCapacity"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	return Load(viper.New(), configPath)
}

// Load reads configuration through v, so that callers can bind command line
// flags to keys beforehand.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	SetDefaults(v)

	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // project.joliet becomes PROJECT_JOLIET

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults are used.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}

// SetDefaults registers the default of every known key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.joliet", true)
	v.SetDefault("project.deepDirectoryDepth", trees.DefaultDeepDirectoryDepth)
	v.SetDefault("project.oversizeLimit", trees.DefaultOversizeLimit)
	v.SetDefault("project.allowDeep", false)
	v.SetDefault("project.allowOversize", false)
	v.SetDefault("project.replaceOnCollision", false)
	v.SetDefault("project.sort", "name")
	v.SetDefault("project.descending", false)

	v.SetDefault("loader.workers", 8)
	v.SetDefault("loader.exclude", []string{})
	v.SetDefault("loader.followSymlinks", true)

	v.SetDefault("watcher.enabled", false)
	v.SetDefault("watcher.queueCapacity", 1000)
	v.SetDefault("watcher.debounceDelay", 100*time.Millisecond)

	v.SetDefault("log.level", "info")
}

// Validate reports every invalid setting.
func (c *Config) Validate() []error {
	var errs []error
	if c.Project.DeepDirectoryDepth < 1 {
		errs = append(errs, fmt.Errorf("project: deepDirectoryDepth must be at least 1, got %d", c.Project.DeepDirectoryDepth))
	}
	if c.Project.OversizeLimit < 0 {
		errs = append(errs, fmt.Errorf("project: oversizeLimit must not be negative"))
	}
	switch c.Project.Sort {
	case "name", "size":
	default:
		errs = append(errs, fmt.Errorf("project: unknown sort %q", c.Project.Sort))
	}
	if c.Loader.Workers < 0 {
		errs = append(errs, fmt.Errorf("loader: workers must not be negative"))
	}
	if c.Watcher.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("watcher: queueCapacity must be positive"))
	}
	if c.Watcher.DebounceDelay < 0 {
		errs = append(errs, fmt.Errorf("watcher: debounceDelay must not be negative"))
	}
	return errs
}

// TreeOptions translates the project section into content tree options.
func (c *Config) TreeOptions() []trees.TreeOption {
	sortFn := trees.SortByName
	if c.Project.Sort == "size" {
		sortFn = trees.SortBySize
	}
	return []trees.TreeOption{
		trees.WithPolicy(trees.StaticPolicy{
			ReplaceOnCollision: c.Project.ReplaceOnCollision,
			AllowDeep:          c.Project.AllowDeep,
			AllowOversize:      c.Project.AllowOversize,
		}),
		trees.WithSortFunc(sortFn),
		trees.WithDescending(c.Project.Descending),
		trees.WithDeepDirectoryDepth(c.Project.DeepDirectoryDepth),
		trees.WithOversizeLimit(c.Project.OversizeLimit),
	}
}
