package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/trees"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		_ = os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.True(suite.T(), cfg.Project.Joliet)
	assert.Equal(suite.T(), trees.DefaultDeepDirectoryDepth, cfg.Project.DeepDirectoryDepth)
	assert.Equal(suite.T(), trees.DefaultOversizeLimit, cfg.Project.OversizeLimit)
	assert.False(suite.T(), cfg.Project.AllowDeep)
	assert.Equal(suite.T(), "name", cfg.Project.Sort)
	assert.Equal(suite.T(), 8, cfg.Loader.Workers)
	assert.Empty(suite.T(), cfg.Loader.Exclude)
	assert.True(suite.T(), cfg.Loader.FollowSymlinks)
	assert.False(suite.T(), cfg.Watcher.Enabled)
	assert.Equal(suite.T(), 1000, cfg.Watcher.QueueCapacity)
	assert.Equal(suite.T(), 100*time.Millisecond, cfg.Watcher.DebounceDelay)
	assert.Equal(suite.T(), "info", cfg.Log.Level)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	path := suite.writeConfig(`
project:
  joliet: false
  deepDirectoryDepth: 4
  allowOversize: true
  sort: size
  descending: true
loader:
  workers: 2
  exclude:
    - "*.tmp"
    - ".git"
  followSymlinks: false
watcher:
  enabled: true
  debounceDelay: 250ms
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(suite.T(), err)

	assert.False(suite.T(), cfg.Project.Joliet)
	assert.Equal(suite.T(), 4, cfg.Project.DeepDirectoryDepth)
	assert.True(suite.T(), cfg.Project.AllowOversize)
	assert.Equal(suite.T(), "size", cfg.Project.Sort)
	assert.True(suite.T(), cfg.Project.Descending)
	assert.Equal(suite.T(), 2, cfg.Loader.Workers)
	assert.Equal(suite.T(), []string{"*.tmp", ".git"}, cfg.Loader.Exclude)
	assert.False(suite.T(), cfg.Loader.FollowSymlinks)
	assert.True(suite.T(), cfg.Watcher.Enabled)
	assert.Equal(suite.T(), 250*time.Millisecond, cfg.Watcher.DebounceDelay)
	assert.Equal(suite.T(), "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(suite.T(), 1000, cfg.Watcher.QueueCapacity)
}

func (suite *ConfigTestSuite) TestLoadConfigFromWorkingDirectory() {
	suite.writeConfig("project:\n  deepDirectoryDepth: 3\n")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 3, cfg.Project.DeepDirectoryDepth)
}

func (suite *ConfigTestSuite) TestEnvironmentOverrides() {
	suite.T().Setenv("PROJECT_SORT", "size")
	suite.T().Setenv("LOADER_WORKERS", "3")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "size", cfg.Project.Sort)
	assert.Equal(suite.T(), 3, cfg.Loader.Workers)
}

func (suite *ConfigTestSuite) TestInvalidValues() {
	path := suite.writeConfig(`
project:
  deepDirectoryDepth: 0
  sort: random
watcher:
  queueCapacity: 0
`)

	_, err := LoadConfig(path)
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "project: deepDirectoryDepth")
	assert.Contains(suite.T(), err.Error(), `project: unknown sort "random"`)
	assert.Contains(suite.T(), err.Error(), "watcher: queueCapacity")
}

func (suite *ConfigTestSuite) TestMalformedFile() {
	path := suite.writeConfig("project: [unterminated\n")

	_, err := LoadConfig(path)
	assert.Error(suite.T(), err)
}

func (suite *ConfigTestSuite) TestTreeOptions() {
	path := suite.writeConfig(`
project:
  deepDirectoryDepth: 2
  replaceOnCollision: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(suite.T(), err)

	tree := trees.NewContentTree(cfg.TreeOptions()...)
	a, err := tree.AddEmptyDirectory(nil, "a")
	require.NoError(suite.T(), err)

	// Depth 2 is the first deep directory and the static policy denies it.
	_, err = tree.AddFromMetadata(a, trees.FileURI("/src/b"), trees.FileInfo{Name: "b", IsDir: true})
	assert.ErrorIs(suite.T(), err, trees.ErrTooDeep)

	_, err = tree.AddEmptyDirectory(nil, "a")
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), tree.Root().Children(), 1)
}
