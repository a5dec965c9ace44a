package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	internal "github.com/ZanzyTHEbar/virtual-discfs/vdfs"
	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/config"
)

const (
	configFlag   = "config"
	logLevelFlag = "log-level"
)

// NewRootCmd builds the vdfs command tree. Every invocation gets its own
// viper instance so flags never leak between runs.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   internal.DefaultAppCMDShortCut,
		Short: "vdfs, a virtual disc file system",
		Long: `vdfs assembles the contents of an optical disc from local files.

It resolves sources, applies ISO9660 and Joliet limits, estimates the image
size and splits the project over several discs when it does not fit.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String(configFlag, "", fmt.Sprintf("Config file (default %s)", internal.DefaultGlobalConfigFile))
	rootCmd.PersistentFlags().String(logLevelFlag, "", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup(logLevelFlag))

	rootCmd.AddCommand(newBuildCmd(v))
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the configuration with the flags bound to v applied.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return nil, err
	}
	return config.Load(v, path)
}

// loggers returns the process logger and the slog logger handed to the
// library packages, both filtered at level.
func loggers(level string) (zerolog.Logger, *slog.Logger) {
	zl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || zl == zerolog.NoLevel {
		zl = zerolog.InfoLevel
	}

	var sl slog.Level
	switch zl {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		sl = slog.LevelDebug
	case zerolog.WarnLevel:
		sl = slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel, zerolog.Disabled:
		sl = slog.LevelError
	default:
		sl = slog.LevelInfo
	}

	logger := internal.GetConsoleLogger(zl)
	return logger, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: sl}))
}
