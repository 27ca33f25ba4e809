package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/config"
	"github.com/waabox/deskbridge/internal/logging"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "0.0.0-dev"

var (
	configPath string
	verbose    bool

	cfg         config.Config
	logger      = zap.NewNop()
	flushLogger = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "deskbridge [command]",
	Short: "deskbridge: native backend for desktop shells",
	Long: `deskbridge answers command invocations from a desktop front-end: opening URLs and
folders, reading and writing text files, Microsoft Graph sign-in, and the sql, dialog,
global-shortcut and updater plugins.

Run without a command it serves the bridge on stdin/stdout. Extra arguments, such as the
caller origin passed by browser native-messaging hosts, are ignored.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) { flushLogger() }

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the TOML config file (default: per-user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
}

// setup loads .env and the config file, then opens the log file.
func setup(cmd *cobra.Command, _ []string) error {
	// .env is optional.
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	loaded, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	cfg = loaded

	l, flush, err := logging.New(logging.Options{
		Dir:     config.AppCacheDir(cfg.AppIDOrDefault()),
		Verbose: verbose,
	})
	if err != nil {
		return err
	}
	logger, flushLogger = l, flush
	logger.Debug("Configuration loaded", zap.String("path", path), zap.String("command", cmd.Name()))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		flushLogger()
		os.Exit(1)
	}
}
