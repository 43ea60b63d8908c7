// Package cli implements the teashelf command-line interface.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/internal/logging"
	"github.com/mesh-intelligence/teashelf/internal/paths"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

// app is the state shared by one command invocation.
type app struct {
	flags     rootFlags
	configDir string
	settings  settings
	logger    *zap.Logger
}

// NewRootCmd creates the top-level "teashelf" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "teashelf",
		Short: "A personal tea inventory",
		Long: "teashelf catalogs your teas, records brews, tracks stock levels,\n" +
			"keeps a rolling backup history, and exports or imports the collection.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return userError(err)
	})

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newAddCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newBrewCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newBackupCmd(a),
		newLowStockCmd(a),
		newStatsCmd(a),
		newInsightsCmd(a),
		newFavoriteCmd(a),
		newPrefsCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup resolves directories, loads config.yaml, and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolving config dir: %w", err))
	}
	a.configDir = configDir

	v, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	s, err := readSettings(v)
	if err != nil {
		return userError(err)
	}
	if a.flags.logLevel != "" {
		s.LogLevel = a.flags.logLevel
	}

	s.DataDir, err = paths.ResolveDataDir(a.flags.dataDir, s.DataDir)
	if err != nil {
		return sysError(fmt.Errorf("resolving data dir: %w", err))
	}
	a.settings = s

	logger, err := logging.NewLogger(s.LogLevel)
	if err != nil {
		return userError(err)
	}
	a.logger = logger.With(zap.String("command", cmd.Name()))
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return ExitCode(err)
}

// exitError carries an explicit exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error {
	return &exitError{code: exitUserError, err: err}
}

func sysError(err error) error {
	return &exitError{code: exitSysError, err: err}
}

// ExitCode maps err to a process exit code: 0 for nil, 2 for storage and
// other system failures, 1 for everything the user can fix.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, types.ErrStoreUnavailable) || errors.Is(err, types.ErrTransactionFailed) {
		return exitSysError
	}
	return exitUserError
}
