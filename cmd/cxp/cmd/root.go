// Package cmd builds the cxp command tree: build, open, search, and
// manager serve, grounded on the teacher's cmd/amanmcp/cmd.NewRootCmd
// structure (persistent flags wired through PersistentPreRunE, a single
// Execute entrypoint called from main).
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cxparchive/cxp/internal/cxpconfig"
	"github.com/cxparchive/cxp/internal/logging"
)

var (
	flagConfigPath string
	flagLogLevel   string
	flagLogFile    string
	flagNoTUI      bool

	logger  *slog.Logger
	logDone func()
	cfg     cxpconfig.Config
)

// NewRootCmd builds the cxp command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cxp",
		Short:         "Content-addressed archive engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			var err error
			cfg, err = cxpconfig.Load(flagConfigPath)
			if err != nil {
				return err
			}

			logger, logDone, err = logging.Setup(logging.Config{
				Level:         flagLogLevel,
				FilePath:      flagLogFile,
				WriteToStderr: true,
			})
			return err
		},
		PersistentPostRunE: func(c *cobra.Command, args []string) error {
			if logDone != nil {
				logDone()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagConfigPath, "config", ".cxp.yaml", "path to .cxp.yaml config")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "JSON log file path (empty disables file logging)")
	root.PersistentFlags().BoolVar(&flagNoTUI, "no-tui", false, "force plain progress output")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newOpenCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newManagerCmd())

	return root
}

// Execute runs the cxp command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
