package cli

import (
	"errors"
	"log/slog"
	"os"

	"github.com/me/brigade/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagWorkspace string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

var errNoWorkspace = errors.New("no workspace selected: pass --workspace or set BRIGADE_WORKSPACE")

// defaultServer returns the default server URL, checking BRIGADE_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("BRIGADE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the brigade CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "brigade",
		Short: "brigade - kitchen order scheduler",
		Long:  "brigade places, sequences and completes kitchen orders on a brigade server.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.FromFlags(flagLogLevel, flagLogFormat, flagDebug)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "brigade server URL (or BRIGADE_SERVER env)")
	root.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", os.Getenv("BRIGADE_WORKSPACE"), "Workspace ID (or BRIGADE_WORKSPACE env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newWorkspaceCmd(),
		newMenuCmd(),
		newOrderCmd(),
		newQueueCmd(),
		newNextCmd(),
		newCompleteCmd(),
		newUndoCmd(),
		newHistoryCmd(),
		newPurgeCmd(),
		newStatsCmd(),
	)

	return root
}

// wsPath returns the API path for suffix inside the selected workspace.
func wsPath(suffix string) (string, error) {
	if flagWorkspace == "" {
		return "", errNoWorkspace
	}
	return "/api/v1/workspaces/" + flagWorkspace + suffix, nil
}
