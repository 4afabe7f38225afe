package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Version, Commit and BuildDate are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	verbose    bool
	configFile string
)

// ExitError carries a process exit code for a failure that was already
// reported to the user.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func NewRootCmd() *cobra.Command {
	var (
		tuiMode    string
		runTimeout time.Duration
	)

	root := &cobra.Command{
		Use:   "dailyforge",
		Short: "Daily Codex automation",
		Long: "dailyforge starts the Codex CLI as an MCP tool server, asks a hosted agent to analyze the\n" +
			"repository and write a daily report, and saves the agent's final output to ./daily-automation-output.",
		Args: cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, tuiMode, runTimeout)
			if err != nil {
				return err
			}
			return runAutomation(cmd.Context(), settings)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", ".dailyforge.yml", "path to config file")
	root.Flags().StringVar(&tuiMode, "tui", "auto", "display mode: full (interactive TUI), minimal (live status), off (no live display), auto (detect TTY)")
	root.Flags().DurationVar(&runTimeout, "run-timeout", 0, "abort the agent run after this duration (0 = no limit)")

	root.AddCommand(newVersionCmd())

	return root
}
