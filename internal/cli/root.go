package cli

import (
	"context"

	"github.com/smartlearnhub/slh/internal/logging"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the slh command tree.
func NewRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "slh",
		Short: "SmartLearn Hub from the terminal",
		Long: `slh signs you in to SmartLearn Hub with email/password or Google and
keeps the session on this machine for the other commands.

Run without arguments to see the home screen.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logLevel)
		},
		RunE: runHome,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newResultsCmd(),
		newThemeCmd(),
		newCompletionCmd(root),
	)
	return root
}

// Execute runs the command tree with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
