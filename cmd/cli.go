package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/habedi/microfeed/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Execute(ctx context.Context) {
	rootCmd := createRootCmd()
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode reports err and returns the process status for it.
func exitCode(err error) int {
	log.Error().Err(err).Msg("Command execution failed.")
	fmt.Fprintln(os.Stderr, "Error:", err)
	var ce *clierr.Error
	if errors.As(err, &ce) {
		return ce.ExitCode()
	}
	return 1
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "microfeed",
		Short:         "A terminal client for the microfeed social feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		loginCmd(),
		registerCmd(),
		logoutCmd(),
		whoamiCmd(),
		feedCmd(),
		postCmd(),
		likeCmd(true),
		likeCmd(false),
		followCmd(true),
		followCmd(false),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}
