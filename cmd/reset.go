package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetCmd = &cobra.Command{
	Use:   "reset [USER_ID]",
	Short: "Forget which candidates were already served to a user, or to everyone with --all",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reset(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("all", false, "reset every user")
}

func reset(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	logger, config := setup()

	all, _ := cmd.Flags().GetBool("all")
	if all == (len(args) == 1) {
		logger.Fatal("pass either a user id or --all")
	}

	a, err := openStores(config, logger)
	if err != nil {
		logger.Fatal("starting", zap.Error(err))
	}
	defer a.Close()

	if all {
		n, err := a.tracker.ResetAll(ctx)
		if err != nil {
			a.Close()
			logger.Fatal("resetting exclusions", zap.Error(err))
		}
		logger.Info("exclusions reset", zap.Int("users", n))
		return
	}

	if err := a.tracker.Reset(ctx, args[0]); err != nil {
		a.Close()
		logger.Fatal("resetting exclusions", zap.Error(err))
	}
	logger.Info("exclusions reset", zap.String("user", args[0]))
}
