package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/interactions"
)

var recordCmd = &cobra.Command{
	Use:   "record USER_ID TARGET_ID like|pass|superlike",
	Short: "Record an interaction and report whether it produced a match",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		record(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().String("at", "", "RFC3339 timestamp of the interaction (default is now)")
}

func record(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	logger, config := setup()

	typ, err := interactions.ParseType(args[2])
	if err != nil {
		logger.Fatal("parsing interaction type", zap.Error(err))
	}

	item := interactions.Interaction{UserID: args[0], TargetID: args[1], Type: typ}
	if at := flagString(cmd, "at"); at != "" {
		if item.Timestamp, err = time.Parse(time.RFC3339, at); err != nil {
			logger.Fatal("parsing --at", zap.Error(err))
		}
	}

	// Recording needs only the log; profiles are not loaded.
	a, err := openStores(config, logger)
	if err != nil {
		logger.Fatal("starting", zap.Error(err))
	}
	defer a.Close()

	matched, err := a.recorder.Record(ctx, item)
	if err != nil {
		a.Close()
		logger.Fatal("recording interaction", zap.Error(err))
	}

	logger.Info("done", zap.Bool("matched", matched))
}
