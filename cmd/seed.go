package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write a reproducible demo set of creators and campaigns to the profiles file",
	Run: func(cmd *cobra.Command, _ []string) {
		seed(cmd)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Int("creators", 60, "number of creators to generate")
	seedCmd.Flags().Int("campaigns", 15, "number of campaigns to generate")
	seedCmd.Flags().Uint64("seed", 42, "random seed; the same seed gives the same profiles")
}

func seed(cmd *cobra.Command) {
	logger, config := setup()

	creators, _ := cmd.Flags().GetInt("creators")
	campaigns, _ := cmd.Flags().GetInt("campaigns")
	rngSeed, _ := cmd.Flags().GetUint64("seed")
	if creators < 0 || campaigns < 0 {
		logger.Fatal("counts must not be negative")
	}

	doc := profiles.Demo(rngSeed, creators, campaigns)
	if err := profiles.WriteFile(config.ProfilesFile, doc); err != nil {
		logger.Fatal("writing demo profiles", zap.Error(err))
	}

	logger.Info("demo profiles written",
		zap.String("file", config.ProfilesFile),
		zap.Int("creators", len(doc.Creators)),
		zap.Int("campaigns", len(doc.Campaigns)),
	)
}
