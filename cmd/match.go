package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/filtering"
	"github.com/spigell/cloutcash-matcher/internal/matching"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
	"github.com/spigell/cloutcash-matcher/internal/validation"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Print one page of ranked candidates as JSON",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	addRequestFlags(matchCmd)
	matchCmd.Flags().Int("cursor", 0, "cursor returned by the previous page; 0 starts a new listing")
	matchCmd.Flags().Bool("explain", false, "attach the filter pipeline report to the output")
}

// addRequestFlags registers the flags shared by match and discover.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("requester", "r", "", "campaign or creator id making the request")
	cmd.Flags().String("role", string(profiles.RoleBrand), "requester role: brand or creator")
	cmd.Flags().IntP("limit", "l", 0, "page size (default from matching.default-limit)")
	cmd.Flags().StringSlice("niche", nil, "keep candidates with any of these niches")
	cmd.Flags().StringSlice("geo", nil, "keep candidates reaching any of these locations")
	cmd.Flags().StringSlice("platform", nil, "keep candidates on any of these platforms")
	cmd.Flags().Float64("max-price", 0, "keep creators whose price per post is at most this")
	cmd.Flags().Float64("min-engagement", 0, "keep creators with at least this engagement rate, in percent")

	cmd.MarkFlagRequired("requester")
}

// requestFromFlags builds a match request. Unset numeric filters stay nil.
func requestFromFlags(cmd *cobra.Command) (matching.Request, error) {
	flags := cmd.Flags()

	role, err := profiles.ParseRole(flagString(cmd, "role"))
	if err != nil {
		return matching.Request{}, err
	}

	req := matching.Request{
		RequesterID: flagString(cmd, "requester"),
		Role:        role,
	}
	if req.Limit, err = flags.GetInt("limit"); err != nil {
		return req, err
	}
	if flags.Lookup("cursor") != nil {
		if req.Cursor, err = flags.GetInt("cursor"); err != nil {
			return req, err
		}
	}
	if flags.Lookup("explain") != nil {
		if req.Explain, err = flags.GetBool("explain"); err != nil {
			return req, err
		}
	}

	f := filtering.MatchFilters{}
	if f.Niches, err = flags.GetStringSlice("niche"); err != nil {
		return req, err
	}
	if f.Geography, err = flags.GetStringSlice("geo"); err != nil {
		return req, err
	}
	if f.Platforms, err = flags.GetStringSlice("platform"); err != nil {
		return req, err
	}
	if flags.Changed("max-price") {
		v, _ := flags.GetFloat64("max-price")
		f.MaxPrice = &v
	}
	if flags.Changed("min-engagement") {
		v, _ := flags.GetFloat64("min-engagement")
		f.MinEngagement = &v
	}
	req.Filters = f

	return req, nil
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func runMatch(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := setup()

	req, err := requestFromFlags(cmd)
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	a, err := newApplication(config, logger)
	if err != nil {
		logger.Fatal("starting", zap.Error(err))
	}
	defer a.Close()

	resp, err := a.engine.Match(ctx, req)
	if err != nil {
		a.Close()
		logMatchFailure(logger, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Fatal("encoding response", zap.Error(err))
	}
}

// logMatchFailure exits with a hint that depends on the kind of failure.
func logMatchFailure(logger *zap.Logger, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		logger.Fatal("invalid request", zap.Strings("problems", validationProblems(verr)))
	case errors.Is(err, profiles.ErrNotFound):
		logger.Fatal("unknown requester", zap.Error(err),
			zap.String("hint", fmt.Sprintf("check the ids in the profiles file or run '%s seed'", app)))
	default:
		logger.Fatal("matching failed", zap.Error(err))
	}
}

func validationProblems(verr *validation.RequestValidationError) []string {
	out := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, f.Error())
	}
	return out
}
