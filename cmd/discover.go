package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/ai"
	"github.com/spigell/cloutcash-matcher/internal/interactions"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
	"github.com/spigell/cloutcash-matcher/internal/ranking"
)

const (
	PromptNextPage      = "Next page"
	PromptReportByNiche = "Report by niche"
	PromptDumpToFile    = "Dump candidates to file"
	PromptQuit          = "Quit"
	PromptBack          = "back"
	PromptLike          = "Like"
	PromptSuperlike     = "Superlike"
	PromptPass          = "Pass"
	PromptDraftPitch    = "Draft pitch"
)

var errExit = errors.New("exit requested")

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Page through matches interactively and like, pass or superlike them",
	Run: func(cmd *cobra.Command, _ []string) {
		discover(cmd)
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	addRequestFlags(discoverCmd)
	discoverCmd.Flags().String("tone", "", "tone of drafted pitches (ai.enabled only)")
}

// session is the state of one interactive listing.
type session struct {
	app       *application
	logger    *zap.Logger
	pitches   ai.PitchWriter
	tone      string
	requester profiles.Profile
	page      []ranking.ScoredCandidate
}

func discover(cmd *cobra.Command) {
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

	pitches, err := newPitchWriter(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("pitch drafting disabled", zap.Error(err))
	}

	s := &session{app: a, logger: logger, pitches: pitches, tone: flagString(cmd, "tone")}
	if s.requester, err = a.catalog.Get(ctx, req.RequesterID); err != nil {
		a.Close()
		logMatchFailure(logger, err)
	}

	logger.Info("starting discovery", zap.String("requester", s.requester.Title()), zap.String("role", string(req.Role)))

	req.Cursor = 0
	for {
		resp, err := a.engine.Match(ctx, req)
		if err != nil {
			a.Close()
			logMatchFailure(logger, err)
		}
		if len(resp.Candidates) == 0 {
			logger.Info("exiting", zap.String("reason", "no more candidates"), zap.Int("cursor", resp.NextCursor))
			return
		}
		s.page = resp.Candidates
		req.Cursor = resp.NextCursor

		if err := s.browse(ctx); err != nil {
			if errors.Is(err, errExit) || errors.Is(err, promptui.ErrInterrupt) {
				return
			}
			a.Close()
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// browse shows the current page until the user asks for the next one.
func (s *session) browse(ctx context.Context) error {
	for {
		items := make([]string, 0, len(s.page)+4)
		for _, c := range s.page {
			items = append(items, candidateLabel(c))
		}
		items = append(items, PromptNextPage, PromptReportByNiche, PromptDumpToFile, PromptQuit)

		pagePrompt := promptui.Select{
			Label: "Choose a candidate and press ENTER",
			Items: items,
			Size:  12,
		}
		idx, action, err := pagePrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptNextPage:
			return nil
		case PromptQuit:
			s.logger.Info("exiting", zap.String("reason", "got quit from prompt"))
			return errExit
		case PromptReportByNiche:
			pretty, _ := json.MarshalIndent(s.pool().ReportByNiche(), "", "  ")
			s.logger.Info(string(pretty), zap.Int("candidates count", len(s.page)))
		case PromptDumpToFile:
			filename, err := s.pool().DumpToTmpFile()
			if err != nil {
				return fmt.Errorf("dump candidates to file: %w", err)
			}
			s.logger.Info("dumping candidates to file", zap.String("filename", filename))
		default:
			if err := s.act(ctx, s.page[idx]); err != nil {
				return err
			}
		}
	}
}

// act asks what to do with a single candidate.
func (s *session) act(ctx context.Context, c ranking.ScoredCandidate) error {
	for _, line := range c.Rationale {
		fmt.Printf("  - %s\n", line)
	}

	items := []string{PromptLike, PromptSuperlike, PromptPass}
	if s.pitches != nil {
		items = append(items, PromptDraftPitch)
	}
	actionPrompt := promptui.Select{
		Label: fmt.Sprintf("%s (%.2f)", c.Candidate.Title(), c.Score),
		Items: append(items, PromptBack),
	}

	_, action, err := actionPrompt.Run()
	if err != nil {
		return err
	}

	switch action {
	case PromptBack:
		return nil
	case PromptDraftPitch:
		return s.draftPitch(ctx, c)
	case PromptLike, PromptSuperlike, PromptPass:
		typ, err := interactions.ParseType(action)
		if err != nil {
			return err
		}
		matched, err := s.app.recorder.Record(ctx, interactions.Interaction{
			UserID:   s.requester.ProfileID(),
			TargetID: c.ID(),
			Type:     typ,
		})
		if err != nil {
			return err
		}
		if matched {
			s.logger.Info("it's a match!", zap.String("candidate", c.Candidate.Title()))
		}
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (s *session) draftPitch(ctx context.Context, c ranking.ScoredCandidate) error {
	campaign, creator, ok := pitchPair(s.requester, c.Candidate)
	if !ok {
		s.logger.Warn("pitches are drafted between a campaign and a creator only")
		return nil
	}

	instructionsPrompt := promptui.Prompt{Label: "Extra instructions (optional)"}
	instructions, err := instructionsPrompt.Run()
	if err != nil {
		return err
	}

	pitch, err := s.pitches.Draft(ctx, campaign, creator, c.Rationale, ai.PitchOptions{
		Tone:             s.tone,
		UserInstructions: instructions,
	})
	if err != nil {
		// Drafting is a convenience; the session goes on without it.
		s.logger.Warn("drafting pitch failed", zap.Error(err))
		return nil
	}

	fmt.Printf("\nSubject: %s\n\n%s\n\n", pitch.Subject, strings.TrimSpace(pitch.Message))
	return nil
}

func pitchPair(a, b profiles.Profile) (*profiles.Campaign, *profiles.Creator, bool) {
	if campaign, ok := a.(*profiles.Campaign); ok {
		creator, ok := b.(*profiles.Creator)
		return campaign, creator, ok
	}
	if campaign, ok := b.(*profiles.Campaign); ok {
		creator, ok := a.(*profiles.Creator)
		return campaign, creator, ok
	}
	return nil, nil, false
}

func (s *session) pool() *profiles.Pool {
	items := make([]profiles.Profile, 0, len(s.page))
	for _, c := range s.page {
		items = append(items, c.Candidate)
	}
	return profiles.NewPool(items)
}

func candidateLabel(c ranking.ScoredCandidate) string {
	reason := ""
	if len(c.Rationale) > 0 {
		reason = " | " + c.Rationale[0]
	}
	return fmt.Sprintf("%s %s (%.2f)%s", c.ID(), c.Candidate.Title(), c.Score, reason)
}
