package gemini

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/ai"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
	"github.com/spigell/cloutcash-matcher/internal/utils"
)

//go:embed prompt.md
var systemPrompt string

const (
	defaultMaxLogLength     = 200
	defaultTone             = "Friendly"
	maxUserInstructionRunes = 300
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// PitchWriter drafts outreach notes with Gemini.
type PitchWriter struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.PitchWriter = (*PitchWriter)(nil)

func NewPitchWriter(generator contentGenerator, maxLogLength int, logger *zap.Logger) *PitchWriter {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PitchWriter{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

type pitchPayload struct {
	Brand struct {
		Name        string   `json:"name"`
		Description string   `json:"description,omitempty"`
		Categories  []string `json:"categories,omitempty"`
		Timeline    string   `json:"timeline,omitempty"`
		Platforms   []string `json:"platforms,omitempty"`
	} `json:"brand"`
	Creator struct {
		Name      string   `json:"name,omitempty"`
		Handle    string   `json:"handle"`
		Niches    []string `json:"niches,omitempty"`
		Platforms []string `json:"platforms,omitempty"`
	} `json:"creator"`
	Reasons      []string `json:"reasons"`
	Tone         string   `json:"tone"`
	Instructions []string `json:"instructions"`
}

func (w *PitchWriter) Draft(ctx context.Context, campaign *profiles.Campaign, creator *profiles.Creator, rationale []string, opts ai.PitchOptions) (*ai.Pitch, error) {
	if campaign == nil {
		return nil, errors.New("campaign is required")
	}
	if creator == nil {
		return nil, errors.New("creator is required")
	}

	message, err := buildMessage(campaign, creator, rationale, opts)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("gemini pitch request",
		zap.String("campaign_id", campaign.ID),
		zap.String("creator_id", creator.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.Preview(message, w.maxLogLen)),
	)

	raw, err := w.generator.GenerateContent(ctx, systemPrompt, message)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("gemini pitch response",
		zap.String("campaign_id", campaign.ID),
		zap.String("creator_id", creator.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.Preview(raw, w.maxLogLen)),
	)

	pitch, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	pitch.Raw = raw
	return pitch, nil
}

func buildMessage(campaign *profiles.Campaign, creator *profiles.Creator, rationale []string, opts ai.PitchOptions) (string, error) {
	var p pitchPayload
	p.Brand.Name = campaign.BrandName
	p.Brand.Description = campaign.Description
	p.Brand.Categories = campaign.Categories
	p.Brand.Timeline = campaign.Timeline
	p.Brand.Platforms = campaign.PreferredPlatforms
	p.Creator.Name = creator.Name
	p.Creator.Handle = creator.Handle
	p.Creator.Niches = creator.Niches
	p.Creator.Platforms = creator.Platforms
	p.Reasons = rationale
	if p.Reasons == nil {
		p.Reasons = []string{}
	}

	p.Tone = sanitizeLine(opts.Tone)
	if p.Tone == "" {
		p.Tone = defaultTone
	}
	p.Instructions = sanitizeInstructions(opts.UserInstructions)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal pitch payload: %w", err)
	}
	return string(data), nil
}

// sanitizeLine collapses whitespace and defuses bracketed role markers.
func sanitizeLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}

// sanitizeInstructions keeps one entry per non-empty line, capped in total length.
func sanitizeInstructions(s string) []string {
	lines := []string{}
	budget := maxUserInstructionRunes
	for _, line := range strings.Split(s, "\n") {
		line = sanitizeLine(line)
		if line == "" || budget <= 0 {
			continue
		}
		if runes := []rune(line); len(runes) > budget {
			line = string(runes[:budget])
		}
		budget -= utf8.RuneCountInString(line)
		lines = append(lines, line)
	}
	return lines
}

func parseResponse(raw string) (*ai.Pitch, error) {
	var pitch ai.Pitch
	if err := json.Unmarshal([]byte(extractJSON(raw)), &pitch); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	pitch.Subject = strings.TrimSpace(pitch.Subject)
	pitch.Message = strings.TrimSpace(pitch.Message)
	if pitch.Message == "" {
		return nil, errors.New("gemini response has no message")
	}
	return &pitch, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
