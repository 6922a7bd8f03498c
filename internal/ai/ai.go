// Package ai defines the optional AI helpers used around matching. Nothing
// in here influences scores.
package ai

import (
	"context"

	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

// Pitch is a short outreach note from a brand to a creator.
type Pitch struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Raw     string `json:"-"`
}

// PitchOptions steer the tone of a drafted pitch.
type PitchOptions struct {
	Tone             string
	UserInstructions string
}

// PitchWriter drafts a pitch for a matched campaign and creator.
type PitchWriter interface {
	Draft(ctx context.Context, campaign *profiles.Campaign, creator *profiles.Creator, rationale []string, opts PitchOptions) (*Pitch, error)
}
