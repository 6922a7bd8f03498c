package scoring

import (
	"errors"
	"fmt"

	"github.com/spigell/cloutcash-matcher/internal/validation"
)

// Sub-score names. The order of this list is the tie-break order of rationale lines.
const (
	Niche       = "niche"
	Geography   = "geography"
	Budget      = "budget"
	Engagement  = "engagement"
	BrandSafety = "brand_safety"
	Platform    = "platform"
	AudienceAge = "audience_age"
	GenderMix   = "gender_mix"
)

var subScoreOrder = []string{Niche, Geography, Budget, Engagement, BrandSafety, Platform, AudienceAge, GenderMix}

// Weights are the relative importance of each sub-score. A zero weight
// switches the sub-score off.
type Weights struct {
	Niche       float64 `mapstructure:"niche" yaml:"niche" validate:"gte=0"`
	Geography   float64 `mapstructure:"geography" yaml:"geography" validate:"gte=0"`
	Budget      float64 `mapstructure:"budget" yaml:"budget" validate:"gte=0"`
	Engagement  float64 `mapstructure:"engagement" yaml:"engagement" validate:"gte=0"`
	BrandSafety float64 `mapstructure:"brand-safety" yaml:"brand-safety" validate:"gte=0"`
	Platform    float64 `mapstructure:"platform" yaml:"platform" validate:"gte=0"`
	AudienceAge float64 `mapstructure:"audience-age" yaml:"audience-age" validate:"gte=0"`
	GenderMix   float64 `mapstructure:"gender-mix" yaml:"gender-mix" validate:"gte=0"`
}

func (w Weights) byName() map[string]float64 {
	return map[string]float64{
		Niche:       w.Niche,
		Geography:   w.Geography,
		Budget:      w.Budget,
		Engagement:  w.Engagement,
		BrandSafety: w.BrandSafety,
		Platform:    w.Platform,
		AudienceAge: w.AudienceAge,
		GenderMix:   w.GenderMix,
	}
}

func (w Weights) total() float64 {
	var sum float64
	for _, v := range w.byName() {
		sum += v
	}
	return sum
}

// Config holds every tunable of the scorer.
type Config struct {
	Weights Weights `mapstructure:"weights" yaml:"weights"`
	// PassPenalty multiplies the score of a candidate the requester passed on.
	PassPenalty float64 `mapstructure:"pass-penalty" yaml:"pass-penalty" validate:"gte=0,lte=1"`
	// LikeBonus and SuperlikeBonus are added when the candidate shares a niche
	// with something the requester liked before.
	LikeBonus      float64 `mapstructure:"like-bonus" yaml:"like-bonus" validate:"gte=0,lte=1"`
	SuperlikeBonus float64 `mapstructure:"superlike-bonus" yaml:"superlike-bonus" validate:"gte=0,lte=1"`
	// Meaningful is the lowest sub-score that earns a rationale line.
	Meaningful float64 `mapstructure:"meaningful" yaml:"meaningful" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the built-in weights and modifiers.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Niche:       3.0,
			Geography:   2.0,
			Budget:      2.0,
			Engagement:  1.5,
			BrandSafety: 1.5,
			Platform:    0.75,
			AudienceAge: 1.0,
			GenderMix:   0.5,
		},
		PassPenalty:    0.3,
		LikeBonus:      0.05,
		SuperlikeBonus: 0.10,
		Meaningful:     0.6,
	}
}

// Validate checks bounds and that at least one sub-score is weighted.
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}
	if c.Weights.total() <= 0 {
		return errors.New("scoring config: at least one weight must be positive")
	}
	return nil
}
