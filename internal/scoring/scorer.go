// Package scoring computes a compatibility score in [0,1] and a short
// rationale for a campaign and creator pair.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/spigell/cloutcash-matcher/internal/interactions"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

const fallbackRationale = "Partial profile match"

// ErrUnsupportedPair is returned when the requester and candidate are not a
// campaign and a creator.
var ErrUnsupportedPair = errors.New("scoring needs one campaign and one creator")

// Result is the outcome of scoring one candidate.
type Result struct {
	Score     float64
	Rationale []string
	Breakdown map[string]float64
	// Gated is set when the campaign excludes the creator. Gated results are
	// not ranked.
	Gated bool
}

// Scorer is safe for concurrent use.
type Scorer struct {
	cfg     Config
	weights map[string]float64
	total   float64
}

// New returns a Scorer for cfg.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg, weights: cfg.Weights.byName(), total: cfg.Weights.total()}, nil
}

// Config returns the configuration the scorer was built with.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score evaluates candidate for requester. Malformed candidates and panics
// raised while scoring are returned as errors.
func (s *Scorer) Score(requester, candidate profiles.Profile, history History) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("scoring panicked: %v", r)
		}
	}()

	if requester == nil || candidate == nil {
		return Result{}, ErrUnsupportedPair
	}

	if err := candidate.Validate(); err != nil {
		return Result{}, err
	}

	campaign, creator, err := pair(requester, candidate)
	if err != nil {
		return Result{}, err
	}

	if excluded(campaign, creator) {
		return Result{Gated: true, Breakdown: map[string]float64{}}, nil
	}

	subs := computeSubScores(campaign, creator, requester.Kind())
	breakdown := make(map[string]float64, len(subs)+2)

	var weighted float64
	for _, sub := range subs {
		breakdown[sub.name] = sub.value
		weighted += s.weights[sub.name] * sub.value
	}
	score := weighted / s.total

	if candidate.Kind() == profiles.KindCreator {
		factor := 1 - creator.FraudRisk
		breakdown["fraud_factor"] = factor
		score *= factor
	}

	var bonusLine string
	id := candidate.ProfileID()
	if history.Passed(id) {
		breakdown["pass_penalty"] = s.cfg.PassPenalty
		score *= s.cfg.PassPenalty
	} else {
		switch history.affinity(candidate.Facets().Niches) {
		case interactions.Superlike:
			breakdown["history_bonus"] = s.cfg.SuperlikeBonus
			score += s.cfg.SuperlikeBonus
			bonusLine = "Similar to a profile you superliked"
		case interactions.Like:
			breakdown["history_bonus"] = s.cfg.LikeBonus
			score += s.cfg.LikeBonus
			bonusLine = "Similar to profiles you liked"
		}
	}

	score = clamp(score)
	return Result{
		Score:     score,
		Rationale: s.rationale(subs, score, bonusLine),
		Breakdown: breakdown,
	}, nil
}

// rationale lists the meaningful sub-scores by weighted contribution.
func (s *Scorer) rationale(subs []subScore, score float64, bonusLine string) []string {
	rank := make(map[string]int, len(subScoreOrder))
	for i, name := range subScoreOrder {
		rank[name] = i
	}

	var picked []subScore
	for _, sub := range subs {
		if s.weights[sub.name] <= 0 || sub.line == "" {
			continue
		}
		if sub.value < s.cfg.Meaningful || sub.value == neutral {
			continue
		}
		picked = append(picked, sub)
	}

	sort.SliceStable(picked, func(i, j int) bool {
		ci := s.weights[picked[i].name] * picked[i].value
		cj := s.weights[picked[j].name] * picked[j].value
		if math.Abs(ci-cj) > 1e-12 {
			return ci > cj
		}
		return rank[picked[i].name] < rank[picked[j].name]
	})

	lines := make([]string, 0, len(picked)+1)
	for _, sub := range picked {
		lines = append(lines, sub.line)
	}
	if bonusLine != "" && score > 0 {
		lines = append(lines, bonusLine)
	}
	if len(lines) == 0 && score > 0 {
		lines = append(lines, fallbackRationale)
	}
	return lines
}

func pair(requester, candidate profiles.Profile) (*profiles.Campaign, *profiles.Creator, error) {
	switch r := requester.(type) {
	case *profiles.Campaign:
		if c, ok := candidate.(*profiles.Creator); ok {
			return r, c, nil
		}
	case *profiles.Creator:
		if c, ok := candidate.(*profiles.Campaign); ok {
			return c, r, nil
		}
	}
	return nil, nil, ErrUnsupportedPair
}

// excluded reports whether the campaign's exclusion list names the creator's
// id or handle, or a brand the creator worked with.
func excluded(campaign *profiles.Campaign, creator *profiles.Creator) bool {
	if len(campaign.Exclusions) == 0 {
		return false
	}

	names := append([]string{creator.ID, creator.Handle}, creator.PastBrands...)
	return len(intersect(campaign.Exclusions, names)) > 0
}
