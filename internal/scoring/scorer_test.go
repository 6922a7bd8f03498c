package scoring

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/spigell/cloutcash-matcher/internal/interactions"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

func newScorer(t *testing.T) *Scorer {
	t.Helper()

	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	return s
}

func creator(id string, mutate func(*profiles.Creator)) *profiles.Creator {
	c := &profiles.Creator{
		ID:             id,
		Handle:         "@" + id,
		Platforms:      []string{"Instagram"},
		Niches:         []string{"Beauty"},
		AudienceGeo:    []string{"Mumbai"},
		Followers:      50000,
		EngagementRate: 5,
		ContentQuality: 4,
		BrandSafety:    4,
		PricePerPost:   8000,
		Available:      true,
	}
	if mutate != nil {
		mutate(c)
	}
	return c
}

func campaign() *profiles.Campaign {
	return &profiles.Campaign{
		ID:                 "camp-1",
		BrandName:          "Glow Labs",
		Categories:         []string{"beauty"},
		TargetGeo:          []string{"Mumbai"},
		MinFollowers:       10000,
		MinEngagement:      5,
		MaxPrice:           10000,
		BrandSafetyMin:     3,
		PreferredPlatforms: []string{"Instagram"},
	}
}

func TestEngagementScenario(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	strong := creator("strong", func(c *profiles.Creator) { c.EngagementRate = 6 })
	weak := creator("weak", func(c *profiles.Creator) { c.EngagementRate = 2 })

	a, err := s.Score(campaign(), strong, History{})
	if err != nil {
		t.Fatalf("score strong: %v", err)
	}
	b, err := s.Score(campaign(), weak, History{})
	if err != nil {
		t.Fatalf("score weak: %v", err)
	}

	if a.Breakdown[Niche] != 1 || a.Breakdown[Engagement] != 1 {
		t.Fatalf("expected full niche and engagement fit, got %v", a.Breakdown)
	}
	if b.Breakdown[Engagement] >= 1 {
		t.Fatalf("expected degraded engagement, got %v", b.Breakdown[Engagement])
	}
	if a.Score <= b.Score {
		t.Fatalf("expected %v > %v", a.Score, b.Score)
	}
	if a.Rationale[0] != "Niche match: beauty" {
		t.Fatalf("expected niche to lead the rationale, got %v", a.Rationale)
	}
}

func TestScoreBoundsAndDeterminism(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	candidates := []*profiles.Creator{
		creator("a", nil),
		creator("b", func(c *profiles.Creator) { c.FraudRisk = 1 }),
		creator("c", func(c *profiles.Creator) { c.Niches = nil; c.AudienceGeo = nil; c.Platforms = nil }),
		creator("d", func(c *profiles.Creator) { c.PricePerPost = 90000; c.Followers = 0 }),
		creator("e", func(c *profiles.Creator) { c.BrandSafety = 1 }),
	}
	history := NewHistory([]interactions.Interaction{
		{UserID: "camp-1", TargetID: "x", Type: interactions.Superlike},
	}, func(string) (profiles.Profile, bool) { return creator("x", nil), true })

	for _, c := range candidates {
		first, err := s.Score(campaign(), c, history)
		if err != nil {
			t.Fatalf("%s: %v", c.ID, err)
		}
		if first.Score < 0 || first.Score > 1 {
			t.Fatalf("%s: score %v out of bounds", c.ID, first.Score)
		}
		if first.Score > 0 && len(first.Rationale) == 0 {
			t.Fatalf("%s: positive score needs a rationale", c.ID)
		}

		second, _ := s.Score(campaign(), c, history)
		if first.Score != second.Score || !slices.Equal(first.Rationale, second.Rationale) {
			t.Fatalf("%s: scoring is not deterministic", c.ID)
		}
	}
}

func TestNeutralSubScores(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	bare := creator("bare", func(c *profiles.Creator) {
		c.Niches = nil
		c.AudienceGeo = nil
		c.Platforms = nil
	})

	res, err := s.Score(campaign(), bare, History{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for _, name := range []string{Niche, Geography, Platform, AudienceAge, GenderMix} {
		if res.Breakdown[name] != neutral {
			t.Fatalf("%s: expected neutral, got %v", name, res.Breakdown[name])
		}
	}
}

func TestDisjointOverlapIsZero(t *testing.T) {
	t.Parallel()

	if v := iou([]string{"Mumbai"}, []string{"Delhi"}); v != 0 {
		t.Fatalf("expected 0, got %v", v)
	}
	if v := iou(nil, nil); v != 0 {
		t.Fatalf("empty union must be 0, got %v", v)
	}
	if v := iou([]string{"Delhi", "Pune"}, []string{"delhi"}); v != 0.5 {
		t.Fatalf("expected 0.5, got %v", v)
	}
}

func TestBrandSafetyFloor(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	res, err := s.Score(campaign(), creator("risky", func(c *profiles.Creator) { c.BrandSafety = 2 }), History{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Breakdown[BrandSafety] != 0 {
		t.Fatalf("expected brand safety 0 below the floor, got %v", res.Breakdown[BrandSafety])
	}
}

func TestExclusionGate(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	tests := []struct {
		name      string
		exclusion string
		mutate    func(*profiles.Creator)
	}{
		{name: "by id", exclusion: "gated"},
		{name: "by handle", exclusion: "@GATED"},
		{name: "by past brand", exclusion: "RivalCo", mutate: func(c *profiles.Creator) { c.PastBrands = []string{"rivalco"} }},
	}

	for _, tt := range tests {
		camp := campaign()
		camp.Exclusions = []string{tt.exclusion}

		res, err := s.Score(camp, creator("gated", tt.mutate), History{})
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !res.Gated || res.Score != 0 {
			t.Fatalf("%s: expected gated zero score, got %+v", tt.name, res)
		}
	}
}

func TestFraudPenaltyOnlyForCreatorCandidates(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	risky := creator("risky", func(c *profiles.Creator) { c.FraudRisk = 0.5 })
	clean := creator("clean", nil)

	a, _ := s.Score(campaign(), risky, History{})
	b, _ := s.Score(campaign(), clean, History{})
	if a.Score >= b.Score {
		t.Fatalf("fraud risk must suppress the score: %v vs %v", a.Score, b.Score)
	}

	// From a creator's point of view the campaign is the candidate.
	forward, _ := s.Score(risky, campaign(), History{})
	if _, ok := forward.Breakdown["fraud_factor"]; ok {
		t.Fatalf("fraud factor must not apply to campaign candidates")
	}
}

func TestHistoryModifiers(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	c := creator("c1", nil)
	base, _ := s.Score(campaign(), c, History{})

	passed := NewHistory([]interactions.Interaction{{TargetID: "c1", Type: interactions.Pass}}, nil)
	penalized, _ := s.Score(campaign(), c, passed)
	if diff := penalized.Score - base.Score*0.3; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected pass penalty, got %v from %v", penalized.Score, base.Score)
	}

	resolve := func(id string) (profiles.Profile, bool) {
		return creator(id, func(c *profiles.Creator) { c.Niches = []string{"beauty"} }), true
	}
	liked := NewHistory([]interactions.Interaction{{TargetID: "other", Type: interactions.Like}}, resolve)
	boosted, _ := s.Score(campaign(), creator("c2", func(c *profiles.Creator) { c.FraudRisk = 0.5 }), liked)
	plain, _ := s.Score(campaign(), creator("c2", func(c *profiles.Creator) { c.FraudRisk = 0.5 }), History{})
	if diff := boosted.Score - plain.Score - 0.05; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected like bonus of 0.05, got %v", boosted.Score-plain.Score)
	}
	if boosted.Rationale[len(boosted.Rationale)-1] != "Similar to profiles you liked" {
		t.Fatalf("expected trailing bonus line, got %v", boosted.Rationale)
	}

	// The most recent interaction with a target wins.
	changed := NewHistory([]interactions.Interaction{
		{TargetID: "c1", Type: interactions.Like},
		{TargetID: "c1", Type: interactions.Pass},
	}, resolve)
	if changed.Passed("c1") {
		t.Fatalf("a later like must override an earlier pass")
	}
}

func TestMalformedCandidate(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	_, err := s.Score(campaign(), creator("bad", func(c *profiles.Creator) { c.FraudRisk = 3 }), History{})
	if err == nil {
		t.Fatalf("expected validation error for malformed creator")
	}

	_, err = s.Score(campaign(), campaign(), History{})
	if !errors.Is(err, ErrUnsupportedPair) {
		t.Fatalf("expected ErrUnsupportedPair, got %v", err)
	}
}

func TestFallbackRationale(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Meaningful = 1
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	camp := campaign()
	camp.Categories = []string{"beauty", "fashion", "tech"}
	camp.PreferredPlatforms = []string{"Instagram", "YouTube"}
	partial := creator("c1", func(c *profiles.Creator) {
		c.AudienceGeo = []string{"Mumbai", "Delhi"}
		c.Followers = 5000
		c.EngagementRate = 4
	})

	res, err := s.Score(camp, partial, History{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Score <= 0 {
		t.Fatalf("expected a positive score, got %v", res.Score)
	}
	if !slices.Equal(res.Rationale, []string{fallbackRationale}) {
		t.Fatalf("expected fallback rationale, got %v", res.Rationale)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatalf("zero weights must be rejected")
	}

	cfg := DefaultConfig()
	cfg.Weights.Niche = -1
	if _, err := New(cfg); err == nil {
		t.Fatalf("negative weight must be rejected")
	}
}

func TestNicheShareUsesRequesterTags(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	broad := creator("broad", func(c *profiles.Creator) { c.Niches = []string{"Beauty", "Fashion", "Travel"} })
	narrow := campaign()
	wide := campaign()
	wide.ID = "camp-2"
	wide.Categories = []string{"Travel", "beauty", "FASHION"}

	cases := []struct {
		name      string
		requester profiles.Profile
		candidate profiles.Profile
		want      float64
	}{
		{name: "creator requester, partial coverage", requester: broad, candidate: narrow, want: 1.0 / 3},
		{name: "creator requester, full coverage", requester: broad, candidate: wide, want: 1},
		{name: "brand requester", requester: narrow, candidate: broad, want: 1},
	}

	for _, tc := range cases {
		res, err := s.Score(tc.requester, tc.candidate, History{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got := res.Breakdown[Niche]; math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: expected niche %.4f, got %.4f", tc.name, tc.want, got)
		}
	}

	partial, _ := s.Score(broad, narrow, History{})
	full, _ := s.Score(broad, wide, History{})
	if partial.Score >= full.Score {
		t.Fatalf("full niche coverage must outrank partial: %.4f vs %.4f", full.Score, partial.Score)
	}
}
