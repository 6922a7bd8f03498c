package filtering

import (
	"context"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

func ptr(v float64) *float64 { return &v }

func testPool() *profiles.Pool {
	return profiles.NewPool([]profiles.Profile{
		&profiles.Creator{ID: "c1", Niches: []string{"Beauty", "Fashion"}, AudienceGeo: []string{"Mumbai"}, Platforms: []string{"Instagram"}, PricePerPost: 8000, EngagementRate: 6},
		&profiles.Creator{ID: "c2", Niches: []string{"Tech"}, AudienceGeo: []string{"Delhi"}, Platforms: []string{"YouTube"}, PricePerPost: 20000, EngagementRate: 2},
		&profiles.Creator{ID: "c3", Niches: []string{"beauty"}, AudienceGeo: []string{"Delhi", "Pune"}, Platforms: []string{"instagram", "YouTube"}, PricePerPost: 12000, EngagementRate: 4.5},
		&profiles.Creator{ID: "c4", Niches: []string{"Food"}, AudienceGeo: []string{"Chennai"}, Platforms: []string{"Twitter"}, PricePerPost: 3000, EngagementRate: 9},
	})
}

func TestFromFiltersEmptyYieldsNoSteps(t *testing.T) {
	t.Parallel()

	if steps := FromFilters(MatchFilters{}); len(steps) != 0 {
		t.Fatalf("expected no steps, got %d", len(steps))
	}
}

func TestRunSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		filters MatchFilters
		want    []string
	}{
		{name: "no filters", filters: MatchFilters{}, want: []string{"c1", "c2", "c3", "c4"}},
		{name: "niches case insensitive", filters: MatchFilters{Niches: []string{"BEAUTY"}}, want: []string{"c1", "c3"}},
		{name: "geography", filters: MatchFilters{Geography: []string{"delhi"}}, want: []string{"c2", "c3"}},
		{name: "platforms", filters: MatchFilters{Platforms: []string{"YouTube", "Twitter"}}, want: []string{"c2", "c3", "c4"}},
		{name: "max price", filters: MatchFilters{MaxPrice: ptr(10000)}, want: []string{"c1", "c4"}},
		{name: "max budget alias", filters: MatchFilters{MaxBudget: ptr(12000)}, want: []string{"c1", "c3", "c4"}},
		{name: "max price wins over alias", filters: MatchFilters{MaxPrice: ptr(5000), MaxBudget: ptr(50000)}, want: []string{"c4"}},
		{name: "min engagement", filters: MatchFilters{MinEngagement: ptr(4.5)}, want: []string{"c1", "c3", "c4"}},
		{name: "combined", filters: MatchFilters{Niches: []string{"beauty"}, MaxPrice: ptr(10000)}, want: []string{"c1"}},
		{name: "nothing survives", filters: MatchFilters{Niches: []string{"travel"}}, want: []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool, reports, err := Run(context.Background(), nil, FromFilters(tt.filters), testPool())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if got := pool.IDs(); !slices.Equal(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if len(reports) != len(FromFilters(tt.filters)) {
				t.Fatalf("expected one report per active step, got %d", len(reports))
			}
			for _, r := range reports {
				if r.Initial-r.Dropped != r.Left {
					t.Fatalf("inconsistent report %+v", r)
				}
			}
		})
	}
}

func TestMaxPriceScenario(t *testing.T) {
	t.Parallel()

	build := func() *profiles.Pool {
		return profiles.NewPool([]profiles.Profile{
			&profiles.Creator{ID: "cheap", PricePerPost: 8000},
			&profiles.Creator{ID: "pricey", PricePerPost: 25000},
		})
	}

	low, _, _ := Run(context.Background(), nil, FromFilters(MatchFilters{MaxPrice: ptr(10000)}), build())
	if !slices.Equal(low.IDs(), []string{"cheap"}) {
		t.Fatalf("expected only cheap creator under 10000, got %v", low.IDs())
	}

	high, _, _ := Run(context.Background(), nil, FromFilters(MatchFilters{MaxPrice: ptr(50000)}), build())
	if !slices.Equal(high.IDs(), []string{"cheap", "pricey"}) {
		t.Fatalf("expected both creators under 50000, got %v", high.IDs())
	}
}

func TestMinEngagementPassesCampaigns(t *testing.T) {
	t.Parallel()

	pool := profiles.NewPool([]profiles.Profile{
		&profiles.Campaign{ID: "camp-1", MaxPrice: 5000},
	})

	out, _, err := Run(context.Background(), nil, FromFilters(MatchFilters{MinEngagement: ptr(50)}), pool)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 1 {
		t.Fatalf("campaign candidates must pass engagement filter")
	}
}

func TestSeenAndDisabledSteps(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	steps := []Filter{NewSeen([]string{"c2", "c4"}), NewNiches([]string{"food"})}
	DisableByName(steps, "niches", "testing")

	pool, reports, err := Run(context.Background(), zap.New(core), steps, testPool())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !slices.Equal(pool.IDs(), []string{"c1", "c3"}) {
		t.Fatalf("unexpected pool %v", pool.IDs())
	}
	if len(reports) != 1 || reports[0].Name != "seen" || reports[0].Dropped != 2 {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if logs.FilterMessage("filter disabled").Len() != 1 {
		t.Fatalf("expected disabled step to be logged")
	}

	statuses := Describe(steps)
	if statuses[1].Enabled || statuses[1].Reason != "testing" {
		t.Fatalf("unexpected status %+v", statuses[1])
	}
}

func TestRunRejectsInvalidStep(t *testing.T) {
	t.Parallel()

	tests := []Filter{
		NewMaxPrice(-1),
		NewMinEngagement(101),
		NewNiches([]string{"  "}),
	}

	for _, step := range tests {
		if _, _, err := Run(context.Background(), nil, []Filter{step}, testPool()); err == nil {
			t.Fatalf("%s: expected validation error", step.Name())
		}
	}
}
