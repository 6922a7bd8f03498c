package filtering

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

// toggle carries the enable/disable state shared by every step.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// tagFilter keeps candidates that share at least one tag with the wanted set.
type tagFilter struct {
	toggle
	name   string
	wanted []string
	tags   func(profiles.Facets) []string
}

// NewNiches keeps candidates with at least one of the given niche or category tags.
func NewNiches(niches []string) Filter {
	return &tagFilter{name: "niches", wanted: niches, tags: func(f profiles.Facets) []string { return f.Niches }}
}

// NewGeography keeps candidates whose audience or target geography overlaps geo.
func NewGeography(geo []string) Filter {
	return &tagFilter{name: "geography", wanted: geo, tags: func(f profiles.Facets) []string { return f.Geography }}
}

// NewPlatforms keeps candidates present on at least one of the given platforms.
func NewPlatforms(platforms []string) Filter {
	return &tagFilter{name: "platforms", wanted: platforms, tags: func(f profiles.Facets) []string { return f.Platforms }}
}

func (f *tagFilter) Name() string { return f.name }

func (f *tagFilter) Validate() error {
	if len(normalizeSet(f.wanted)) == 0 {
		return errors.New("at least one non-empty value is required")
	}
	return nil
}

func (f *tagFilter) Apply(_ context.Context, pool *profiles.Pool) (*profiles.Pool, Step, error) {
	initial := pool.Len()
	wanted := normalizeSet(f.wanted)

	dropped := pool.Keep(func(p profiles.Profile) bool {
		for _, tag := range f.tags(p.Facets()) {
			if _, ok := wanted[normalize(tag)]; ok {
				return true
			}
		}
		return false
	})

	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

func (f *tagFilter) Status() Status {
	return Status{
		Name:    f.name,
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"values": strings.Join(f.wanted, ",")},
	}
}

type maxPriceFilter struct {
	toggle
	ceiling float64
}

// NewMaxPrice keeps creators charging at most ceiling per post and campaigns
// paying at most ceiling per creator.
func NewMaxPrice(ceiling float64) Filter {
	return &maxPriceFilter{ceiling: ceiling}
}

func (f *maxPriceFilter) Name() string { return "max_price" }

func (f *maxPriceFilter) Validate() error {
	if f.ceiling < 0 {
		return errors.New("max price must not be negative")
	}
	return nil
}

func (f *maxPriceFilter) Apply(_ context.Context, pool *profiles.Pool) (*profiles.Pool, Step, error) {
	initial := pool.Len()
	dropped := pool.Keep(func(p profiles.Profile) bool {
		return p.Facets().Price <= f.ceiling
	})
	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

func (f *maxPriceFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"ceiling": strconv.FormatFloat(f.ceiling, 'f', -1, 64)},
	}
}

type minEngagementFilter struct {
	toggle
	minimum float64
}

// NewMinEngagement keeps creators whose engagement rate is at least minimum.
// Campaigns carry no engagement rate and pass through untouched.
func NewMinEngagement(minimum float64) Filter {
	return &minEngagementFilter{minimum: minimum}
}

func (f *minEngagementFilter) Name() string { return "min_engagement" }

func (f *minEngagementFilter) Validate() error {
	if f.minimum < 0 || f.minimum > 100 {
		return errors.New("min engagement must be within 0..100")
	}
	return nil
}

func (f *minEngagementFilter) Apply(_ context.Context, pool *profiles.Pool) (*profiles.Pool, Step, error) {
	initial := pool.Len()
	dropped := pool.Keep(func(p profiles.Profile) bool {
		facets := p.Facets()
		if !facets.HasEngagement {
			return true
		}
		return facets.Engagement >= f.minimum
	})
	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

func (f *minEngagementFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"minimum": strconv.FormatFloat(f.minimum, 'f', -1, 64)},
	}
}

type seenFilter struct {
	toggle
	ids []string
}

// NewSeen removes candidates the requester was already served.
func NewSeen(ids []string) Filter {
	return &seenFilter{ids: ids}
}

func (f *seenFilter) Name() string { return "seen" }

func (f *seenFilter) Validate() error { return nil }

func (f *seenFilter) Apply(_ context.Context, pool *profiles.Pool) (*profiles.Pool, Step, error) {
	initial := pool.Len()
	dropped := pool.Exclude(f.ids)
	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

func (f *seenFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"excluded": strconv.Itoa(len(f.ids))},
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}
