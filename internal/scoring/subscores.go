package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

const neutral = 0.5

// subScore is one normalized component of the final score. Line is the
// rationale text shown when the component contributes meaningfully.
type subScore struct {
	name  string
	value float64
	line  string
}

// computeSubScores evaluates the pair. requester decides which side's tags are
// the base of the niche share.
func computeSubScores(campaign *profiles.Campaign, creator *profiles.Creator, requester profiles.Kind) []subScore {
	niche := nicheScore(campaign.Categories, creator.Niches)
	if requester == profiles.KindCreator {
		niche = nicheScore(creator.Niches, campaign.Categories)
	}

	return []subScore{
		niche,
		geographyScore(campaign.TargetGeo, creator.AudienceGeo),
		budgetScore(campaign, creator),
		engagementScore(campaign.MinEngagement, creator.EngagementRate),
		brandSafetyScore(campaign.BrandSafetyMin, creator.BrandSafety),
		platformScore(campaign.PreferredPlatforms, creator.Platforms),
		audienceAgeScore(campaign.TargetAge, creator.AudienceAge),
		genderMixScore(campaign.TargetGender, creator.AudienceGender),
	}
}

// nicheScore is the share of the requester's tags found among the candidate's.
func nicheScore(wanted, offered []string) subScore {
	s := subScore{name: Niche, value: neutral}
	base := uniq(wanted)
	if len(base) == 0 || len(uniq(offered)) == 0 {
		return s
	}

	shared := intersect(wanted, offered)
	s.value = float64(len(shared)) / float64(len(base))
	s.line = "Niche match: " + strings.Join(shared, ", ")
	return s
}

func geographyScore(target, audience []string) subScore {
	s := subScore{name: Geography, value: neutral}
	if len(uniq(target)) == 0 || len(uniq(audience)) == 0 {
		return s
	}

	s.value = iou(target, audience)
	s.line = "Audience in " + strings.Join(intersect(target, audience), ", ")
	return s
}

// budgetScore averages how well the creator clears the follower minimum and
// fits under the campaign's price ceiling.
func budgetScore(campaign *profiles.Campaign, creator *profiles.Creator) subScore {
	followerFit := 1.0
	if campaign.MinFollowers > 0 && creator.Followers < campaign.MinFollowers {
		followerFit = float64(creator.Followers) / float64(campaign.MinFollowers)
	}

	priceFit := 1.0
	if campaign.MaxPrice > 0 && creator.PricePerPost > campaign.MaxPrice {
		priceFit = math.Max(0, 1-(creator.PricePerPost-campaign.MaxPrice)/campaign.MaxPrice)
	}

	line := "Within budget range"
	if priceFit == 1 && followerFit < 1 {
		line = "Within budget, smaller audience"
	} else if priceFit < 1 {
		line = "Close to budget range"
	}

	return subScore{name: Budget, value: (followerFit + priceFit) / 2, line: line}
}

func engagementScore(minimum, rate float64) subScore {
	s := subScore{name: Engagement, value: 1, line: fmt.Sprintf("Engagement rate %.1f%%", rate)}
	if minimum > 0 && rate < minimum {
		s.value = rate / minimum
	}
	return s
}

// brandSafetyScore folds the campaign's safety floor into the score as a hard zero.
func brandSafetyScore(minimum, safety float64) subScore {
	s := subScore{name: BrandSafety, line: fmt.Sprintf("Brand safety %.1f/5", safety)}
	if safety < minimum {
		return s
	}
	s.value = clamp(safety / 5)
	return s
}

// platformScore is the share of preferred platforms the creator is active on.
func platformScore(preferred, platforms []string) subScore {
	s := subScore{name: Platform, value: neutral}
	wanted := uniq(preferred)
	if len(wanted) == 0 || len(uniq(platforms)) == 0 {
		return s
	}

	shared := intersect(preferred, platforms)
	s.value = float64(len(shared)) / float64(len(wanted))
	s.line = "Active on " + strings.Join(shared, ", ")
	return s
}

func audienceAgeScore(target, audience []string) subScore {
	s := subScore{name: AudienceAge, value: neutral}
	if len(uniq(target)) == 0 || len(uniq(audience)) == 0 {
		return s
	}

	s.value = iou(target, audience)
	s.line = "Audience age " + strings.Join(intersect(target, audience), ", ")
	return s
}

func genderMixScore(target, audience profiles.GenderMix) subScore {
	s := subScore{name: GenderMix, value: neutral}
	if target.IsZero() || audience.IsZero() {
		return s
	}

	distance := math.Abs(target.Male-audience.Male) +
		math.Abs(target.Female-audience.Female) +
		math.Abs(target.Other-audience.Other)
	s.value = clamp(1 - distance/200)
	s.line = "Audience gender mix aligned"
	return s
}

// iou is intersection over union of two tag lists. An empty union is 0.
func iou(a, b []string) float64 {
	union := uniq(append(append([]string(nil), a...), b...))
	if len(union) == 0 {
		return 0
	}
	return float64(len(intersect(a, b))) / float64(len(union))
}

// intersect returns the tags of a that also appear in b, case-insensitively,
// in a's order and spelling.
func intersect(a, b []string) []string {
	lookup := make(map[string]struct{}, len(b))
	for _, v := range b {
		lookup[normalize(v)] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		key := normalize(v)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := lookup[key]; ok {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

func uniq(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := normalize(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
