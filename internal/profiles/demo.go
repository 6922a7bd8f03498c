package profiles

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

var (
	demoCities = []string{
		"Mumbai", "Delhi", "Bangalore", "Hyderabad", "Chennai", "Kolkata", "Pune", "Ahmedabad",
		"Jaipur", "Surat", "Lucknow", "Kanpur", "Nagpur", "Indore", "Thane", "Bhopal",
		"Visakhapatnam", "Patna", "Vadodara", "Ghaziabad", "Ludhiana", "Agra", "Nashik", "Coimbatore",
	}
	demoNiches = []string{
		"Fashion", "Beauty", "Fitness", "Food", "Travel",
		"Technology", "Gaming", "Lifestyle", "Health", "Entertainment",
	}
	demoPlatforms = []string{"Instagram", "YouTube", "TikTok", "Twitter"}
	demoNames     = []string{
		"Aarushi Mehta", "Rohan Sharma", "Priya Patel", "Arjun Singh", "Ananya Desai",
		"Karan Gupta", "Sneha Reddy", "Vikram Rao", "Diya Kumar", "Aditya Joshi",
		"Riya Iyer", "Siddharth Nair", "Kavya Menon", "Rahul Agarwal", "Ishita Verma",
		"Nikhil Kapoor", "Pooja Malhotra", "Amit Chopra", "Neha Sinha", "Raj Kohli",
	}
	demoBrands = []string{
		"GlowVerve", "FitHub India", "StyleCraft", "TechNova", "FoodieBox",
		"TravelMate", "BeautyBloom", "GameZone", "WellnessFirst", "UrbanThreads",
		"GadgetGuru", "TasteBuds", "FashionFwd", "ActiveLife", "SkincareStudio",
	}
)

// Demo generates a reproducible set of creators and campaigns for local runs.
// The same seed always yields the same document.
func Demo(seed uint64, creators, campaigns int) *Document {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	doc := &Document{
		Creators:  make([]*Creator, 0, creators),
		Campaigns: make([]*Campaign, 0, campaigns),
	}
	for i := range creators {
		doc.Creators = append(doc.Creators, demoCreator(rng, i, creators))
	}
	for i := range campaigns {
		doc.Campaigns = append(doc.Campaigns, demoCampaign(rng, i, campaigns))
	}
	return doc
}

func demoCreator(rng *rand.Rand, i, total int) *Creator {
	primary := demoNiches[i%len(demoNiches)]
	secondary := demoNiches[(i+3)%len(demoNiches)]
	city := demoCities[i%len(demoCities)]

	bracket := "macro"
	var followers int64
	switch {
	case i < total*3/10:
		bracket = "micro"
		followers = rng.Int64N(50_000) + 10_000
	case i < total*7/10:
		bracket = "mid"
		followers = rng.Int64N(200_000) + 60_000
	default:
		followers = rng.Int64N(700_000) + 300_000
	}

	engagement := round1(rng.Float64()*5 + 2)

	name := demoNames[i%len(demoNames)]
	if i >= len(demoNames) {
		name = fmt.Sprintf("%s %d", name, i/len(demoNames))
	}

	platforms := []string{demoPlatforms[i%len(demoPlatforms)]}
	if rng.Float64() > 0.5 {
		platforms = append(platforms, demoPlatforms[(i+1)%len(demoPlatforms)])
	}

	var ages []string
	switch i % 3 {
	case 0:
		ages = []string{"18-24", "25-34"}
	case 1:
		ages = []string{"25-34", "35-44"}
	default:
		ages = []string{"18-24"}
	}

	return &Creator{
		ID:        fmt.Sprintf("inf-%d", i+1),
		Handle:    "@" + strings.ReplaceAll(strings.ToLower(name), " ", "_"),
		Name:      name,
		Platforms: platforms,
		Niches:    []string{primary, secondary},
		AudienceGeo: []string{
			city,
			demoCities[(i+5)%len(demoCities)],
		},
		AudienceAge: ages,
		AudienceGender: GenderMix{
			Male:   float64(rng.IntN(40) + 30),
			Female: float64(rng.IntN(40) + 30),
			Other:  2,
		},
		Followers:       followers,
		AvgViews:        int64(float64(followers) * engagement / 100),
		EngagementRate:  engagement,
		ContentQuality:  round1(rng.Float64()*1.5 + 3.5),
		BrandSafety:     round1(rng.Float64() + 4),
		PricePerPost:    math.Floor(float64(followers)*0.05 + rng.Float64()*5000),
		Available:       rng.Float64() > 0.3,
		PastBrands:      append([]string(nil), demoBrands[:rng.IntN(3)+1]...),
		FraudRisk:       math.Round(rng.Float64()*0.1*100) / 100,
		Avatar:          fmt.Sprintf("https://picsum.photos/seed/inf%d/640/800", i+1),
		Bio:             fmt.Sprintf("%s creator from %s. %.1f%% engagement rate with %dk followers.", primary, city, engagement, followers/1000),
		FollowerBracket: bracket,
	}
}

func demoCampaign(rng *rand.Rand, i, total int) *Campaign {
	category := demoNiches[i%len(demoNiches)]
	city := demoCities[i%len(demoCities)]

	var (
		bracket      string
		budget       float64
		maxPrice     float64
		minFollowers int64
	)
	switch {
	case i < total/3:
		bracket = "small"
		budget = float64(rng.IntN(150_000) + 50_000)
		maxPrice = float64(rng.IntN(15_000) + 5_000)
		minFollowers = 10_000
	case i < total*3/4:
		bracket = "medium"
		budget = float64(rng.IntN(350_000) + 200_000)
		maxPrice = float64(rng.IntN(30_000) + 20_000)
		minFollowers = 50_000
	default:
		bracket = "large"
		budget = float64(rng.IntN(500_000) + 550_000)
		maxPrice = float64(rng.IntN(70_000) + 50_000)
		minFollowers = 250_000
	}

	brand := demoBrands[i%len(demoBrands)]
	if i >= len(demoBrands) {
		brand = fmt.Sprintf("%s %d", brand, i/len(demoBrands))
	}

	ages := []string{"25-34", "35-44"}
	if i%2 == 0 {
		ages = []string{"18-24", "25-34"}
	}

	timelines := []string{"2 weeks", "1 month", "3 weeks"}

	return &Campaign{
		ID:         fmt.Sprintf("brand-%d", i+1),
		BrandName:  brand,
		Categories: []string{category, demoNiches[(i+2)%len(demoNiches)]},
		TargetGeo: []string{
			city,
			demoCities[(i+7)%len(demoCities)],
			demoCities[(i+13)%len(demoCities)],
		},
		TargetAge:          ages,
		TargetGender:       GenderMix{Male: 50, Female: 48, Other: 2},
		MinFollowers:       minFollowers,
		MinEngagement:      round1(rng.Float64()*2 + 2),
		MaxPrice:           maxPrice,
		CreativesNeeded:    rng.IntN(5) + 2,
		Timeline:           timelines[i%len(timelines)],
		BrandSafetyMin:     4,
		PreferredPlatforms: []string{demoPlatforms[i%len(demoPlatforms)]},
		Budget:             budget,
		Logo:               fmt.Sprintf("https://picsum.photos/seed/brand%d/400/400", i+1),
		Description:        fmt.Sprintf("%s campaign targeting %s audience. Budget: %.1fL monthly.", category, city, budget/100_000),
		BudgetBracket:      bracket,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
