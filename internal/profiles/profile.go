package profiles

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/cloutcash-matcher/internal/validation"
)

// ErrNotFound is returned when a profile does not exist or has the wrong kind.
var ErrNotFound = errors.New("profile not found")

// Role is the side of the marketplace a requester acts for.
type Role string

const (
	RoleBrand   Role = "brand"
	RoleCreator Role = "creator"
)

// Kind identifies a concrete profile type.
type Kind string

const (
	KindCreator  Kind = "creator"
	KindCampaign Kind = "campaign"
)

// CandidateKind returns the kind of profiles a requester with this role is matched against.
func (r Role) CandidateKind() Kind {
	if r == RoleCreator {
		return KindCampaign
	}
	return KindCreator
}

// RequesterKind returns the kind of profile that represents a requester with this role.
func (r Role) RequesterKind() Kind {
	if r == RoleCreator {
		return KindCreator
	}
	return KindCampaign
}

// ParseRole converts a user supplied string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleBrand:
		return RoleBrand, nil
	case RoleCreator:
		return RoleCreator, nil
	default:
		return "", fmt.Errorf("unknown role %q: expected brand or creator", s)
	}
}

// Profile is implemented by *Creator and *Campaign.
type Profile interface {
	Kind() Kind
	ProfileID() string
	Title() string
	Facets() Facets
	Validate() error
}

// Facets are the attributes hard filters look at, normalized across kinds.
type Facets struct {
	Niches    []string
	Geography []string
	Platforms []string
	// Price is the creator's price per post or the campaign's max price per creator.
	Price float64
	// Engagement is only meaningful when HasEngagement is set.
	Engagement    float64
	HasEngagement bool
}

// GenderMix is an audience split in percent.
type GenderMix struct {
	Male   float64 `json:"male" yaml:"male" mapstructure:"male" validate:"gte=0,lte=100"`
	Female float64 `json:"female" yaml:"female" mapstructure:"female" validate:"gte=0,lte=100"`
	Other  float64 `json:"other" yaml:"other" mapstructure:"other" validate:"gte=0,lte=100"`
}

// IsZero reports whether the mix carries no data.
func (g GenderMix) IsZero() bool {
	return g.Male == 0 && g.Female == 0 && g.Other == 0
}

// Creator is a content creator that can be matched with campaigns.
type Creator struct {
	ID              string    `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Handle          string    `json:"handle" yaml:"handle" mapstructure:"handle"`
	Name            string    `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Platforms       []string  `json:"platforms" yaml:"platforms" mapstructure:"platforms"`
	Niches          []string  `json:"niches" yaml:"niches" mapstructure:"niches"`
	AudienceGeo     []string  `json:"audienceGeo" yaml:"audienceGeo" mapstructure:"audienceGeo"`
	AudienceAge     []string  `json:"audienceAge" yaml:"audienceAge" mapstructure:"audienceAge"`
	AudienceGender  GenderMix `json:"audienceGenderMix" yaml:"audienceGenderMix" mapstructure:"audienceGenderMix"`
	Followers       int64     `json:"followers" yaml:"followers" mapstructure:"followers" validate:"gte=0"`
	AvgViews        int64     `json:"avgViews" yaml:"avgViews" mapstructure:"avgViews" validate:"gte=0"`
	EngagementRate  float64   `json:"engagementRate" yaml:"engagementRate" mapstructure:"engagementRate" validate:"gte=0,lte=100"`
	ContentQuality  float64   `json:"contentQuality" yaml:"contentQuality" mapstructure:"contentQuality" validate:"gte=1,lte=5"`
	BrandSafety     float64   `json:"brandSafety" yaml:"brandSafety" mapstructure:"brandSafety" validate:"gte=1,lte=5"`
	PricePerPost    float64   `json:"pricePerPost" yaml:"pricePerPost" mapstructure:"pricePerPost" validate:"gte=0"`
	Available       bool      `json:"availability" yaml:"availability" mapstructure:"availability"`
	PastBrands      []string  `json:"pastBrands" yaml:"pastBrands" mapstructure:"pastBrands"`
	FraudRisk       float64   `json:"fraudRisk" yaml:"fraudRisk" mapstructure:"fraudRisk" validate:"gte=0,lte=1"`
	Avatar          string    `json:"avatar,omitempty" yaml:"avatar,omitempty" mapstructure:"avatar"`
	Bio             string    `json:"bio,omitempty" yaml:"bio,omitempty" mapstructure:"bio"`
	FollowerBracket string    `json:"followerBracket,omitempty" yaml:"followerBracket,omitempty" mapstructure:"followerBracket"`
}

func (c *Creator) Kind() Kind { return KindCreator }

func (c *Creator) ProfileID() string { return c.ID }

// Title returns the display name, falling back to the handle.
func (c *Creator) Title() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Handle
}

func (c *Creator) Facets() Facets {
	return Facets{
		Niches:        c.Niches,
		Geography:     c.AudienceGeo,
		Platforms:     c.Platforms,
		Price:         c.PricePerPost,
		Engagement:    c.EngagementRate,
		HasEngagement: true,
	}
}

func (c *Creator) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("creator %q: %w", c.ID, err)
	}
	return nil
}

// Campaign is a brand's request for creators.
type Campaign struct {
	ID                 string    `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	BrandName          string    `json:"brandName" yaml:"brandName" mapstructure:"brandName"`
	Categories         []string  `json:"categories" yaml:"categories" mapstructure:"categories"`
	TargetGeo          []string  `json:"targetGeo" yaml:"targetGeo" mapstructure:"targetGeo"`
	TargetAge          []string  `json:"targetAge" yaml:"targetAge" mapstructure:"targetAge"`
	TargetGender       GenderMix `json:"targetGenderMix" yaml:"targetGenderMix" mapstructure:"targetGenderMix"`
	MinFollowers       int64     `json:"minFollowers" yaml:"minFollowers" mapstructure:"minFollowers" validate:"gte=0"`
	MinEngagement      float64   `json:"minEngagement" yaml:"minEngagement" mapstructure:"minEngagement" validate:"gte=0,lte=100"`
	MaxPrice           float64   `json:"maxPrice" yaml:"maxPrice" mapstructure:"maxPrice" validate:"gte=0"`
	CreativesNeeded    int       `json:"creativesNeeded" yaml:"creativesNeeded" mapstructure:"creativesNeeded" validate:"gte=0"`
	Timeline           string    `json:"timeline" yaml:"timeline" mapstructure:"timeline"`
	BrandSafetyMin     float64   `json:"brandSafetyMin" yaml:"brandSafetyMin" mapstructure:"brandSafetyMin" validate:"gte=0,lte=5"`
	Exclusions         []string  `json:"exclusions" yaml:"exclusions" mapstructure:"exclusions"`
	PreferredPlatforms []string  `json:"preferredPlatforms" yaml:"preferredPlatforms" mapstructure:"preferredPlatforms"`
	Budget             float64   `json:"budgetCoins" yaml:"budgetCoins" mapstructure:"budgetCoins" validate:"gte=0"`
	Logo               string    `json:"logo,omitempty" yaml:"logo,omitempty" mapstructure:"logo"`
	Description        string    `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	BudgetBracket      string    `json:"budgetBracket,omitempty" yaml:"budgetBracket,omitempty" mapstructure:"budgetBracket"`
}

func (c *Campaign) Kind() Kind { return KindCampaign }

func (c *Campaign) ProfileID() string { return c.ID }

func (c *Campaign) Title() string { return c.BrandName }

func (c *Campaign) Facets() Facets {
	return Facets{
		Niches:    c.Categories,
		Geography: c.TargetGeo,
		Platforms: c.PreferredPlatforms,
		Price:     c.MaxPrice,
	}
}

func (c *Campaign) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("campaign %q: %w", c.ID, err)
	}
	return nil
}
