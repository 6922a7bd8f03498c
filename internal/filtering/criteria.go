package filtering

// MatchFilters are optional hard constraints supplied with a match request.
// A nil or empty field imposes no constraint.
type MatchFilters struct {
	Niches    []string `json:"niches,omitempty" yaml:"niches,omitempty" mapstructure:"niches" validate:"omitempty,dive,required"`
	Geography []string `json:"geography,omitempty" yaml:"geography,omitempty" mapstructure:"geography" validate:"omitempty,dive,required"`
	Platforms []string `json:"platforms,omitempty" yaml:"platforms,omitempty" mapstructure:"platforms" validate:"omitempty,dive,required"`
	MaxPrice  *float64 `json:"maxPrice,omitempty" yaml:"maxPrice,omitempty" mapstructure:"maxPrice" validate:"omitempty,gte=0"`
	// MaxBudget is an alias of MaxPrice. MaxPrice wins when both are set.
	MaxBudget     *float64 `json:"maxBudget,omitempty" yaml:"maxBudget,omitempty" mapstructure:"maxBudget" validate:"omitempty,gte=0"`
	MinEngagement *float64 `json:"minEngagement,omitempty" yaml:"minEngagement,omitempty" mapstructure:"minEngagement" validate:"omitempty,gte=0,lte=100"`
}

// PriceCeiling returns the effective price ceiling, if any.
func (f MatchFilters) PriceCeiling() (float64, bool) {
	switch {
	case f.MaxPrice != nil:
		return *f.MaxPrice, true
	case f.MaxBudget != nil:
		return *f.MaxBudget, true
	default:
		return 0, false
	}
}

// FromFilters builds the active steps for f in a fixed order. Empty filters
// produce no steps.
func FromFilters(f MatchFilters) []Filter {
	var steps []Filter
	if len(f.Niches) > 0 {
		steps = append(steps, NewNiches(f.Niches))
	}
	if len(f.Geography) > 0 {
		steps = append(steps, NewGeography(f.Geography))
	}
	if len(f.Platforms) > 0 {
		steps = append(steps, NewPlatforms(f.Platforms))
	}
	if ceiling, ok := f.PriceCeiling(); ok {
		steps = append(steps, NewMaxPrice(ceiling))
	}
	if f.MinEngagement != nil {
		steps = append(steps, NewMinEngagement(*f.MinEngagement))
	}
	return steps
}
