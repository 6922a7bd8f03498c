package scoring

import (
	"github.com/spigell/cloutcash-matcher/internal/interactions"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

// History is the requester's past behaviour reduced to what scoring needs.
type History struct {
	passed           map[string]struct{}
	likedNiches      map[string]struct{}
	superlikedNiches map[string]struct{}
}

// NewHistory builds a History from the requester's interactions. resolve
// looks up the profiles behind liked targets; unknown targets contribute
// nothing. A later interaction with the same target overrides an earlier one,
// so items must be most recent first.
func NewHistory(items []interactions.Interaction, resolve func(id string) (profiles.Profile, bool)) History {
	h := History{
		passed:           map[string]struct{}{},
		likedNiches:      map[string]struct{}{},
		superlikedNiches: map[string]struct{}{},
	}

	decided := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Type == interactions.Match {
			continue
		}
		if _, ok := decided[item.TargetID]; ok {
			continue
		}
		decided[item.TargetID] = struct{}{}

		switch item.Type {
		case interactions.Pass:
			h.passed[item.TargetID] = struct{}{}
		case interactions.Like, interactions.Superlike:
			if resolve == nil {
				continue
			}
			target, ok := resolve(item.TargetID)
			if !ok {
				continue
			}
			into := h.likedNiches
			if item.Type == interactions.Superlike {
				into = h.superlikedNiches
			}
			for _, niche := range target.Facets().Niches {
				if key := normalize(niche); key != "" {
					into[key] = struct{}{}
				}
			}
		}
	}

	return h
}

// Passed reports whether the requester passed on id.
func (h History) Passed(id string) bool {
	_, ok := h.passed[id]
	return ok
}

// affinity returns the interaction that produced the strongest niche overlap
// with niches, or an empty Type when there is none.
func (h History) affinity(niches []string) interactions.Type {
	var best interactions.Type
	for _, niche := range niches {
		key := normalize(niche)
		if _, ok := h.superlikedNiches[key]; ok {
			return interactions.Superlike
		}
		if _, ok := h.likedNiches[key]; ok {
			best = interactions.Like
		}
	}
	return best
}
