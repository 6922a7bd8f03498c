// Package ranking orders scored candidates and cuts pages out of the order.
package ranking

import (
	"sort"

	"github.com/spigell/cloutcash-matcher/internal/profiles"
)

// ScoredCandidate is a candidate with its compatibility score. It lives for
// one request only.
type ScoredCandidate struct {
	Candidate profiles.Profile   `json:"candidate"`
	Score     float64            `json:"score"`
	Rationale []string           `json:"rationale"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// ID returns the candidate id.
func (c ScoredCandidate) ID() string {
	return c.Candidate.ProfileID()
}

// Rank sorts list in place by score descending, then id ascending, and returns it.
func Rank(list []ScoredCandidate) []ScoredCandidate {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].ID() < list[j].ID()
	})
	return list
}

// Paginate returns list[offset:offset+limit], clipped to the list bounds.
func Paginate(list []ScoredCandidate, offset, limit int) []ScoredCandidate {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) || limit <= 0 {
		return []ScoredCandidate{}
	}
	end := min(offset+limit, len(list))
	return list[offset:end]
}

// Window cuts the page for cursor out of ranked, a full ranking of the
// listing. Ids in served were already returned by earlier pages of the same
// listing and are skipped, so the cursor counts positions in ranked while the
// page never repeats a served id.
//
// nextCursor is cursor+len(page). A cursor at or past the end yields an empty
// page and len(ranked); an empty ranking leaves the cursor unchanged.
func Window(ranked []ScoredCandidate, served map[string]struct{}, cursor, limit int) (page []ScoredCandidate, nextCursor int) {
	if len(ranked) == 0 {
		return []ScoredCandidate{}, cursor
	}
	if cursor >= len(ranked) {
		return []ScoredCandidate{}, len(ranked)
	}

	remaining := make([]ScoredCandidate, 0, len(ranked))
	servedInRanking := 0
	for _, c := range ranked {
		if _, ok := served[c.ID()]; ok {
			servedInRanking++
			continue
		}
		remaining = append(remaining, c)
	}

	offset := max(0, cursor-servedInRanking)
	page = Paginate(remaining, offset, limit)
	return page, cursor + len(page)
}
