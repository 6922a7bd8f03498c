package matching

import (
	"strconv"
	"strings"

	"github.com/spigell/cloutcash-matcher/internal/filtering"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
	"github.com/spigell/cloutcash-matcher/internal/ranking"
	"github.com/spigell/cloutcash-matcher/internal/validation"
)

// Request asks for the next page of candidates for a requester.
type Request struct {
	RequesterID string        `json:"requesterId" validate:"required"`
	Role        profiles.Role `json:"role" validate:"required,oneof=brand creator"`
	// RequesterContext lets a brand match with an unsaved campaign.
	RequesterContext *profiles.Campaign     `json:"requesterContext,omitempty"`
	Cursor           int                    `json:"cursor" validate:"gte=0"`
	Limit            int                    `json:"limit" validate:"gte=0"`
	Filters          filtering.MatchFilters `json:"filters"`
	// Explain attaches the filter pipeline report to the response.
	Explain bool `json:"explain,omitempty"`
}

// Response is one page of ranked candidates.
type Response struct {
	RequestID  string                    `json:"requestId"`
	Candidates []ranking.ScoredCandidate `json:"candidates"`
	NextCursor int                       `json:"nextCursor"`
	Explain    *Explanation              `json:"explain,omitempty"`
}

// Explanation reports how the pool was narrowed for one request.
type Explanation struct {
	Filters []filtering.Status     `json:"filters"`
	Steps   []filtering.StepReport `json:"steps"`
	Pool    int                    `json:"pool"`
	Scored  int                    `json:"scored"`
	Gated   int                    `json:"gated"`

	// Excluded counts ids already served to the requester, settled or current.
	Excluded int `json:"excluded"`
}

// IDs returns the candidate ids of the page in order.
func (r *Response) IDs() []string {
	ids := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		ids = append(ids, c.ID())
	}
	return ids
}

// normalize fills defaults and validates the request.
func (r *Request) normalize(cfg Config) error {
	r.RequesterID = strings.TrimSpace(r.RequesterID)
	r.Role = profiles.Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	if r.RequesterContext != nil && r.RequesterContext.ID == "" {
		r.RequesterContext.ID = r.RequesterID
	}

	if err := validation.Struct(r); err != nil {
		return err
	}

	if r.Limit == 0 {
		r.Limit = cfg.DefaultLimit
	}
	if r.Limit > cfg.MaxLimit {
		return &validation.RequestValidationError{Fields: []validation.FieldError{{
			Field: "Limit",
			Tag:   "lte",
			Param: strconv.Itoa(cfg.MaxLimit),
			Value: r.Limit,
		}}}
	}
	return nil
}
