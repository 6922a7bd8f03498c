package profiles

import (
	"os"
	"sort"

	"github.com/goccy/go-json"
)

// Pool is an ordered set of candidate profiles.
type Pool struct {
	Items []Profile
}

// NewPool copies items into a new pool.
func NewPool(items []Profile) *Pool {
	return &Pool{Items: append([]Profile(nil), items...)}
}

func (p *Pool) Len() int {
	return len(p.Items)
}

// IDs returns profile ids in pool order.
func (p *Pool) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		ids = append(ids, item.ProfileID())
	}
	return ids
}

// Keep retains the profiles for which keep returns true and returns the ids of
// the dropped ones. Order of the retained profiles is preserved.
func (p *Pool) Keep(keep func(Profile) bool) []string {
	var dropped []string
	kept := p.Items[:0]
	for _, item := range p.Items {
		if keep(item) {
			kept = append(kept, item)
			continue
		}
		dropped = append(dropped, item.ProfileID())
	}
	clear(p.Items[len(kept):])
	p.Items = kept
	return dropped
}

// Exclude removes the profiles with the given ids and returns the removed ids.
func (p *Pool) Exclude(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}

	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}

	return p.Keep(func(item Profile) bool {
		_, found := targets[item.ProfileID()]
		return !found
	})
}

// ReportByNiche groups profile titles by their first niche or category tag.
func (p *Pool) ReportByNiche() map[string][]string {
	report := make(map[string][]string)
	for _, item := range p.Items {
		key := "uncategorized"
		if niches := item.Facets().Niches; len(niches) > 0 {
			key = niches[0]
		}
		report[key] = append(report[key], item.Title()+" ("+item.ProfileID()+")")
	}
	for key := range report {
		sort.Strings(report[key])
	}
	return report
}

// DumpToTmpFile writes the pool as JSON into a temporary file and returns its name.
func (p *Pool) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "candidates_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}
