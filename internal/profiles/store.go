package profiles

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store is the read side of the profile collaborator the engine depends on.
type Store interface {
	// ListCandidates returns every profile a requester with the given role can be matched against.
	ListCandidates(ctx context.Context, role Role) ([]Profile, error)
	Get(ctx context.Context, id string) (Profile, error)
}

// Document is the on-disk layout of a profiles file.
type Document struct {
	Creators  []*Creator  `yaml:"creators"`
	Campaigns []*Campaign `yaml:"campaigns"`
}

// Catalog is an immutable in-memory Store.
type Catalog struct {
	creators  []Profile
	campaigns []Profile
	byID      map[string]Profile
}

// NewCatalog builds a catalog. Profile ids must be unique across both kinds.
func NewCatalog(creators []*Creator, campaigns []*Campaign) (*Catalog, error) {
	c := &Catalog{
		creators:  make([]Profile, 0, len(creators)),
		campaigns: make([]Profile, 0, len(campaigns)),
		byID:      make(map[string]Profile, len(creators)+len(campaigns)),
	}

	for _, creator := range creators {
		if err := c.add(creator); err != nil {
			return nil, err
		}
		c.creators = append(c.creators, creator)
	}
	for _, campaign := range campaigns {
		if err := c.add(campaign); err != nil {
			return nil, err
		}
		c.campaigns = append(c.campaigns, campaign)
	}

	return c, nil
}

func (c *Catalog) add(p Profile) error {
	id := p.ProfileID()
	if id == "" {
		return fmt.Errorf("%s without id", p.Kind())
	}
	if _, exists := c.byID[id]; exists {
		return fmt.Errorf("duplicate profile id %q", id)
	}
	c.byID[id] = p
	return nil
}

func (c *Catalog) ListCandidates(_ context.Context, role Role) ([]Profile, error) {
	src := c.creators
	if role.CandidateKind() == KindCampaign {
		src = c.campaigns
	}
	return append([]Profile(nil), src...), nil
}

func (c *Catalog) Get(_ context.Context, id string) (Profile, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// Len returns the number of creators and campaigns.
func (c *Catalog) Len() (creators, campaigns int) {
	return len(c.creators), len(c.campaigns)
}

// LoadFile reads a YAML (or JSON) profiles file. Numeric fields may be given as
// strings; they are converted while decoding.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}

	var raw struct {
		Creators  []map[string]any `yaml:"creators"`
		Campaigns []map[string]any `yaml:"campaigns"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing profiles file %q: %w", path, err)
	}

	creators := make([]*Creator, 0, len(raw.Creators))
	for i, record := range raw.Creators {
		creator := &Creator{}
		if err := decode(record, creator); err != nil {
			return nil, fmt.Errorf("decoding creator #%d: %w", i, err)
		}
		creators = append(creators, creator)
	}

	campaigns := make([]*Campaign, 0, len(raw.Campaigns))
	for i, record := range raw.Campaigns {
		campaign := &Campaign{}
		if err := decode(record, campaign); err != nil {
			return nil, fmt.Errorf("decoding campaign #%d: %w", i, err)
		}
		campaigns = append(campaigns, campaign)
	}

	return NewCatalog(creators, campaigns)
}

// WriteFile stores the document as YAML.
func WriteFile(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing profiles file: %w", err)
	}
	return nil
}

func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
