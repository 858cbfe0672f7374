package startup

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"media-ingest/internal/geometry"
	"media-ingest/internal/mediatypes"
)

// DefaultProfileName is used when an upload names no profile.
const DefaultProfileName = "default"

// ErrUnknownProfile is returned by Resolve for a name that is not configured.
var ErrUnknownProfile = errors.New("unknown rendition profile")

// Profiles maps profile names to ordered size sets.
type Profiles struct {
	defaultName string
	sets        map[string]mediatypes.SizeSet
}

// DefaultProfiles returns the built-in profile set.
func DefaultProfiles() *Profiles {
	return &Profiles{
		defaultName: DefaultProfileName,
		sets: map[string]mediatypes.SizeSet{
			DefaultProfileName: {
				{Name: "thumbnail", Width: 150, Height: 150, Mode: geometry.Cover},
				{Name: "medium", Width: 800, Height: geometry.Auto, Mode: geometry.Contain},
				{Name: "large", Width: 1600, Height: geometry.Auto, Mode: geometry.Contain},
			},
		},
	}
}

// Resolve returns the size set for name. An empty name selects the default.
func (p *Profiles) Resolve(name string) (mediatypes.SizeSet, error) {
	if name == "" {
		name = p.defaultName
	}
	set, ok := p.sets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return append(mediatypes.SizeSet(nil), set...), nil
}

// Default returns the name of the default profile.
func (p *Profiles) Default() string {
	return p.defaultName
}

// Names returns the configured profile names sorted.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.sets))
	for name := range p.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// profileFile is the on-disk YAML shape:
//
//	default: web
//	profiles:
//	  web:
//	    - {name: thumbnail, width: 150, height: 150, mode: cover}
//	    - {name: medium, width: 800, height: auto, mode: contain}
type profileFile struct {
	Default  string                   `yaml:"default"`
	Profiles map[string][]profileSize `yaml:"profiles"`
}

type profileSize struct {
	Name   string        `yaml:"name"`
	Width  yamlDimension `yaml:"width"`
	Height yamlDimension `yaml:"height"`
	Mode   string        `yaml:"mode"`
}

// yamlDimension accepts a positive integer or "auto".
type yamlDimension geometry.Dimension

func (d *yamlDimension) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: dimension must be a number or \"auto\"", node.Line)
	}
	dim, err := geometry.ParseDimension(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = yamlDimension(dim)
	return nil
}

// LoadProfiles reads profiles from a YAML file and validates every set.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendition profiles: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes and validates YAML profile data.
func ParseProfiles(data []byte) (*Profiles, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rendition profiles: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles defined", mediatypes.ErrInvalidSizes)
	}

	p := &Profiles{
		defaultName: file.Default,
		sets:        make(map[string]mediatypes.SizeSet, len(file.Profiles)),
	}
	if p.defaultName == "" {
		p.defaultName = DefaultProfileName
	}

	for name, sizes := range file.Profiles {
		set := make(mediatypes.SizeSet, 0, len(sizes))
		for _, s := range sizes {
			mode, err := geometry.ParseMode(s.Mode)
			if err != nil {
				return nil, fmt.Errorf("profile %q size %q: %w", name, s.Name, err)
			}
			set = append(set, mediatypes.SizeSpec{
				Name:   s.Name,
				Width:  geometry.Dimension(s.Width),
				Height: geometry.Dimension(s.Height),
				Mode:   mode,
			})
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		p.sets[name] = set
	}

	if _, ok := p.sets[p.defaultName]; !ok {
		return nil, fmt.Errorf("%w: default profile %q is not defined", ErrUnknownProfile, p.defaultName)
	}
	return p, nil
}
