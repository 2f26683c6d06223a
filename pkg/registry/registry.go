// Package registry holds the declarative per-feature extraction
// configurations that replace the hand-written query-per-feature pattern:
// source tags with an explicit priority order, unit rules, validity bounds,
// window anchoring and selection policy are data, not code.
package registry

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cohortica-ai/platform/pkg/extract"
	"github.com/cohortica-ai/platform/pkg/units"
)

// Duration parses "6h", "30m" style values from registry files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

const (
	AnchorAdministrative = "administrative"
	AnchorClinical       = "clinical"

	// Policies for clinically anchored features whose monitoring window is
	// absent. There is no implicit default: substituting administrative
	// bounds silently would bias the feature, so the choice is named per
	// feature.
	MissingWindowAbsent         = "absent"
	MissingWindowAdministrative = "administrative"
)

// Source is one candidate event stream for a feature. Order within
// Feature.Sources is the deterministic tie-break priority.
type Source struct {
	Tag  string `yaml:"tag"`
	Unit string `yaml:"unit,omitempty"` // registry unit name; empty = identity
}

// Range is an inclusive validity interval on the normalized value. A nil
// bound is open on that side; a zero Range accepts everything and must be
// declared with Unbounded() so intentional absence of filtering is visible.
type Range struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// Unbounded is the explicit "no validity filtering" configuration.
func Unbounded() Range { return Range{} }

func Between(min, max float64) Range { return Range{Min: &min, Max: &max} }

func (r Range) Accepts(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Feature is one extraction configuration.
type Feature struct {
	Name     string   `yaml:"name"`
	Sources  []Source `yaml:"sources"`
	Validity Range    `yaml:"validity"`
	Policy   string   `yaml:"policy"` // earliest | closest-to-reference
	Anchor   string   `yaml:"anchor"` // administrative | clinical

	// FuzzBefore/FuzzAfter widen an administrative window to absorb clock
	// skew between charting and the recorded in/out times.
	FuzzBefore Duration `yaml:"fuzz_before,omitempty"`
	FuzzAfter  Duration `yaml:"fuzz_after,omitempty"`

	// OnMissingWindow applies to clinically anchored features only.
	OnMissingWindow string `yaml:"on_missing_window,omitempty"`
}

func (f Feature) SourceTags() []string {
	tags := make([]string, len(f.Sources))
	for i, s := range f.Sources {
		tags[i] = s.Tag
	}
	return tags
}

// UnitRegistry builds the tag->conversion registry for this feature.
func (f Feature) UnitRegistry() (*units.Registry, error) {
	reg := units.NewRegistry()
	for _, src := range f.Sources {
		conv, ok := units.Lookup(src.Unit)
		if !ok {
			return nil, fmt.Errorf("feature %q source %q: unknown unit %q", f.Name, src.Tag, src.Unit)
		}
		reg.Register(src.Tag, conv)
	}
	return reg, nil
}

// SelectionPolicy maps the declared policy name onto the engine constant.
func (f Feature) SelectionPolicy() extract.SelectionPolicy {
	return extract.SelectionPolicy(f.Policy)
}

// Validate rejects malformed feature definitions before any run starts.
func (f Feature) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("feature without a name")
	}
	if len(f.Sources) == 0 {
		return fmt.Errorf("feature %q declares no sources", f.Name)
	}
	seen := make(map[string]struct{}, len(f.Sources))
	for _, src := range f.Sources {
		if src.Tag == "" {
			return fmt.Errorf("feature %q has a source without a tag", f.Name)
		}
		if _, dup := seen[src.Tag]; dup {
			return fmt.Errorf("feature %q lists source tag %q twice", f.Name, src.Tag)
		}
		seen[src.Tag] = struct{}{}
		if _, ok := units.Lookup(src.Unit); !ok {
			return fmt.Errorf("feature %q source %q: unknown unit %q", f.Name, src.Tag, src.Unit)
		}
	}
	if f.Min() != nil && f.Max() != nil && *f.Min() > *f.Max() {
		return fmt.Errorf("feature %q validity range is inverted", f.Name)
	}
	switch f.Policy {
	case string(extract.Earliest), string(extract.ClosestToReference):
	default:
		return fmt.Errorf("feature %q has unknown policy %q", f.Name, f.Policy)
	}
	switch f.Anchor {
	case AnchorAdministrative:
		if f.OnMissingWindow != "" {
			return fmt.Errorf("feature %q: on_missing_window only applies to clinical anchors", f.Name)
		}
	case AnchorClinical:
		switch f.OnMissingWindow {
		case MissingWindowAbsent, MissingWindowAdministrative:
		case "":
			return fmt.Errorf("feature %q: clinically anchored features must name an on_missing_window policy", f.Name)
		default:
			return fmt.Errorf("feature %q has unknown on_missing_window policy %q", f.Name, f.OnMissingWindow)
		}
	default:
		return fmt.Errorf("feature %q has unknown anchor %q", f.Name, f.Anchor)
	}
	return nil
}

func (f Feature) Min() *float64 { return f.Validity.Min }
func (f Feature) Max() *float64 { return f.Validity.Max }

// Registry is a named set of feature configurations.
type Registry struct {
	features map[string]Feature
	order    []string
}

func New(features []Feature) (*Registry, error) {
	r := &Registry{features: make(map[string]Feature, len(features))}
	for _, f := range features {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.features[f.Name]; dup {
			return nil, fmt.Errorf("feature %q defined twice", f.Name)
		}
		r.features[f.Name] = f
		r.order = append(r.order, f.Name)
	}
	return r, nil
}

func (r *Registry) Get(name string) (Feature, bool) {
	f, ok := r.features[name]
	return f, ok
}

// Names returns feature names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int { return len(r.order) }
