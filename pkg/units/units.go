package units

import "fmt"

// Conversion maps a raw charted value to the canonical unit for its feature.
type Conversion struct {
	Name  string
	Apply func(v float64) float64
}

func identity(v float64) float64 { return v }

var (
	Identity = Conversion{Name: "identity", Apply: identity}

	FahrenheitToCelsius = Conversion{
		Name:  "fahrenheit-to-celsius",
		Apply: func(v float64) float64 { return (v - 32.0) * 5.0 / 9.0 },
	}

	InchesToCentimeters = Conversion{
		Name:  "inches-to-centimeters",
		Apply: func(v float64) float64 { return v * 2.54 },
	}

	PoundsToKilograms = Conversion{
		Name:  "pounds-to-kilograms",
		Apply: func(v float64) float64 { return v * 0.45359237 },
	}

	OuncesToKilograms = Conversion{
		Name:  "ounces-to-kilograms",
		Apply: func(v float64) float64 { return v * 0.028349523125 },
	}
)

// conversions by the unit name used in feature registry files.
var byName = map[string]Conversion{
	"identity":   Identity,
	"fahrenheit": FahrenheitToCelsius,
	"inches":     InchesToCentimeters,
	"pounds":     PoundsToKilograms,
	"ounces":     OuncesToKilograms,
}

// Lookup resolves a registry unit name to its conversion.
func Lookup(name string) (Conversion, bool) {
	if name == "" {
		return Identity, true
	}
	c, ok := byName[name]
	return c, ok
}

// Registry maps source tags to conversions. A tag without a rule is a
// configuration bug, surfaced before any extraction starts.
type Registry struct {
	rules map[string]Conversion
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Conversion)}
}

func (r *Registry) Register(tag string, conv Conversion) {
	r.rules[tag] = conv
}

// Validate checks that every tag has a conversion rule.
func (r *Registry) Validate(tags []string) error {
	for _, tag := range tags {
		if _, ok := r.rules[tag]; !ok {
			return &UnmappedTagError{Tag: tag}
		}
	}
	return nil
}

// Normalize converts a raw value from the tag's source unit to the canonical
// unit.
func (r *Registry) Normalize(tag string, value float64) (float64, error) {
	conv, ok := r.rules[tag]
	if !ok {
		return 0, &UnmappedTagError{Tag: tag}
	}
	return conv.Apply(value), nil
}

// UnmappedTagError reports a source tag with no unit-normalization rule.
type UnmappedTagError struct {
	Tag string
}

func (e *UnmappedTagError) Error() string {
	return fmt.Sprintf("no unit conversion registered for source tag %q", e.Tag)
}
