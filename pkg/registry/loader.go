package registry

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Features []Feature `yaml:"features"`
}

// Load builds a registry from a YAML file, or the builtin feature set when no
// path is configured. File features override builtin ones of the same name;
// new names are appended after the builtins.
func Load(path string) (*Registry, error) {
	if path == "" {
		return New(Builtin())
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	return New(merge(Builtin(), cfg.Features))
}

func merge(base, overrides []Feature) []Feature {
	byName := make(map[string]int, len(base))
	merged := make([]Feature, len(base))
	copy(merged, base)
	for i, f := range merged {
		byName[f.Name] = i
	}
	for _, f := range overrides {
		if i, ok := byName[f.Name]; ok {
			merged[i] = f
			continue
		}
		byName[f.Name] = len(merged)
		merged = append(merged, f)
	}
	return merged
}
