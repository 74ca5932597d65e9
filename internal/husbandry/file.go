package husbandry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/cattle-id/internal/classifier"
)

type profileFile struct {
	Profiles map[string]Profile `json:"profiles" yaml:"profiles"`
}

// LoadFile reads a YAML (.yaml, .yml) or JSON (.json) profile file:
//
//	profiles:
//	  Cow001:
//	    next_vaccination: 2025-08-20
//	    daily_water_need: 40 Liters/day
//	    daily_food_need: 25 kg/day
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var doc profileFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &doc)
	case ".json":
		err = json.Unmarshal(raw, &doc)
	default:
		return nil, fmt.Errorf("unsupported profile file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	profiles := make(map[classifier.Label]Profile, len(doc.Profiles))
	for label, p := range doc.Profiles {
		profiles[classifier.Label(label)] = p
	}
	return NewTable(profiles)
}
