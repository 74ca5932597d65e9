// Package husbandry holds the static care data attached to each enrolled
// animal. Tables are built once at startup and only read afterwards.
package husbandry

import (
	"fmt"
	"sort"

	"github.com/example/cattle-id/internal/classifier"
)

// Profile is the care schedule of one animal.
type Profile struct {
	NextVaccination Date     `json:"next_vaccination" yaml:"next_vaccination"`
	WaterNeed       Quantity `json:"daily_water_need" yaml:"daily_water_need"`
	FoodNeed        Quantity `json:"daily_food_need" yaml:"daily_food_need"`
}

// Validate requires every field to be present.
func (p Profile) Validate() error {
	if p.NextVaccination.IsZero() {
		return fmt.Errorf("next_vaccination is required")
	}
	if err := p.WaterNeed.Validate(); err != nil {
		return fmt.Errorf("daily_water_need: %w", err)
	}
	if err := p.FoodNeed.Validate(); err != nil {
		return fmt.Errorf("daily_food_need: %w", err)
	}
	return nil
}

// Lookup resolves a label to its profile.
type Lookup interface {
	Get(label classifier.Label) (Profile, bool)
}

// Table is an immutable label to profile mapping.
type Table struct {
	profiles map[classifier.Label]Profile
}

var _ Lookup = (*Table)(nil)

// NewTable validates and copies profiles.
func NewTable(profiles map[classifier.Label]Profile) (*Table, error) {
	copied := make(map[classifier.Label]Profile, len(profiles))
	for label, p := range profiles {
		if label == "" {
			return nil, fmt.Errorf("profile with empty label")
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", label, err)
		}
		copied[label] = p
	}
	return &Table{profiles: copied}, nil
}

// Get returns the profile registered for label.
func (t *Table) Get(label classifier.Label) (Profile, bool) {
	if t == nil {
		return Profile{}, false
	}
	p, ok := t.profiles[label]
	return p, ok
}

// Len is the number of registered profiles.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.profiles)
}

// Labels returns the registered labels in ascending order.
func (t *Table) Labels() []classifier.Label {
	if t == nil {
		return nil
	}
	labels := make([]classifier.Label, 0, len(t.profiles))
	for l := range t.profiles {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// MissingFor lists the labels that have no profile.
func (t *Table) MissingFor(labels []classifier.Label) []classifier.Label {
	var missing []classifier.Label
	for _, l := range labels {
		if _, ok := t.Get(l); !ok {
			missing = append(missing, l)
		}
	}
	return missing
}
