package husbandry

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/cattle-id/internal/classifier"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "profiles.yaml", `
profiles:
  Cow001:
    next_vaccination: 2025-08-20
    daily_water_need: 40 Liters/day
    daily_food_need: 25 kg/day
  Cow002:
    next_vaccination: "2025-09-01"
    daily_water_need:
      amount: 35.5
      unit: Liters/day
    daily_food_need: 22 kg/day
`)

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 profiles, got %d", table.Len())
	}

	p, ok := table.Get("Cow001")
	if !ok {
		t.Fatal("Cow001 missing")
	}
	if p.NextVaccination != (Date{Year: 2025, Month: time.August, Day: 20}) {
		t.Fatalf("unexpected date %v", p.NextVaccination)
	}
	if p.WaterNeed != (Quantity{Amount: 40, Unit: "Liters/day"}) {
		t.Fatalf("unexpected water need %+v", p.WaterNeed)
	}
	if p.FoodNeed.String() != "25 kg/day" {
		t.Fatalf("unexpected food need %s", p.FoodNeed)
	}

	p2, _ := table.Get("Cow002")
	if p2.WaterNeed.Amount != 35.5 {
		t.Fatalf("unexpected structured water need %+v", p2.WaterNeed)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, "profiles.json", `{"profiles":{"Cow003":{"next_vaccination":"2025-10-05","daily_water_need":"42 Liters/day","daily_food_need":{"amount":26,"unit":"kg/day"}}}}`)

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := table.Get("Cow003"); !ok {
		t.Fatal("Cow003 missing")
	}
}

func TestLoadFileRejectsIncompleteProfile(t *testing.T) {
	path := writeFile(t, "profiles.yaml", `
profiles:
  Cow001:
    next_vaccination: 2025-08-20
    daily_water_need: 40 Liters/day
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for missing food need")
	}
}

func TestLoadFileRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad date":     "profiles:\n  Cow001:\n    next_vaccination: next week\n    daily_water_need: 40 L/day\n    daily_food_need: 25 kg/day\n",
		"bad quantity": "profiles:\n  Cow001:\n    next_vaccination: 2025-08-20\n    daily_water_need: plenty\n    daily_food_need: 25 kg/day\n",
		"negative":     "profiles:\n  Cow001:\n    next_vaccination: 2025-08-20\n    daily_water_need: -4 L/day\n    daily_food_need: 25 kg/day\n",
	}
	for name, content := range cases {
		if _, err := LoadFile(writeFile(t, "profiles.yaml", content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadFile(writeFile(t, "profiles.toml", "")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestTableLabelsAndMissing(t *testing.T) {
	p := Profile{
		NextVaccination: Date{Year: 2025, Month: time.August, Day: 20},
		WaterNeed:       Quantity{Amount: 40, Unit: "Liters/day"},
		FoodNeed:        Quantity{Amount: 25, Unit: "kg/day"},
	}
	table, err := NewTable(map[classifier.Label]Profile{"Cow002": p, "Cow001": p})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	labels := table.Labels()
	if len(labels) != 2 || labels[0] != "Cow001" || labels[1] != "Cow002" {
		t.Fatalf("unexpected labels %v", labels)
	}
	missing := table.MissingFor([]classifier.Label{"Cow001", "Cow003"})
	if len(missing) != 1 || missing[0] != "Cow003" {
		t.Fatalf("unexpected missing %v", missing)
	}

	var nilTable *Table
	if _, ok := nilTable.Get("Cow001"); ok {
		t.Fatal("nil table must not resolve labels")
	}
}

func TestProfileJSONShape(t *testing.T) {
	p := Profile{
		NextVaccination: Date{Year: 2025, Month: time.August, Day: 20},
		WaterNeed:       Quantity{Amount: 40, Unit: "Liters/day"},
		FoodNeed:        Quantity{Amount: 25, Unit: "kg/day"},
	}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"next_vaccination":"2025-08-20","daily_water_need":{"amount":40,"unit":"Liters/day"},"daily_food_need":{"amount":25,"unit":"kg/day"}}`
	if string(raw) != want {
		t.Fatalf("unexpected json\n got: %s\nwant: %s", raw, want)
	}
}

func TestQuantityValidateRejectsNonFinite(t *testing.T) {
	for _, amount := range []float64{math.Inf(1), math.Inf(-1), math.NaN(), -1} {
		q := Quantity{Amount: amount, Unit: "Liters/day"}
		if err := q.Validate(); err == nil {
			t.Fatalf("expected error for amount %v", amount)
		}
	}
	if err := (Quantity{Amount: 0, Unit: "kg/day"}).Validate(); err != nil {
		t.Fatalf("zero amount must be valid: %v", err)
	}
	if _, err := NewTable(map[classifier.Label]Profile{"CowA": {
		NextVaccination: Date{Year: 2025, Month: time.August, Day: 20},
		WaterNeed:       Quantity{Amount: math.Inf(1), Unit: "Liters/day"},
		FoodNeed:        Quantity{Amount: 25, Unit: "kg/day"},
	}}); err == nil {
		t.Fatal("expected table to reject an infinite water need")
	}
}
