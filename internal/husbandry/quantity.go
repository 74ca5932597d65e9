package husbandry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Quantity is an amount with a free-form unit such as "Liters/day".
type Quantity struct {
	Amount float64 `json:"amount" yaml:"amount"`
	Unit   string  `json:"unit" yaml:"unit"`
}

// ParseQuantity parses "40 Liters/day" style strings.
func ParseQuantity(s string) (Quantity, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return Quantity{}, fmt.Errorf("quantity %q must be \"<amount> <unit>\"", s)
	}
	amount, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("quantity %q: %w", s, err)
	}
	return Quantity{Amount: amount, Unit: strings.Join(fields[1:], " ")}, nil
}

func (q Quantity) String() string {
	return strconv.FormatFloat(q.Amount, 'f', -1, 64) + " " + q.Unit
}

// Validate requires a non-negative finite amount and a unit.
func (q Quantity) Validate() error {
	if q.Amount < 0 || math.IsNaN(q.Amount) || math.IsInf(q.Amount, 0) {
		return fmt.Errorf("amount %v must be finite and non-negative", q.Amount)
	}
	if strings.TrimSpace(q.Unit) == "" {
		return fmt.Errorf("unit is required")
	}
	return nil
}

type quantityFields Quantity

// UnmarshalJSON accepts either "40 Liters/day" or {"amount":40,"unit":"Liters/day"}.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseQuantity(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}
	var fields quantityFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*q = Quantity(fields)
	return nil
}

// UnmarshalYAML accepts the same two forms as UnmarshalJSON.
func (q *Quantity) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseQuantity(value.Value)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}
	var fields quantityFields
	if err := value.Decode(&fields); err != nil {
		return err
	}
	*q = Quantity(fields)
	return nil
}

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDate(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
