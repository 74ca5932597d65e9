package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata describes the model's input/output contract and its class order.
type Metadata struct {
	Version      string   `json:"version"`
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	Classes      []string `json:"classes"`
	ApplySoftmax bool     `json:"apply_softmax"`
}

// LoadMetadata reads and validates a model metadata file.
func LoadMetadata(path string) (Metadata, error) {
	var meta Metadata
	raw, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("parse metadata: %w", err)
	}
	if meta.InputName == "" {
		meta.InputName = "input"
	}
	if meta.OutputName == "" {
		meta.OutputName = "output"
	}
	if err := meta.Validate(); err != nil {
		return meta, err
	}
	return meta, nil
}

// Validate enforces a (1, H, W, 1) input, an output with one value per class
// and unique, non-empty class names.
func (m Metadata) Validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[3] != 1 || m.InputShape[1] <= 0 || m.InputShape[2] <= 0 {
		return fmt.Errorf("input_shape must be [1, height, width, 1], got %v", m.InputShape)
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("metadata lists no classes")
	}
	seen := make(map[string]struct{}, len(m.Classes))
	for i, c := range m.Classes {
		if c == "" {
			return fmt.Errorf("class %d has an empty name", i)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate class %q", c)
		}
		seen[c] = struct{}{}
	}
	if outputElements(m.OutputShape) != int64(len(m.Classes)) {
		return fmt.Errorf("output_shape %v does not hold %d classes", m.OutputShape, len(m.Classes))
	}
	return nil
}

// Labels returns the classes as labels, in model output order.
func (m Metadata) Labels() []Label {
	labels := make([]Label, len(m.Classes))
	for i, c := range m.Classes {
		labels[i] = Label(c)
	}
	return labels
}

// InputDims returns the input shape as a fixed array. Call after Validate.
func (m Metadata) InputDims() [4]int64 {
	return [4]int64{m.InputShape[0], m.InputShape[1], m.InputShape[2], m.InputShape[3]}
}

func outputElements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
