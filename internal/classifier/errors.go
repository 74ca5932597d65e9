package classifier

import "fmt"

// ShapeMismatchError reports a tensor whose shape disagrees with the model.
// Tensors are never reshaped to fit.
type ShapeMismatchError struct {
	Tensor string
	Want   []int64
	Got    []int64
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s tensor shape mismatch: want %v, got %v", e.Tensor, e.Want, e.Got)
}

// ModelUnavailableError reports a model that could not be loaded or invoked.
type ModelUnavailableError struct {
	Path string
	Err  error
}

func (e *ModelUnavailableError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("model unavailable: %v", e.Err)
	}
	return fmt.Sprintf("model %s unavailable: %v", e.Path, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }
