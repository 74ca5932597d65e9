// Package classifier maps normalized nose-print tensors to a probability
// distribution over the enrolled animals.
package classifier

import (
	"context"

	"github.com/example/cattle-id/internal/normalizer"
)

// Classifier runs a frozen identity model. Implementations are loaded once
// and must be safe for concurrent Classify calls.
type Classifier interface {
	Classify(ctx context.Context, tensor *normalizer.Tensor) (Distribution, error)
	Labels() []Label
	InputShape() [4]int64
	ModelID() string
	Close() error
}
