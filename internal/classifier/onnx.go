package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/example/cattle-id/internal/normalizer"
)

var errClosed = errors.New("classifier closed")

// ONNXConfig locates the model artifact and the ONNX Runtime shared library.
type ONNXConfig struct {
	ModelPath         string
	MetadataPath      string
	SharedLibraryPath string
}

// inferenceFunc runs one forward pass on a flattened input tensor.
type inferenceFunc func(input []float32) ([]float32, error)

// ONNXClassifier wraps a DynamicAdvancedSession. Each Classify call allocates
// its own input and output tensors, so the session is shared read-only.
type ONNXClassifier struct {
	meta    Metadata
	labels  []Label
	infer   inferenceFunc
	release func() error
	logger  *zap.Logger
	modelID string

	mu     sync.RWMutex
	closed bool
}

// NewONNXClassifier loads the metadata and model once. Any failure is
// reported as *ModelUnavailableError.
func NewONNXClassifier(cfg ONNXConfig, logger *zap.Logger) (*ONNXClassifier, error) {
	meta, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, &ModelUnavailableError{Path: cfg.MetadataPath, Err: err}
	}

	fingerprint, err := fileFingerprint(cfg.ModelPath)
	if err != nil {
		return nil, &ModelUnavailableError{Path: cfg.ModelPath, Err: err}
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, &ModelUnavailableError{Path: cfg.ModelPath, Err: fmt.Errorf("initialize onnxruntime: %w", err)}
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{meta.InputName}, []string{meta.OutputName}, nil)
	if err != nil {
		_ = ort.DestroyEnvironment()
		return nil, &ModelUnavailableError{Path: cfg.ModelPath, Err: fmt.Errorf("create session: %w", err)}
	}

	inputShape := ort.NewShape(meta.InputShape...)
	outputShape := ort.NewShape(meta.OutputShape...)

	infer := func(input []float32) ([]float32, error) {
		inputTensor, err := ort.NewTensor(inputShape, input)
		if err != nil {
			return nil, fmt.Errorf("create input tensor: %w", err)
		}
		defer inputTensor.Destroy()

		outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
		if err != nil {
			return nil, fmt.Errorf("create output tensor: %w", err)
		}
		defer outputTensor.Destroy()

		if err := session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}

		out := make([]float32, len(outputTensor.GetData()))
		copy(out, outputTensor.GetData())
		return out, nil
	}

	release := func() error {
		return errors.Join(session.Destroy(), ort.DestroyEnvironment())
	}

	c := newClassifier(meta, infer, release, logger)
	c.modelID = modelID(meta.Version, fingerprint)
	c.logger.Info("model loaded",
		zap.String("model_id", c.modelID),
		zap.String("model", cfg.ModelPath),
		zap.String("version", meta.Version),
		zap.Int("classes", len(meta.Classes)),
		zap.Int64s("input_shape", meta.InputShape))
	return c, nil
}

func newClassifier(meta Metadata, infer inferenceFunc, release func() error, logger *zap.Logger) *ONNXClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ONNXClassifier{
		meta:    meta,
		labels:  meta.Labels(),
		infer:   infer,
		release: release,
		logger:  logger.Named("classifier"),
		modelID: meta.Version,
	}
}

// Classify runs one forward pass. The tensor must match InputShape exactly.
func (c *ONNXClassifier) Classify(ctx context.Context, tensor *normalizer.Tensor) (Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tensor == nil {
		return nil, &ShapeMismatchError{Tensor: "input", Want: c.meta.InputShape}
	}

	want := c.InputShape()
	if tensor.Shape != want || int64(len(tensor.Data)) != want[0]*want[1]*want[2]*want[3] {
		return nil, &ShapeMismatchError{Tensor: "input", Want: want[:], Got: append([]int64(nil), tensor.Shape[:]...)}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, &ModelUnavailableError{Err: errClosed}
	}

	scores, err := c.infer(tensor.Data)
	if err != nil {
		return nil, &ModelUnavailableError{Err: err}
	}
	return NewDistribution(c.labels, scores, c.meta.ApplySoftmax)
}

// Labels returns the closed label set in model output order.
func (c *ONNXClassifier) Labels() []Label {
	out := make([]Label, len(c.labels))
	copy(out, c.labels)
	return out
}

// InputShape returns the (1, H, W, 1) shape the model expects.
func (c *ONNXClassifier) InputShape() [4]int64 {
	return c.meta.InputDims()
}

// ModelID identifies the loaded model for cache keys and logs. It changes
// whenever the model file content changes, even if the version does not.
func (c *ONNXClassifier) ModelID() string {
	return c.modelID
}

// fileFingerprint returns the first 16 hex digits of the SHA-256 of path.
func fileFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash model: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

func modelID(version, fingerprint string) string {
	if version == "" {
		return fingerprint
	}
	return version + "@" + fingerprint
}

// Close waits for in-flight calls and releases the session.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.release == nil {
		return nil
	}
	return c.release()
}
