package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/cattle-id/internal/classifier"
	"github.com/example/cattle-id/internal/husbandry"
	"github.com/example/cattle-id/internal/identify"
	"github.com/example/cattle-id/internal/logging"
	"github.com/example/cattle-id/internal/normalizer"
	"github.com/example/cattle-id/internal/resolver"
	"github.com/example/cattle-id/internal/retry"
)

const (
	DefaultMinConfidence = 0.5
	DefaultAlternatives  = 3
	DefaultCacheTTL      = 10 * time.Minute
)

// Normalizer converts raw image bytes into a model tensor.
type Normalizer interface {
	Normalize(raw []byte) (*normalizer.Tensor, error)
}

// IdentificationUseCase runs the normalize, classify, resolve and merge
// pipeline. It holds no per-request state and is safe for concurrent use.
type IdentificationUseCase struct {
	normalizer    Normalizer
	classifier    classifier.Classifier
	profiles      husbandry.Lookup
	cache         Cache
	logger        *zap.Logger
	minConfidence float64
	alternatives  int
	cacheTTL      time.Duration
	retryPolicy   retry.Policy
	stats         *Stats
}

// Option customises an IdentificationUseCase.
type Option func(*IdentificationUseCase)

// WithMinConfidence sets the acceptance threshold in [0,1].
func WithMinConfidence(v float64) Option {
	return func(uc *IdentificationUseCase) { uc.minConfidence = v }
}

// WithAlternatives sets how many other candidates accompany a response.
func WithAlternatives(k int) Option {
	return func(uc *IdentificationUseCase) { uc.alternatives = k }
}

// WithCacheTTL sets how long cached distributions live.
func WithCacheTTL(ttl time.Duration) Option {
	return func(uc *IdentificationUseCase) { uc.cacheTTL = ttl }
}

// WithRetryPolicy overrides the cache retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(uc *IdentificationUseCase) { uc.retryPolicy = p }
}

// NewIdentificationUseCase constructs a new use case instance. cache may be
// nil, in which case every request runs inference.
func NewIdentificationUseCase(n Normalizer, c classifier.Classifier, profiles husbandry.Lookup, cache Cache, logger *zap.Logger, opts ...Option) *IdentificationUseCase {
	uc := &IdentificationUseCase{
		normalizer:    n,
		classifier:    c,
		profiles:      profiles,
		cache:         cache,
		logger:        logger.Named("identification_usecase"),
		minConfidence: DefaultMinConfidence,
		alternatives:  DefaultAlternatives,
		cacheTTL:      DefaultCacheTTL,
		retryPolicy:   retry.DefaultPolicy(),
		stats:         newStats(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Identify resolves the animal in img and attaches fix and its husbandry
// profile. Failures are *logging.OperationError values carrying the request
// ID; identify.KindOf discriminates them.
func (uc *IdentificationUseCase) Identify(ctx context.Context, img identify.RawImage, fix *identify.LocationFix) (*identify.Response, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.identify", requestID)
	start := time.Now()

	resp, err := uc.identify(ctx, requestID, opLogger, img, fix)
	latency := time.Since(start)
	uc.stats.record(resp, err, latency)

	if err != nil {
		kind := identify.KindOf(err)
		if kind.ClientError() || kind == identify.KindCanceled {
			opLogger.Info("identification rejected", zap.String("kind", string(kind)), zap.Error(err))
		} else {
			opLogger.Error("identification failed", zap.String("kind", string(kind)), zap.Error(err))
		}
		return nil, err
	}

	resp.RequestID = requestID
	opLogger.Info("identification complete",
		zap.String("cow_id", resp.CowID),
		zap.Bool("identified", resp.Identified),
		zap.Float64("confidence", resp.Confidence),
		zap.Bool("has_location", resp.Location != nil),
		zap.Duration("latency", latency))
	return resp, nil
}

func (uc *IdentificationUseCase) identify(ctx context.Context, requestID string, opLogger *zap.Logger, img identify.RawImage, fix *identify.LocationFix) (*identify.Response, error) {
	if fix != nil {
		if err := fix.Validate(); err != nil {
			return nil, logging.NewOperationError("usecase.validate_location", requestID, err)
		}
	}
	if img.MediaType != "" && !normalizer.MediaTypeSupported(img.MediaType) {
		return nil, logging.NewOperationError("usecase.validate_image", requestID,
			&normalizer.UnsupportedFormatError{Format: img.MediaType, Reason: "media type is not a supported image format"})
	}

	dist, err := uc.distribution(ctx, requestID, opLogger, img.Data)
	if err != nil {
		return nil, err
	}

	result, err := resolver.Resolve(dist, uc.minConfidence)
	if err != nil {
		return nil, logging.NewOperationError("usecase.resolve", requestID, err)
	}

	resp, err := identify.Merge(result, fix, uc.profiles)
	if err != nil {
		return nil, logging.NewOperationError("usecase.merge", requestID, err)
	}

	if uc.alternatives > 0 {
		if result.Identified() {
			resp.Alternatives = identify.CandidatesFrom(resolver.Alternatives(dist, uc.alternatives))
		} else {
			resp.Alternatives = identify.CandidatesFrom(dist.Top(uc.alternatives))
		}
	}
	return resp, nil
}

// distribution returns the classifier output for data, from the cache when
// the same bytes were classified by the same model before.
func (uc *IdentificationUseCase) distribution(ctx context.Context, requestID string, opLogger *zap.Logger, data []byte) (classifier.Distribution, error) {
	key := uc.cacheKey(data)
	if dist, ok := uc.cachedDistribution(ctx, requestID, opLogger, key); ok {
		uc.stats.cacheHit()
		opLogger.Debug("distribution served from cache")
		return dist, nil
	}

	tensor, err := uc.normalizer.Normalize(data)
	if err != nil {
		return nil, logging.NewOperationError("usecase.normalize", requestID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, logging.NewOperationError("usecase.normalize", requestID, err)
	}

	dist, err := uc.classifier.Classify(ctx, tensor)
	if err != nil {
		return nil, logging.NewOperationError("usecase.classify", requestID, err)
	}
	if err := dist.Validate(classifier.DistributionTolerance); err != nil {
		return nil, logging.NewOperationError("usecase.classify", requestID, err)
	}

	uc.storeDistribution(ctx, requestID, opLogger, key, dist)
	return dist, nil
}

func (uc *IdentificationUseCase) cacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("identify:%s:%s", uc.classifier.ModelID(), hex.EncodeToString(sum[:]))
}

func (uc *IdentificationUseCase) cachedDistribution(ctx context.Context, requestID string, opLogger *zap.Logger, key string) (classifier.Distribution, bool) {
	if uc.cache == nil {
		return nil, false
	}

	var (
		cached string
		hit    bool
	)
	err := retry.Do(ctx, uc.retryPolicy, uc.logger, "cache.get.distribution", requestID, func() error {
		value, err := uc.cache.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			hit = false
			return nil
		}
		if err != nil {
			return err
		}
		cached, hit = value, true
		return nil
	})
	if err != nil {
		opLogger.Warn("failed to read cache", zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}

	var dist classifier.Distribution
	if err := json.Unmarshal([]byte(cached), &dist); err != nil {
		opLogger.Warn("failed to decode cached distribution", zap.Error(err))
		return nil, false
	}
	if err := dist.Validate(classifier.DistributionTolerance); err != nil || len(dist) == 0 {
		opLogger.Warn("ignoring invalid cached distribution", zap.Error(err))
		return nil, false
	}
	return dist, true
}

func (uc *IdentificationUseCase) storeDistribution(ctx context.Context, requestID string, opLogger *zap.Logger, key string, dist classifier.Distribution) {
	if uc.cache == nil {
		return
	}

	serialized, err := json.Marshal(dist)
	if err != nil {
		opLogger.Warn("failed to serialize distribution", zap.Error(err))
		return
	}
	if err := retry.Do(ctx, uc.retryPolicy, uc.logger, "cache.set.distribution", requestID, func() error {
		return uc.cache.Set(ctx, key, string(serialized), uc.cacheTTL)
	}); err != nil {
		opLogger.Warn("failed to cache distribution", zap.Error(err))
	}
}

// Stats returns the counters accumulated since start.
func (uc *IdentificationUseCase) Stats() StatsSummary {
	return uc.stats.Summary()
}
