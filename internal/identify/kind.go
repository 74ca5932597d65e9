package identify

import (
	"context"
	"errors"

	"github.com/example/cattle-id/internal/classifier"
	"github.com/example/cattle-id/internal/normalizer"
	"github.com/example/cattle-id/internal/resolver"
)

// Kind discriminates identification failures for callers.
type Kind string

const (
	KindDecode            Kind = "decode"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindInvalidLocation   Kind = "invalid_location"
	KindShapeMismatch     Kind = "shape_mismatch"
	KindModelUnavailable  Kind = "model_unavailable"
	KindInvalidScores     Kind = "invalid_scores"
	KindEmptyDistribution Kind = "empty_distribution"
	KindUnknownProfile    Kind = "unknown_profile"
	KindCanceled          Kind = "canceled"
	KindInternal          Kind = "internal"
)

// KindOf classifies err. Unrecognised errors are KindInternal.
func KindOf(err error) Kind {
	var (
		decodeErr      *normalizer.DecodeError
		unsupportedErr *normalizer.UnsupportedFormatError
		shapeErr       *classifier.ShapeMismatchError
		unavailableErr *classifier.ModelUnavailableError
		profileErr     *UnknownProfileError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.As(err, &unsupportedErr):
		return KindUnsupportedFormat
	case errors.Is(err, ErrInvalidLocation):
		return KindInvalidLocation
	case errors.As(err, &shapeErr):
		return KindShapeMismatch
	case errors.As(err, &unavailableErr):
		return KindModelUnavailable
	case errors.Is(err, classifier.ErrInvalidScores):
		return KindInvalidScores
	case errors.Is(err, resolver.ErrEmptyDistribution):
		return KindEmptyDistribution
	case errors.As(err, &profileErr):
		return KindUnknownProfile
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}

// ClientError reports whether the failure was caused by the request itself.
func (k Kind) ClientError() bool {
	switch k {
	case KindDecode, KindUnsupportedFormat, KindInvalidLocation:
		return true
	}
	return false
}
