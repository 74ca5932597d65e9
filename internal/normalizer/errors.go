package normalizer

import (
	"errors"
	"fmt"
)

// ErrEmptyImage is wrapped in a DecodeError when no bytes were supplied.
var ErrEmptyImage = errors.New("image is empty")

// DecodeError reports bytes that the image codecs could not decode.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports an image that decoded, or was declared, in a
// form the normalizer cannot turn into a tensor.
type UnsupportedFormatError struct {
	Format string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == "" {
		return "unsupported image: " + e.Reason
	}
	return fmt.Sprintf("unsupported image format %q: %s", e.Format, e.Reason)
}
