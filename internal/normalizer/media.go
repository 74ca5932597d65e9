package normalizer

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var supportedMediaTypes = map[string]struct{}{
	"image/jpeg":     {},
	"image/png":      {},
	"image/gif":      {},
	"image/bmp":      {},
	"image/x-ms-bmp": {},
	"image/tiff":     {},
	"image/webp":     {},
}

// MediaTypeSupported reports whether a declared media type can be decoded.
// Parameters such as charset are ignored.
func MediaTypeSupported(mediaType string) bool {
	_, ok := supportedMediaTypes[baseMediaType(mediaType)]
	return ok
}

// DetectMediaType sniffs the media type from the leading bytes of data.
func DetectMediaType(data []byte) string {
	return baseMediaType(mimetype.Detect(data).String())
}

// GenericMediaType reports whether a declared type says nothing about the
// content (missing or application/octet-stream).
func GenericMediaType(declared string) bool {
	base := baseMediaType(declared)
	return base == "" || base == "application/octet-stream"
}

// ResolveMediaType returns the declared type unless it is generic, in which
// case the content is sniffed.
func ResolveMediaType(declared string, data []byte) string {
	if GenericMediaType(declared) {
		return DetectMediaType(data)
	}
	return baseMediaType(declared)
}

func baseMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(mediaType)
	}
	return parsed
}
