// Package normalizer turns uploaded nose-print photographs into the fixed
// single-channel tensor the identity model was trained on.
package normalizer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultSize      = 128
	DefaultFilter    = "catmull-rom"
	DefaultMaxPixels = 50_000_000
)

// Tensor is a (batch, height, width, channel) float32 array with values in [0,1].
type Tensor struct {
	Shape [4]int64
	Data  []float32
}

// Options configures a Normalizer. Zero values fall back to the defaults.
type Options struct {
	Width     int
	Height    int
	Filter    string
	MaxPixels int
}

type resampleFunc func(img image.Image, width, height int) image.Image

var filters = map[string]resampleFunc{
	"catmull-rom": imagingFilter(imaging.CatmullRom),
	"linear":      imagingFilter(imaging.Linear),
	"box":         imagingFilter(imaging.Box),
	"nearest":     imagingFilter(imaging.NearestNeighbor),
	"lanczos3": func(img image.Image, width, height int) image.Image {
		return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	},
}

func imagingFilter(f imaging.ResampleFilter) resampleFunc {
	return func(img image.Image, width, height int) image.Image {
		return imaging.Resize(img, width, height, f)
	}
}

// Normalizer is stateless after construction and safe for concurrent use.
type Normalizer struct {
	width     int
	height    int
	maxPixels int
	resample  resampleFunc
}

// New validates opts and returns a Normalizer.
func New(opts Options) (*Normalizer, error) {
	if opts.Width == 0 {
		opts.Width = DefaultSize
	}
	if opts.Height == 0 {
		opts.Height = DefaultSize
	}
	if opts.Filter == "" {
		opts.Filter = DefaultFilter
	}
	if opts.MaxPixels == 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", opts.Width, opts.Height)
	}
	resample, ok := filters[opts.Filter]
	if !ok {
		return nil, fmt.Errorf("unknown resample filter %q", opts.Filter)
	}
	return &Normalizer{
		width:     opts.Width,
		height:    opts.Height,
		maxPixels: opts.MaxPixels,
		resample:  resample,
	}, nil
}

// Shape is the tensor shape every Normalize call produces.
func (n *Normalizer) Shape() [4]int64 {
	return [4]int64{1, int64(n.height), int64(n.width), 1}
}

// Normalize decodes raw, converts it to grayscale, resizes it and scales the
// intensities to [0,1]. Identical input yields a bit-identical tensor.
func (n *Normalizer) Normalize(raw []byte) (*Tensor, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Err: ErrEmptyImage}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &UnsupportedFormatError{Format: format, Reason: fmt.Sprintf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)}
	}
	if cfg.Width*cfg.Height > n.maxPixels {
		return nil, &UnsupportedFormatError{Format: format, Reason: fmt.Sprintf("image of %dx%d exceeds %d pixels", cfg.Width, cfg.Height, n.maxPixels)}
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	gray := dropAlpha(imaging.Grayscale(img))
	resized := n.resample(gray, n.width, n.height)

	bounds := resized.Bounds()
	if bounds.Dx() != n.width || bounds.Dy() != n.height {
		return nil, &UnsupportedFormatError{Format: format, Reason: fmt.Sprintf("resampled to %dx%d instead of %dx%d", bounds.Dx(), bounds.Dy(), n.width, n.height)}
	}

	data := make([]float32, n.width*n.height)
	for y := 0; y < n.height; y++ {
		for x := 0; x < n.width; x++ {
			v := color.GrayModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray).Y
			data[y*n.width+x] = float32(v) / 255
		}
	}

	return &Tensor{Shape: n.Shape(), Data: data}, nil
}

// dropAlpha keeps the luma channel of a grayscale NRGBA image. Alpha is
// discarded, not blended.
func dropAlpha(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[y*dst.Stride+x] = row[x*4]
		}
	}
	return dst
}
