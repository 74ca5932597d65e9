package normalizer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func uniform(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func mustNew(t *testing.T, opts Options) *Normalizer {
	t.Helper()
	n, err := New(opts)
	if err != nil {
		t.Fatalf("failed to build normalizer: %v", err)
	}
	return n
}

func TestNormalizeProducesFixedShapeAndRange(t *testing.T) {
	n := mustNew(t, Options{})

	for _, size := range [][2]int{{300, 200}, {64, 64}, {17, 240}} {
		tensor, err := n.Normalize(encodePNG(t, gradient(size[0], size[1])))
		if err != nil {
			t.Fatalf("normalize %v: %v", size, err)
		}
		if tensor.Shape != [4]int64{1, 128, 128, 1} {
			t.Fatalf("unexpected shape %v", tensor.Shape)
		}
		if len(tensor.Data) != 128*128 {
			t.Fatalf("unexpected data length %d", len(tensor.Data))
		}
		for i, v := range tensor.Data {
			if v < 0 || v > 1 {
				t.Fatalf("value %f at %d outside [0,1]", v, i)
			}
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := encodePNG(t, gradient(321, 123))
	for _, filter := range []string{"catmull-rom", "lanczos3", "box"} {
		n := mustNew(t, Options{Filter: filter})
		first, err := n.Normalize(raw)
		if err != nil {
			t.Fatalf("%s: %v", filter, err)
		}
		second, err := n.Normalize(raw)
		if err != nil {
			t.Fatalf("%s: %v", filter, err)
		}
		if len(first.Data) != len(second.Data) {
			t.Fatalf("%s: length differs", filter)
		}
		for i := range first.Data {
			if first.Data[i] != second.Data[i] {
				t.Fatalf("%s: tensors differ at %d: %f vs %f", filter, i, first.Data[i], second.Data[i])
			}
		}
	}
}

func TestNormalizeScalesIntensity(t *testing.T) {
	n := mustNew(t, Options{Width: 8, Height: 8})

	cases := []struct {
		name string
		img  image.Image
		want float32
	}{
		{"white", uniform(40, 30, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), 1},
		{"black", uniform(40, 30, color.NRGBA{A: 255}), 0},
		{"transparent white", uniform(40, 30, color.NRGBA{R: 255, G: 255, B: 255, A: 0}), 1},
	}
	for _, tc := range cases {
		tensor, err := n.Normalize(encodePNG(t, tc.img))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		for i, v := range tensor.Data {
			if v != tc.want {
				t.Fatalf("%s: value %f at %d, want %f", tc.name, v, i, tc.want)
			}
		}
	}
}

func TestNormalizeHandlesSixteenBitGray(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 20, 20))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	tensor, err := mustNew(t, Options{Width: 4, Height: 4}).Normalize(encodePNG(t, img))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range tensor.Data {
		if v != 1 {
			t.Fatalf("expected 1, got %f", v)
		}
	}
}

func TestNormalizeRejectsCorruptBytes(t *testing.T) {
	n := mustNew(t, Options{})

	_, err := n.Normalize([]byte("definitely not an image"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T (%v)", err, err)
	}

	truncated := encodePNG(t, gradient(50, 50))
	_, err = n.Normalize(truncated[:len(truncated)/2])
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError for truncated png, got %T (%v)", err, err)
	}

	_, err = n.Normalize(nil)
	if !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestNormalizeRejectsOversizedImage(t *testing.T) {
	n := mustNew(t, Options{MaxPixels: 100})
	_, err := n.Normalize(encodePNG(t, gradient(20, 20)))
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %T (%v)", err, err)
	}
	if unsupported.Format != "png" {
		t.Fatalf("unexpected format %q", unsupported.Format)
	}
}

func TestNewRejectsUnknownFilter(t *testing.T) {
	if _, err := New(Options{Filter: "sinc"}); err == nil {
		t.Fatal("expected error for unknown filter")
	}
}

func TestMediaTypes(t *testing.T) {
	raw := encodePNG(t, gradient(4, 4))

	if got := DetectMediaType(raw); got != "image/png" {
		t.Fatalf("DetectMediaType = %q", got)
	}
	if got := ResolveMediaType("", raw); got != "image/png" {
		t.Fatalf("ResolveMediaType(empty) = %q", got)
	}
	if got := ResolveMediaType("application/octet-stream", raw); got != "image/png" {
		t.Fatalf("ResolveMediaType(octet-stream) = %q", got)
	}
	if got := ResolveMediaType("text/plain; charset=utf-8", raw); got != "text/plain" {
		t.Fatalf("ResolveMediaType(text) = %q", got)
	}
	if !GenericMediaType("") || !GenericMediaType("application/octet-stream; name=x") {
		t.Fatal("expected empty and octet-stream to be generic")
	}
	if GenericMediaType("text/plain") || GenericMediaType("image/png") {
		t.Fatal("expected declared types not to be generic")
	}
	if !MediaTypeSupported("image/jpeg") || !MediaTypeSupported("IMAGE/PNG") {
		t.Fatal("expected jpeg and png to be supported")
	}
	if MediaTypeSupported("text/plain") || MediaTypeSupported("") {
		t.Fatal("expected text and empty media types to be rejected")
	}
}
