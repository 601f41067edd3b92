package imagenorm

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 800
	DefaultQuality      = 70

	// MaxPixels bounds the decoded size of an upload. Decoding allocates the
	// full canvas before any resizing.
	MaxPixels = 40_000_000

	MediaType = "image/jpeg"
)

type Image struct {
	Width     int
	Height    int
	Data      []byte
	Encoded   string
	MediaType string
}

func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MediaType, i.Encoded)
}

type NormalizationError struct {
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err == nil {
		return "normalize image: " + e.Reason
	}
	return fmt.Sprintf("normalize image: %s: %v", e.Reason, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

type Normalizer struct {
	MaxDimension int
	Quality      int
}

func Normalize(encoded string, maxDimension int) (Image, error) {
	return Normalizer{MaxDimension: maxDimension}.Normalize(encoded)
}

func (n Normalizer) Normalize(encoded string) (Image, error) {
	payload := stripDataURLPrefix(strings.TrimSpace(encoded))
	if payload == "" {
		return Image{}, &NormalizationError{Reason: "empty payload"}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, &NormalizationError{Reason: "invalid base64", Err: err}
	}
	return n.NormalizeBytes(data)
}

func (n Normalizer) NormalizeBytes(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, &NormalizationError{Reason: "empty payload"}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Image{}, &NormalizationError{Reason: "unsupported format", Err: err}
		}
		return Image{}, &NormalizationError{Reason: "decode failed", Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Image{}, &NormalizationError{Reason: "image too large"}
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Image{}, &NormalizationError{Reason: "unsupported format", Err: err}
		}
		return Image{}, &NormalizationError{Reason: "decode failed", Err: err}
	}

	bounds := src.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), n.maxDimension())
	if width == 0 || height == 0 {
		return Image{}, &NormalizationError{Reason: fmt.Sprintf("empty %s image", format)}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.quality()}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}

	out := buf.Bytes()
	return Image{
		Width:     width,
		Height:    height,
		Data:      out,
		Encoded:   base64.StdEncoding.EncodeToString(out),
		MediaType: MediaType,
	}, nil
}

// FitWithin never upscales.
func FitWithin(width, height, maxDimension int) (int, int) {
	if width <= 0 || height <= 0 || maxDimension <= 0 {
		return width, height
	}

	if width >= height {
		if width > maxDimension {
			height = scaleSide(height, maxDimension, width)
			width = maxDimension
		}
		return width, height
	}

	if height > maxDimension {
		width = scaleSide(width, maxDimension, height)
		height = maxDimension
	}
	return width, height
}

func scaleSide(side, target, longer int) int {
	scaled := int(math.Round(float64(side) * float64(target) / float64(longer)))
	if scaled < 1 {
		return 1
	}
	return scaled
}

func (n Normalizer) maxDimension() int {
	if n.MaxDimension <= 0 {
		return DefaultMaxDimension
	}
	return n.MaxDimension
}

func (n Normalizer) quality() int {
	if n.Quality < 1 || n.Quality > 100 {
		return DefaultQuality
	}
	return n.Quality
}

func stripDataURLPrefix(value string) string {
	if !strings.HasPrefix(value, "data:") {
		return value
	}
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return value[idx+1:]
	}
	return ""
}
