package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"

	"github.com/pixvert/pixvert/pkg/cacheengine"
)

// Encoder implements spec.md §4.5: serialize the (possibly resized)
// raster to the requested OutputFormat, memoized per resource + format
// + dimensions — the same key the Gateway can peek without running the
// decode/resize stages at all (peek_cache, spec.md §4.5/§5).
type Encoder struct {
	cache  cacheengine.Engine
	logger *zap.Logger
}

// NewEncoder builds an Encoder backed by the given Cache Engine.
func NewEncoder(cache cacheengine.Engine, logger *zap.Logger) *Encoder {
	return &Encoder{cache: cache, logger: logger}
}

func encoderTag(resourceID string, format OutputFormat, dims OutputDimensions) string {
	return cacheengine.Tag(fmt.Sprintf("%s - %s %s", resourceID, format.Display(), dims.Display()))
}

// PeekCache looks up an already-encoded response without touching the
// Decoder or Resizer, letting the Gateway skip the rest of the pipeline
// entirely on a full cache hit.
func (e *Encoder) PeekCache(resourceID string, format OutputFormat, dims OutputDimensions) ([]byte, bool) {
	tag := encoderTag(resourceID, format, dims)
	b, err := e.cache.Get(tag)
	if err != nil {
		return nil, false
	}
	return b, true
}

// Encode serializes img as format, consulting and populating the
// Encoder's cache namespace keyed on resourceID + format + dims.
func (e *Encoder) Encode(resourceID string, img DecodedImage, format OutputFormat, dims OutputDimensions) ([]byte, error) {
	tag := encoderTag(resourceID, format, dims)
	if cached, ok := e.PeekCache(resourceID, format, dims); ok {
		return cached, nil
	}

	out, err := encodeByFormat(img, format)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(tag, out); err != nil {
		e.logger.Warn("encoder: failed to store cache entry", zap.String("resource_id", resourceID), zap.Error(err))
	}
	return out, nil
}

func encodeByFormat(img DecodedImage, format OutputFormat) ([]byte, error) {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	copy(rgba.Pix, img.Pixels)

	var buf bytes.Buffer
	switch format.Kind {
	case FormatPNG:
		if err := png.Encode(&buf, rgba); err != nil {
			return nil, fmt.Errorf("imagecodec: png encode: %w", err)
		}
	case FormatBMP:
		if err := bmp.Encode(&buf, rgba); err != nil {
			return nil, fmt.Errorf("imagecodec: bmp encode: %w", err)
		}
	case FormatJPEG:
		if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: format.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("imagecodec: jpeg encode: %w", err)
		}
	case FormatWebPLossless:
		opts, err := encoder.NewLosslessEncoderOptions(encoder.PresetDefault, 9)
		if err != nil {
			return nil, fmt.Errorf("imagecodec: webp lossless options: %w", err)
		}
		if err := webp.Encode(&buf, rgba, opts); err != nil {
			return nil, fmt.Errorf("imagecodec: webp lossless encode: %w", err)
		}
	case FormatWebPLossy:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, format.WebPQuality)
		if err != nil {
			return nil, fmt.Errorf("imagecodec: webp lossy options: %w", err)
		}
		if err := webp.Encode(&buf, rgba, opts); err != nil {
			return nil, fmt.Errorf("imagecodec: webp lossy encode: %w", err)
		}
	default:
		return nil, fmt.Errorf("imagecodec: unsupported output format %v", format.Kind)
	}
	return buf.Bytes(), nil
}
