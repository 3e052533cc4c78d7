package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/pixvert/pixvert/pkg/cacheengine"
	"github.com/pixvert/pixvert/pkg/resource"
)

// DecodeErrorKind enumerates the Decoder's abstract errors (spec.md §7).
type DecodeErrorKind int

const (
	DecodeErrUnknownFormat DecodeErrorKind = iota
	DecodeErrMismatchedFormat
)

// DecodeError is the Decoder's error type.
type DecodeError struct {
	Kind  DecodeErrorKind
	Mime  string
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Kind == DecodeErrUnknownFormat {
		return fmt.Sprintf("decoder: unknown format %q", e.Mime)
	}
	return fmt.Sprintf("decoder: mismatched format for %q: %v", e.Mime, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Decoder implements spec.md §4.3: parse upstream bytes into an RGBA8
// raster, memoized per resource identity (the cache key is built from
// Resource.ID alone; the media type is not part of it).
type Decoder struct {
	cache  cacheengine.Engine
	logger *zap.Logger
}

// NewDecoder builds a Decoder backed by the given Cache Engine.
func NewDecoder(cache cacheengine.Engine, logger *zap.Logger) *Decoder {
	return &Decoder{cache: cache, logger: logger}
}

func decoderTag(resourceID string) string {
	return cacheengine.Tag("Image Decoder " + resourceID)
}

// Decode returns the decoded raster for r, consulting and populating the
// Decoder's cache namespace (spec.md §4.1/§4.3).
func (d *Decoder) Decode(r resource.Resource) (DecodedImage, error) {
	tag := decoderTag(r.ID)

	if cached, ok := d.lookupCache(tag); ok {
		return cached, nil
	}

	img, err := decodeByContentType(r.ContentType, r.Content)
	if err != nil {
		return DecodedImage{}, err
	}

	if err := d.cache.Set(tag, marshalDecodedImage(img)); err != nil {
		d.logger.Warn("decoder: failed to store cache entry", zap.String("resource_id", r.ID), zap.Error(err))
	}
	return img, nil
}

func (d *Decoder) lookupCache(tag string) (DecodedImage, bool) {
	b, err := d.cache.Get(tag)
	if err != nil {
		return DecodedImage{}, false
	}
	img, err := unmarshalDecodedImage(b)
	if err != nil {
		d.logger.Warn("decoder: invalid cache entry", zap.String("tag", tag), zap.Error(err))
		return DecodedImage{}, false
	}
	return img, true
}

// decodeByContentType dispatches to the codec matching contentType,
// falling back to byte-sniffing when the declared type is unrecognized
// (spec.md §4.3). This is a closed switch, not a registry of
// "can_be_used" providers — REDESIGN FLAGS in spec.md §9.
func decodeByContentType(contentType string, content []byte) (DecodedImage, error) {
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))

	switch mime {
	case "image/jpeg":
		return decodeStdlib(mime, content, jpeg.Decode)
	case "image/png":
		return decodeStdlib(mime, content, png.Decode)
	case "image/bmp":
		return decodeStdlib(mime, content, bmp.Decode)
	case "image/x-tga", "image/x-targa":
		return decodeTGABytes(content)
	case "image/webp":
		return decodeStdlib(mime, content, webp.Decode)
	default:
		return sniffAndDecode(mime, content)
	}
}

func decodeStdlib(mime string, content []byte, fn func(r *bytes.Reader) (image.Image, error)) (DecodedImage, error) {
	img, err := fn(bytes.NewReader(content))
	if err != nil {
		return DecodedImage{}, &DecodeError{Kind: DecodeErrMismatchedFormat, Mime: mime, Cause: err}
	}
	return toRGBA(img), nil
}

// sniffAndDecode is reached when the declared content type doesn't match
// any known codec; it tries each codec against the leading bytes before
// giving up, matching the teacher's FromBytes try-in-order dispatch.
func sniffAndDecode(declaredMime string, content []byte) (DecodedImage, error) {
	type attempt struct {
		mime string
		fn   func(r *bytes.Reader) (image.Image, error)
	}
	attempts := []attempt{
		{"image/png", png.Decode},
		{"image/jpeg", jpeg.Decode},
		{"image/bmp", bmp.Decode},
		{"image/webp", webp.Decode},
	}
	for _, a := range attempts {
		if img, err := a.fn(bytes.NewReader(content)); err == nil {
			return toRGBA(img), nil
		}
	}
	if img, err := decodeTGABytes(content); err == nil {
		return img, nil
	}
	return DecodedImage{}, &DecodeError{Kind: DecodeErrUnknownFormat, Mime: declaredMime}
}

// toRGBA normalizes any decoded image.Image to the RGBA8 raster the
// rest of the pipeline operates on.
func toRGBA(img image.Image) DecodedImage {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return DecodedImage{Width: b.Dx(), Height: b.Dy(), Pixels: rgba.Pix}
}
