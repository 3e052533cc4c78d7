package imagecodec

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/pixvert/pixvert/pkg/cacheengine"
)

// ResizeErrorKind enumerates the Resizer's abstract errors (spec.md §7).
type ResizeErrorKind int

const (
	ResizeErrTooLarge ResizeErrorKind = iota
)

// ResizeError is the Resizer's error type.
type ResizeError struct {
	Kind ResizeErrorKind
	Msg  string
}

func (e *ResizeError) Error() string { return e.Msg }

// Resizer implements spec.md §4.4: KeepRatio/Exact resampling with
// Lanczos3, memoized per resource + target dimensions, and guarded by a
// maximum output pixel budget evaluated before any resample runs.
type Resizer struct {
	cache             cacheengine.Engine
	logger            *zap.Logger
	maximumImageSize  int // width*height ceiling, 0 means unbounded
}

// NewResizer builds a Resizer backed by the given Cache Engine.
// maximumImageSize is the width*height ceiling from spec.md §6
// ("maximum_image_size"); 0 disables the check.
func NewResizer(cache cacheengine.Engine, logger *zap.Logger, maximumImageSize int) *Resizer {
	return &Resizer{cache: cache, logger: logger, maximumImageSize: maximumImageSize}
}

func resizerTag(resourceID string, dims OutputDimensions) string {
	return cacheengine.Tag(fmt.Sprintf("%s - %s", resourceID, dims.Display()))
}

// Resize applies dims to img, consulting and populating the Resizer's
// cache namespace. OutputDimensions{Kind: DimensionsOriginal} is a
// no-op that bypasses the cache entirely (spec.md §4.4).
func (r *Resizer) Resize(resourceID string, img DecodedImage, dims OutputDimensions) (DecodedImage, error) {
	if dims.Kind == DimensionsOriginal {
		return img, nil
	}

	if err := r.checkBudget(dims); err != nil {
		return DecodedImage{}, err
	}

	tag := resizerTag(resourceID, dims)
	if cached, ok := r.lookupCache(tag); ok {
		return cached, nil
	}

	resized := resample(img, dims)

	if err := r.cache.Set(tag, marshalDecodedImage(resized)); err != nil {
		r.logger.Warn("resizer: failed to store cache entry", zap.String("resource_id", resourceID), zap.Error(err))
	}
	return resized, nil
}

// checkBudget enforces maximum_image_size before any target buffer is
// allocated, for both keep-ratio and exact paths (spec.md §4.4/§6).
func (r *Resizer) checkBudget(dims OutputDimensions) error {
	if r.maximumImageSize <= 0 {
		return nil
	}
	if dims.Width*dims.Height > r.maximumImageSize {
		return &ResizeError{
			Kind: ResizeErrTooLarge,
			Msg:  fmt.Sprintf("resizer: requested %dx%d exceeds maximum_image_size %d", dims.Width, dims.Height, r.maximumImageSize),
		}
	}
	return nil
}

func (r *Resizer) lookupCache(tag string) (DecodedImage, bool) {
	b, err := r.cache.Get(tag)
	if err != nil {
		return DecodedImage{}, false
	}
	img, err := unmarshalDecodedImage(b)
	if err != nil {
		r.logger.Warn("resizer: invalid cache entry", zap.String("tag", tag), zap.Error(err))
		return DecodedImage{}, false
	}
	return img, true
}

// resample performs the actual Lanczos3 resampling via
// disintegration/imaging, dispatching on KeepRatio vs Exact.
func resample(img DecodedImage, dims OutputDimensions) DecodedImage {
	src := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	copy(src.Pix, img.Pixels)

	var out *image.NRGBA
	switch dims.Kind {
	case DimensionsKeepRatio:
		out = imaging.Fit(src, dims.Width, dims.Height, imaging.Lanczos)
	default: // DimensionsExact
		out = imaging.Resize(src, dims.Width, dims.Height, imaging.Lanczos)
	}

	b := out.Bounds()
	rgba := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		srcOff := out.PixOffset(b.Min.X, y)
		dstOff := rgba.PixOffset(b.Min.X, y)
		copy(rgba.Pix[dstOff:dstOff+b.Dx()*4], out.Pix[srcOff:srcOff+b.Dx()*4])
	}

	return DecodedImage{Width: b.Dx(), Height: b.Dy(), Pixels: rgba.Pix}
}
