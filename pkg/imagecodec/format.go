// Package imagecodec implements the Decoder, Resizer and Encoder stages
// (spec.md §4.3-4.6) plus the OutputFormat/OutputDimensions grammar that
// the Gateway's URL path encodes.
package imagecodec

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatKind is the closed set of output codecs (spec.md §3). A closed
// enum, not a trait-object registry — REDESIGN FLAGS in spec.md §9
// mandates collapsing the source's open-ended provider list since the
// supported codec set is finite and known at compile time.
type FormatKind int

const (
	FormatPNG FormatKind = iota
	FormatJPEG
	FormatWebPLossless
	FormatWebPLossy
	FormatBMP
)

// DefaultJPEGQuality and DefaultWebPLossyQuality are the quality
// defaults from spec.md §3/§6.
const (
	DefaultJPEGQuality    = 90
	DefaultWebPLossyQuality = 95.0
)

// OutputFormat is the parsed, validated target codec plus its quality
// parameter where applicable.
type OutputFormat struct {
	Kind            FormatKind
	JPEGQuality     int     // 0..100, only meaningful when Kind == FormatJPEG
	WebPQuality     float32 // 0..100, only meaningful when Kind == FormatWebPLossy
	QualityExplicit bool    // true when the path token carried its own quality
}

// ContentType returns the MIME type written as the response Content-Type.
func (f OutputFormat) ContentType() string {
	switch f.Kind {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebPLossless, FormatWebPLossy:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// Display renders the format in the exact string form spec.md §4.6 fixes
// as cache ABI. The "loseless" spelling is intentional — see DESIGN.md.
func (f OutputFormat) Display() string {
	switch f.Kind {
	case FormatPNG:
		return "image/png"
	case FormatBMP:
		return "image/bmp"
	case FormatJPEG:
		return fmt.Sprintf("image/jpeg - quality: %d", f.JPEGQuality)
	case FormatWebPLossless:
		return "image/webp - loseless"
	case FormatWebPLossy:
		return fmt.Sprintf("image/webp - quality: %v", f.WebPQuality)
	default:
		return "application/octet-stream"
	}
}

// ParseError is the Encoder/format parse error enum from spec.md §7.
type ParseError struct {
	Kind ParseErrorKind
	Msg  string
}

func (e *ParseError) Error() string { return e.Msg }

type ParseErrorKind int

const (
	ParseErrInvalidFormat ParseErrorKind = iota
	ParseErrInvalidIntQuality
	ParseErrInvalidFloatQuality
	ParseErrQualityOutOfRange
)

func parseErr(kind ParseErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ParseFormat parses a path-segment format token per the grammar in
// spec.md §4.6:
//
//	format := "png" | "bmp"
//	        | "jpeg" [quality_u8]
//	        | "webp" [quality_f32]
//	        | "image/png" | "image/bmp" | "image/jpeg" | "image/webp"
func ParseFormat(token string) (OutputFormat, error) {
	lower := strings.ToLower(token)
	switch {
	case lower == "png" || lower == "image/png":
		return OutputFormat{Kind: FormatPNG}, nil
	case lower == "bmp" || lower == "image/bmp":
		return OutputFormat{Kind: FormatBMP}, nil
	case lower == "image/jpeg":
		return OutputFormat{Kind: FormatJPEG, JPEGQuality: DefaultJPEGQuality}, nil
	case lower == "image/webp":
		return OutputFormat{Kind: FormatWebPLossless}, nil
	case strings.HasPrefix(lower, "jpeg"):
		return parseJPEG(lower)
	case strings.HasPrefix(lower, "webp"):
		return parseWebP(lower)
	default:
		return OutputFormat{}, parseErr(ParseErrInvalidFormat, "unrecognized output format %q", token)
	}
}

func parseJPEG(lower string) (OutputFormat, error) {
	rest := strings.TrimPrefix(lower, "jpeg")
	if rest == "" {
		return OutputFormat{Kind: FormatJPEG, JPEGQuality: DefaultJPEGQuality}, nil
	}
	q, err := strconv.ParseUint(rest, 10, 8)
	if err != nil {
		return OutputFormat{}, parseErr(ParseErrInvalidIntQuality, "invalid jpeg quality %q: %v", rest, err)
	}
	if q > 100 {
		return OutputFormat{}, parseErr(ParseErrQualityOutOfRange, "jpeg quality %d out of range 0..100", q)
	}
	return OutputFormat{Kind: FormatJPEG, JPEGQuality: int(q), QualityExplicit: true}, nil
}

func parseWebP(lower string) (OutputFormat, error) {
	rest := strings.TrimPrefix(lower, "webp")
	if rest == "" {
		return OutputFormat{Kind: FormatWebPLossless}, nil
	}
	q, err := strconv.ParseFloat(rest, 32)
	if err != nil {
		return OutputFormat{}, parseErr(ParseErrInvalidFloatQuality, "invalid webp quality %q: %v", rest, err)
	}
	if q < 0 || q > 100 {
		return OutputFormat{}, parseErr(ParseErrQualityOutOfRange, "webp quality %v out of range 0..100", q)
	}
	return OutputFormat{Kind: FormatWebPLossy, WebPQuality: float32(q), QualityExplicit: true}, nil
}

// DimensionsKind is the three-valued OutputDimensions decision from
// spec.md §3/§4.4.
type DimensionsKind int

const (
	DimensionsOriginal DimensionsKind = iota
	DimensionsKeepRatio
	DimensionsExact
)

// OutputDimensions is what the Resizer should do: skip, fit-within, or exact.
type OutputDimensions struct {
	Kind   DimensionsKind
	Width  int
	Height int
}

// Display renders OutputDimensions in the exact cache-ABI form from spec.md §4.6.
func (d OutputDimensions) Display() string {
	switch d.Kind {
	case DimensionsExact:
		return fmt.Sprintf("%dx%d exact", d.Width, d.Height)
	case DimensionsKeepRatio:
		return fmt.Sprintf("%dx%d keep ratio", d.Width, d.Height)
	default:
		return "original"
	}
}
