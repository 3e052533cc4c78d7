package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pixvert/pixvert/pkg/imagecodec"
)

// parsedRequest is the result of matching one of the six route shapes
// in spec.md §6 against a request path.
type parsedRequest struct {
	dims        imagecodec.OutputDimensions
	formatToken string
	hasFormat   bool
	url         string
}

var dimsPattern = func(seg string) (width, height int, ok bool) {
	parts := strings.SplitN(seg, "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return int(w), int(h), true
}

// parseRequest matches `path` (the request's raw, still percent-encoded
// path, so that a fully percent-encoded {url} segment — spec.md §6's own
// example is `/100_50/webp/http%3A%2F%2Forigin%2Fpic.jpg` — isn't
// mistaken for several path segments) against:
//
//	{width}_{height}/keep-ratio/{format}/{url...}
//	{width}_{height}/keep-ratio/{url...}
//	{width}_{height}/{format}/{url...}
//	{width}_{height}/{url...}
//	{format}/{url...}
//	{url...}
//
// An unparsable {width}_{height} segment silently falls through to "no
// resize" (spec.md §6/§9): the segment is left untouched and the parse
// resumes as if the dimensions component were absent.
//
// The format segment is bound structurally, the way the original's
// actix routes `/{format}/{tail:.*}` ahead of the bare `/{tail:.*}`
// fallback: whenever a segment remains ahead of more path (i.e. this
// isn't the final, whole-remaining-path segment), it is consumed as the
// format token regardless of whether it parses as a recognized format —
// an invalid token is reported as a parse error by resolveFormat, not
// silently folded back into the url. Only when nothing would be left
// for {url...} does the candidate segment stay unconsumed and become
// the url itself (spec.md's `/{url...}` no-format route requires the
// whole remaining path be a single, percent-encoded segment).
func parseRequest(path string) (parsedRequest, error) {
	req := parsedRequest{dims: imagecodec.OutputDimensions{Kind: imagecodec.DimensionsOriginal}}
	rest := path

	if seg, tail, ok := nextSegment(rest); ok {
		if w, h, parsed := dimsPattern(seg); parsed {
			rest = tail
			kind := imagecodec.DimensionsExact
			if kr, krTail, ok := nextSegment(rest); ok && kr == "keep-ratio" {
				kind = imagecodec.DimensionsKeepRatio
				rest = krTail
			}
			req.dims = imagecodec.OutputDimensions{Kind: kind, Width: w, Height: h}
		}
	}

	if seg, tail, ok := nextSegment(rest); ok && tail != "" {
		req.formatToken = seg
		req.hasFormat = true
		rest = tail
	}

	if rest == "" {
		return parsedRequest{}, fmt.Errorf("gateway: missing upstream url")
	}

	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return parsedRequest{}, fmt.Errorf("gateway: invalid percent-encoding in resource url: %w", err)
	}
	req.url = decoded
	return req, nil
}

// nextSegment splits off the first "/"-delimited segment of s. ok is
// false when s is empty (nothing left to peel).
func nextSegment(s string) (seg, tail string, ok bool) {
	if s == "" {
		return "", "", false
	}
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return s, "", true
	}
	return s[:idx], s[idx+1:], true
}

// formatSelection is the resolved output format plus whether the
// caller explicitly requested one (vs. inferring from the upstream
// Content-Type).
type formatSelection struct {
	format   imagecodec.OutputFormat
	hasToken bool
}

// resolveFormat parses req's format token (if any) and applies the
// `?quality=` override from spec.md §6.
func resolveFormat(req parsedRequest, quality float64) (formatSelection, error) {
	if !req.hasFormat {
		return formatSelection{hasToken: false}, nil
	}
	format, err := imagecodec.ParseFormat(req.formatToken)
	if err != nil {
		return formatSelection{}, err
	}
	format = applyQualityOverride(format, quality)
	return formatSelection{format: format, hasToken: true}, nil
}

// applyQualityOverride applies the `?quality=` query parameter
// (spec.md §6) unless the path token already pinned an explicit
// quality, in which case the token wins.
func applyQualityOverride(format imagecodec.OutputFormat, quality float64) imagecodec.OutputFormat {
	if format.QualityExplicit {
		return format
	}
	switch format.Kind {
	case imagecodec.FormatJPEG:
		format.JPEGQuality = int(quality)
	case imagecodec.FormatWebPLossy:
		format.WebPQuality = float32(quality)
	}
	return format
}
