// Package gateway implements the HTTP surface from spec.md §6: URL
// grammar parsing, the Fetcher → Decoder → Resizer → Encoder pipeline,
// and the error-kind-to-status-code mapping.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pixvert/pixvert/pkg/fetcher"
	"github.com/pixvert/pixvert/pkg/imagecodec"
	"github.com/pixvert/pixvert/pkg/resource"
)

// DefaultQuality is the encoder quality query-param default (spec.md §6).
const DefaultQuality = 95.0

// HealthChecker reports whether a component is usable, for /_health
// (SPEC_FULL.md §C).
type HealthChecker interface {
	Healthy() error
}

// DefaultCPULimit bounds concurrent decode/resize/encode work so a
// burst of requests can't starve the process of CPU while network I/O
// for other requests keeps making progress (spec.md §5), following the
// teacher's server.go processingLimit semaphore.
const DefaultCPULimit = 256

// Gateway wires the four pipeline stages behind the HTTP handler.
type Gateway struct {
	Fetcher *fetcher.Fetcher
	Decoder *imagecodec.Decoder
	Resizer *imagecodec.Resizer
	Encoder *imagecodec.Encoder
	Logger  *zap.Logger
	Health  []HealthChecker

	// CPULimit bounds concurrent decode/resize/encode work. Nil means
	// unbounded; NewGateway populates it with DefaultCPULimit.
	CPULimit chan struct{}
}

// NewGateway builds a Gateway with its CPU-work semaphore sized to
// DefaultCPULimit.
func NewGateway(fet *fetcher.Fetcher, dec *imagecodec.Decoder, rsz *imagecodec.Resizer, enc *imagecodec.Encoder, logger *zap.Logger, health []HealthChecker) *Gateway {
	return &Gateway{
		Fetcher:  fet,
		Decoder:  dec,
		Resizer:  rsz,
		Encoder:  enc,
		Logger:   logger,
		Health:   health,
		CPULimit: make(chan struct{}, DefaultCPULimit),
	}
}

func (g *Gateway) acquireCPU() {
	if g.CPULimit != nil {
		g.CPULimit <- struct{}{}
	}
}

func (g *Gateway) releaseCPU() {
	if g.CPULimit != nil {
		<-g.CPULimit
	}
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.EscapedPath(), "/")
	if path == "_health" {
		g.serveHealth(w)
		return
	}

	req, err := parseRequest(path)
	if err != nil {
		writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	quality, err := parseQuality(r.URL.Query().Get("quality"))
	if err != nil {
		writeFormatParseError(w, err)
		return
	}

	g.handle(w, r.Context(), req, quality)
}

// writeFormatParseError maps an OutputFormat parse failure to its
// status code: an unrecognized format token means no encoder matches
// (406), anything else about the quality suffix is 422 (spec.md §6).
func writeFormatParseError(w http.ResponseWriter, err error) {
	var parseErr *imagecodec.ParseError
	if errors.As(err, &parseErr) && parseErr.Kind == imagecodec.ParseErrInvalidFormat {
		writeErrorResponse(w, http.StatusNotAcceptable, err.Error())
		return
	}
	writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
}

func (g *Gateway) serveHealth(w http.ResponseWriter) {
	for _, h := range g.Health {
		if err := h.Healthy(); err != nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (g *Gateway) handle(w http.ResponseWriter, ctx context.Context, req parsedRequest, quality float64) {
	format, formatErr := resolveFormat(req, quality)
	if formatErr != nil {
		writeFormatParseError(w, formatErr)
		return
	}

	res, err := g.Fetcher.Fetch(ctx, req.url)
	if err != nil {
		g.writeStageError(w, err)
		return
	}

	if !format.hasToken {
		format.format = applyQualityOverride(inferFormatFromContentType(res.ContentType), quality)
	}

	if encoded, ok := g.Encoder.PeekCache(res.ID, format.format, req.dims); ok {
		writeSuccess(w, res, format.format, encoded)
		return
	}

	g.acquireCPU()
	defer g.releaseCPU()

	img, err := g.Decoder.Decode(res)
	if err != nil {
		g.writeStageError(w, err)
		return
	}

	resized, err := g.Resizer.Resize(res.ID, img, req.dims)
	if err != nil {
		g.writeStageError(w, err)
		return
	}

	encoded, err := g.Encoder.Encode(res.ID, resized, format.format, req.dims)
	if err != nil {
		g.writeStageError(w, err)
		return
	}

	writeSuccess(w, res, format.format, encoded)
}

func writeSuccess(w http.ResponseWriter, res resource.Resource, format imagecodec.OutputFormat, body []byte) {
	if cc := res.CacheMetadata[resource.MetaCacheControl]; cc != "" {
		w.Header().Set("Cache-Control", cc)
	}
	if expires := res.CacheMetadata[resource.MetaExpires]; expires != "" {
		w.Header().Set("Expires", expires)
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeErrorResponse(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

// writeStageError maps an error from any pipeline stage to the HTTP
// status table in spec.md §6.
func (g *Gateway) writeStageError(w http.ResponseWriter, err error) {
	var fetchErr *fetcher.Error
	var decodeErr *imagecodec.DecodeError
	var resizeErr *imagecodec.ResizeError

	switch {
	case errors.As(err, &fetchErr):
		switch fetchErr.Kind {
		case fetcher.KindNotFound:
			writeErrorResponse(w, http.StatusNotFound, err.Error())
		case fetcher.KindNotAvailable:
			writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		case fetcher.KindNoAccess:
			writeErrorResponse(w, http.StatusForbidden, err.Error())
		case fetcher.KindInvalidResourceTag, fetcher.KindInvalidFormat:
			writeErrorResponse(w, http.StatusGone, err.Error())
		default:
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		}
	case errors.As(err, &decodeErr):
		writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &resizeErr):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		g.Logger.Error("gateway: unmapped pipeline error", zap.Error(err))
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

func inferFormatFromContentType(contentType string) imagecodec.OutputFormat {
	switch {
	case strings.Contains(contentType, "png"):
		return imagecodec.OutputFormat{Kind: imagecodec.FormatPNG}
	case strings.Contains(contentType, "bmp"):
		return imagecodec.OutputFormat{Kind: imagecodec.FormatBMP}
	case strings.Contains(contentType, "webp"):
		return imagecodec.OutputFormat{Kind: imagecodec.FormatWebPLossless}
	default:
		return imagecodec.OutputFormat{Kind: imagecodec.FormatJPEG, JPEGQuality: imagecodec.DefaultJPEGQuality}
	}
}

func parseQuality(raw string) (float64, error) {
	if raw == "" {
		return DefaultQuality, nil
	}
	q, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &imagecodec.ParseError{Kind: imagecodec.ParseErrInvalidFloatQuality, Msg: "invalid quality query parameter"}
	}
	if q < 0 || q > 100 {
		return 0, &imagecodec.ParseError{Kind: imagecodec.ParseErrQualityOutOfRange, Msg: "quality query parameter out of range 0..100"}
	}
	return q, nil
}
