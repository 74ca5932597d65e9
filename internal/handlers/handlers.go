package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/cattle-id/internal/classifier"
	"github.com/example/cattle-id/internal/husbandry"
	"github.com/example/cattle-id/internal/identify"
	"github.com/example/cattle-id/internal/logging"
	"github.com/example/cattle-id/internal/normalizer"
	"github.com/example/cattle-id/internal/usecase"
)

// MaxUploadSize caps the uploaded image, not the whole multipart body.
const MaxUploadSize = 10 << 20

const multipartOverhead = 1 << 20

// Identifier runs the identification pipeline.
type Identifier interface {
	Identify(ctx context.Context, img identify.RawImage, fix *identify.LocationFix) (*identify.Response, error)
}

// Catalog exposes the enrolled animals and their husbandry profiles.
type Catalog interface {
	Labels() []classifier.Label
	Get(label classifier.Label) (husbandry.Profile, bool)
}

// StatsProvider reports identification counters.
type StatsProvider interface {
	Stats() usecase.StatsSummary
}

// Handler serves the identification API.
type Handler struct {
	identifier Identifier
	catalog    Catalog
	stats      StatsProvider
	logger     *zap.Logger
}

// NewHandler wires the handler dependencies. stats may be nil.
func NewHandler(identifier Identifier, catalog Catalog, stats StatsProvider, logger *zap.Logger) *Handler {
	return &Handler{
		identifier: identifier,
		catalog:    catalog,
		stats:      stats,
		logger:     logger.Named("handlers"),
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, h *Handler) {
	router.GET("/health", h.Health)

	// /predict is the path the browser client posts to.
	router.POST("/predict", h.Identify)

	v1 := router.Group("/v1")
	v1.POST("/identify", h.Identify)
	v1.GET("/animals", h.ListAnimals)
	v1.GET("/animals/:label", h.GetAnimal)
	v1.GET("/stats", h.Stats)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "animals": len(h.catalog.Labels())})
}

// Identify accepts a multipart upload in field "file" (or "image") with
// optional "lat" and "lon" fields.
func (h *Handler) Identify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

	file, err := formFile(c)
	if err != nil {
		if isTooLarge(err) {
			respondError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("upload exceeds %d bytes", MaxUploadSize), "")
			return
		}
		respondError(c, http.StatusBadRequest, "bad_request", "image file is required (form field \"file\")", "")
		return
	}
	if file.Size > MaxUploadSize {
		respondError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("image exceeds %d bytes", MaxUploadSize), "")
		return
	}

	fix, err := parseLocation(c.PostForm("lat"), c.PostForm("lon"))
	if err != nil {
		respondError(c, http.StatusBadRequest, string(identify.KindInvalidLocation), err.Error(), "")
		return
	}

	data, err := readFile(file)
	if err != nil {
		h.logger.Warn("failed to read upload", zap.Error(err))
		respondError(c, http.StatusBadRequest, "bad_request", "unable to read image", "")
		return
	}
	if len(data) > MaxUploadSize {
		respondError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("image exceeds %d bytes", MaxUploadSize), "")
		return
	}

	declared := file.Header.Get("Content-Type")
	mediaType := normalizer.ResolveMediaType(declared, data)
	if !normalizer.MediaTypeSupported(mediaType) {
		if !normalizer.GenericMediaType(declared) {
			respondError(c, http.StatusUnsupportedMediaType, string(identify.KindUnsupportedFormat), fmt.Sprintf("unsupported media type %q", mediaType), "")
			return
		}
		// Undetectable content goes to the decoder, which reports it.
		mediaType = ""
	}

	resp, err := h.identifier.Identify(c.Request.Context(), identify.RawImage{Data: data, MediaType: mediaType}, fix)
	if err != nil {
		kind := identify.KindOf(err)
		respondError(c, statusFor(kind), string(kind), publicMessage(kind, err), logging.RequestIDOf(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListAnimals(c *gin.Context) {
	labels := h.catalog.Labels()
	animals := make([]string, len(labels))
	for i, l := range labels {
		animals[i] = string(l)
	}
	c.JSON(http.StatusOK, gin.H{"animals": animals})
}

func (h *Handler) GetAnimal(c *gin.Context) {
	label := classifier.Label(c.Param("label"))
	profile, ok := h.catalog.Get(label)
	if !ok {
		respondError(c, http.StatusNotFound, string(identify.KindUnknownProfile), fmt.Sprintf("no husbandry profile for %s", label), "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cow_id": string(label), "husbandry": profile})
}

func (h *Handler) Stats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusOK, usecase.StatsSummary{})
		return
	}
	c.JSON(http.StatusOK, h.stats.Stats())
}

func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return c.FormFile("image")
	}
	return file, err
}

func readFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// parseLocation returns nil when neither coordinate is supplied.
func parseLocation(lat, lon string) (*identify.LocationFix, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, fmt.Errorf("%w: lat and lon must be supplied together", identify.ErrInvalidLocation)
	}
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: lat %q is not a number", identify.ErrInvalidLocation, lat)
	}
	longitude, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: lon %q is not a number", identify.ErrInvalidLocation, lon)
	}
	fix := &identify.LocationFix{Latitude: latitude, Longitude: longitude}
	if err := fix.Validate(); err != nil {
		return nil, err
	}
	return fix, nil
}

func statusFor(kind identify.Kind) int {
	switch kind {
	case identify.KindDecode:
		return http.StatusUnprocessableEntity
	case identify.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case identify.KindInvalidLocation:
		return http.StatusBadRequest
	case identify.KindModelUnavailable:
		return http.StatusServiceUnavailable
	case identify.KindCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func publicMessage(kind identify.Kind, err error) string {
	if kind.ClientError() {
		var opErr *logging.OperationError
		if errors.As(err, &opErr) {
			return opErr.Err.Error()
		}
		return err.Error()
	}
	switch kind {
	case identify.KindModelUnavailable:
		return "identification model unavailable"
	case identify.KindUnknownProfile:
		return "identified animal has no husbandry profile"
	case identify.KindCanceled:
		return "request cancelled"
	}
	return "identification failed"
}

func respondError(c *gin.Context, status int, kind, message, requestID string) {
	body := gin.H{"error": message, "kind": kind}
	if requestID != "" {
		body["request_id"] = requestID
	}
	c.AbortWithStatusJSON(status, body)
}
