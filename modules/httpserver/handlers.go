package httpserver

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/actyvystom/cloudinary-demo/modules/cloudinary"
	"github.com/actyvystom/cloudinary-demo/modules/imageservice"
	"github.com/gin-gonic/gin"
	"github.com/go-monolith/mono"
)

const jsonContentType = "application/json; charset=utf-8"

// contentTypeByExt maps image file extensions to MIME types.
var contentTypeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".avif": "image/avif",
	".heic": "image/heic",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".ico":  "image/x-icon",
}

// Handlers contains HTTP request handlers for the upload and query bridges.
type Handlers struct {
	imageService  *imageservice.Service
	health        func(context.Context) mono.HealthStatus
	uploadDir     string
	maxUploadSize int64
}

// NewHandlers creates a new handlers instance.
func NewHandlers(imageService *imageservice.Service, health func(context.Context) mono.HealthStatus, uploadDir string, maxUploadSize int64) *Handlers {
	return &Handlers{
		imageService:  imageService,
		health:        health,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
	}
}

// handleServiceError writes an appropriate HTTP error response for image service errors.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, imageservice.ErrMalformedUpload):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: codeMalformedUpload, Message: err.Error()})
	case errors.Is(err, imageservice.ErrInvalidImageID):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: codeInvalidID, Message: err.Error()})
	case errors.Is(err, imageservice.ErrImageNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: codeNotFound, Message: err.Error()})
	case errors.Is(err, imageservice.ErrRemoteService):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: codeRemoteError, Message: remoteMessage(err)})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: codeInternal, Message: err.Error()})
	}
}

// remoteMessage prefers the message reported by the remote service.
func remoteMessage(err error) string {
	var apiErr *cloudinary.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// UploadImage handles upload requests (POST /api/upload).
func (h *Handlers) UploadImage(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	upload, err := receiveUpload(c.Request, h.uploadDir)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	defer removeUpload(upload)

	result, err := h.imageService.UploadImage(c.Request.Context(), *upload)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Header("X-Image-ID", result.PublicID)
	c.Data(http.StatusCreated, jsonContentType, result.Resource)
}

// ListImages handles gallery listing requests (GET /api/images).
func (h *Handlers) ListImages(c *gin.Context) {
	result, err := h.imageService.ListImages(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Data(http.StatusOK, jsonContentType, result.Envelope)
}

// GetImage handles single image requests (GET /api/images/*public_id).
// Public ids may contain folder segments, so the whole remaining path is the id.
func (h *Handlers) GetImage(c *gin.Context) {
	publicID := strings.TrimPrefix(c.Param("public_id"), "/")

	result, err := h.imageService.GetImage(c.Request.Context(), publicID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Data(http.StatusOK, jsonContentType, result.Envelope)
}

// HealthCheck handles health check requests (GET /health).
func (h *Handlers) HealthCheck(c *gin.Context) {
	details := map[string]any{"service": "cloudinary-gallery"}
	if h.health == nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Details: details})
		return
	}

	status := h.health(c.Request.Context())
	details["image_service"] = status.Message
	for k, v := range status.Details {
		details[k] = v
	}
	if !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Details: details})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Details: details})
}

// MethodNotAllowed answers requests whose path exists under another method.
func (h *Handlers) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, ErrorResponse{
		Error:   codeMethodNotAllowed,
		Message: c.Request.Method + " is not supported on " + c.Request.URL.Path,
	})
}

// detectContentType determines the content type based on file extension.
func detectContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if contentType, ok := contentTypeByExt[ext]; ok {
		return contentType
	}
	return "application/octet-stream"
}
