package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/codecurser/park-vision-control-system/internal/api/middleware"
	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/ocr"
	"github.com/codecurser/park-vision-control-system/internal/plate"
	"github.com/codecurser/park-vision-control-system/internal/preprocess"
	"github.com/codecurser/park-vision-control-system/internal/repository"
	"github.com/codecurser/park-vision-control-system/internal/service"
)

type CaptureHandler struct {
	lprService *service.LPRService
}

func NewCaptureHandler(lprService *service.LPRService) *CaptureHandler {
	return &CaptureHandler{lprService: lprService}
}

// POST /api/v1/captures
func (h *CaptureHandler) Capture(c *gin.Context) {
	var req domain.CaptureRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}
	entryType, err := domain.ParseEntryType(req.EntryType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entry type", "details": err.Error()})
		return
	}
	frame, err := preprocess.DecodeBase64(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data", "details": err.Error()})
		return
	}

	result, err := h.lprService.Capture(c.Request.Context(), service.CaptureInput{
		Frame:      frame,
		EntryType:  entryType,
		CameraID:   req.CameraID,
		RecordedBy: c.GetString(middleware.UsernameKey),
	})
	if err != nil {
		writeCaptureError(c, result, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// POST /api/v1/captures/preview
func (h *CaptureHandler) Preview(c *gin.Context) {
	var req domain.PreviewRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}
	frame, err := preprocess.DecodeBase64(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data", "details": err.Error()})
		return
	}

	result, err := h.lprService.Preview(c.Request.Context(), frame)
	if err != nil {
		writeCaptureError(c, result, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeCaptureError maps pipeline errors to status codes. When OCR produced
// text, it is echoed back so the operator sees what was read.
func writeCaptureError(c *gin.Context, result *domain.CaptureResultDTO, err error) {
	body := gin.H{"details": err.Error()}
	if result != nil {
		body["result"] = result
	}

	var status int
	switch {
	case errors.Is(err, service.ErrCaptureInFlight):
		status = http.StatusTooManyRequests
		body["error"] = "A capture is already being processed"
	case errors.Is(err, service.ErrInvalidFrame), errors.Is(err, domain.ErrInvalidEntryType):
		status = http.StatusBadRequest
		body["error"] = "Invalid capture"
	case errors.Is(err, ocr.ErrOCRFailed):
		status = http.StatusBadGateway
		body["error"] = ocr.ErrOCRFailed.Error()
	case errors.Is(err, plate.ErrValidation):
		status = http.StatusUnprocessableEntity
		body["error"] = "No valid plate detected"
		var verr *plate.ValidationError
		if errors.As(err, &verr) {
			body["rule"] = verr.Rule
		}
	case errors.Is(err, repository.ErrDuplicateEntry):
		status = http.StatusConflict
		body["error"] = "Plate already logged recently"
	case errors.Is(err, service.ErrStoreFailure):
		status = http.StatusServiceUnavailable
		body["error"] = "Log store unavailable"
	default:
		status = http.StatusInternalServerError
		body["error"] = "Capture failed"
	}
	if status >= 500 {
		log.Error().Err(err).Str("component", "HTTP").Int("status", status).Msg("capture failed")
	}
	c.JSON(status, body)
}
