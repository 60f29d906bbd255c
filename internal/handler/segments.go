package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/segvote/internal/middleware"
	"github.com/mathieu-neron/segvote/internal/model"
	"github.com/mathieu-neron/segvote/internal/service"
)

// SegmentLister serves visible segments.
type SegmentLister interface {
	ListByVideo(ctx context.Context, videoID model.VideoID, svc model.Service) ([]model.SegmentResponse, error)
	ListByHashPrefix(ctx context.Context, prefix string, svc model.Service) ([]model.VideoSegments, error)
}

type SegmentHandler struct {
	svc SegmentLister
}

func NewSegmentHandler(svc SegmentLister) *SegmentHandler {
	return &SegmentHandler{svc: svc}
}

// GetByVideoID handles GET /api/skipSegments?videoID=X&service=Y
func (h *SegmentHandler) GetByVideoID(c fiber.Ctx) error {
	videoID, errMsg := middleware.ValidateVideoID(fiber.Query[string](c, "videoID"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	svc, errMsg := middleware.ValidateService(fiber.Query[string](c, "service"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	segments, err := h.svc.ListByVideo(c.Context(), model.VideoID(videoID), model.ParseService(svc))
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to lookup segments")
	}
	if len(segments) == 0 {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "No segments found")
	}
	return c.JSON(segments)
}

// GetByHashPrefix handles GET /api/skipSegments/:hashPrefix
func (h *SegmentHandler) GetByHashPrefix(c fiber.Ctx) error {
	prefix, errMsg := middleware.ValidateHashPrefix(c.Params("hashPrefix"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_PREFIX", errMsg)
	}
	svc, errMsg := middleware.ValidateService(fiber.Query[string](c, "service"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	groups, err := h.svc.ListByHashPrefix(c.Context(), prefix, model.ParseService(svc))
	if err != nil {
		if errors.Is(err, service.ErrInvalidHashPrefix) {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_PREFIX", err.Error())
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to lookup segments")
	}
	if len(groups) == 0 {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "No segments matching prefix")
	}
	return c.JSON(groups)
}
