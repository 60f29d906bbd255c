package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/segvote/internal/middleware"
	"github.com/mathieu-neron/segvote/internal/model"
)

// Voter applies a single vote request.
type Voter interface {
	Vote(ctx context.Context, req model.VoteRequest) model.VoteResult
}

type VoteHandler struct {
	svc Voter
}

func NewVoteHandler(svc Voter) *VoteHandler {
	return &VoteHandler{svc: svc}
}

// voteBody is the JSON form of a vote. Type may arrive as a number or a
// numeric string.
type voteBody struct {
	UUID     string `json:"UUID"`
	UserID   string `json:"userID"`
	Type     any    `json:"type"`
	Category string `json:"category"`
}

// errorCodes maps vote statuses to the error envelope code.
var errorCodes = map[int]string{
	fiber.StatusBadRequest:          "INVALID_REQUEST",
	fiber.StatusForbidden:           "FORBIDDEN",
	fiber.StatusNotFound:            "NOT_FOUND",
	fiber.StatusTooManyRequests:     "VOTE_IN_PROGRESS",
	fiber.StatusInternalServerError: "INTERNAL_ERROR",
}

// Submit handles POST and GET /api/voteOnSponsorTime. Query parameters win
// over the JSON body.
func (h *VoteHandler) Submit(c fiber.Ctx) error {
	var body voteBody
	if raw := c.Body(); len(raw) > 0 && strings.Contains(c.Get(fiber.HeaderContentType), "json") {
		if err := json.Unmarshal(raw, &body); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		}
	}

	segmentID, errMsg := middleware.ValidateSegmentID(queryOr(c, "UUID", body.UUID))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	userID, errMsg := middleware.ValidateUserID(queryOr(c, "userID", body.UserID))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	category, errMsg := middleware.ValidateCategory(queryOr(c, "category", body.Category))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	req := model.VoteRequest{
		IP:        c.IP(),
		SegmentID: model.SegmentID(segmentID),
		UserID:    model.RawUserID(userID),
	}

	voteType, ok := parseVoteType(fiber.Query[string](c, "type"), body.Type)
	if !ok {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "type must be an integer")
	}
	req.Type = voteType
	if category != "" {
		cat := model.Category(category)
		req.Category = &cat
	}

	res := h.svc.Vote(c.Context(), req)
	if res.Status == fiber.StatusOK {
		resp := fiber.Map{"success": true}
		if res.Message != "" {
			resp["message"] = res.Message
		}
		return c.JSON(resp)
	}

	code, ok := errorCodes[res.Status]
	if !ok {
		code = "INTERNAL_ERROR"
	}
	return middleware.ErrorResponse(c, res.Status, code, res.Message)
}

func queryOr(c fiber.Ctx, key, fallback string) string {
	if v := fiber.Query[string](c, key); v != "" {
		return v
	}
	return fallback
}

// parseVoteType reads the vote type from the query, falling back to the body.
// A nil type with ok set means none was sent.
func parseVoteType(query string, body any) (*model.VoteType, bool) {
	if query == "" {
		switch t := body.(type) {
		case nil:
			return nil, true
		case float64:
			if t != float64(int(t)) {
				return nil, false
			}
			vt := model.VoteType(int(t))
			return &vt, true
		case string:
			query = strings.TrimSpace(t)
		default:
			return nil, false
		}
	}
	if query == "" {
		return nil, true
	}
	n, err := strconv.Atoi(query)
	if err != nil {
		return nil, false
	}
	vt := model.VoteType(n)
	return &vt, true
}
