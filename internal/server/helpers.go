package server

import (
	"errors"
	"strings"
	"unicode"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parsePage extracts limit and offset query parameters.
func parsePage(c *fiber.Ctx) service.Page {
	return service.NewPage(c.QueryInt("limit", service.DefaultPageSize), c.QueryInt("offset", 0))
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		return strings.ToLower(strings.Join(splitCamel(param[:len(param)-2]), " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// rejectionResponse is the body returned when the safety gate refuses media.
type rejectionResponse struct {
	Safe    bool   `json:"safe"`
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

// respondError writes err with the status it maps to. Safety rejections
// answer with the verdict's own status.
func respondError(c *fiber.Ctx, err error) error {
	var rejected *service.ContentRejectedError
	if errors.As(err, &rejected) {
		return c.Status(rejected.Verdict.Status).JSON(rejectionResponse{
			Error:   rejected.Error(),
			Reason:  rejected.Verdict.Reason,
			Details: rejected.Verdict.Details,
		})
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	return models.RespondWithAppError(c, err)
}

// idsRequest is the body of endpoints that act on a list of ids.
type idsRequest struct {
	IDs []uint `json:"ids"`
}
