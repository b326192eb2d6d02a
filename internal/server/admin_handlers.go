package server

import (
	"github.com/blondeglamazon/message-board-sub000/internal/middleware"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// GetPendingReports handles GET /api/admin/reports.
// @Summary List pending reports
// @Description Oldest first, joined with the post and its author. Posts already gone come back as null.
// @Tags moderation-admin
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.ReportView
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports [get]
func (s *Server) GetPendingReports(c *fiber.Ctx) error {
	reports, err := s.moderationService.ListPendingReports(c.UserContext(), middleware.CurrentAccount(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}

// ResolveReport handles POST /api/admin/reports/:id/resolve.
// @Summary Resolve a report
// @Description "dismiss" marks it reviewed; "delete" removes the post and closes every pending report on it. Resolving twice is a no-op.
// @Tags moderation-admin
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body object{action=string} true "dismiss or delete"
// @Success 200 {object} repository.ResolveResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/{id}/resolve [post]
func (s *Server) ResolveReport(c *fiber.Ctx) error {
	ctx := c.UserContext()
	reportID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Action models.ModerationAction `json:"action"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.moderationService.ResolveReport(ctx, middleware.CurrentAccount(c), reportID, req.Action)
	if err != nil {
		return respondError(c, err)
	}

	if res.PostDeleted {
		s.publishBroadcastEvent(ctx, notifications.EventPostDeleted, fiber.Map{"post_id": res.Report.PostID}, nil)
	}
	return c.JSON(res)
}

// UpdateUserRole handles PUT /api/admin/users/:id/role.
// @Summary Change an account's role
// @Tags moderation-admin
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body object{role=string} true "user or admin"
// @Success 200 {object} models.Account
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/role [put]
func (s *Server) UpdateUserRole(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Role models.Role `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	account, err := s.moderationService.UpdateUserRole(c.UserContext(), middleware.CurrentAccount(c), targetID, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(account)
}

// DeleteUser handles DELETE /api/admin/users/:id.
// @Summary Delete an account
// @Description Removes the account with its posts, interactions and graph edges.
// @Tags moderation-admin
// @Param id path int true "Account ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.moderationService.DeleteUser(c.UserContext(), middleware.CurrentAccount(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetAuditLog handles GET /api/admin/audit-log.
// @Summary List audit log entries
// @Tags moderation-admin
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.AuditLogEntry
// @Security BearerAuth
// @Router /admin/audit-log [get]
func (s *Server) GetAuditLog(c *fiber.Ctx) error {
	entries, err := s.moderationService.ListAuditLog(c.UserContext(), middleware.CurrentAccount(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}

// GetAdminStats handles GET /api/admin/stats.
// @Summary Moderation counters
// @Tags moderation-admin
// @Produce json
// @Success 200 {object} service.AdminStats
// @Security BearerAuth
// @Router /admin/stats [get]
func (s *Server) GetAdminStats(c *fiber.Ctx) error {
	stats, err := s.moderationService.Stats(c.UserContext(), middleware.CurrentAccount(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
