package server

import (
	"github.com/blondeglamazon/message-board-sub000/internal/middleware"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Get the current account
// @Tags users
// @Produce json
// @Success 200 {object} models.Account
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	account, err := s.accountService.GetAccount(c.UserContext(), middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(account)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update the current account's profile
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} models.Account
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	account, err := s.accountService.UpdateProfile(c.UserContext(), middleware.ViewerID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(account)
}

// GetUserProfile handles GET /api/users/:username
// @Summary Get a public profile
// @Tags users
// @Produce json
// @Param username path string true "Username (case-insensitive)"
// @Success 200 {object} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	profile, err := s.accountService.GetProfile(c.UserContext(), middleware.ViewerID(c), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary List an account's posts
// @Tags users
// @Produce json
// @Param id path int true "Account ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.PostDetail
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	accountID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	posts, err := s.feedService.AuthorFeed(c.UserContext(), middleware.ViewerID(c), accountID, parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetFollowers handles GET /api/users/:id/followers
// @Summary List followers
// @Tags graph
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {array} models.AccountSummary
// @Router /users/{id}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	accountID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	list, err := s.graphService.ListFollowers(c.UserContext(), middleware.ViewerID(c), accountID, parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetFollowing handles GET /api/users/:id/following
// @Summary List followed accounts
// @Tags graph
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {array} models.AccountSummary
// @Router /users/{id}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	accountID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	list, err := s.graphService.ListFollowing(c.UserContext(), middleware.ViewerID(c), accountID, parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetFriends handles GET /api/friends
// @Summary List mutual follows
// @Tags graph
// @Produce json
// @Success 200 {array} models.AccountSummary
// @Security BearerAuth
// @Router /friends [get]
func (s *Server) GetFriends(c *fiber.Ctx) error {
	list, err := s.graphService.ListFriends(c.UserContext(), middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// FollowUser handles POST /api/users/:id/follow
// @Summary Follow an account
// @Description Refused when either account blocked the other. Following twice is a no-op.
// @Tags graph
// @Produce json
// @Param id path int true "Account ID"
// @Success 201 {object} service.FollowResult
// @Success 200 {object} service.FollowResult
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.graphService.Follow(ctx, middleware.ViewerID(c), targetID)
	if err != nil {
		return respondError(c, err)
	}

	s.pushNotification(ctx, res.Notification)
	status := fiber.StatusOK
	if res.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(res)
}

// UnfollowUser handles DELETE /api/users/:id/follow
// @Summary Unfollow an account
// @Tags graph
// @Param id path int true "Account ID"
// @Success 204
// @Security BearerAuth
// @Router /users/{id}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.graphService.Unfollow(c.UserContext(), middleware.ViewerID(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// BlockUser handles POST /api/users/:id/block
// @Summary Block an account
// @Description Removes follow edges in both directions.
// @Tags graph
// @Param id path int true "Account ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/block [post]
func (s *Server) BlockUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.graphService.Block(c.UserContext(), middleware.ViewerID(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UnblockUser handles DELETE /api/users/:id/block
// @Summary Unblock an account
// @Tags graph
// @Param id path int true "Account ID"
// @Success 204
// @Security BearerAuth
// @Router /users/{id}/block [delete]
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.graphService.Unblock(c.UserContext(), middleware.ViewerID(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetNotifications handles GET /api/notifications
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Notification
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	list, err := s.notificationService.List(c.UserContext(), middleware.ViewerID(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetUnreadCount handles GET /api/notifications/unread-count
// @Summary Count unread notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} object{count=int}
// @Security BearerAuth
// @Router /notifications/unread-count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	n, err := s.notificationService.UnreadCount(c.UserContext(), middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

// MarkNotificationsRead handles POST /api/notifications/read
// @Summary Mark notifications read
// @Description An empty id list marks every notification read.
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body idsRequest false "Notification IDs"
// @Success 200 {object} object{updated=int}
// @Security BearerAuth
// @Router /notifications/read [post]
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	var req idsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	n, err := s.notificationService.MarkRead(c.UserContext(), middleware.ViewerID(c), req.IDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}
