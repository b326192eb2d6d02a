package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/blondeglamazon/message-board-sub000/internal/middleware"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/notifications"
	"github.com/blondeglamazon/message-board-sub000/internal/service"
	"github.com/blondeglamazon/message-board-sub000/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// createPostRequest is the JSON body of POST /api/posts. Multipart requests
// carry the same fields as form values plus a "media" file.
type createPostRequest struct {
	Content  string          `json:"content" form:"content"`
	MediaURL string          `json:"media_url" form:"media_url"`
	PostType models.PostType `json:"post_type" form:"post_type"`
}

// GetFeed handles GET /api/feed
// @Summary Compose a feed
// @Description Posts newest first. Modes other than global are empty for anonymous viewers.
// @Tags feed
// @Produce json
// @Param mode query string false "global, following or friends" default(global)
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.PostDetail
// @Failure 400 {object} models.ErrorResponse
// @Router /feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	ctx := c.UserContext()
	mode, err := service.ParseFeedMode(c.Query("mode"))
	if err != nil {
		return respondError(c, err)
	}

	posts, err := s.feedService.ComposeFeed(ctx, middleware.ViewerID(c), mode, parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Image media is checked by the content safety gate before the post is stored.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Param request body createPostRequest false "Post (JSON)"
// @Param media formData file false "Media file (multipart)"
// @Success 201 {object} models.PostDetail
// @Failure 400 {object} rejectionResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} rejectionResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	viewerID := middleware.ViewerID(c)

	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	input := service.CreatePostInput{
		AuthorID: viewerID,
		Content:  req.Content,
		MediaURL: req.MediaURL,
		PostType: req.PostType,
	}

	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		upload, err := s.readUpload(c, viewerID)
		if err != nil {
			return respondError(c, err)
		}
		input.Upload = upload
	}

	post, err := s.postService.CreatePost(ctx, input)
	if err != nil {
		return respondError(c, err)
	}

	s.publishPostCreated(ctx, post)
	return c.Status(fiber.StatusCreated).JSON(post)
}

// readUpload reads the optional "media" file of a multipart request.
func (s *Server) readUpload(c *fiber.Ctx, ownerID uint) (*storage.UploadInput, error) {
	fh, err := c.FormFile("media")
	if err != nil {
		// No file part: a text or linked-media post sent as a form.
		return nil, nil
	}
	maxBytes := int64(s.config.MediaMaxUploadMB) * 1024 * 1024
	if fh.Size > maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %d MB)", s.config.MediaMaxUploadMB))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	if int64(len(content)) > maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %d MB)", s.config.MediaMaxUploadMB))
	}

	return &storage.UploadInput{
		OwnerID:     ownerID,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.PostDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), middleware.ViewerID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Authors delete their own posts; admins delete any post and the deletion is audited.
// @Tags posts
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(ctx, middleware.CurrentAccount(c), postID); err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(ctx, notifications.EventPostDeleted, fiber.Map{"post_id": postID}, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like a post
// @Tags interactions
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} service.LikeResult
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.interactionService.Like(ctx, middleware.ViewerID(c), postID)
	if err != nil {
		return respondError(c, err)
	}

	s.pushNotification(ctx, res.Notification)
	if res.Notification != nil {
		s.publishUserEvent(ctx, res.Notification.RecipientID, notifications.EventPostLiked, fiber.Map{
			"post_id":     postID,
			"likes_count": res.LikesCount,
		})
	}
	return c.JSON(res)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Remove a like
// @Tags interactions
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} service.LikeResult
// @Security BearerAuth
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.interactionService.Unlike(c.UserContext(), middleware.ViewerID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments
// @Description Oldest first. Comments by accounts blocked with the viewer are hidden.
// @Tags interactions
// @Produce json
// @Param id path int true "Post ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.interactionService.ListComments(c.UserContext(), middleware.ViewerID(c), postID, parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags interactions
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, notification, err := s.interactionService.AddComment(ctx, middleware.ViewerID(c), postID, req.Content)
	if err != nil {
		return respondError(c, err)
	}

	s.pushNotification(ctx, notification)
	if notification != nil {
		s.publishUserEvent(ctx, notification.RecipientID, notifications.EventCommentCreated, comment)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a comment
// @Description Allowed for the commenter, the post author and admins.
// @Tags interactions
// @Param id path int true "Comment ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.interactionService.DeleteComment(c.UserContext(), middleware.CurrentAccount(c), commentID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReportPost handles POST /api/posts/:id/report
// @Summary Report a post
// @Description Reports are unique per reporter and post; a repeat returns the existing report with 200.
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{reason=string} true "Reason"
// @Success 201 {object} models.Report
// @Success 200 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/report [post]
func (s *Server) ReportPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	report, created, err := s.moderationService.CreateReport(c.UserContext(), middleware.ViewerID(c), postID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(report)
}

// CheckSafety handles POST /api/safety/check
// @Summary Check media against the content safety gate
// @Tags safety
// @Accept json
// @Produce json
// @Param request body object{media_url=string,post_type=string} true "Media to check"
// @Success 200 {object} safety.Verdict
// @Failure 400 {object} safety.Verdict
// @Failure 500 {object} safety.Verdict
// @Security BearerAuth
// @Router /safety/check [post]
func (s *Server) CheckSafety(c *fiber.Ctx) error {
	var req struct {
		MediaURL string          `json:"media_url"`
		PostType models.PostType `json:"post_type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.PostType == "" {
		req.PostType = models.PostTypeImage
	}
	if !req.PostType.Valid() {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post_type"))
	}

	v := s.gate.Check(c.UserContext(), strings.TrimSpace(req.MediaURL), req.PostType)
	return c.Status(v.Status).JSON(v)
}
