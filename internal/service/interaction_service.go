package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"
)

const MaxCommentLength = 2000

// InteractionService handles likes and comments. Every interaction is
// refused when the viewer and the post author are blocked with each other.
type InteractionService struct {
	posts         repository.PostRepository
	interactions  repository.InteractionRepository
	graph         *GraphService
	notifications *NotificationService
}

func NewInteractionService(
	posts repository.PostRepository,
	interactions repository.InteractionRepository,
	graph *GraphService,
	notifications *NotificationService,
) *InteractionService {
	return &InteractionService{
		posts:         posts,
		interactions:  interactions,
		graph:         graph,
		notifications: notifications,
	}
}

// LikeResult carries the post's new like state.
type LikeResult struct {
	Liked        bool                 `json:"liked"`
	LikesCount   int64                `json:"likes_count"`
	Notification *models.Notification `json:"-"`
}

func (s *InteractionService) accessiblePost(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	blocked, err := s.graph.IsBlocked(ctx, viewerID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewForbiddenError("You cannot interact with this post")
	}
	return post, nil
}

func (s *InteractionService) Like(ctx context.Context, viewerID, postID uint) (*LikeResult, error) {
	post, err := s.accessiblePost(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	created, err := s.interactions.Like(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	result, err := s.likeState(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	if created && s.notifications != nil {
		result.Notification = s.notifications.Notify(ctx, post.AuthorID, viewerID, models.NotificationLike, &post.ID)
	}
	return result, nil
}

func (s *InteractionService) Unlike(ctx context.Context, viewerID, postID uint) (*LikeResult, error) {
	if _, err := s.accessiblePost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	if err := s.interactions.Unlike(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	return s.likeState(ctx, viewerID, postID)
}

func (s *InteractionService) likeState(ctx context.Context, viewerID, postID uint) (*LikeResult, error) {
	stats, err := s.interactions.Stats(ctx, []uint{postID}, viewerID)
	if err != nil {
		return nil, err
	}
	st := stats[postID]
	return &LikeResult{Liked: st.Liked, LikesCount: st.Likes}, nil
}

// AddComment returns the comment and the notification sent to the post
// author, if any.
func (s *InteractionService) AddComment(ctx context.Context, viewerID, postID uint, content string) (*models.Comment, *models.Notification, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, models.NewValidationError("Comment content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", MaxCommentLength))
	}
	post, err := s.accessiblePost(ctx, viewerID, postID)
	if err != nil {
		return nil, nil, err
	}

	comment := &models.Comment{PostID: postID, AuthorID: viewerID, Content: content}
	if err := s.interactions.CreateComment(ctx, comment); err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	var n *models.Notification
	if s.notifications != nil {
		n = s.notifications.Notify(ctx, post.AuthorID, viewerID, models.NotificationComment, &post.ID)
	}
	return comment, n, nil
}

// ListComments hides comments from accounts blocked with the viewer.
func (s *InteractionService) ListComments(ctx context.Context, viewerID, postID uint, page Page) ([]models.Comment, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	blocked, err := s.graph.BlockedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if blocked.Has(post.AuthorID) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return s.interactions.ListComments(ctx, postID, blocked.Slice(), page.Limit, page.Offset)
}

// DeleteComment is allowed for the comment author, the post author and
// admins.
func (s *InteractionService) DeleteComment(ctx context.Context, actor *models.Account, commentID uint) error {
	if actor == nil {
		return models.NewUnauthorizedError("Authentication required")
	}
	comment, err := s.interactions.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != actor.ID && !actor.IsAdmin() {
		post, err := s.posts.GetByID(ctx, comment.PostID)
		if err != nil {
			return err
		}
		if post.AuthorID != actor.ID {
			return models.NewForbiddenError("You cannot delete this comment")
		}
	}
	return s.interactions.DeleteComment(ctx, commentID)
}
