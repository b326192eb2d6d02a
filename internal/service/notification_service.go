package service

import (
	"context"
	"log/slog"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"
)

type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// Notify records a notification for recipient. Self-notifications are
// skipped and return nil. Failures are logged, never returned, so the action
// that triggered the notification still succeeds.
func (s *NotificationService) Notify(ctx context.Context, recipientID, actorID uint, kind models.NotificationKind, postID *uint) *models.Notification {
	if recipientID == 0 || recipientID == actorID {
		return nil
	}
	n := &models.Notification{
		RecipientID: recipientID,
		ActorID:     actorID,
		Kind:        kind,
		PostID:      postID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		observability.Logger.WarnContext(ctx, "failed to record notification",
			slog.String("kind", string(kind)),
			slog.Uint64("recipient_id", uint64(recipientID)),
			slog.String("error", err.Error()))
		return nil
	}
	return n
}

func (s *NotificationService) List(ctx context.Context, viewerID uint, page Page) ([]models.Notification, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	return s.repo.ListForRecipient(ctx, viewerID, page.Limit, page.Offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, viewerID uint) (int64, error) {
	if viewerID == 0 {
		return 0, models.NewUnauthorizedError("Authentication required")
	}
	return s.repo.CountUnread(ctx, viewerID)
}

// MarkRead marks ids read, or everything when ids is empty.
func (s *NotificationService) MarkRead(ctx context.Context, viewerID uint, ids []uint) (int64, error) {
	if viewerID == 0 {
		return 0, models.NewUnauthorizedError("Authentication required")
	}
	return s.repo.MarkRead(ctx, viewerID, ids)
}
