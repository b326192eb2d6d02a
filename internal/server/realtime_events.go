package server

import (
	"context"
	"log/slog"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/notifications"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"
)

// StartRealtime subscribes the hub to Redis so events published by any
// instance reach local clients. Without Redis, events go straight to the
// local hub.
func (s *Server) StartRealtime(ctx context.Context) {
	if !s.notifier.Enabled() {
		return
	}
	if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
		observability.Logger.Error("failed to start hub wiring", slog.String("error", err.Error()))
		return
	}
	s.fanout.Store(true)
}

func (s *Server) encodeEvent(eventType string, payload any) []byte {
	message, err := notifications.Event{Type: eventType, Payload: payload}.Encode()
	if err != nil {
		observability.Logger.Error("failed to marshal event",
			slog.String("event", eventType), slog.String("error", err.Error()))
		return nil
	}
	return message
}

// publishUserEvent delivers an event to every connection of one account.
func (s *Server) publishUserEvent(ctx context.Context, accountID uint, eventType string, payload any) {
	message := s.encodeEvent(eventType, payload)
	if message == nil {
		return
	}
	if s.fanout.Load() {
		if err := s.notifier.PublishUser(context.WithoutCancel(ctx), accountID, message); err != nil {
			observability.Logger.WarnContext(ctx, "failed to publish user event",
				slog.String("event", eventType),
				slog.Uint64("account_id", uint64(accountID)),
				slog.String("error", err.Error()))
		}
		return
	}
	s.hub.Broadcast(accountID, message)
}

// publishBroadcastEvent delivers an event to every connection except those
// of the excluded accounts.
func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload any, exclude []uint) {
	message := s.encodeEvent(eventType, payload)
	if message == nil {
		return
	}
	if s.fanout.Load() {
		if err := s.notifier.PublishBroadcast(context.WithoutCancel(ctx), message, exclude); err != nil {
			observability.Logger.WarnContext(ctx, "failed to publish broadcast event",
				slog.String("event", eventType), slog.String("error", err.Error()))
		}
		return
	}
	skip := make(map[uint]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	s.hub.BroadcastAllExcept(message, skip)
}

// publishPostCreated pushes a new post to global-feed subscribers, skipping
// accounts on either side of a block with the author.
func (s *Server) publishPostCreated(ctx context.Context, post *models.PostDetail) {
	blocked, err := s.graphService.BlockedIDs(ctx, post.AuthorID)
	if err != nil {
		// Without the block set the event could leak to a blocked account.
		observability.Logger.WarnContext(ctx, "skipping post_created event",
			slog.Uint64("post_id", uint64(post.ID)), slog.String("error", err.Error()))
		return
	}
	s.publishBroadcastEvent(ctx, notifications.EventPostCreated, post, blocked.Slice())
}

// pushNotification sends a freshly stored notification to its recipient.
func (s *Server) pushNotification(ctx context.Context, n *models.Notification) {
	if n == nil {
		return
	}
	s.publishUserEvent(ctx, n.RecipientID, notifications.EventNotification, n)
}
