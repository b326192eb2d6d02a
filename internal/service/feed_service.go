package service

import (
	"context"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"

)

// FeedMode selects which authors a feed draws from.
type FeedMode string

const (
	FeedGlobal    FeedMode = "global"
	FeedFollowing FeedMode = "following"
	FeedFriends   FeedMode = "friends"
)

// ParseFeedMode accepts the three modes; empty means global.
func ParseFeedMode(s string) (FeedMode, error) {
	switch FeedMode(s) {
	case "", FeedGlobal:
		return FeedGlobal, nil
	case FeedFollowing, FeedFriends:
		return FeedMode(s), nil
	}
	return "", models.NewValidationError("mode must be one of global, following, friends")
}

// FeedService composes feeds. It is read-only and never caches posts, so a
// deleted post is gone from the next read.
type FeedService struct {
	graph        *GraphService
	posts        repository.PostRepository
	interactions repository.InteractionRepository
}

func NewFeedService(graph *GraphService, posts repository.PostRepository, interactions repository.InteractionRepository) *FeedService {
	return &FeedService{graph: graph, posts: posts, interactions: interactions}
}

// ComposeFeed returns one page of the viewer's feed, newest first.
//
// Anonymous viewers only have a global feed; following and friends are
// empty for them. An empty following or friend set yields an empty feed,
// never the global one. Authors blocked with the viewer in either direction
// are excluded in every mode.
func (s *FeedService) ComposeFeed(ctx context.Context, viewerID uint, mode FeedMode, page Page) (_ []models.PostDetail, err error) {
	ctx, span := observability.StartSpan(ctx, "feed.compose",
		observability.AttrFeedMode.String(string(mode)),
		observability.ViewerAttr(viewerID))
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()
	defer func() {
		observability.FeedComposeLatency.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}()

	q := repository.FeedQuery{Limit: page.Limit, Offset: page.Offset}

	switch mode {
	case FeedGlobal:
	case FeedFollowing, FeedFriends:
		if viewerID == 0 {
			return []models.PostDetail{}, nil
		}
		var authors IDSet
		if mode == FeedFollowing {
			authors, err = s.graph.Following(ctx, viewerID)
		} else {
			authors, err = s.graph.Friends(ctx, viewerID)
		}
		if err != nil {
			return nil, err
		}
		if len(authors) == 0 {
			return []models.PostDetail{}, nil
		}
		q.AuthorIn = authors.Slice()
	default:
		return nil, models.NewValidationError("unknown feed mode")
	}

	blocked, err := s.graph.BlockedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	q.AuthorNotIn = blocked.Slice()

	posts, err := s.posts.ListFeed(ctx, q)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttrFeedSize.Int(len(posts)))
	return s.withStats(ctx, viewerID, posts)
}

// AuthorFeed lists one author's posts. It is empty when the viewer and the
// author are blocked with each other.
func (s *FeedService) AuthorFeed(ctx context.Context, viewerID, authorID uint, page Page) ([]models.PostDetail, error) {
	blocked, err := s.graph.IsBlocked(ctx, viewerID, authorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return []models.PostDetail{}, nil
	}
	posts, err := s.posts.ListFeed(ctx, repository.FeedQuery{
		AuthorIn: []uint{authorID},
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return nil, err
	}
	return s.withStats(ctx, viewerID, posts)
}

func (s *FeedService) withStats(ctx context.Context, viewerID uint, posts []models.Post) ([]models.PostDetail, error) {
	details := make([]models.PostDetail, 0, len(posts))
	if len(posts) == 0 {
		return details, nil
	}
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	stats, err := s.interactions.Stats(ctx, ids, viewerID)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		st := stats[p.ID]
		details = append(details, models.PostDetail{
			Post:          p,
			LikesCount:    st.Likes,
			CommentsCount: st.Comments,
			Liked:         st.Liked,
		})
	}
	return details, nil
}
