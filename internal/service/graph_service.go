package service

import (
	"context"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"
)

// GraphService reads the social graph and applies follow and block
// changes. Reads are always served from the database.
//
// Viewer id 0 is the anonymous viewer; every set is empty for it, as it is
// for an account that does not exist.
type GraphService struct {
	graph         repository.GraphRepository
	accounts      repository.AccountRepository
	notifications *NotificationService
}

func NewGraphService(graph repository.GraphRepository, accounts repository.AccountRepository, notifications *NotificationService) *GraphService {
	return &GraphService{graph: graph, accounts: accounts, notifications: notifications}
}

func (s *GraphService) Following(ctx context.Context, viewerID uint) (IDSet, error) {
	if viewerID == 0 {
		return IDSet{}, nil
	}
	ids, err := s.graph.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return newIDSet(ids), nil
}

func (s *GraphService) Followers(ctx context.Context, viewerID uint) (IDSet, error) {
	if viewerID == 0 {
		return IDSet{}, nil
	}
	ids, err := s.graph.FollowerIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return newIDSet(ids), nil
}

// Friends are accounts followed by the viewer that follow the viewer back.
func (s *GraphService) Friends(ctx context.Context, viewerID uint) (IDSet, error) {
	following, err := s.Following(ctx, viewerID)
	if err != nil || len(following) == 0 {
		return IDSet{}, err
	}
	followers, err := s.Followers(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return following.Intersect(followers), nil
}

// IsBlocked is true when either account blocked the other.
func (s *GraphService) IsBlocked(ctx context.Context, a, b uint) (bool, error) {
	if a == 0 || b == 0 || a == b {
		return false, nil
	}
	return s.graph.IsBlocked(ctx, a, b)
}

// BlockedIDs returns every account separated from the viewer by a block in
// either direction.
func (s *GraphService) BlockedIDs(ctx context.Context, viewerID uint) (IDSet, error) {
	if viewerID == 0 {
		return IDSet{}, nil
	}
	ids, err := s.graph.BlockedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return newIDSet(ids), nil
}

// FollowResult reports a follow and the notification it produced, if any.
type FollowResult struct {
	Created      bool                 `json:"created"`
	Notification *models.Notification `json:"-"`
}

func (s *GraphService) Follow(ctx context.Context, followerID, targetID uint) (*FollowResult, error) {
	if err := s.checkTarget(ctx, followerID, targetID, "follow"); err != nil {
		return nil, err
	}
	blocked, err := s.graph.IsBlocked(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewForbiddenError("You cannot follow this account")
	}

	created, err := s.graph.Follow(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	result := &FollowResult{Created: created}
	if created && s.notifications != nil {
		result.Notification = s.notifications.Notify(ctx, targetID, followerID, models.NotificationFollow, nil)
	}
	return result, nil
}

func (s *GraphService) Unfollow(ctx context.Context, followerID, targetID uint) error {
	if followerID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	return s.graph.Unfollow(ctx, followerID, targetID)
}

// Block also removes follows in both directions.
func (s *GraphService) Block(ctx context.Context, blockerID, targetID uint) error {
	if err := s.checkTarget(ctx, blockerID, targetID, "block"); err != nil {
		return err
	}
	return s.graph.Block(ctx, blockerID, targetID)
}

func (s *GraphService) Unblock(ctx context.Context, blockerID, targetID uint) error {
	if blockerID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	return s.graph.Unblock(ctx, blockerID, targetID)
}

func (s *GraphService) checkTarget(ctx context.Context, actorID, targetID uint, verb string) error {
	if actorID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	if actorID == targetID {
		return models.NewValidationError("You cannot " + verb + " yourself")
	}
	_, err := s.accounts.GetByID(ctx, targetID)
	return err
}

// ListFollowers lists accounts following accountID, hiding accounts the
// viewer is blocked with.
func (s *GraphService) ListFollowers(ctx context.Context, viewerID, accountID uint, page Page) ([]models.AccountSummary, error) {
	accounts, err := s.graph.ListFollowers(ctx, accountID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return s.visibleSummaries(ctx, viewerID, accounts)
}

func (s *GraphService) ListFollowing(ctx context.Context, viewerID, accountID uint, page Page) ([]models.AccountSummary, error) {
	accounts, err := s.graph.ListFollowing(ctx, accountID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return s.visibleSummaries(ctx, viewerID, accounts)
}

// ListFriends returns the viewer's mutual follows.
func (s *GraphService) ListFriends(ctx context.Context, viewerID uint) ([]models.AccountSummary, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	friends, err := s.Friends(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.GetByIDs(ctx, friends.Slice())
	if err != nil {
		return nil, err
	}
	return s.visibleSummaries(ctx, viewerID, accounts)
}

func (s *GraphService) visibleSummaries(ctx context.Context, viewerID uint, accounts []models.Account) ([]models.AccountSummary, error) {
	blocked, err := s.BlockedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	out := make([]models.AccountSummary, 0, len(accounts))
	for i := range accounts {
		if blocked.Has(accounts[i].ID) {
			continue
		}
		out = append(out, accounts[i].Summary())
	}
	return out, nil
}
