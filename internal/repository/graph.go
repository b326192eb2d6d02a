package repository

import (
	"context"
	"log/slog"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GraphRepository reads and writes follow and block edges. There is a single
// follow relation; followers are the reverse direction of the same rows.
type GraphRepository interface {
	FollowingIDs(ctx context.Context, accountID uint) ([]uint, error)
	FollowerIDs(ctx context.Context, accountID uint) ([]uint, error)
	BlockedIDs(ctx context.Context, accountID uint) ([]uint, error)
	IsBlocked(ctx context.Context, a, b uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	Follow(ctx context.Context, followerID, followingID uint) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID uint) error
	Block(ctx context.Context, blockerID, blockedID uint) error
	Unblock(ctx context.Context, blockerID, blockedID uint) error
	ListFollowers(ctx context.Context, accountID uint, limit, offset int) ([]models.Account, error)
	ListFollowing(ctx context.Context, accountID uint, limit, offset int) ([]models.Account, error)
	CountFollowers(ctx context.Context, accountID uint) (int64, error)
	CountFollowing(ctx context.Context, accountID uint) (int64, error)
}

type graphRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewGraphRepository creates a new social graph repository
func NewGraphRepository(db *gorm.DB) GraphRepository {
	return &graphRepository{db: db, log: observability.NewRepoLogger("follow_edges")}
}

func (r *graphRepository) FollowingIDs(ctx context.Context, accountID uint) ([]uint, error) {
	defer observability.TrackQuery("following_ids", "follow_edges")()
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.FollowEdge{}).
		Where("follower_id = ?", accountID).
		Pluck("following_id", &ids).Error
	return ids, err
}

func (r *graphRepository) FollowerIDs(ctx context.Context, accountID uint) ([]uint, error) {
	defer observability.TrackQuery("follower_ids", "follow_edges")()
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.FollowEdge{}).
		Where("following_id = ?", accountID).
		Pluck("follower_id", &ids).Error
	return ids, err
}

// BlockedIDs returns every account on the other side of a block edge,
// whichever side created it.
func (r *graphRepository) BlockedIDs(ctx context.Context, accountID uint) ([]uint, error) {
	defer observability.TrackQuery("blocked_ids", "block_edges")()
	var blocked, blockers []uint
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.BlockEdge{}).Where("blocker_id = ?", accountID).Pluck("blocked_id", &blocked).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.BlockEdge{}).Where("blocked_id = ?", accountID).Pluck("blocker_id", &blockers).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(blocked)+len(blockers))
	ids := make([]uint, 0, len(blocked)+len(blockers))
	for _, id := range append(blocked, blockers...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *graphRepository) IsBlocked(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BlockEdge{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

func (r *graphRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FollowEdge{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}

// Follow inserts the edge and reports whether it was new.
func (r *graphRepository) Follow(ctx context.Context, followerID, followingID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.FollowEdge{FollowerID: followerID, FollowingID: followingID})
	if res.Error != nil {
		r.log.LogError(ctx, "follow", res.Error)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *graphRepository) Unfollow(ctx context.Context, followerID, followingID uint) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.FollowEdge{}).Error
}

// Block records the edge and drops follows in both directions.
func (r *graphRepository) Block(ctx context.Context, blockerID, blockedID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.BlockEdge{BlockerID: blockerID, BlockedID: blockedID}).Error; err != nil {
			return err
		}
		return tx.Where("(follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?)",
			blockerID, blockedID, blockedID, blockerID).
			Delete(&models.FollowEdge{}).Error
	})
	if err != nil {
		r.log.LogError(ctx, "block", err)
		return err
	}
	r.log.Log(ctx, "block", slog.Uint64("blocker_id", uint64(blockerID)), slog.Uint64("blocked_id", uint64(blockedID)))
	return nil
}

func (r *graphRepository) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.BlockEdge{}).Error
}

func (r *graphRepository) ListFollowers(ctx context.Context, accountID uint, limit, offset int) ([]models.Account, error) {
	accounts := []models.Account{}
	err := r.db.WithContext(ctx).
		Joins("JOIN follow_edges ON follow_edges.follower_id = accounts.id").
		Where("follow_edges.following_id = ?", accountID).
		Order("follow_edges.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&accounts).Error
	return accounts, err
}

func (r *graphRepository) ListFollowing(ctx context.Context, accountID uint, limit, offset int) ([]models.Account, error) {
	accounts := []models.Account{}
	err := r.db.WithContext(ctx).
		Joins("JOIN follow_edges ON follow_edges.following_id = accounts.id").
		Where("follow_edges.follower_id = ?", accountID).
		Order("follow_edges.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&accounts).Error
	return accounts, err
}

func (r *graphRepository) CountFollowers(ctx context.Context, accountID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FollowEdge{}).Where("following_id = ?", accountID).Count(&count).Error
	return count, err
}

func (r *graphRepository) CountFollowing(ctx context.Context, accountID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FollowEdge{}).Where("follower_id = ?", accountID).Count(&count).Error
	return count, err
}
