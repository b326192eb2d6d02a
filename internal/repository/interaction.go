package repository

import (
	"context"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostStats are the per-post interaction counters shown with a post.
type PostStats struct {
	Likes    int64
	Comments int64
	Liked    bool
}

// InteractionRepository covers likes and comments.
type InteractionRepository interface {
	Like(ctx context.Context, accountID, postID uint) (bool, error)
	Unlike(ctx context.Context, accountID, postID uint) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id uint) (*models.Comment, error)
	ListComments(ctx context.Context, postID uint, excludeAuthors []uint, limit, offset int) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id uint) error
	Stats(ctx context.Context, postIDs []uint, viewerID uint) (map[uint]PostStats, error)
}

type interactionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new like/comment repository
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

// Like reports whether a new like was recorded.
func (r *interactionRepository) Like(ctx context.Context, accountID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{AccountID: accountID, PostID: postID})
	return res.RowsAffected > 0, res.Error
}

func (r *interactionRepository) Unlike(ctx context.Context, accountID, postID uint) error {
	return r.db.WithContext(ctx).
		Where("account_id = ? AND post_id = ?", accountID, postID).
		Delete(&models.Like{}).Error
}

func (r *interactionRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Preload("Author").First(comment, comment.ID).Error
}

func (r *interactionRepository) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

// ListComments returns comments oldest first, skipping excluded authors.
func (r *interactionRepository) ListComments(ctx context.Context, postID uint, excludeAuthors []uint, limit, offset int) ([]models.Comment, error) {
	comments := []models.Comment{}
	q := r.db.WithContext(ctx).Preload("Author").Where("post_id = ?", postID)
	if len(excludeAuthors) > 0 {
		q = q.Where("author_id NOT IN ?", excludeAuthors)
	}
	err := q.Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *interactionRepository) DeleteComment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

type postCount struct {
	PostID uint
	N      int64
}

// Stats aggregates likes and comments for a page of posts in three queries.
func (r *interactionRepository) Stats(ctx context.Context, postIDs []uint, viewerID uint) (map[uint]PostStats, error) {
	stats := make(map[uint]PostStats, len(postIDs))
	if len(postIDs) == 0 {
		return stats, nil
	}
	defer observability.TrackQuery("post_stats", "likes")()
	db := r.db.WithContext(ctx)

	var likes []postCount
	if err := db.Model(&models.Like{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&likes).Error; err != nil {
		return nil, err
	}
	for _, row := range likes {
		s := stats[row.PostID]
		s.Likes = row.N
		stats[row.PostID] = s
	}

	var comments []postCount
	if err := db.Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&comments).Error; err != nil {
		return nil, err
	}
	for _, row := range comments {
		s := stats[row.PostID]
		s.Comments = row.N
		stats[row.PostID] = s
	}

	if viewerID != 0 {
		var liked []uint
		if err := db.Model(&models.Like{}).
			Where("account_id = ? AND post_id IN ?", viewerID, postIDs).
			Pluck("post_id", &liked).Error; err != nil {
			return nil, err
		}
		for _, id := range liked {
			s := stats[id]
			s.Liked = true
			stats[id] = s
		}
	}
	return stats, nil
}
