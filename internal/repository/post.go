package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"gorm.io/gorm"
)

// FeedQuery selects posts for a feed page. A nil AuthorIn means any author;
// a non-nil empty AuthorIn matches nothing.
type FeedQuery struct {
	AuthorIn    []uint
	AuthorNotIn []uint
	Limit       int
	Offset      int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, error)
	Delete(ctx context.Context, id uint, actorID uint) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountByAuthor(ctx context.Context, authorID uint) (int64, error)
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, "create", err)
		return err
	}
	return r.db.WithContext(ctx).Preload("Author").First(post, post.ID).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

// ListFeed returns posts newest first; id breaks created_at ties.
func (r *postRepository) ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	posts := []models.Post{}
	if q.AuthorIn != nil && len(q.AuthorIn) == 0 {
		return posts, nil
	}
	defer observability.TrackQuery("list_feed", "posts")()

	db := r.db.WithContext(ctx).Preload("Author")
	if q.AuthorIn != nil {
		db = db.Where("author_id IN ?", q.AuthorIn)
	}
	if len(q.AuthorNotIn) > 0 {
		db = db.Where("author_id NOT IN ?", q.AuthorNotIn)
	}
	err := db.Order("created_at DESC").
		Order("id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&posts).Error
	return posts, err
}

// Delete removes the post and its dependents. It reports false when the post
// was already gone.
func (r *postRepository) Delete(ctx context.Context, id uint, actorID uint) (bool, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = deletePostsCascade(tx, []uint{id}, actorID)
		return err
	})
	if err != nil {
		r.log.LogError(ctx, "delete", err)
		return false, err
	}
	r.log.Log(ctx, "delete", slog.Uint64("post_id", uint64(id)), slog.Int64("rows", deleted))
	return deleted > 0, nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&count).Error
	return count, err
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, err
}

// deletePostsCascade must run inside a transaction. Likes, comments and
// notifications on the posts are removed; pending reports against them are
// closed as reviewed with a delete resolution.
func deletePostsCascade(tx *gorm.DB, postIDs []uint, reviewerID uint) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Notification{}).Error; err != nil {
		return 0, err
	}
	if err := closePendingReports(tx, postIDs, reviewerID); err != nil {
		return 0, err
	}
	res := tx.Where("id IN ?", postIDs).Delete(&models.Post{})
	return res.RowsAffected, res.Error
}

func closePendingReports(tx *gorm.DB, postIDs []uint, reviewerID uint) error {
	updates := map[string]any{
		"status":      models.ReportStatusReviewed,
		"resolution":  models.ModerationDelete,
		"reviewed_at": time.Now().UTC(),
	}
	if reviewerID != 0 {
		updates["reviewed_by"] = reviewerID
	}
	return tx.Model(&models.Report{}).
		Where("post_id IN ? AND status = ?", postIDs, models.ReportStatusPending).
		Updates(updates).Error
}
