package repository

import (
	"context"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"gorm.io/gorm"
)

// ReportRepository stores user reports against posts.
type ReportRepository interface {
	CreateOrGet(ctx context.Context, report *models.Report) (*models.Report, bool, error)
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	ListPendingViews(ctx context.Context, limit, offset int) ([]models.ReportView, error)
	CountPending(ctx context.Context) (int64, error)
}

type reportRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db, log: observability.NewRepoLogger("reports")}
}

// CreateOrGet inserts the report, or returns the reporter's existing report
// on the same post. The bool is true when a new row was written.
func (r *reportRepository) CreateOrGet(ctx context.Context, report *models.Report) (*models.Report, bool, error) {
	err := r.db.WithContext(ctx).Create(report).Error
	if err == nil {
		return report, true, nil
	}
	if !isUniqueViolation(err) {
		r.log.LogError(ctx, "create", err)
		return nil, false, err
	}

	var existing models.Report
	if err := r.db.WithContext(ctx).
		Where("reporter_id = ? AND post_id = ?", report.ReporterID, report.PostID).
		First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, notFoundOr(err, "Report", id)
	}
	return &report, nil
}

// ListPendingViews returns the pending queue oldest first, joined with each
// post, its author and the reporter. Post and Author stay nil for posts that
// no longer exist.
func (r *reportRepository) ListPendingViews(ctx context.Context, limit, offset int) ([]models.ReportView, error) {
	defer observability.TrackQuery("list_pending", "reports")()
	db := r.db.WithContext(ctx)

	var reports []models.Report
	if err := db.Where("status = ?", models.ReportStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&reports).Error; err != nil {
		return nil, err
	}
	views := make([]models.ReportView, 0, len(reports))
	if len(reports) == 0 {
		return views, nil
	}

	postIDs := make([]uint, 0, len(reports))
	reporterIDs := make([]uint, 0, len(reports))
	for _, rep := range reports {
		postIDs = append(postIDs, rep.PostID)
		reporterIDs = append(reporterIDs, rep.ReporterID)
	}

	var posts []models.Post
	if err := db.Preload("Author").Where("id IN ?", postIDs).Find(&posts).Error; err != nil {
		return nil, err
	}
	postByID := make(map[uint]*models.Post, len(posts))
	for i := range posts {
		postByID[posts[i].ID] = &posts[i]
	}

	var reporters []models.Account
	if err := db.Where("id IN ?", reporterIDs).Find(&reporters).Error; err != nil {
		return nil, err
	}
	reporterByID := make(map[uint]models.AccountSummary, len(reporters))
	for i := range reporters {
		reporterByID[reporters[i].ID] = reporters[i].Summary()
	}

	for _, rep := range reports {
		view := models.ReportView{Report: rep}
		if post, ok := postByID[rep.PostID]; ok {
			view.Post = post
			if post.Author != nil {
				author := post.Author.Summary()
				view.Author = &author
			}
		}
		if reporter, ok := reporterByID[rep.ReporterID]; ok {
			view.Reporter = &reporter
		}
		views = append(views, view)
	}
	return views, nil
}

func (r *reportRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("status = ?", models.ReportStatusPending).
		Count(&count).Error
	return count, err
}
