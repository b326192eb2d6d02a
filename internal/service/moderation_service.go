package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/blondeglamazon/message-board-sub000/internal/cache"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"

)

const MaxReportReasonLength = 500

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	Accounts       int64 `json:"accounts"`
	Posts          int64 `json:"posts"`
	PendingReports int64 `json:"pending_reports"`
}

// ModerationService runs the report queue and the admin account actions.
// Every admin-only operation checks the actor's role before touching data.
type ModerationService struct {
	reports    repository.ReportRepository
	moderation repository.ModerationRepository
	posts      repository.PostRepository
	accounts   repository.AccountRepository
	cache      *cache.Cache
}

func NewModerationService(
	reports repository.ReportRepository,
	moderation repository.ModerationRepository,
	posts repository.PostRepository,
	accounts repository.AccountRepository,
	c *cache.Cache,
) *ModerationService {
	return &ModerationService{
		reports:    reports,
		moderation: moderation,
		posts:      posts,
		accounts:   accounts,
		cache:      c,
	}
}

func requireAdmin(actor *models.Account) error {
	if actor == nil {
		return models.NewUnauthorizedError("Authentication required")
	}
	if !actor.IsAdmin() {
		return models.NewForbiddenError("Admin role required")
	}
	return nil
}

func auditActor(actor *models.Account) repository.AuditActor {
	return repository.AuditActor{ID: actor.ID, Email: actor.Email}
}

// CreateReport files a report. A second report by the same reporter on the
// same post returns the first one with created=false. Blocks do not prevent
// reporting.
func (s *ModerationService) CreateReport(ctx context.Context, reporterID, postID uint, reason string) (*models.Report, bool, error) {
	if reporterID == 0 {
		return nil, false, models.NewUnauthorizedError("Authentication required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, false, models.NewValidationError("Reason is required")
	}
	if utf8.RuneCountInString(reason) > MaxReportReasonLength {
		return nil, false, models.NewValidationError(fmt.Sprintf("Reason too long (max %d characters)", MaxReportReasonLength))
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, false, err
	}
	return s.reports.CreateOrGet(ctx, &models.Report{
		ReporterID: reporterID,
		PostID:     postID,
		Reason:     reason,
		Status:     models.ReportStatusPending,
	})
}

// ListPendingReports returns the pending queue with each post and author.
// Reports on posts that are already gone carry a nil post and author.
func (s *ModerationService) ListPendingReports(ctx context.Context, actor *models.Account, page Page) ([]models.ReportView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.reports.ListPendingViews(ctx, page.Limit, page.Offset)
}

// ResolveReport applies dismiss or delete. The report moves to reviewed and
// the audit entry is written in the same transaction as any post deletion;
// if the deletion fails the report stays pending. Resolving a reviewed
// report changes nothing and reports AlreadyResolved.
func (s *ModerationService) ResolveReport(ctx context.Context, actor *models.Account, reportID uint, action models.ModerationAction) (_ *repository.ResolveResult, err error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !action.Valid() {
		return nil, models.NewValidationError("action must be dismiss or delete")
	}

	ctx, span := observability.StartSpan(ctx, "moderation.resolve_report",
		observability.ReportAttr(reportID),
		observability.AttrModerationAction.String(string(action)))
	defer func() { observability.EndSpan(span, err) }()

	result, err := s.moderation.ResolveReport(ctx, auditActor(actor), reportID, action)
	if err != nil {
		return nil, err
	}
	outcome := string(action)
	if result.AlreadyResolved {
		outcome = "already_resolved"
	}
	observability.ModerationActions.WithLabelValues(outcome).Inc()
	observability.Logger.InfoContext(ctx, "report resolved",
		slog.Uint64("report_id", uint64(reportID)),
		slog.String("action", string(action)),
		slog.Bool("already_resolved", result.AlreadyResolved),
		slog.Bool("post_deleted", result.PostDeleted))
	return result, nil
}

// UpdateUserRole changes a role and appends one ROLE_UPDATE audit entry.
// Admins cannot change their own role.
func (s *ModerationService) UpdateUserRole(ctx context.Context, actor *models.Account, targetID uint, role models.Role) (*models.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, models.NewValidationError("role must be user or admin")
	}
	if targetID == actor.ID {
		return nil, models.NewValidationError("You cannot change your own role")
	}

	account, err := s.moderation.UpdateRole(ctx, auditActor(actor), targetID, role)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateAccount(ctx, account.ID, account.AuthSubject)
	observability.ModerationActions.WithLabelValues("role_update").Inc()
	return account, nil
}

// DeleteUser removes an account and its content and appends one USER_DELETE
// audit entry. Admins cannot delete themselves.
func (s *ModerationService) DeleteUser(ctx context.Context, actor *models.Account, targetID uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if targetID == actor.ID {
		return models.NewValidationError("You cannot delete your own account")
	}

	account, err := s.moderation.DeleteAccount(ctx, auditActor(actor), targetID)
	if err != nil {
		return err
	}
	s.cache.InvalidateAccount(ctx, account.ID, account.AuthSubject)
	observability.ModerationActions.WithLabelValues("user_delete").Inc()
	return nil
}

func (s *ModerationService) ListAuditLog(ctx context.Context, actor *models.Account, page Page) ([]models.AuditLogEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.moderation.ListAuditLog(ctx, page.Limit, page.Offset)
}

func (s *ModerationService) Stats(ctx context.Context, actor *models.Account) (*AdminStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var stats AdminStats
	var err error
	if stats.Accounts, err = s.accounts.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Posts, err = s.posts.Count(ctx); err != nil {
		return nil, err
	}
	if stats.PendingReports, err = s.reports.CountPending(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}
