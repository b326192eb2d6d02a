package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditActor identifies the admin performing a privileged mutation.
type AuditActor struct {
	ID    uint
	Email string
}

// ResolveResult describes the outcome of resolving a report.
type ResolveResult struct {
	Report          *models.Report `json:"report"`
	AlreadyResolved bool           `json:"already_resolved"`
	PostDeleted     bool           `json:"post_deleted"`
}

// ModerationRepository runs privileged mutations. Each one commits its state
// change and its audit entry in the same transaction.
type ModerationRepository interface {
	ResolveReport(ctx context.Context, actor AuditActor, reportID uint, action models.ModerationAction) (*ResolveResult, error)
	UpdateRole(ctx context.Context, actor AuditActor, targetID uint, role models.Role) (*models.Account, error)
	DeleteAccount(ctx context.Context, actor AuditActor, targetID uint) (*models.Account, error)
	DeletePost(ctx context.Context, actor AuditActor, postID uint) (bool, error)
	ListAuditLog(ctx context.Context, limit, offset int) ([]models.AuditLogEntry, error)
}

type moderationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewModerationRepository creates a new moderation repository
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db, log: observability.NewRepoLogger("audit_logs")}
}

func (r *moderationRepository) ResolveReport(ctx context.Context, actor AuditActor, reportID uint, action models.ModerationAction) (*ResolveResult, error) {
	result := &ResolveResult{}
	var audited models.AuditAction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.Report
		if err := tx.First(&report, reportID).Error; err != nil {
			return notFoundOr(err, "Report", reportID)
		}
		result.Report = &report
		if report.Status != models.ReportStatusPending {
			result.AlreadyResolved = true
			return nil
		}

		now := time.Now().UTC()
		// Losing a race with another resolver leaves zero rows affected.
		updates := map[string]any{
			"status":      models.ReportStatusReviewed,
			"resolution":  action,
			"reviewed_at": now,
		}
		// Operator actions from boardctl have no account.
		if actor.ID != 0 {
			updates["reviewed_by"] = actor.ID
		}
		res := tx.Model(&models.Report{}).
			Where("id = ? AND status = ?", reportID, models.ReportStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result.AlreadyResolved = true
			return tx.First(&report, reportID).Error
		}

		switch action {
		case models.ModerationDelete:
			deleted, err := deletePostsCascade(tx, []uint{report.PostID}, actor.ID)
			if err != nil {
				return err
			}
			result.PostDeleted = deleted > 0
			audited = models.AuditPostDelete
			if err := appendAudit(tx, actor, audited, formatID(report.PostID), map[string]any{
				"report_id":    report.ID,
				"post_deleted": result.PostDeleted,
			}); err != nil {
				return err
			}
		default:
			audited = models.AuditReportDismiss
			if err := appendAudit(tx, actor, audited, formatID(report.ID), map[string]any{
				"post_id": report.PostID,
			}); err != nil {
				return err
			}
		}
		return tx.First(&report, reportID).Error
	})
	if err != nil {
		if !models.HasCode(err, models.CodeNotFound) {
			r.log.LogError(ctx, "resolve_report", err)
		}
		return nil, err
	}

	if audited != "" {
		observability.AuditEntries.WithLabelValues(string(audited)).Inc()
		r.log.Log(ctx, "resolve_report",
			slog.Uint64("report_id", uint64(reportID)),
			slog.String("action", string(action)),
			slog.Bool("post_deleted", result.PostDeleted))
	}
	return result, nil
}

func (r *moderationRepository) UpdateRole(ctx context.Context, actor AuditActor, targetID uint, role models.Role) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&account, targetID).Error; err != nil {
			return notFoundOr(err, "Account", targetID)
		}
		previous := account.Role
		if err := tx.Model(&models.Account{}).Where("id = ?", targetID).Update("role", role).Error; err != nil {
			return err
		}
		return appendAudit(tx, actor, models.AuditRoleUpdate, formatID(targetID), map[string]any{
			"role":          role,
			"previous_role": previous,
		})
	})
	if err != nil {
		return nil, err
	}
	account.Role = role
	observability.AuditEntries.WithLabelValues(string(models.AuditRoleUpdate)).Inc()
	r.log.Log(ctx, "update_role", slog.Uint64("account_id", uint64(targetID)), slog.String("role", string(role)))
	return &account, nil
}

// DeleteAccount removes the account with its posts, interactions and graph
// edges. Reports the account filed are kept for the moderation history.
func (r *moderationRepository) DeleteAccount(ctx context.Context, actor AuditActor, targetID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&account, targetID).Error; err != nil {
			return notFoundOr(err, "Account", targetID)
		}

		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("author_id = ?", targetID).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if _, err := deletePostsCascade(tx, postIDs, actor.ID); err != nil {
			return err
		}

		cleanup := []struct {
			model any
			where string
			args  []any
		}{
			{&models.Like{}, "account_id = ?", []any{targetID}},
			{&models.Comment{}, "author_id = ?", []any{targetID}},
			{&models.Notification{}, "recipient_id = ? OR actor_id = ?", []any{targetID, targetID}},
			{&models.FollowEdge{}, "follower_id = ? OR following_id = ?", []any{targetID, targetID}},
			{&models.BlockEdge{}, "blocker_id = ? OR blocked_id = ?", []any{targetID, targetID}},
		}
		for _, c := range cleanup {
			if err := tx.Where(c.where, c.args...).Delete(c.model).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.Account{}, targetID).Error; err != nil {
			return err
		}
		// Tokens issued before the deletion stay valid at the provider.
		if err := tx.Create(&models.DeletedSubject{Subject: account.AuthSubject, AccountID: targetID}).Error; err != nil {
			return err
		}
		return appendAudit(tx, actor, models.AuditUserDelete, formatID(targetID), map[string]any{
			"email":         account.Email,
			"username":      account.Username,
			"posts_deleted": len(postIDs),
		})
	})
	if err != nil {
		if !models.HasCode(err, models.CodeNotFound) {
			r.log.LogError(ctx, "delete_account", err)
		}
		return nil, err
	}
	observability.AuditEntries.WithLabelValues(string(models.AuditUserDelete)).Inc()
	r.log.Log(ctx, "delete_account", slog.Uint64("account_id", uint64(targetID)))
	return &account, nil
}

// DeletePost is an admin removal outside the report queue. A missing post
// is a no-op and writes no audit entry.
func (r *moderationRepository) DeletePost(ctx context.Context, actor AuditActor, postID uint) (bool, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = deletePostsCascade(tx, []uint{postID}, actor.ID)
		if err != nil || deleted == 0 {
			return err
		}
		return appendAudit(tx, actor, models.AuditPostDelete, formatID(postID), map[string]any{
			"source": "admin",
		})
	})
	if err != nil {
		r.log.LogError(ctx, "delete_post", err)
		return false, err
	}
	if deleted > 0 {
		observability.AuditEntries.WithLabelValues(string(models.AuditPostDelete)).Inc()
	}
	return deleted > 0, nil
}

func (r *moderationRepository) ListAuditLog(ctx context.Context, limit, offset int) ([]models.AuditLogEntry, error) {
	entries := []models.AuditLogEntry{}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}

func appendAudit(tx *gorm.DB, actor AuditActor, action models.AuditAction, targetID string, details map[string]any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return tx.Create(&models.AuditLogEntry{
		AdminEmail: actor.Email,
		ActionType: action,
		TargetID:   targetID,
		Details:    datatypes.JSON(raw),
	}).Error
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
