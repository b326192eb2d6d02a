package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReportStatus only ever moves from pending to reviewed.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusReviewed ReportStatus = "reviewed"
)

// ModerationAction is the admin decision on a report.
type ModerationAction string

const (
	ModerationDismiss ModerationAction = "dismiss"
	ModerationDelete  ModerationAction = "delete"
)

// Valid reports whether a is a known action.
func (a ModerationAction) Valid() bool {
	return a == ModerationDismiss || a == ModerationDelete
}

// Report is a user complaint against a post. One per (reporter, post).
type Report struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	ReporterID uint             `gorm:"not null;uniqueIndex:idx_reports_reporter_post,priority:1" json:"reporter_id"`
	PostID     uint             `gorm:"not null;uniqueIndex:idx_reports_reporter_post,priority:2;index" json:"post_id"`
	Reason     string           `gorm:"size:500;not null" json:"reason"`
	Status     ReportStatus     `gorm:"size:16;not null;default:pending;index" json:"status"`
	Resolution ModerationAction `gorm:"size:16" json:"resolution,omitempty"`
	ReviewedBy *uint            `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
}

// ReportView is a pending report joined with its post and the post author.
// Post and Author are nil when the post has already been removed.
type ReportView struct {
	Report   Report          `json:"report"`
	Post     *Post           `json:"post"`
	Author   *AccountSummary `json:"author"`
	Reporter *AccountSummary `json:"reporter,omitempty"`
}

// AuditAction names a privileged mutation.
type AuditAction string

const (
	AuditRoleUpdate    AuditAction = "ROLE_UPDATE"
	AuditUserDelete    AuditAction = "USER_DELETE"
	AuditPostDelete    AuditAction = "POST_DELETE"
	AuditReportDismiss AuditAction = "REPORT_DISMISS"
)

// AuditLogEntry is append-only.
type AuditLogEntry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	AdminEmail string         `gorm:"size:320;not null" json:"admin_email"`
	ActionType AuditAction    `gorm:"size:32;not null;index" json:"action_type"`
	TargetID   string         `gorm:"size:64;not null;index" json:"target_id"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

// TableName keeps the historical table name.
func (AuditLogEntry) TableName() string {
	return "audit_logs"
}
