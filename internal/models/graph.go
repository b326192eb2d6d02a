package models

import "time"

// FollowEdge is a directed follow. Followers are the reverse direction of
// the same relation.
type FollowEdge struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follow_pair,priority:1" json:"follower_id"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follow_pair,priority:2;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlockEdge is a directed block. Its effect on visibility is symmetric.
type BlockEdge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_block_pair,priority:1" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_block_pair,priority:2;index" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationKind names the event a notification reports.
type NotificationKind string

const (
	NotificationLike    NotificationKind = "like"
	NotificationComment NotificationKind = "comment"
	NotificationFollow  NotificationKind = "follow"
)

// Notification is an in-app notice for the recipient.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	ActorID     uint             `gorm:"not null" json:"actor_id"`
	Actor       *Account         `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Kind        NotificationKind `gorm:"size:16;not null" json:"kind"`
	PostID      *uint            `gorm:"index" json:"post_id,omitempty"`
	Read        bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time        `gorm:"index:idx_notifications_recipient_created,priority:2" json:"created_at"`
}
