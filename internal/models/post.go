package models

import "time"

// PostType identifies how a post's content and media are interpreted.
type PostType string

const (
	PostTypeText  PostType = "text"
	PostTypeImage PostType = "image"
	PostTypeVideo PostType = "video"
	PostTypeAudio PostType = "audio"
	PostTypeEmbed PostType = "embed"
)

// Valid reports whether t is a known post type.
func (t PostType) Valid() bool {
	switch t {
	case PostTypeText, PostTypeImage, PostTypeVideo, PostTypeAudio, PostTypeEmbed:
		return true
	}
	return false
}

// HasMedia reports whether posts of this type carry a media URL.
func (t PostType) HasMedia() bool {
	return t == PostTypeImage || t == PostTypeVideo || t == PostTypeAudio
}

// Post is immutable after creation; it can only be deleted.
// ID is assigned monotonically and breaks created_at ties in feeds.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index:idx_posts_author_created,priority:1" json:"author_id"`
	Author    *Account  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content   string    `gorm:"type:text" json:"content"`
	MediaURL  string    `gorm:"size:1024" json:"media_url,omitempty"`
	PostType  PostType  `gorm:"size:16;not null;default:text" json:"post_type"`
	CreatedAt time.Time `gorm:"not null;index:idx_posts_created_id,priority:1;index:idx_posts_author_created,priority:2" json:"created_at"`
}

// PostDetail is a post enriched with interaction counts for the viewer.
type PostDetail struct {
	Post
	LikesCount    int64 `json:"likes_count"`
	CommentsCount int64 `json:"comments_count"`
	Liked         bool  `json:"liked"`
}

// Like marks an account's like on a post.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;uniqueIndex:idx_likes_account_post,priority:1" json:"account_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_account_post,priority:2;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a text reply on a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *Account  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
