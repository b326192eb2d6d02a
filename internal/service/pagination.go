// Package service holds the business rules: the social graph reader, the
// feed composer, the moderation workflow and the post, interaction and
// account services around them.
package service

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit to [1, MaxPageSize], defaulting to DefaultPageSize,
// and offset to >= 0.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
