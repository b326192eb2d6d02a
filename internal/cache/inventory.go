package cache

import (
	"context"
	"fmt"
	"time"
)

// Only account records are cached. Feeds, the social graph and posts are
// always read from the database so deletes and blocks apply immediately.
const (
	AccountKeyPrefix        = "account:%d"
	AccountSubjectKeyPrefix = "account:sub:%s"
)

const AccountTTL = 5 * time.Minute

func AccountKey(id uint) string {
	return fmt.Sprintf(AccountKeyPrefix, id)
}

func AccountSubjectKey(subject string) string {
	return fmt.Sprintf(AccountSubjectKeyPrefix, subject)
}

// InvalidateAccount drops both lookups for an account.
func (c *Cache) InvalidateAccount(ctx context.Context, id uint, subject string) {
	c.Invalidate(ctx, AccountKey(id), AccountSubjectKey(subject))
}
