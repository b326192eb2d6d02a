package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DemoOptions size a generated data set.
type DemoOptions struct {
	Accounts        int
	PostsPerAccount int
	// FollowChance is the probability, in percent, that an account follows
	// another one.
	FollowChance int
	// BlockChance is the probability, in percent, of a block between two
	// accounts that do not follow each other.
	BlockChance int
	// MaxDays spreads post creation times over the last MaxDays days.
	MaxDays int
}

// DefaultDemoOptions is a small, readable board.
var DefaultDemoOptions = DemoOptions{
	Accounts:        20,
	PostsPerAccount: 5,
	FollowChance:    25,
	BlockChance:     3,
	MaxDays:         30,
}

// Factory generates fake accounts, posts and graph edges.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
}

// NewFactory creates a Factory. The same seed always produces the same data.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	return &Factory{db: db, faker: gofakeit.New(seed)}
}

// BuildAccount returns an unsaved account with fake profile fields.
func (f *Factory) BuildAccount(n int) *models.Account {
	username := fmt.Sprintf("%s_%d", f.faker.Username(), n)
	if len(username) > 30 {
		username = username[len(username)-30:]
	}
	return &models.Account{
		AuthSubject: SubjectFor(username),
		Email:       fmt.Sprintf("%s@%s", models.UsernameKey(username), f.faker.DomainName()),
		Username:    username,
		DisplayName: f.faker.Name(),
		Bio:         f.faker.Sentence(10),
		AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Role:        models.RoleUser,
	}
}

// BuildPost returns an unsaved post by author with a created_at inside the
// last maxDays days.
func (f *Factory) BuildPost(authorID uint, maxDays int) *models.Post {
	if maxDays <= 0 {
		maxDays = 30
	}
	post := &models.Post{
		AuthorID: authorID,
		PostType: models.PostTypeText,
		Content:  f.faker.Paragraph(1, 3, 12, " "),
		CreatedAt: time.Now().Add(-time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute).
			Truncate(time.Second),
	}
	if len(post.Content) > 5000 {
		post.Content = post.Content[:5000]
	}
	// Roughly one post in four carries an image.
	if f.faker.Number(1, 4) == 1 {
		post.PostType = models.PostTypeImage
		post.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
		post.Content = f.faker.Sentence(6)
	}
	return post
}

// SeedDemo inserts a generated board: accounts, their posts and a random
// follow and block graph. Follow and block edges never coexist between the
// same two accounts.
func (f *Factory) SeedDemo(ctx context.Context, opts DemoOptions) (*Result, error) {
	if opts.Accounts <= 0 {
		return nil, fmt.Errorf("accounts must be positive")
	}

	res := &Result{}
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts := make([]*models.Account, 0, opts.Accounts)
		for i := 0; i < opts.Accounts; i++ {
			accounts = append(accounts, f.BuildAccount(i+1))
		}
		if err := tx.CreateInBatches(accounts, 100).Error; err != nil {
			return fmt.Errorf("create accounts: %w", err)
		}
		res.Accounts = len(accounts)

		posts := make([]*models.Post, 0, opts.Accounts*opts.PostsPerAccount)
		for _, a := range accounts {
			for j := 0; j < opts.PostsPerAccount; j++ {
				posts = append(posts, f.BuildPost(a.ID, opts.MaxDays))
			}
		}
		if len(posts) > 0 {
			if err := tx.CreateInBatches(posts, 200).Error; err != nil {
				return fmt.Errorf("create posts: %w", err)
			}
		}
		res.Posts = len(posts)

		follows, blocks := f.graph(accounts, opts)
		if len(follows) > 0 {
			if err := tx.CreateInBatches(follows, 500).Error; err != nil {
				return fmt.Errorf("create follows: %w", err)
			}
		}
		if len(blocks) > 0 {
			if err := tx.CreateInBatches(blocks, 500).Error; err != nil {
				return fmt.Errorf("create blocks: %w", err)
			}
		}
		res.Follows = len(follows)
		res.Blocks = len(blocks)
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.Logger.InfoContext(ctx, "demo data seeded",
		"accounts", res.Accounts, "posts", res.Posts, "follows", res.Follows, "blocks", res.Blocks)
	return res, nil
}

func (f *Factory) graph(accounts []*models.Account, opts DemoOptions) ([]models.FollowEdge, []models.BlockEdge) {
	var follows []models.FollowEdge
	var blocks []models.BlockEdge
	for i, a := range accounts {
		for j := i + 1; j < len(accounts); j++ {
			b := accounts[j]
			ab := f.faker.Number(1, 100) <= opts.FollowChance
			ba := f.faker.Number(1, 100) <= opts.FollowChance
			if ab {
				follows = append(follows, models.FollowEdge{FollowerID: a.ID, FollowingID: b.ID})
			}
			if ba {
				follows = append(follows, models.FollowEdge{FollowerID: b.ID, FollowingID: a.ID})
			}
			if !ab && !ba && f.faker.Number(1, 100) <= opts.BlockChance {
				blocks = append(blocks, models.BlockEdge{BlockerID: a.ID, BlockedID: b.ID})
			}
		}
	}
	return follows, blocks
}
