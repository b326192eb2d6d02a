// Package seed loads fixture and demo data into the database. It is meant
// for development and tests only.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blondeglamazon/message-board-sub000/internal/database"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed demo.yml
var demoFixture []byte

// Fixture is a hand-written data set. Accounts are referenced by username
// and posts by their key.
type Fixture struct {
	Accounts []FixtureAccount `yaml:"accounts"`
	Follows  []FixtureEdge    `yaml:"follows"`
	Blocks   []FixtureEdge    `yaml:"blocks"`
	Posts    []FixturePost    `yaml:"posts"`
	Reports  []FixtureReport  `yaml:"reports"`
}

type FixtureAccount struct {
	Username    string      `yaml:"username"`
	Email       string      `yaml:"email"`
	DisplayName string      `yaml:"display_name"`
	Bio         string      `yaml:"bio"`
	Role        models.Role `yaml:"role"`
}

// FixtureEdge is a follow or block from one username to another.
type FixtureEdge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type FixturePost struct {
	Key      string          `yaml:"key"`
	Author   string          `yaml:"author"`
	Content  string          `yaml:"content"`
	MediaURL string          `yaml:"media_url"`
	PostType models.PostType `yaml:"post_type"`
}

type FixtureReport struct {
	Reporter string `yaml:"reporter"`
	Post     string `yaml:"post"`
	Reason   string `yaml:"reason"`
}

// Result counts what a seeding run inserted.
type Result struct {
	Accounts int `json:"accounts"`
	Follows  int `json:"follows"`
	Blocks   int `json:"blocks"`
	Posts    int `json:"posts"`
	Reports  int `json:"reports"`
}

// LoadFixture decodes a YAML fixture. Unknown fields are rejected.
func LoadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// LoadFixtureFile reads a fixture from disk.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadFixture(f)
}

// DemoFixture is the small data set bundled with the binary.
func DemoFixture() (*Fixture, error) {
	return LoadFixture(strings.NewReader(string(demoFixture)))
}

// Apply inserts the fixture in a single transaction.
func Apply(ctx context.Context, db *gorm.DB, f *Fixture) (*Result, error) {
	res := &Result{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]uint, len(f.Accounts))
		for _, a := range f.Accounts {
			role := a.Role
			if role == "" {
				role = models.RoleUser
			}
			if !role.Valid() {
				return fmt.Errorf("account %q: invalid role %q", a.Username, role)
			}
			email := a.Email
			if email == "" {
				email = strings.ToLower(a.Username) + "@example.com"
			}
			acc := &models.Account{
				AuthSubject: SubjectFor(a.Username),
				Email:       email,
				Username:    a.Username,
				DisplayName: a.DisplayName,
				Bio:         a.Bio,
				Role:        role,
			}
			if err := tx.Create(acc).Error; err != nil {
				return fmt.Errorf("account %q: %w", a.Username, err)
			}
			ids[models.UsernameKey(a.Username)] = acc.ID
		}

		lookup := func(username string) (uint, error) {
			id, ok := ids[models.UsernameKey(username)]
			if !ok {
				return 0, fmt.Errorf("unknown account %q", username)
			}
			return id, nil
		}

		for _, e := range f.Follows {
			from, to, err := edgeIDs(lookup, e)
			if err != nil {
				return fmt.Errorf("follow: %w", err)
			}
			if err := tx.Create(&models.FollowEdge{FollowerID: from, FollowingID: to}).Error; err != nil {
				return err
			}
			res.Follows++
		}
		for _, e := range f.Blocks {
			from, to, err := edgeIDs(lookup, e)
			if err != nil {
				return fmt.Errorf("block: %w", err)
			}
			if err := tx.Create(&models.BlockEdge{BlockerID: from, BlockedID: to}).Error; err != nil {
				return err
			}
			res.Blocks++
		}

		posts := make(map[string]uint, len(f.Posts))
		for i, p := range f.Posts {
			author, err := lookup(p.Author)
			if err != nil {
				return fmt.Errorf("post %d: %w", i, err)
			}
			postType := p.PostType
			if postType == "" {
				postType = models.PostTypeText
				if p.MediaURL != "" {
					postType = models.PostTypeImage
				}
			}
			if !postType.Valid() {
				return fmt.Errorf("post %d: invalid post_type %q", i, postType)
			}
			post := &models.Post{AuthorID: author, Content: p.Content, MediaURL: p.MediaURL, PostType: postType}
			if err := tx.Create(post).Error; err != nil {
				return err
			}
			if p.Key != "" {
				posts[p.Key] = post.ID
			}
			res.Posts++
		}

		for _, r := range f.Reports {
			reporter, err := lookup(r.Reporter)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}
			postID, ok := posts[r.Post]
			if !ok {
				return fmt.Errorf("report: unknown post %q", r.Post)
			}
			report := &models.Report{ReporterID: reporter, PostID: postID, Reason: r.Reason, Status: models.ReportStatusPending}
			if err := tx.Create(report).Error; err != nil {
				return err
			}
			res.Reports++
		}

		res.Accounts = len(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.Logger.InfoContext(ctx, "fixture applied",
		"accounts", res.Accounts, "posts", res.Posts, "follows", res.Follows,
		"blocks", res.Blocks, "reports", res.Reports)
	return res, nil
}

func edgeIDs(lookup func(string) (uint, error), e FixtureEdge) (uint, uint, error) {
	from, err := lookup(e.From)
	if err != nil {
		return 0, 0, err
	}
	to, err := lookup(e.To)
	if err != nil {
		return 0, 0, err
	}
	if from == to {
		return 0, 0, fmt.Errorf("%q cannot target itself", e.From)
	}
	return from, to, nil
}

// SubjectFor is the auth subject given to seeded accounts, so a development
// token with this subject signs in as the seeded user.
func SubjectFor(username string) string {
	return "seed|" + models.UsernameKey(username)
}

// ClearAll deletes every row in child-to-parent order.
func ClearAll(ctx context.Context, db *gorm.DB) error {
	tables := database.Models()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := len(tables) - 1; i >= 0; i-- {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error; err != nil {
				return fmt.Errorf("clear %T: %w", tables[i], err)
			}
		}
		return nil
	})
}
