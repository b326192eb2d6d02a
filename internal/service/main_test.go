package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/cache"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"
	"github.com/blondeglamazon/message-board-sub000/internal/safety"
	"github.com/blondeglamazon/message-board-sub000/internal/storage"
	"github.com/blondeglamazon/message-board-sub000/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubGate records every check and answers with verdict.
type stubGate struct {
	mu      sync.Mutex
	calls   []string
	verdict safety.Verdict
}

func newStubGate() *stubGate {
	return &stubGate{verdict: safety.Verdict{Safe: true, Status: fiber.StatusOK}}
}

func (g *stubGate) Check(_ context.Context, mediaURL string, _ models.PostType) safety.Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, mediaURL)
	return g.verdict
}

func (g *stubGate) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// memStore is an in-memory storage provider.
type memStore struct {
	mu      sync.Mutex
	objects map[string]storage.Object
	deleted []string
	kind    models.PostType
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]storage.Object{}, kind: models.PostTypeImage}
}

func (m *memStore) Upload(_ context.Context, in storage.UploadInput) (*storage.Object, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := in.Filename
	obj := storage.Object{
		Key:  key,
		URL:  "https://media.example.com/" + key,
		Kind: m.kind,
		Size: int64(len(in.Content)),
	}
	m.objects[key] = obj
	return &obj, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type fixture struct {
	db            *gorm.DB
	gate          *stubGate
	store         *memStore
	cache         *cache.Cache
	notifications *NotificationService
	graph         *GraphService
	feed          *FeedService
	posts         *PostService
	interactions  *InteractionService
	moderation    *ModerationService
	accounts      *AccountService
}

func newFixture(t *testing.T, c *cache.Cache, adminEmails ...string) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	accountRepo := repository.NewAccountRepository(db)
	graphRepo := repository.NewGraphRepository(db)
	postRepo := repository.NewPostRepository(db)
	interactionRepo := repository.NewInteractionRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	reportRepo := repository.NewReportRepository(db)

	f := &fixture{db: db, gate: newStubGate(), store: newMemStore(), cache: c}
	f.notifications = NewNotificationService(repository.NewNotificationRepository(db))
	f.graph = NewGraphService(graphRepo, accountRepo, f.notifications)
	f.feed = NewFeedService(f.graph, postRepo, interactionRepo)
	f.posts = NewPostService(postRepo, interactionRepo, moderationRepo, f.graph, f.gate, f.store)
	f.interactions = NewInteractionService(postRepo, interactionRepo, f.graph, f.notifications)
	f.moderation = NewModerationService(reportRepo, moderationRepo, postRepo, accountRepo, c)
	f.accounts = NewAccountService(accountRepo, graphRepo, postRepo, c, adminEmails)
	return f
}

// postAt inserts a text post with a fixed creation time.
func postAt(t *testing.T, db *gorm.DB, authorID uint, content string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{AuthorID: authorID, Content: content, PostType: models.PostTypeText, CreatedAt: at}
	require.NoError(t, db.Create(p).Error)
	return p
}

func contents(details []models.PostDetail) []string {
	out := make([]string, 0, len(details))
	for _, d := range details {
		out = append(out, d.Content)
	}
	return out
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
