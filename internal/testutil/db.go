// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/blondeglamazon/message-board-sub000/internal/database"
	"github.com/blondeglamazon/message-board-sub000/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB returns a migrated in-memory database private to the test.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Each connection would otherwise get its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// NewMockDB returns a postgres-dialect GORM handle backed by sqlmock.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

// CreateAccount inserts an account with the given username.
func CreateAccount(t *testing.T, db *gorm.DB, username string, role models.Role) *models.Account {
	t.Helper()
	acc := &models.Account{
		AuthSubject: "sub-" + username,
		Email:       username + "@example.com",
		Username:    username,
		Role:        role,
	}
	require.NoError(t, db.Create(acc).Error)
	return acc
}

// CreatePost inserts a text post by author.
func CreatePost(t *testing.T, db *gorm.DB, authorID uint, content string) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: authorID, Content: content, PostType: models.PostTypeText}
	require.NoError(t, db.Create(post).Error)
	return post
}

// Follow inserts a follow edge.
func Follow(t *testing.T, db *gorm.DB, follower, following uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.FollowEdge{FollowerID: follower, FollowingID: following}).Error)
}

// Block inserts a block edge.
func Block(t *testing.T, db *gorm.DB, blocker, blocked uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.BlockEdge{BlockerID: blocker, BlockedID: blocked}).Error)
}
