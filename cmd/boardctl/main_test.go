package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func run(t *testing.T, db *gorm.DB, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&cli{db: db})
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedAndModerate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	out, err := run(t, db, "seed")
	require.NoError(t, err, out)
	assert.Contains(t, out, "seeded 5 accounts, 5 posts")

	out, err = run(t, db, "reports")
	require.NoError(t, err)
	assert.Contains(t, out, "scam link")
	assert.Contains(t, out, "dave")

	var reports []models.Report
	require.NoError(t, db.Order("id").Find(&reports).Error)
	require.Len(t, reports, 2)
	first, second := strconv.FormatUint(uint64(reports[0].ID), 10), strconv.FormatUint(uint64(reports[1].ID), 10)

	out, err = run(t, db, "resolve", first, "delete", "--as", "admin")
	require.NoError(t, err, out)
	assert.Contains(t, out, "post")
	assert.Contains(t, out, "deleted")

	out, err = run(t, db, "resolve", second, "dismiss")
	require.NoError(t, err)
	assert.Contains(t, out, "already resolved")

	out, err = run(t, db, "audit-log")
	require.NoError(t, err)
	assert.Contains(t, out, "admin@example.com")
	assert.Contains(t, out, string(models.AuditPostDelete))
}

func TestSetRoleAndDeleteUser(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.CreateAccount(t, db, "root", models.RoleAdmin)
	testutil.CreateAccount(t, db, "alice", models.RoleUser)

	_, err := run(t, db, "set-role", "alice", "admin", "--as", "alice")
	assert.Error(t, err)

	out, err := run(t, db, "set-role", "alice", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "alice is now admin")

	_, err = run(t, db, "set-role", "alice", "owner")
	assert.Error(t, err)

	_, err = run(t, db, "delete-user", "root", "--as", "root")
	assert.Error(t, err, "admins cannot delete themselves")

	out, err = run(t, db, "delete-user", "root", "--as", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted root")

	var entries []models.AuditLogEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, operatorEmail, entries[0].AdminEmail)
	assert.Equal(t, "alice@example.com", entries[1].AdminEmail)
}

func TestSeedFromFileAndGenerate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	path := filepath.Join(t.TempDir(), "board.yml")
	require.NoError(t, os.WriteFile(path, []byte("accounts:\n  - username: solo\nposts:\n  - {author: solo, content: hi}\n"), 0o600))

	out, err := run(t, db, "seed", "--fixture", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "seeded 1 accounts, 1 posts")

	out, err = run(t, db, "seed", "--clean", "--generate", "4", "--posts", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "seeded 4 accounts, 8 posts")

	var n int64
	require.NoError(t, db.Model(&models.Account{}).Count(&n).Error)
	assert.Equal(t, int64(4), n)

	_, err = run(t, db, "seed", "--fixture", path, "--generate", "2")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	out, err := run(t, db, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")
}
