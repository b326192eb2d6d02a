package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestDemoFixtureApplies(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	f, err := DemoFixture()
	require.NoError(t, err)

	res, err := Apply(ctx, db, f)
	require.NoError(t, err)
	assert.Equal(t, Result{Accounts: 5, Follows: 4, Blocks: 1, Posts: 5, Reports: 2}, *res)

	var admin models.Account
	require.NoError(t, db.Where("auth_subject = ?", SubjectFor("admin")).First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	var cat models.Post
	require.NoError(t, db.Where("content = ?", "New roommate.").First(&cat).Error)
	assert.Equal(t, models.PostTypeImage, cat.PostType)

	assert.Equal(t, int64(2), count(t, db, &models.Report{}))
}

func TestLoadFixture(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadFixture(strings.NewReader("acounts: []\n"))
		assert.Error(t, err)
	})

	t.Run("empty document", func(t *testing.T) {
		f, err := LoadFixture(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, f.Accounts)
	})
}

func TestApplyRollsBackOnBadReference(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	f, err := LoadFixture(strings.NewReader(`
accounts:
  - username: alice
follows:
  - {from: alice, to: ghost}
`))
	require.NoError(t, err)

	_, err = Apply(context.Background(), db, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown account "ghost"`)
	assert.Zero(t, count(t, db, &models.Account{}))
}

func TestApplyRejectsSelfEdgesAndBadTypes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	self, err := LoadFixture(strings.NewReader("accounts: [{username: alice}]\nblocks: [{from: alice, to: Alice}]\n"))
	require.NoError(t, err)
	_, err = Apply(ctx, db, self)
	assert.Error(t, err)

	badType, err := LoadFixture(strings.NewReader("accounts: [{username: bob}]\nposts: [{author: bob, content: x, post_type: poll}]\n"))
	require.NoError(t, err)
	_, err = Apply(ctx, db, badType)
	assert.Error(t, err)
	assert.Zero(t, count(t, db, &models.Account{}))
}

func TestFactorySeedDemo(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	res, err := NewFactory(db, 42).SeedDemo(ctx, DemoOptions{
		Accounts:        12,
		PostsPerAccount: 3,
		FollowChance:    40,
		BlockChance:     20,
		MaxDays:         7,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Accounts)
	assert.Equal(t, 36, res.Posts)
	assert.Equal(t, int64(res.Follows), count(t, db, &models.FollowEdge{}))
	assert.Equal(t, int64(res.Blocks), count(t, db, &models.BlockEdge{}))

	// No pair is both followed and blocked.
	var overlap int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM block_edges b JOIN follow_edges f
		ON (f.follower_id = b.blocker_id AND f.following_id = b.blocked_id)
		OR (f.follower_id = b.blocked_id AND f.following_id = b.blocker_id)`).Scan(&overlap).Error)
	assert.Zero(t, overlap)

	var accounts []models.Account
	require.NoError(t, db.Find(&accounts).Error)
	for _, a := range accounts {
		assert.LessOrEqual(t, len(a.Username), 30)
		assert.Equal(t, SubjectFor(a.Username), a.AuthSubject)
	}

	_, err = NewFactory(db, 1).SeedDemo(ctx, DemoOptions{})
	assert.Error(t, err)
}

func TestFactoryIsDeterministic(t *testing.T) {
	a := NewFactory(nil, 7).BuildAccount(1)
	b := NewFactory(nil, 7).BuildAccount(1)
	assert.Equal(t, a.Username, b.Username)
	assert.Equal(t, a.Email, b.Email)
}

func TestClearAll(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	f, err := DemoFixture()
	require.NoError(t, err)
	_, err = Apply(ctx, db, f)
	require.NoError(t, err)

	require.NoError(t, ClearAll(ctx, db))
	assert.Zero(t, count(t, db, &models.Account{}))
	assert.Zero(t, count(t, db, &models.Post{}))
	assert.Zero(t, count(t, db, &models.Report{}))
}
