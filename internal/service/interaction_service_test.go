package service

import (
	"context"
	"strings"
	"testing"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionService_Likes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	fan := testutil.CreateAccount(t, f.db, "fan", models.RoleUser)
	post := testutil.CreatePost(t, f.db, author.ID, "hello")

	res, err := f.interactions.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikesCount)
	require.NotNil(t, res.Notification)
	assert.Equal(t, author.ID, res.Notification.RecipientID)

	again, err := f.interactions.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.LikesCount)
	assert.Nil(t, again.Notification)

	// Liking your own post never notifies.
	own, err := f.interactions.Like(ctx, author.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), own.LikesCount)
	assert.Nil(t, own.Notification)

	res, err = f.interactions.Unlike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, int64(1), res.LikesCount)

	_, err = f.interactions.Like(ctx, 0, post.ID)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))
	_, err = f.interactions.Like(ctx, fan.ID, 999)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestInteractionService_BlockedCannotInteract(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	troll := testutil.CreateAccount(t, f.db, "troll", models.RoleUser)
	post := testutil.CreatePost(t, f.db, author.ID, "hello")
	testutil.Block(t, f.db, author.ID, troll.ID)

	_, err := f.interactions.Like(ctx, troll.ID, post.ID)
	assert.True(t, models.HasCode(err, models.CodeForbidden))
	_, _, err = f.interactions.AddComment(ctx, troll.ID, post.ID, "hey")
	assert.True(t, models.HasCode(err, models.CodeForbidden))
	_, err = f.interactions.ListComments(ctx, troll.ID, post.ID, NewPage(0, 0))
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	assert.Zero(t, countRows(t, f.db, &models.Like{}))
	assert.Zero(t, countRows(t, f.db, &models.Comment{}))
	assert.Zero(t, countRows(t, f.db, &models.Notification{}))
}

func TestInteractionService_Comments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	alice := testutil.CreateAccount(t, f.db, "alice", models.RoleUser)
	bob := testutil.CreateAccount(t, f.db, "bob", models.RoleUser)
	admin := testutil.CreateAccount(t, f.db, "admin", models.RoleAdmin)
	post := testutil.CreatePost(t, f.db, author.ID, "hello")

	_, _, err := f.interactions.AddComment(ctx, alice.ID, post.ID, "  ")
	assert.True(t, models.HasCode(err, models.CodeValidation))
	_, _, err = f.interactions.AddComment(ctx, alice.ID, post.ID, strings.Repeat("a", MaxCommentLength+1))
	assert.True(t, models.HasCode(err, models.CodeValidation))

	first, n, err := f.interactions.AddComment(ctx, alice.ID, post.ID, " first ")
	require.NoError(t, err)
	assert.Equal(t, "first", first.Content)
	require.NotNil(t, n)
	assert.Equal(t, models.NotificationComment, n.Kind)

	second, _, err := f.interactions.AddComment(ctx, bob.ID, post.ID, "second")
	require.NoError(t, err)

	list, err := f.interactions.ListComments(ctx, 0, post.ID, NewPage(0, 0))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	// Blocked commenters are hidden from the viewer.
	testutil.Block(t, f.db, alice.ID, bob.ID)
	list, err = f.interactions.ListComments(ctx, alice.ID, post.ID, NewPage(0, 0))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Content)

	err = f.interactions.DeleteComment(ctx, alice, second.ID)
	assert.True(t, models.HasCode(err, models.CodeForbidden))
	require.NoError(t, f.interactions.DeleteComment(ctx, author, second.ID))
	require.NoError(t, f.interactions.DeleteComment(ctx, admin, first.ID))
	assert.Zero(t, countRows(t, f.db, &models.Comment{}))
}
