package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestAccountRepository_GetByID_SQL(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	query := regexp.QuoteMeta(`SELECT * FROM "accounts" WHERE "accounts"."id" = $1 ORDER BY "accounts"."id" LIMIT $2`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(1, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "role"}).
				AddRow(1, "alice", "alice@example.com", "admin"))

		acc, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "alice", acc.Username)
		assert.True(t, acc.IsAdmin())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(99, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		_, err := repo.GetByID(ctx, 99)
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	alice := testutil.CreateAccount(t, db, "Alice", models.RoleUser)
	bob := testutil.CreateAccount(t, db, "bob", models.RoleUser)

	t.Run("username lookup is case-insensitive", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "ALICE")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		taken, err := repo.UsernameTaken(ctx, "alice", bob.ID)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.UsernameTaken(ctx, "alice", alice.ID)
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("duplicate subject is a conflict", func(t *testing.T) {
		err := repo.Create(ctx, &models.Account{AuthSubject: alice.AuthSubject, Email: "other@example.com", Username: "other"})
		assert.True(t, models.HasCode(err, models.CodeConflict))
	})

	t.Run("profile update keeps role", func(t *testing.T) {
		update := &models.Account{ID: bob.ID, Username: "Bobby", Bio: "hi", Role: models.RoleAdmin}
		require.NoError(t, repo.UpdateProfile(ctx, update))

		got, err := repo.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bobby", got.Username)
		assert.Equal(t, "hi", got.Bio)
		assert.Equal(t, models.RoleUser, got.Role)
	})

	t.Run("profile update to a taken username conflicts", func(t *testing.T) {
		err := repo.UpdateProfile(ctx, &models.Account{ID: bob.ID, Username: "alice"})
		assert.True(t, models.HasCode(err, models.CodeConflict))
	})

	t.Run("GetByIDs", func(t *testing.T) {
		got, err := repo.GetByIDs(ctx, []uint{alice.ID, bob.ID, 404})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = repo.GetByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestGraphRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGraphRepository(db)
	ctx := context.Background()

	a := testutil.CreateAccount(t, db, "a", models.RoleUser)
	b := testutil.CreateAccount(t, db, "b", models.RoleUser)
	c := testutil.CreateAccount(t, db, "c", models.RoleUser)

	created, err := repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created, "second follow is a no-op")
	_, err = repo.Follow(ctx, b.ID, a.ID)
	require.NoError(t, err)
	_, err = repo.Follow(ctx, c.ID, a.ID)
	require.NoError(t, err)

	following, err := repo.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{b.ID}, following)

	followers, err := repo.FollowerIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{b.ID, c.ID}, followers)

	accounts, err := repo.ListFollowers(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	n, err := repo.CountFollowing(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	t.Run("block removes follows both ways", func(t *testing.T) {
		require.NoError(t, repo.Block(ctx, b.ID, a.ID))
		require.NoError(t, repo.Block(ctx, b.ID, a.ID))

		blocked, err := repo.IsBlocked(ctx, a.ID, b.ID)
		require.NoError(t, err)
		assert.True(t, blocked, "block is visible from either side")

		ab, _ := repo.IsFollowing(ctx, a.ID, b.ID)
		ba, _ := repo.IsFollowing(ctx, b.ID, a.ID)
		assert.False(t, ab)
		assert.False(t, ba)

		ids, err := repo.BlockedIDs(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{b.ID}, ids)
	})

	t.Run("unblock", func(t *testing.T) {
		require.NoError(t, repo.Unblock(ctx, b.ID, a.ID))
		blocked, err := repo.IsBlocked(ctx, a.ID, b.ID)
		require.NoError(t, err)
		assert.False(t, blocked)
	})

	t.Run("unknown account has empty sets", func(t *testing.T) {
		ids, err := repo.FollowingIDs(ctx, 9999)
		require.NoError(t, err)
		assert.Empty(t, ids)
		ids, err = repo.BlockedIDs(ctx, 9999)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestPostRepository_ListFeed(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	a := testutil.CreateAccount(t, db, "a", models.RoleUser)
	b := testutil.CreateAccount(t, db, "b", models.RoleUser)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mk := func(author uint, at time.Time) uint {
		p := &models.Post{AuthorID: author, Content: "x", PostType: models.PostTypeText, CreatedAt: at}
		require.NoError(t, db.Create(p).Error)
		return p.ID
	}
	p1 := mk(a.ID, base)
	p2 := mk(b.ID, base.Add(time.Minute))
	p3 := mk(a.ID, base.Add(time.Minute))
	p4 := mk(b.ID, base.Add(2*time.Minute))

	ids := func(posts []models.Post) []uint {
		out := make([]uint, 0, len(posts))
		for _, p := range posts {
			out = append(out, p.ID)
		}
		return out
	}

	all, err := repo.ListFeed(ctx, FeedQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{p4, p3, p2, p1}, ids(all), "newest first, id breaks ties")
	require.NotNil(t, all[0].Author)
	assert.Equal(t, "b", all[0].Author.Username)

	onlyA, err := repo.ListFeed(ctx, FeedQuery{AuthorIn: []uint{a.ID}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{p3, p1}, ids(onlyA))

	none, err := repo.ListFeed(ctx, FeedQuery{AuthorIn: []uint{}, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none)

	notB, err := repo.ListFeed(ctx, FeedQuery{AuthorNotIn: []uint{b.ID}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{p3, p1}, ids(notB))

	page, err := repo.ListFeed(ctx, FeedQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint{p3, p2}, ids(page))
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	interactions := NewInteractionRepository(db)
	ctx := context.Background()

	author := testutil.CreateAccount(t, db, "author", models.RoleUser)
	fan := testutil.CreateAccount(t, db, "fan", models.RoleUser)
	post := testutil.CreatePost(t, db, author.ID, "hello")
	other := testutil.CreatePost(t, db, author.ID, "keep")

	_, err := interactions.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	require.NoError(t, interactions.CreateComment(ctx, &models.Comment{PostID: post.ID, AuthorID: fan.ID, Content: "nice"}))
	require.NoError(t, db.Create(&models.Notification{RecipientID: author.ID, ActorID: fan.ID, Kind: models.NotificationLike, PostID: &post.ID}).Error)
	require.NoError(t, db.Create(&models.Report{ReporterID: fan.ID, PostID: post.ID, Reason: "spam", Status: models.ReportStatusPending}).Error)

	deleted, err := posts.Delete(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = posts.GetByID(ctx, post.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	var likes, comments, notes, pending int64
	db.Model(&models.Like{}).Count(&likes)
	db.Model(&models.Comment{}).Count(&comments)
	db.Model(&models.Notification{}).Count(&notes)
	db.Model(&models.Report{}).Where("status = ?", models.ReportStatusPending).Count(&pending)
	assert.Zero(t, likes)
	assert.Zero(t, comments)
	assert.Zero(t, notes)
	assert.Zero(t, pending)

	_, err = posts.GetByID(ctx, other.ID)
	assert.NoError(t, err)

	deleted, err = posts.Delete(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "deleting a missing post is a no-op")
}

func TestInteractionRepository_Stats(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewInteractionRepository(db)
	ctx := context.Background()

	a := testutil.CreateAccount(t, db, "a", models.RoleUser)
	b := testutil.CreateAccount(t, db, "b", models.RoleUser)
	p1 := testutil.CreatePost(t, db, a.ID, "one")
	p2 := testutil.CreatePost(t, db, a.ID, "two")

	_, err := repo.Like(ctx, a.ID, p1.ID)
	require.NoError(t, err)
	_, err = repo.Like(ctx, b.ID, p1.ID)
	require.NoError(t, err)
	again, err := repo.Like(ctx, b.ID, p1.ID)
	require.NoError(t, err)
	assert.False(t, again)
	require.NoError(t, repo.CreateComment(ctx, &models.Comment{PostID: p2.ID, AuthorID: b.ID, Content: "c"}))

	stats, err := repo.Stats(ctx, []uint{p1.ID, p2.ID}, b.ID)
	require.NoError(t, err)
	assert.Equal(t, PostStats{Likes: 2, Liked: true}, stats[p1.ID])
	assert.Equal(t, PostStats{Comments: 1}, stats[p2.ID])

	comments, err := repo.ListComments(ctx, p2.ID, []uint{b.ID}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, comments, "excluded authors are filtered")
}

func TestReportRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReportRepository(db)
	ctx := context.Background()

	reporter := testutil.CreateAccount(t, db, "reporter", models.RoleUser)
	author := testutil.CreateAccount(t, db, "author", models.RoleUser)
	live := testutil.CreatePost(t, db, author.ID, "live")

	first, created, err := repo.CreateOrGet(ctx, &models.Report{ReporterID: reporter.ID, PostID: live.ID, Reason: "spam"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.CreateOrGet(ctx, &models.Report{ReporterID: reporter.ID, PostID: live.ID, Reason: "spam again"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "spam", again.Reason)

	// A report whose post is already gone.
	_, _, err = repo.CreateOrGet(ctx, &models.Report{ReporterID: reporter.ID, PostID: 4242, Reason: "gone"})
	require.NoError(t, err)

	views, err := repo.ListPendingViews(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, live.ID, views[0].Post.ID)
	require.NotNil(t, views[0].Author)
	assert.Equal(t, "author", views[0].Author.Username)
	require.NotNil(t, views[0].Reporter)
	assert.Equal(t, "reporter", views[0].Reporter.Username)

	assert.Nil(t, views[1].Post)
	assert.Nil(t, views[1].Author)

	n, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func countAudit(t *testing.T, db *gorm.DB, action models.AuditAction) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.AuditLogEntry{}).Where("action_type = ?", action).Count(&n).Error)
	return n
}

func TestModerationRepository_ResolveReport(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewModerationRepository(db)
	ctx := context.Background()

	admin := testutil.CreateAccount(t, db, "admin", models.RoleAdmin)
	actor := AuditActor{ID: admin.ID, Email: admin.Email}
	reporter := testutil.CreateAccount(t, db, "reporter", models.RoleUser)
	second := testutil.CreateAccount(t, db, "second", models.RoleUser)
	author := testutil.CreateAccount(t, db, "author", models.RoleUser)

	newReport := func(reporterID, postID uint) *models.Report {
		r := &models.Report{ReporterID: reporterID, PostID: postID, Reason: "bad", Status: models.ReportStatusPending}
		require.NoError(t, db.Create(r).Error)
		return r
	}

	t.Run("dismiss twice audits once", func(t *testing.T) {
		post := testutil.CreatePost(t, db, author.ID, "meh")
		report := newReport(reporter.ID, post.ID)

		res, err := repo.ResolveReport(ctx, actor, report.ID, models.ModerationDismiss)
		require.NoError(t, err)
		assert.False(t, res.AlreadyResolved)
		assert.Equal(t, models.ReportStatusReviewed, res.Report.Status)
		assert.Equal(t, models.ModerationDismiss, res.Report.Resolution)
		require.NotNil(t, res.Report.ReviewedBy)
		assert.Equal(t, admin.ID, *res.Report.ReviewedBy)

		res, err = repo.ResolveReport(ctx, actor, report.ID, models.ModerationDismiss)
		require.NoError(t, err)
		assert.True(t, res.AlreadyResolved)
		assert.Equal(t, int64(1), countAudit(t, db, models.AuditReportDismiss))

		var count int64
		db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
		assert.Equal(t, int64(1), count, "dismiss leaves the post")
	})

	t.Run("delete removes post and closes sibling reports", func(t *testing.T) {
		post := testutil.CreatePost(t, db, author.ID, "nasty")
		report := newReport(reporter.ID, post.ID)
		sibling := newReport(second.ID, post.ID)

		res, err := repo.ResolveReport(ctx, actor, report.ID, models.ModerationDelete)
		require.NoError(t, err)
		assert.True(t, res.PostDeleted)

		var count int64
		db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
		assert.Zero(t, count)

		var got models.Report
		require.NoError(t, db.First(&got, sibling.ID).Error)
		assert.Equal(t, models.ReportStatusReviewed, got.Status)

		var entry models.AuditLogEntry
		require.NoError(t, db.Where("action_type = ?", models.AuditPostDelete).Last(&entry).Error)
		assert.Equal(t, admin.Email, entry.AdminEmail)
		assert.Equal(t, formatID(post.ID), entry.TargetID)
	})

	t.Run("delete of an already missing post still resolves", func(t *testing.T) {
		report := newReport(reporter.ID, 777)

		res, err := repo.ResolveReport(ctx, actor, report.ID, models.ModerationDelete)
		require.NoError(t, err)
		assert.False(t, res.PostDeleted)
		assert.Equal(t, models.ReportStatusReviewed, res.Report.Status)
	})

	t.Run("missing report", func(t *testing.T) {
		_, err := repo.ResolveReport(ctx, actor, 999, models.ModerationDismiss)
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})
}

func TestModerationRepository_ResolveReport_DeleteFailureRollsBack(t *testing.T) {
	actor := AuditActor{ID: 1, Email: "admin@example.com"}
	selectReport := regexp.QuoteMeta(`SELECT * FROM "reports" WHERE "reports"."id" = $1 ORDER BY "reports"."id" LIMIT $2`)
	updateReport := `^UPDATE "reports" SET`

	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock, fail error)
	}{
		{
			name: "likes delete fails",
			expect: func(mock sqlmock.Sqlmock, fail error) {
				mock.ExpectExec(`^DELETE FROM "likes"`).WillReturnError(fail)
			},
		},
		{
			name: "post delete fails",
			expect: func(mock sqlmock.Sqlmock, fail error) {
				mock.ExpectExec(`^DELETE FROM "likes"`).WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec(`^DELETE FROM "comments"`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`^DELETE FROM "notifications"`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(updateReport).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`^DELETE FROM "posts"`).WillReturnError(fail)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := testutil.NewMockDB(t)
			repo := NewModerationRepository(db)
			fail := errors.New("connection reset")

			mock.ExpectBegin()
			mock.ExpectQuery(selectReport).
				WithArgs(7, 1).
				WillReturnRows(sqlmock.NewRows([]string{"id", "reporter_id", "post_id", "reason", "status"}).
					AddRow(7, 2, 42, "spam", string(models.ReportStatusPending)))
			mock.ExpectExec(updateReport).WillReturnResult(sqlmock.NewResult(0, 1))
			tt.expect(mock, fail)
			mock.ExpectRollback()

			res, err := repo.ResolveReport(context.Background(), actor, 7, models.ModerationDelete)
			require.ErrorIs(t, err, fail)
			assert.Nil(t, res)

			// No audit insert and no commit were issued.
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestModerationRepository_AccountMutations(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewModerationRepository(db)
	ctx := context.Background()

	admin := testutil.CreateAccount(t, db, "admin", models.RoleAdmin)
	actor := AuditActor{ID: admin.ID, Email: admin.Email}
	target := testutil.CreateAccount(t, db, "target", models.RoleUser)
	friend := testutil.CreateAccount(t, db, "friend", models.RoleUser)

	t.Run("role update writes one audit entry", func(t *testing.T) {
		acc, err := repo.UpdateRole(ctx, actor, target.ID, models.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, acc.Role)

		var entries []models.AuditLogEntry
		require.NoError(t, db.Where("action_type = ?", models.AuditRoleUpdate).Find(&entries).Error)
		require.Len(t, entries, 1)

		var details map[string]string
		require.NoError(t, json.Unmarshal(entries[0].Details, &details))
		assert.Equal(t, "admin", details["role"])
		assert.Equal(t, "user", details["previous_role"])
	})

	t.Run("role update of missing account writes nothing", func(t *testing.T) {
		_, err := repo.UpdateRole(ctx, actor, 4040, models.RoleAdmin)
		assert.True(t, models.HasCode(err, models.CodeNotFound))
		assert.Equal(t, int64(1), countAudit(t, db, models.AuditRoleUpdate))
	})

	t.Run("delete account cascades", func(t *testing.T) {
		post := testutil.CreatePost(t, db, target.ID, "mine")
		testutil.Follow(t, db, friend.ID, target.ID)
		testutil.Block(t, db, target.ID, admin.ID)
		require.NoError(t, db.Create(&models.Like{AccountID: friend.ID, PostID: post.ID}).Error)

		acc, err := repo.DeleteAccount(ctx, actor, target.ID)
		require.NoError(t, err)
		assert.Equal(t, "target", acc.Username)

		var n int64
		db.Model(&models.Account{}).Where("id = ?", target.ID).Count(&n)
		assert.Zero(t, n)
		db.Model(&models.Post{}).Where("author_id = ?", target.ID).Count(&n)
		assert.Zero(t, n)
		db.Model(&models.FollowEdge{}).Count(&n)
		assert.Zero(t, n)
		db.Model(&models.BlockEdge{}).Count(&n)
		assert.Zero(t, n)
		db.Model(&models.Like{}).Count(&n)
		assert.Zero(t, n)
		assert.Equal(t, int64(1), countAudit(t, db, models.AuditUserDelete))

		var tomb models.DeletedSubject
		require.NoError(t, db.First(&tomb, "subject = ?", target.AuthSubject).Error)
		assert.Equal(t, target.ID, tomb.AccountID)

		deleted, err := NewAccountRepository(db).SubjectDeleted(ctx, target.AuthSubject)
		require.NoError(t, err)
		assert.True(t, deleted)
		deleted, err = NewAccountRepository(db).SubjectDeleted(ctx, friend.AuthSubject)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("audit log is newest first", func(t *testing.T) {
		entries, err := repo.ListAuditLog(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, models.AuditUserDelete, entries[0].ActionType)
		assert.Equal(t, models.AuditRoleUpdate, entries[1].ActionType)
	})
}

func TestNotificationRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	a := testutil.CreateAccount(t, db, "a", models.RoleUser)
	b := testutil.CreateAccount(t, db, "b", models.RoleUser)

	n1 := &models.Notification{RecipientID: a.ID, ActorID: b.ID, Kind: models.NotificationFollow}
	require.NoError(t, repo.Create(ctx, n1))
	require.NotNil(t, n1.Actor)
	assert.Equal(t, "b", n1.Actor.Username)
	require.NoError(t, repo.Create(ctx, &models.Notification{RecipientID: a.ID, ActorID: b.ID, Kind: models.NotificationLike}))
	require.NoError(t, repo.Create(ctx, &models.Notification{RecipientID: b.ID, ActorID: a.ID, Kind: models.NotificationLike}))

	list, err := repo.ListForRecipient(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	updated, err := repo.MarkRead(ctx, a.ID, []uint{n1.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	unread, err := repo.CountUnread(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	updated, err = repo.MarkRead(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	unread, err = repo.CountUnread(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread, "other recipients untouched")
}
