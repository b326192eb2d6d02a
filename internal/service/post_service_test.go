package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/safety"
	"github.com/blondeglamazon/message-board-sub000/internal/storage"
	"github.com/blondeglamazon/message-board-sub000/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost_ValidationRunsBeforeGate(t *testing.T) {
	f := newFixture(t, nil)
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)

	tests := []struct {
		name  string
		input CreatePostInput
		code  string
	}{
		{"anonymous", CreatePostInput{Content: "hi"}, models.CodeUnauthorized},
		{"empty", CreatePostInput{AuthorID: author.ID, Content: "   "}, models.CodeValidation},
		{"too long", CreatePostInput{AuthorID: author.ID, Content: strings.Repeat("x", MaxPostContentLength+1)}, models.CodeValidation},
		{"bad type", CreatePostInput{AuthorID: author.ID, Content: "x", PostType: "poll"}, models.CodeValidation},
		{"bad url", CreatePostInput{AuthorID: author.ID, MediaURL: "ftp://example.com/a.png"}, models.CodeValidation},
		{"text with media", CreatePostInput{AuthorID: author.ID, MediaURL: "https://example.com/a.png", PostType: models.PostTypeText}, models.CodeValidation},
		{"image without media", CreatePostInput{AuthorID: author.ID, Content: "x", PostType: models.PostTypeImage}, models.CodeValidation},
		{"url and upload", CreatePostInput{
			AuthorID: author.ID,
			MediaURL: "https://example.com/a.png",
			Upload:   &storage.UploadInput{Filename: "a.png", Content: []byte{1}},
		}, models.CodeValidation},
		{"embed not iframe", CreatePostInput{AuthorID: author.ID, Content: "<script>x</script>", PostType: models.PostTypeEmbed}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.posts.CreatePost(context.Background(), tt.input)
			assert.True(t, models.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Zero(t, f.gate.Calls())
	assert.Zero(t, countRows(t, f.db, &models.Post{}))
}

func TestCreatePost_TextAndImage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)

	text, err := f.posts.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Content: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "hello", text.Content)
	assert.Equal(t, models.PostTypeText, text.PostType)

	img, err := f.posts.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, MediaURL: "https://cdn.example.com/cat.jpg"})
	require.NoError(t, err)
	assert.Equal(t, models.PostTypeImage, img.PostType)
	require.NotNil(t, img.Author)
	assert.Equal(t, "author", img.Author.Username)

	assert.Equal(t, 2, f.gate.Calls())
}

func TestCreatePost_RejectedByGate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	f.gate.verdict = safety.Verdict{Reason: safety.ReasonUnsafe, Status: fiber.StatusBadRequest}

	_, err := f.posts.CreatePost(ctx, CreatePostInput{
		AuthorID: author.ID,
		Upload:   &storage.UploadInput{Filename: "bad.png", Content: []byte("img")},
	})
	var rejected *ContentRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, fiber.StatusBadRequest, rejected.Verdict.Status)
	assert.Equal(t, safety.ReasonUnsafe, rejected.Error())

	assert.Equal(t, []string{"bad.png"}, f.store.deleted)
	assert.Empty(t, f.store.objects)
	assert.Zero(t, countRows(t, f.db, &models.Post{}))
}

func TestCreatePost_ClassifierFailureFailsClosed(t *testing.T) {
	f := newFixture(t, nil)
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	f.gate.verdict = safety.Verdict{Reason: safety.ReasonUnverified, Details: "timeout", Status: fiber.StatusInternalServerError}

	_, err := f.posts.CreatePost(context.Background(), CreatePostInput{AuthorID: author.ID, MediaURL: "https://cdn.example.com/x.png"})
	var rejected *ContentRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, fiber.StatusInternalServerError, rejected.Verdict.Status)
	assert.Equal(t, "Could not verify content safety: timeout", rejected.Error())
	assert.Zero(t, countRows(t, f.db, &models.Post{}))
}

func TestCreatePost_UploadKindMismatch(t *testing.T) {
	f := newFixture(t, nil)
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	f.store.kind = models.PostTypeAudio

	_, err := f.posts.CreatePost(context.Background(), CreatePostInput{
		AuthorID: author.ID,
		PostType: models.PostTypeVideo,
		Upload:   &storage.UploadInput{Filename: "song.wav", Content: []byte("RIFF")},
	})
	assert.True(t, models.HasCode(err, models.CodeValidation))
	assert.Equal(t, []string{"song.wav"}, f.store.deleted)
	assert.Zero(t, f.gate.Calls())
}

func TestCreatePost_UploadInfersType(t *testing.T) {
	f := newFixture(t, nil)
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	f.store.kind = models.PostTypeAudio

	post, err := f.posts.CreatePost(context.Background(), CreatePostInput{
		AuthorID: author.ID,
		Content:  "new track",
		Upload:   &storage.UploadInput{Filename: "song.wav", Content: []byte("RIFF")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostTypeAudio, post.PostType)
	assert.Equal(t, "https://media.example.com/song.wav", post.MediaURL)
}

func TestSanitizeEmbed(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "youtube",
			in:   `<iframe width="560" src="https://www.youtube.com/embed/abc?si=1&amp;t=2" onload="evil()"></iframe>`,
			want: `<iframe src="https://www.youtube.com/embed/abc?si=1&amp;t=2" loading="lazy" allowfullscreen></iframe>`,
		},
		{name: "http scheme", in: `<iframe src="http://www.youtube.com/embed/abc"></iframe>`, wantErr: true},
		{name: "unknown host", in: `<iframe src="https://evil.example.com/x"></iframe>`, wantErr: true},
		{name: "javascript", in: `<iframe src="javascript:alert(1)"></iframe>`, wantErr: true},
		{name: "two iframes", in: `<iframe src="https://player.vimeo.com/1"></iframe><iframe src="https://player.vimeo.com/2"></iframe>`, wantErr: true},
		{name: "plain text", in: "just words", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeEmbed(tt.in)
			if tt.wantErr {
				assert.True(t, models.HasCode(err, models.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetPost_HiddenWhenBlocked(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	other := testutil.CreateAccount(t, f.db, "other", models.RoleUser)
	post := testutil.CreatePost(t, f.db, author.ID, "hello")

	got, err := f.posts.GetPost(ctx, other.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)

	testutil.Block(t, f.db, author.ID, other.ID)
	_, err = f.posts.GetPost(ctx, other.ID, post.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestDeletePost_Permissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, f.db, "author", models.RoleUser)
	other := testutil.CreateAccount(t, f.db, "other", models.RoleUser)
	admin := testutil.CreateAccount(t, f.db, "admin", models.RoleAdmin)

	own := testutil.CreatePost(t, f.db, author.ID, "own")
	theirs := testutil.CreatePost(t, f.db, author.ID, "theirs")

	err := f.posts.DeletePost(ctx, other, own.ID)
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	require.NoError(t, f.posts.DeletePost(ctx, author, own.ID))
	assert.Zero(t, countRows(t, f.db, &models.AuditLogEntry{}))

	require.NoError(t, f.posts.DeletePost(ctx, admin, theirs.ID))
	var entries []models.AuditLogEntry
	require.NoError(t, f.db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditPostDelete, entries[0].ActionType)

	err = f.posts.DeletePost(ctx, admin, theirs.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.Zero(t, countRows(t, f.db, &models.Post{}))
}
