package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"
	"github.com/blondeglamazon/message-board-sub000/internal/safety"
	"github.com/blondeglamazon/message-board-sub000/internal/storage"
)

const MaxPostContentLength = 5000

// Hosts an embed iframe may point at.
var allowedEmbedHosts = map[string]struct{}{
	"www.youtube.com":          {},
	"youtube.com":              {},
	"www.youtube-nocookie.com": {},
	"player.vimeo.com":         {},
	"open.spotify.com":         {},
	"w.soundcloud.com":         {},
	"bandcamp.com":             {},
}

var iframeSrcPattern = regexp.MustCompile(`(?is)^\s*<iframe\b[^>]*\bsrc\s*=\s*["']([^"']+)["'][^>]*>\s*(?:</iframe>)?\s*$`)

// ContentRejectedError is returned when the safety gate refuses a post. It
// carries the verdict so callers can answer with its status.
type ContentRejectedError struct {
	Verdict safety.Verdict
}

func (e *ContentRejectedError) Error() string {
	if e.Verdict.Details != "" {
		return e.Verdict.Reason + ": " + e.Verdict.Details
	}
	return e.Verdict.Reason
}

// SafetyChecker is the gate as seen by the post flow.
type SafetyChecker interface {
	Check(ctx context.Context, mediaURL string, postType models.PostType) safety.Verdict
}

type PostService struct {
	posts        repository.PostRepository
	interactions repository.InteractionRepository
	moderation   repository.ModerationRepository
	graph        *GraphService
	gate         SafetyChecker
	store        storage.Provider
}

type CreatePostInput struct {
	AuthorID uint
	Content  string
	MediaURL string
	PostType models.PostType
	Upload   *storage.UploadInput
}

func NewPostService(
	posts repository.PostRepository,
	interactions repository.InteractionRepository,
	moderation repository.ModerationRepository,
	graph *GraphService,
	gate SafetyChecker,
	store storage.Provider,
) *PostService {
	return &PostService{
		posts:        posts,
		interactions: interactions,
		moderation:   moderation,
		graph:        graph,
		gate:         gate,
		store:        store,
	}
}

// CreatePost validates the input, stores any uploaded media, runs the safety
// gate and only then persists the post. Uploaded media is removed again when
// the post is not created.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.PostDetail, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	postType := in.PostType
	if postType != "" && !postType.Valid() {
		return nil, models.NewValidationError("Invalid post_type")
	}
	content := strings.TrimSpace(in.Content)
	mediaURL := strings.TrimSpace(in.MediaURL)
	hasUpload := in.Upload != nil && len(in.Upload.Content) > 0

	if content == "" && mediaURL == "" && !hasUpload {
		return nil, models.NewValidationError("Post must have content or media")
	}
	if utf8.RuneCountInString(content) > MaxPostContentLength {
		return nil, models.NewValidationError(fmt.Sprintf("Content too long (max %d characters)", MaxPostContentLength))
	}
	if mediaURL != "" && hasUpload {
		return nil, models.NewValidationError("Provide either media_url or a file, not both")
	}
	if mediaURL != "" && !isHTTPURL(mediaURL) {
		return nil, models.NewValidationError("media_url must be an http(s) URL")
	}

	if postType == "" {
		switch {
		case mediaURL != "":
			postType = models.PostTypeImage
		case !hasUpload:
			postType = models.PostTypeText
		}
	}

	switch postType {
	case models.PostTypeEmbed:
		if mediaURL != "" || hasUpload {
			return nil, models.NewValidationError("Embed posts cannot carry media")
		}
		sanitized, err := sanitizeEmbed(content)
		if err != nil {
			return nil, err
		}
		content = sanitized
	case models.PostTypeText:
		if mediaURL != "" || hasUpload {
			return nil, models.NewValidationError("Text posts cannot carry media")
		}
	case models.PostTypeImage, models.PostTypeVideo, models.PostTypeAudio:
		if mediaURL == "" && !hasUpload {
			return nil, models.NewValidationError(fmt.Sprintf("media is required for %s posts", postType))
		}
	}

	var uploaded *storage.Object
	if hasUpload {
		upload := *in.Upload
		upload.OwnerID = in.AuthorID
		obj, err := s.store.Upload(ctx, upload)
		if err != nil {
			return nil, err
		}
		if postType == "" {
			postType = obj.Kind
		}
		if obj.Kind != postType {
			s.discardUpload(ctx, obj)
			return nil, models.NewValidationError(fmt.Sprintf("Uploaded file is %s, not %s", obj.Kind, postType))
		}
		uploaded = obj
		mediaURL = obj.URL
	}

	if verdict := s.gate.Check(ctx, mediaURL, postType); !verdict.Safe {
		if uploaded != nil {
			s.discardUpload(ctx, uploaded)
		}
		return nil, &ContentRejectedError{Verdict: verdict}
	}

	post := &models.Post{
		AuthorID: in.AuthorID,
		Content:  content,
		MediaURL: mediaURL,
		PostType: postType,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		if uploaded != nil {
			s.discardUpload(ctx, uploaded)
		}
		return nil, models.NewInternalError(err)
	}
	return &models.PostDetail{Post: *post}, nil
}

func (s *PostService) discardUpload(ctx context.Context, obj *storage.Object) {
	if err := s.store.Delete(ctx, obj.Key); err != nil {
		observability.Logger.WarnContext(ctx, "failed to remove rejected upload",
			slog.String("key", obj.Key),
			slog.String("error", err.Error()))
	}
}

// GetPost hides posts whose author is blocked with the viewer.
func (s *PostService) GetPost(ctx context.Context, viewerID, postID uint) (*models.PostDetail, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	blocked, err := s.graph.IsBlocked(ctx, viewerID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewNotFoundError("Post", postID)
	}
	stats, err := s.interactions.Stats(ctx, []uint{post.ID}, viewerID)
	if err != nil {
		return nil, err
	}
	st := stats[post.ID]
	return &models.PostDetail{Post: *post, LikesCount: st.Likes, CommentsCount: st.Comments, Liked: st.Liked}, nil
}

// DeletePost removes a post by its author, or by an admin. An admin removing
// someone else's post is audited.
func (s *PostService) DeletePost(ctx context.Context, actor *models.Account, postID uint) error {
	if actor == nil {
		return models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	if post.AuthorID == actor.ID {
		_, err = s.posts.Delete(ctx, postID, actor.ID)
		return err
	}
	if !actor.IsAdmin() {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	_, err = s.moderation.DeletePost(ctx, repository.AuditActor{ID: actor.ID, Email: actor.Email}, postID)
	return err
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// sanitizeEmbed accepts a single iframe pointing at an allowed https host
// and rebuilds it from the parsed src, discarding every other attribute.
func sanitizeEmbed(markup string) (string, error) {
	m := iframeSrcPattern.FindStringSubmatch(markup)
	if m == nil {
		return "", models.NewValidationError("Embed must be a single iframe")
	}
	src, err := url.Parse(html.UnescapeString(m[1]))
	if err != nil || src.Scheme != "https" {
		return "", models.NewValidationError("Embed source must be an https URL")
	}
	if _, ok := allowedEmbedHosts[strings.ToLower(src.Hostname())]; !ok {
		return "", models.NewValidationError("Embed host is not allowed")
	}
	return fmt.Sprintf(`<iframe src="%s" loading="lazy" allowfullscreen></iframe>`, html.EscapeString(src.String())), nil
}
