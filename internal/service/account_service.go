package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blondeglamazon/message-board-sub000/internal/cache"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	maxDisplayName    = 100
	maxBioLength      = 500
)

// AccountService ensures accounts for authenticated identities and manages
// profiles.
type AccountService struct {
	accounts    repository.AccountRepository
	graph       repository.GraphRepository
	posts       repository.PostRepository
	cache       *cache.Cache
	adminEmails map[string]struct{}
}

func NewAccountService(
	accounts repository.AccountRepository,
	graph repository.GraphRepository,
	posts repository.PostRepository,
	c *cache.Cache,
	adminEmails []string,
) *AccountService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &AccountService{
		accounts:    accounts,
		graph:       graph,
		posts:       posts,
		cache:       c,
		adminEmails: admins,
	}
}

// EnsureAccount returns the account for an authenticated identity, creating
// it on first sight. New accounts get the user role unless their email is a
// bootstrap admin. Subjects whose account an admin deleted are refused.
func (s *AccountService) EnsureAccount(ctx context.Context, id models.Identity) (*models.Account, error) {
	if id.Subject == "" || id.Email == "" {
		return nil, models.NewUnauthorizedError("Token is missing subject or email")
	}

	var account models.Account
	err := s.cache.Aside(ctx, cache.AccountSubjectKey(id.Subject), &account, cache.AccountTTL, func() error {
		found, err := s.accounts.GetBySubject(ctx, id.Subject)
		if err == nil {
			account = *found
			return nil
		}
		if !models.HasCode(err, models.CodeNotFound) {
			return err
		}
		deleted, err := s.accounts.SubjectDeleted(ctx, id.Subject)
		if err != nil {
			return err
		}
		if deleted {
			return models.NewForbiddenError("This account has been deleted")
		}
		created, err := s.createAccount(ctx, id)
		if err != nil {
			return err
		}
		account = *created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *AccountService) createAccount(ctx context.Context, id models.Identity) (*models.Account, error) {
	username, err := s.availableUsername(ctx, id)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(id.Email)
	account := &models.Account{
		AuthSubject: id.Subject,
		Email:       email,
		Username:    username,
		Role:        models.RoleUser,
	}
	if _, ok := s.adminEmails[email]; ok {
		account.Role = models.RoleAdmin
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// A concurrent first request for the same subject may have won.
		if models.HasCode(err, models.CodeConflict) {
			if existing, getErr := s.accounts.GetBySubject(ctx, id.Subject); getErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	observability.Logger.InfoContext(ctx, "account created",
		slog.Uint64("account_id", uint64(account.ID)),
		slog.String("role", string(account.Role)))
	return account, nil
}

// availableUsername derives a username from the identity and appends a
// numeric suffix until it is free.
func (s *AccountService) availableUsername(ctx context.Context, id models.Identity) (string, error) {
	base := normalizeUsername(id.Username)
	if len(base) < minUsernameLength {
		local, _, _ := strings.Cut(id.Email, "@")
		base = normalizeUsername(local)
	}
	if len(base) < minUsernameLength {
		base = "user"
	}

	candidate := base
	for i := 1; i <= 50; i++ {
		taken, err := s.accounts.UsernameTaken(ctx, candidate, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix := fmt.Sprintf("%d", i+1)
		candidate = truncate(base, maxUsernameLength-len(suffix)) + suffix
	}
	return "", models.NewConflictError("could not allocate a username")
}

func normalizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		}
	}
	return truncate(b.String(), maxUsernameLength)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func validUsername(s string) bool {
	if len(s) < minUsernameLength || len(s) > maxUsernameLength {
		return false
	}
	for _, r := range s {
		if r >= unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}

// GetAccount reads through the account cache.
func (s *AccountService) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := s.cache.Aside(ctx, cache.AccountKey(id), &account, cache.AccountTTL, func() error {
		found, err := s.accounts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		account = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetProfile returns a public profile. Accounts blocked with the viewer are
// reported as not found.
func (s *AccountService) GetProfile(ctx context.Context, viewerID uint, username string) (*models.Profile, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if viewerID != 0 && viewerID != account.ID {
		blocked, err := s.graph.IsBlocked(ctx, viewerID, account.ID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, models.NewNotFoundError("Account", username)
		}
	}

	profile := &models.Profile{
		AccountSummary: account.Summary(),
		Bio:            account.Bio,
		CreatedAt:      account.CreatedAt,
	}
	if profile.FollowersCount, err = s.graph.CountFollowers(ctx, account.ID); err != nil {
		return nil, err
	}
	if profile.FollowingCount, err = s.graph.CountFollowing(ctx, account.ID); err != nil {
		return nil, err
	}
	if profile.PostsCount, err = s.posts.CountByAuthor(ctx, account.ID); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfileInput holds the self-editable fields. Nil fields are left
// unchanged.
type UpdateProfileInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

func (s *AccountService) UpdateProfile(ctx context.Context, accountID uint, in UpdateProfileInput) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if !validUsername(username) {
			return nil, models.NewValidationError(fmt.Sprintf(
				"Username must be %d-%d letters, digits or underscores", minUsernameLength, maxUsernameLength))
		}
		taken, err := s.accounts.UsernameTaken(ctx, username, account.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflictError("username is already taken")
		}
		account.Username = username
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if utf8.RuneCountInString(name) > maxDisplayName {
			return nil, models.NewValidationError(fmt.Sprintf("Display name too long (max %d characters)", maxDisplayName))
		}
		account.DisplayName = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return nil, models.NewValidationError(fmt.Sprintf("Bio too long (max %d characters)", maxBioLength))
		}
		account.Bio = bio
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		if avatar != "" && !isHTTPURL(avatar) {
			return nil, models.NewValidationError("avatar_url must be an http(s) URL")
		}
		account.AvatarURL = avatar
	}

	if err := s.accounts.UpdateProfile(ctx, account); err != nil {
		return nil, err
	}
	s.cache.InvalidateAccount(ctx, account.ID, account.AuthSubject)
	return account, nil
}
