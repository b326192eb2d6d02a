package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/blondeglamazon/message-board-sub000/internal/config"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Locals keys set by the auth middleware.
const (
	LocalUserID  = "userID"
	LocalAccount = "account"
	localToken   = "jwt"
)

// AccountResolver maps a verified identity to a local account, creating it
// on first sight.
type AccountResolver interface {
	EnsureAccount(ctx context.Context, id models.Identity) (*models.Account, error)
}

// AuthOptions tune how the token is looked up.
type AuthOptions struct {
	// Optional lets requests without a token through as anonymous.
	Optional bool
	// TokenLookup follows jwtware syntax, e.g. "query:token".
	TokenLookup string
}

// JWTAuth verifies tokens issued by the auth provider and resolves the
// caller's account.
func JWTAuth(cfg *config.Config, resolver AccountResolver, opts AuthOptions) fiber.Handler {
	lookup := opts.TokenLookup
	if lookup == "" {
		lookup = "header:Authorization"
	}

	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		ContextKey:  localToken,
		TokenLookup: lookup,
		// Only defaulted by jwtware when TokenLookup is empty.
		AuthScheme: "Bearer",
		Filter: func(c *fiber.Ctx) bool {
			return opts.Optional && !hasToken(c, lookup)
		},
		ErrorHandler: func(c *fiber.Ctx, _ error) error {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(localToken).(*jwt.Token)
			if !ok {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid token"))
			}
			identity, err := identityFromToken(cfg, token)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized, err)
			}

			account, err := resolver.EnsureAccount(c.UserContext(), identity)
			if err != nil {
				return models.RespondWithAppError(c, err)
			}

			c.Locals(LocalUserID, account.ID)
			c.Locals(LocalAccount, account)
			c.SetUserContext(observability.WithUserID(c.UserContext(), account.ID))
			return c.Next()
		},
	})
}

func identityFromToken(cfg *config.Config, token *jwt.Token) (models.Identity, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, models.NewUnauthorizedError("Invalid token claims")
	}

	if cfg.JWTIssuer != "" {
		if iss, _ := claims.GetIssuer(); iss != cfg.JWTIssuer {
			return models.Identity{}, models.NewUnauthorizedError("Invalid token issuer")
		}
	}
	if cfg.JWTAudience != "" {
		aud, _ := claims.GetAudience()
		if !slices.Contains(aud, cfg.JWTAudience) {
			return models.Identity{}, models.NewUnauthorizedError("Invalid token audience")
		}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return models.Identity{}, models.NewUnauthorizedError("Invalid subject claim")
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return models.Identity{}, models.NewUnauthorizedError("Token is missing the email claim")
	}
	username, _ := claims["preferred_username"].(string)

	return models.Identity{
		Subject:  sub,
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Username: username,
	}, nil
}

func hasToken(c *fiber.Ctx, lookup string) bool {
	for _, source := range strings.Split(lookup, ",") {
		kind, name, found := strings.Cut(strings.TrimSpace(source), ":")
		if !found {
			continue
		}
		switch kind {
		case "header":
			if c.Get(name) != "" {
				return true
			}
		case "query":
			if c.Query(name) != "" {
				return true
			}
		case "cookie":
			if c.Cookies(name) != "" {
				return true
			}
		}
	}
	return false
}

// ViewerID returns the authenticated account ID, or 0 for anonymous callers.
func ViewerID(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalUserID).(uint)
	return id
}

// CurrentAccount returns the authenticated account or nil.
func CurrentAccount(c *fiber.Ctx) *models.Account {
	acc, _ := c.Locals(LocalAccount).(*models.Account)
	return acc
}

// AdminRequired rejects callers without the admin role. It must run after JWTAuth.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		acc := CurrentAccount(c)
		if acc == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !acc.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}
