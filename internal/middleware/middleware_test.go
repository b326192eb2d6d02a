package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/config"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type resolverStub struct {
	ensureFn func(context.Context, models.Identity) (*models.Account, error)
}

func (r *resolverStub) EnsureAccount(ctx context.Context, id models.Identity) (*models.Account, error) {
	return r.ensureFn(ctx, id)
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func authApp(t *testing.T, cfg *config.Config, resolver AccountResolver, opts AuthOptions) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Get("/me", JWTAuth(cfg, resolver, opts), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": ViewerID(c)})
	})
	return app
}

func TestJWTAuth(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret, JWTIssuer: "auth.example", JWTAudience: "board"}

	var seen models.Identity
	resolver := &resolverStub{ensureFn: func(_ context.Context, id models.Identity) (*models.Account, error) {
		seen = id
		return &models.Account{ID: 7, Email: id.Email}, nil
	}}

	valid := jwt.MapClaims{
		"sub":                "user-abc",
		"email":              "Alice@Example.com",
		"preferred_username": "alice",
		"iss":                "auth.example",
		"aud":                "board",
		"exp":                time.Now().Add(time.Hour).Unix(),
	}

	t.Run("valid token resolves account", func(t *testing.T) {
		app := authApp(t, cfg, resolver, AuthOptions{})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, valid))
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]uint
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, uint(7), body["id"])
		assert.Equal(t, models.Identity{Subject: "user-abc", Email: "alice@example.com", Username: "alice"}, seen)
	})

	t.Run("missing token", func(t *testing.T) {
		app := authApp(t, cfg, resolver, AuthOptions{})
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("optional lets anonymous through", func(t *testing.T) {
		app := authApp(t, cfg, resolver, AuthOptions{Optional: true})
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]uint
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, uint(0), body["id"])
	})

	t.Run("optional still rejects a bad token", func(t *testing.T) {
		app := authApp(t, cfg, resolver, AuthOptions{Optional: true})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := jwt.MapClaims{}
		for k, v := range valid {
			claims[k] = v
		}
		claims["aud"] = "someone-else"
		app := authApp(t, cfg, resolver, AuthOptions{})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, claims))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("query token lookup", func(t *testing.T) {
		app := authApp(t, cfg, resolver, AuthOptions{TokenLookup: "query:token"})
		req := httptest.NewRequest(http.MethodGet, "/me?token="+signToken(t, valid), nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("resolver failure", func(t *testing.T) {
		failing := &resolverStub{ensureFn: func(context.Context, models.Identity) (*models.Account, error) {
			return nil, models.NewInternalError(errors.New("db down"))
		}}
		app := authApp(t, cfg, failing, AuthOptions{})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, valid))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		name    string
		account *models.Account
		want    int
	}{
		{name: "anonymous", account: nil, want: http.StatusUnauthorized},
		{name: "user", account: &models.Account{ID: 1, Role: models.RoleUser}, want: http.StatusForbidden},
		{name: "admin", account: &models.Account{ID: 2, Role: models.RoleAdmin}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/admin", func(c *fiber.Ctx) error {
				if tt.account != nil {
					c.Locals(LocalAccount, tt.account)
				}
				return c.Next()
			}, AdminRequired(), func(c *fiber.Ctx) error {
				return c.SendStatus(http.StatusOK)
			})
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCheckRateLimit(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, err := CheckRateLimit(ctx, rdb, "report", "user:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should pass", i+1)
	}
	allowed, err := CheckRateLimit(ctx, rdb, "report", "user:1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Separate keys per identity.
	allowed, err = CheckRateLimit(ctx, rdb, "report", "user:2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	mr.FastForward(2 * time.Minute)
	allowed, err = CheckRateLimit(ctx, rdb, "report", "user:1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitWithPolicy_NilRedis(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	open := fiber.New()
	open.Get("/", RateLimit(nil, 1, time.Minute, "x"), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	resp, err := open.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	closed := fiber.New()
	closed.Get("/", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed, "x"), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	resp, err = closed.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimit_DisabledInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	allowed, err := CheckRateLimit(context.Background(), nil, "x", "ip:1", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTracingMiddleware(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })

	var traceInCtx string
	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/posts/:id", func(c *fiber.Ctx) error {
		traceInCtx, _ = c.UserContext().Value(observability.TraceIDKey).(string)
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusInternalServerError)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/posts/5", nil))
	require.NoError(t, err)
	traceID := resp.Header.Get(TraceIDHeader)
	assert.Len(t, traceID, 32)
	assert.Equal(t, traceID, traceInCtx)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "GET /api/posts/:id", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), observability.AttrRoute.String("/api/posts/:id"))
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}
