package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/crypto"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

const testSecret = "middleware-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func mint(t *testing.T, uid string) string {
	t.Helper()
	token, err := auth.MintToken(testSecret, auth.Identity{UID: uid, Email: uid + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return token
}

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{core.ErrCouponInvalid, http.StatusNotFound},
		{core.ErrNotAdmin, http.StatusForbidden},
		{core.ErrAlreadySubscribed, http.StatusConflict},
		{core.ErrCouponExpired, http.StatusBadRequest},
		{&core.Error{Kind: core.ErrUnauthorized, Message: "nope"}, http.StatusUnauthorized},
		{&core.Error{Kind: core.ErrBillingProvider, Message: "stripe down"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapErrorToStatus(tc.err), tc.err.Error())
	}
}

func TestAbortWithErrorHidesInternals(t *testing.T) {
	r := gin.New()
	r.GET("/fail", func(c *gin.Context) { AbortWithError(c, zap.NewNop(), errors.New("db password leaked")) })
	r.GET("/coupon", func(c *gin.Context) { AbortWithError(c, zap.NewNop(), core.ErrCouponLimitReached) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ErrorResponse{Success: false, Message: "Internal server error"}, decodeError(t, w))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/coupon", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This coupon has reached its usage limit", decodeError(t, w).Message)
}

func TestAuthenticate(t *testing.T) {
	verifier, err := auth.NewJWTVerifier(testSecret)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Authenticate(verifier, zap.NewNop()), func(c *gin.Context) {
		identity, ok := auth.IdentityFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, identity.UID)
	})

	cases := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing header", "", http.StatusUnauthorized, "No authentication token provided"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "No authentication token provided"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "Invalid or expired authentication token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, decodeError(t, w).Message)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, "uid-1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "uid-1", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	userRepo := db.NewUserRepository(database.NewMemoryStore())
	users := core.NewUserService(userRepo, logger)
	verifier, err := auth.NewJWTVerifier(testSecret)
	require.NoError(t, err)

	for _, uid := range []string{"admin", "member", "retired"} {
		_, err := users.ResolveOrProvision(ctx, &auth.Identity{UID: uid, Email: uid + "@example.com"})
		require.NoError(t, err)
	}
	_, err = users.SetRole(ctx, "admin", models.RoleAdmin)
	require.NoError(t, err)
	_, err = users.SetRole(ctx, "retired", models.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, users.Deactivate(ctx, "retired"))

	r := gin.New()
	r.GET("/admin", Authenticate(verifier, logger), RequireAdmin(users, logger), func(c *gin.Context) {
		admin, ok := AdminFrom(c)
		if !ok || !admin.IsAdmin() {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Header("X-Admin-ID", admin.ID)
		c.Status(http.StatusNoContent)
	})
	r.GET("/unauthenticated", RequireAdmin(users, logger), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		uid     string
		status  int
		message string
	}{
		{"admin", http.StatusNoContent, ""},
		{"member", http.StatusForbidden, "Admin access required"},
		{"retired", http.StatusForbidden, "User account is inactive"},
		{"ghost", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.uid, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+mint(t, tc.uid))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusNoContent {
				assert.Equal(t, tc.uid, w.Header().Get("X-Admin-ID"))
			}
			if tc.message != "" {
				assert.Equal(t, tc.message, decodeError(t, w).Message)
			}
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unauthenticated", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication required", decodeError(t, w).Message)
}

func TestInstanceAuth(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	store := database.NewMemoryStore()
	accountRepo := db.NewAccountRepository(store)
	sealer, err := crypto.NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	audit := core.NewAuditService(db.NewAuditRepository(store), logger)
	instances := core.NewInstanceService(db.NewInstanceRepository(store), db.NewInstanceDataRepository(store),
		accountRepo, sealer, audit, logger)

	for _, id := range []string{"acc-1", "acc-2"} {
		require.NoError(t, accountRepo.Create(ctx, &models.TikTokAccount{
			ID: id, UserID: "u1", AccountName: id, Status: models.AccountActive, CreatedAt: time.Now().UTC(),
		}))
	}
	creds, err := instances.GenerateKey(ctx, core.Actor{UserID: "admin"}, "acc-1")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/instances/:accountId/config", InstanceAuth(instances, logger), func(c *gin.Context) {
		instance, ok := InstanceFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, instance.AccountID)
	})

	do := func(path, key, account string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		if account != "" {
			req.Header.Set("X-Account-ID", account)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("/api/instances/acc-1/config", creds.APIKey, "acc-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acc-1", w.Body.String())

	w = do("/api/instances/acc-1/config", "wrong-key", "acc-1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do("/api/instances/acc-1/config", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do("/api/instances/acc-2/config", creds.APIKey, "acc-1")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Account ID mismatch", decodeError(t, w).Message)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(RateLimitPolicy{Name: "test", Max: 2, Window: time.Hour, Message: "slow down"})
	defer limiter.Stop()

	r := gin.New()
	r.GET("/ping", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	w := hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "slow down", decodeError(t, w).Message)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code, "budgets are per client")
}

func TestRateLimiterSkipSuccessful(t *testing.T) {
	limiter := NewRateLimiter(RateLimitPolicy{Name: "auth-test", Max: 2, Window: time.Hour, Message: "too many", SkipSuccessful: true})
	defer limiter.Stop()

	r := gin.New()
	r.POST("/login", limiter.Middleware(), func(c *gin.Context) {
		if c.Query("ok") == "1" {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusUnauthorized)
	})

	hit := func(ok bool) int {
		path := "/login"
		if ok {
			path += "?ok=1"
		}
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.9:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(true), "successful attempts are refunded")
	}
	assert.Equal(t, http.StatusUnauthorized, hit(false))
	assert.Equal(t, http.StatusUnauthorized, hit(false))
	assert.Equal(t, http.StatusTooManyRequests, hit(false))
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeError(t, w).Message)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "X-API-Key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Panics(t, func() { CORSMiddleware(nil) })
}
