package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	ctx := context.Background()

	ok, remaining, err := rl.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, remaining, _ = rl.Allow(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, _ = rl.Allow(ctx, "a")
	assert.False(t, ok)

	ok, _, _ = rl.Allow(ctx, "b")
	assert.True(t, ok, "keys are independent")
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	defer rl.Stop()
	ctx := context.Background()

	ok, _, _ := rl.Allow(ctx, "a")
	require.True(t, ok)
	ok, _, _ = rl.Allow(ctx, "a")
	require.False(t, ok)

	time.Sleep(30 * time.Millisecond)
	ok, _, _ = rl.Allow(ctx, "a")
	assert.True(t, ok)
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	rl.Stop()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	mr, client := newTestRedis(t)
	rl := NewRedisRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	ok, remaining, err := rl.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:user:1"))

	ok, _, _ = rl.Allow(ctx, "user:1")
	assert.True(t, ok)
	ok, _, _ = rl.Allow(ctx, "user:1")
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, _, err = rl.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	mr, client := newTestRedis(t)
	rl := NewRedisRateLimiter(client, 1, time.Minute)
	mr.Close()

	ok, _, err := rl.Allow(context.Background(), "user:1")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	userID := uuid.New()

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		if c.GetHeader("X-Test-User") != "" {
			SetActor(c, &shared.Actor{UserID: userID, Role: shared.RoleCustomer})
		}
		c.Next()
	}, RateLimit(rl))
	router.GET("/test", okHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, dto.ErrCodeRateLimited, decodeError(t, rec).Code)

	// an authenticated user gets a budget separate from its IP
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Test-User", "1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
