package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Harishith4529/shortlink/internal/config"
	"github.com/Harishith4529/shortlink/internal/handler"
	"github.com/Harishith4529/shortlink/internal/middleware"
	"github.com/Harishith4529/shortlink/internal/repository"
	"github.com/Harishith4529/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type TestEnv struct {
	router         *gin.Engine
	identity       *middleware.Identity
	linkService    service.LinkService
	clickProc      service.ClickProcessor
	dbContainer    testcontainers.Container
	redisContainer testcontainers.Container
	db             *repository.PostgresDB
	redis          *repository.RedisDB
}

// setupTestEnv spins up PostgreSQL and Redis containers and wires the
// full stack against them.
func setupTestEnv(t *testing.T) *TestEnv {
	ctx := t.Context()

	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("shortlink"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err)

	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "shortlink",
	})
	require.NoError(t, err)

	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	clickRepo := repository.NewClickRepository(db)

	linkService := service.NewLinkService(linkRepo, cacheRepo, service.NewCodeGenerator(), nil)
	clickProc := service.NewClickProcessor(clickRepo, linkRepo, nil)
	clickProc.Start()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 1000, // effectively unlimited for tests
		BurstSize:         2000,
		CleanupInterval:   time.Minute,
	})

	identity := middleware.NewIdentity("integration-test-secret")
	metrics := middleware.NewMetrics()

	router := handler.NewRouter(linkService, clickProc, rateLimiter, identity, metrics, "http://localhost:8080", nil)

	return &TestEnv{
		router:         router,
		identity:       identity,
		linkService:    linkService,
		clickProc:      clickProc,
		dbContainer:    dbContainer,
		redisContainer: redisContainer,
		db:             db,
		redis:          redisClient,
	}
}

func (env *TestEnv) teardown(t *testing.T) {
	env.clickProc.Stop()
	env.db.Close()
	env.redis.Close()

	ctx := t.Context()
	if env.dbContainer != nil {
		env.dbContainer.Terminate(ctx)
	}
	if env.redisContainer != nil {
		env.redisContainer.Terminate(ctx)
	}
}

func (env *TestEnv) token(t *testing.T, userID string) string {
	token, err := env.identity.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return token
}

// do performs an authenticated JSON request against the router.
func (env *TestEnv) do(t *testing.T, method, path, userID string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+env.token(t, userID))
	}
	env.router.ServeHTTP(w, req)
	return w
}

type CreateLinkRequest struct {
	URL        string `json:"url"`
	CustomCode string `json:"custom_code,omitempty"`
	Title      string `json:"title,omitempty"`
}

type LinkResponse struct {
	Code        string     `json:"code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	Title       *string    `json:"title,omitempty"`
	IsActive    bool       `json:"is_active"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func TestIntegration_CreateLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	tests := []struct {
		name           string
		request        CreateLinkRequest
		expectedStatus int
		expectError    bool
	}{
		{
			name: "valid URL",
			request: CreateLinkRequest{
				URL: "https://example.com/test",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "valid URL with custom code",
			request: CreateLinkRequest{
				URL:        "https://example.com/custom",
				CustomCode: "my-custom",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "duplicate custom code",
			request: CreateLinkRequest{
				URL:        "https://example.com/other",
				CustomCode: "my-custom",
			},
			expectedStatus: http.StatusConflict,
			expectError:    true,
		},
		{
			name: "invalid URL",
			request: CreateLinkRequest{
				URL: "not-a-url",
			},
			expectedStatus: http.StatusBadRequest,
			expectError:    true,
		},
		{
			name: "invalid custom code",
			request: CreateLinkRequest{
				URL:        "https://example.com/test2",
				CustomCode: "a!",
			},
			expectedStatus: http.StatusBadRequest,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/links", "user-1", tt.request)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectError {
				var errResp ErrorResponse
				json.Unmarshal(w.Body.Bytes(), &errResp)
				assert.NotEmpty(t, errResp.Error)
			} else {
				var resp LinkResponse
				json.Unmarshal(w.Body.Bytes(), &resp)
				assert.NotEmpty(t, resp.Code)
				assert.Equal(t, tt.request.URL, resp.OriginalURL)
				assert.True(t, resp.IsActive)
				assert.Equal(t, int64(0), resp.ClickCount)
			}
		})
	}

	t.Run("create without token", func(t *testing.T) {
		w := env.do(t, "POST", "/api/v1/links", "", CreateLinkRequest{URL: "https://example.com/anon"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// TestIntegration_ConcurrentCustomCode checks the uniqueness property
// end to end: one database-level winner, everyone else conflicts.
func TestIntegration_ConcurrentCustomCode(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	const callers = 10
	var wg sync.WaitGroup
	codes := make(chan int, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w := env.do(t, "POST", "/api/v1/links", fmt.Sprintf("user-%d", id), CreateLinkRequest{
				URL:        "https://example.com/race",
				CustomCode: "contested",
			})
			codes <- w.Code
		}(i)
	}
	wg.Wait()
	close(codes)

	var created, conflicted int
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, callers-1, conflicted)
}

// TestIntegration_Lifecycle walks the full scenario: create, resolve,
// soft delete, resolve-as-inactive, hard delete, resolve-as-missing.
func TestIntegration_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := env.do(t, "POST", "/api/v1/links", "owner", CreateLinkRequest{
		URL:        "https://example.com/a",
		CustomCode: "abc123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "abc123", created.Code)

	t.Run("redirect to destination", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/abc123", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "https://example.com/a", w.Header().Get("Location"))
	})

	t.Run("edit by non-owner is forbidden", func(t *testing.T) {
		w := env.do(t, "PATCH", "/api/v1/links/abc123", "intruder", map[string]any{
			"url": "https://evil.example.com/",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("first delete deactivates", func(t *testing.T) {
		w := env.do(t, "DELETE", "/api/v1/links/abc123", "owner", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "inactive", resp["state"])

		r := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/abc123", nil)
		env.router.ServeHTTP(r, req)
		assert.Equal(t, http.StatusGone, r.Code)
	})

	t.Run("delete by non-owner is forbidden", func(t *testing.T) {
		w := env.do(t, "DELETE", "/api/v1/links/abc123", "intruder", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("second delete removes", func(t *testing.T) {
		w := env.do(t, "DELETE", "/api/v1/links/abc123", "owner", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "removed", resp["state"])

		r := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/abc123", nil)
		env.router.ServeHTTP(r, req)
		assert.Equal(t, http.StatusNotFound, r.Code)
	})

	t.Run("retired code cannot be recreated", func(t *testing.T) {
		w := env.do(t, "POST", "/api/v1/links", "someone-else", CreateLinkRequest{
			URL:        "https://example.com/b",
			CustomCode: "abc123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestIntegration_ListLinks(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	for i := 0; i < 3; i++ {
		w := env.do(t, "POST", "/api/v1/links", "lister", CreateLinkRequest{
			URL: fmt.Sprintf("https://example.com/%d", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := env.do(t, "POST", "/api/v1/links", "other", CreateLinkRequest{
		URL: "https://example.com/foreign",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, "GET", "/api/v1/links", "lister", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var links []LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 3)

	// Newest first
	assert.Equal(t, "https://example.com/2", links[0].OriginalURL)
	assert.Equal(t, "https://example.com/0", links[2].OriginalURL)
}

func TestIntegration_ClickStats(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := env.do(t, "POST", "/api/v1/links", "owner", CreateLinkRequest{
		URL: "https://example.com/stats-test",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	for i := 0; i < 5; i++ {
		r := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+created.Code, nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.168.1.%d", i))
		env.router.ServeHTTP(r, req)
		require.Equal(t, http.StatusTemporaryRedirect, r.Code)
	}

	// Give the worker pool time to drain the audit events
	time.Sleep(500 * time.Millisecond)

	w = env.do(t, "GET", "/api/v1/links/"+created.Code+"/stats", "owner", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, created.Code, stats["code"])
	// The inline counter is exact; audit rows may still be in flight
	assert.Equal(t, float64(5), stats["click_count"])
}

func TestIntegration_HealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "ok", resp["status"])
}
