package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	v1 "github.com/mnuddindev/resourcebase/internal/api/v1"
	"github.com/mnuddindev/resourcebase/internal/auth"
	"github.com/mnuddindev/resourcebase/internal/config"
	"github.com/mnuddindev/resourcebase/internal/notify"
	"github.com/mnuddindev/resourcebase/internal/realtime"
	"github.com/mnuddindev/resourcebase/internal/testutil"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status bool               `json:"status"`
	Data   json.RawMessage    `json:"data"`
	Error  *utils.CustomError `json:"error"`
}

type testServer struct {
	t   *testing.T
	app *fiber.App
	h   *v1.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb := testutil.NewDB(t)
	rclient, _ := testutil.NewRedis(t)
	log := logger.Nop()
	cfg := &config.Config{
		Env:         "test",
		CORSOrigins: "http://localhost:5173",
		RateLimit:   0,
	}

	reg := realtime.NewRegistry(log)
	h := &v1.Handler{
		DB:        gdb,
		Redis:     rclient,
		Logger:    log,
		Validator: utils.NewValidator(),
		Auth: auth.Options{
			DB:      gdb,
			Rclient: rclient,
			Tokens:  auth.NewTokens("test-secret", time.Hour),
			Logger:  log,
		},
		Notifier: notify.New(gdb, reg, log),
	}
	h.Auth.OnActive = h.TrackActivity

	app := fiber.New(fiber.Config{
		ErrorHandler: utils.ErrorHandler(true),
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
	})
	NewRoutes(app, cfg, h, reg)
	t.Cleanup(h.Wait)
	return &testServer{t: t, app: app, h: h}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, 5000)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if len(data) > 0 {
		require.NoError(s.t, sonic.Unmarshal(data, &env), string(data))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, sonic.Unmarshal(env.Data, &out))
	return out
}

type session struct {
	UserID string
	Token  string
}

func (s *testServer) register(username string) session {
	s.t.Helper()
	code, env := s.do("POST", "/api/auth/register", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(s.t, fiber.StatusCreated, code)
	out := decode[struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		AccessToken string `json:"access_token"`
	}](s.t, env)
	return session{UserID: out.User.ID, Token: out.AccessToken}
}

func (s *testServer) createPost(sess session, tags ...string) string {
	s.t.Helper()
	code, env := s.do("POST", "/api/resources", sess.Token, fiber.Map{
		"title":     "Go concurrency",
		"resources": []fiber.Map{{"name": "Go blog", "url": "https://go.dev/blog"}},
		"tags":      tags,
	})
	require.Equal(s.t, fiber.StatusCreated, code, env.Error)
	return decode[struct {
		ID string `json:"id"`
	}](s.t, env).ID
}

func TestStatusAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do("GET", "/api/status", "", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.True(t, env.Status)

	code, _ = s.do("GET", "/api/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestRegisterLoginLogout(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")

	code, env := s.do("POST", "/api/auth/register", "", fiber.Map{
		"username": "alice",
		"email":    "other@example.com",
		"password": "secret123",
	})
	assert.Equal(t, fiber.StatusConflict, code)
	require.NotNil(t, env.Error)

	code, _ = s.do("POST", "/api/auth/register", "", fiber.Map{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "secret123",
		"role":     "admin",
	})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = s.do("POST", "/api/auth/login", "", fiber.Map{"login": "alice", "password": "wrong-pass"})
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, env = s.do("POST", "/api/auth/login", "", fiber.Map{"login": "ALICE@example.com", "password": "secret123"})
	require.Equal(t, fiber.StatusOK, code)
	token := decode[struct {
		AccessToken string `json:"access_token"`
	}](t, env).AccessToken
	require.NotEmpty(t, token)

	code, _ = s.do("GET", "/api/users/me", alice.Token, nil)
	assert.Equal(t, fiber.StatusOK, code)

	code, _ = s.do("POST", "/api/auth/logout", alice.Token, nil)
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = s.do("GET", "/api/users/me", alice.Token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	// The second session is unaffected.
	code, _ = s.do("GET", "/api/users/me", token, nil)
	assert.Equal(t, fiber.StatusOK, code)
}

func TestResourceLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")

	code, _ := s.do("POST", "/api/resources", "", fiber.Map{"title": "x"})
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = s.do("POST", "/api/resources", alice.Token, fiber.Map{"title": "No links", "resources": []fiber.Map{}})
	assert.Equal(t, fiber.StatusBadRequest, code)

	postID := s.createPost(alice, "Go", "concurrency")

	code, env := s.do("GET", "/api/resources/"+postID, bob.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	detail := decode[struct {
		Title     string   `json:"title"`
		Tags      []string `json:"tags"`
		Resources []struct {
			ID string `json:"id"`
		} `json:"resources"`
	}](t, env)
	assert.Equal(t, "Go concurrency", detail.Title)
	assert.Equal(t, []string{"concurrency", "go"}, detail.Tags)
	require.Len(t, detail.Resources, 1)

	// Only the author may edit.
	code, _ = s.do("PUT", "/api/resources/"+postID, bob.Token, fiber.Map{"title": "Hijacked"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = s.do("POST", "/api/resources/"+postID+"/bookmark", bob.Token, nil)
	assert.Equal(t, fiber.StatusOK, code)

	code, env = s.do("PUT", "/api/resources/"+postID, alice.Token, fiber.Map{
		"title": "Go concurrency patterns",
		"resources": []fiber.Map{
			{"id": detail.Resources[0].ID, "name": "The Go blog"},
			{"name": "Tour", "url": "https://go.dev/tour"},
		},
		"tags": []string{"go"},
	})
	require.Equal(t, fiber.StatusOK, code, env.Error)
	updated := decode[struct {
		Title     string   `json:"title"`
		Tags      []string `json:"tags"`
		Resources []struct {
			Name string `json:"name"`
		} `json:"resources"`
	}](t, env)
	assert.Equal(t, "Go concurrency patterns", updated.Title)
	assert.Equal(t, []string{"go"}, updated.Tags)
	assert.Len(t, updated.Resources, 2)

	code, _ = s.do("PUT", "/api/resources/"+postID, alice.Token, fiber.Map{
		"resources": []fiber.Map{{"name": "Missing url"}},
	})
	assert.Equal(t, fiber.StatusBadRequest, code)

	s.h.Wait()
	code, env = s.do("GET", "/api/notifications", bob.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	page := decode[struct {
		Notifications []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"notifications"`
		UnreadCount int64 `json:"unread_count"`
	}](t, env)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, "RESOURCE_UPDATE", page.Notifications[0].Type)

	code, _ = s.do("POST", "/api/notifications/"+page.Notifications[0].ID+"/read", alice.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _ = s.do("POST", "/api/notifications/"+page.Notifications[0].ID+"/read", bob.Token, nil)
	assert.Equal(t, fiber.StatusOK, code)
}

func TestVoteAndCommentNotifyOwner(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")
	postID := s.createPost(alice, "go")

	code, env := s.do("POST", "/api/resources/"+postID+"/vote", bob.Token, fiber.Map{"vote_type": "up"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "added", decode[struct {
		Action string `json:"action"`
	}](t, env).Action)

	code, _ = s.do("POST", "/api/resources/"+postID+"/vote", bob.Token, fiber.Map{"vote_type": "sideways"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, env = s.do("GET", "/api/resources/"+postID+"/vote", bob.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "up", decode[struct {
		VoteType string `json:"vote_type"`
	}](t, env).VoteType)

	code, _ = s.do("POST", "/api/resources/"+postID+"/comment", bob.Token, fiber.Map{"comment": "Nice"})
	require.Equal(t, fiber.StatusCreated, code)
	code, _ = s.do("POST", "/api/resources/"+postID+"/comment", alice.Token, fiber.Map{"comment": "Thanks"})
	require.Equal(t, fiber.StatusCreated, code)

	code, env = s.do("GET", "/api/resources/"+postID+"/comments", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, decode[[]struct {
		Comment string `json:"comment"`
	}](t, env), 2)

	s.h.Wait()
	code, env = s.do("GET", "/api/notifications", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	page := decode[struct {
		UnreadCount int64 `json:"unread_count"`
	}](t, env)
	assert.Equal(t, int64(2), page.UnreadCount)

	code, env = s.do("POST", "/api/notifications/mark-all-read", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, int64(2), decode[struct {
		Updated int64 `json:"updated"`
	}](t, env).Updated)

	// Activity on Alice's post reaches nobody else.
	code, env = s.do("GET", "/api/notifications", bob.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Zero(t, decode[struct {
		UnreadCount int64 `json:"unread_count"`
	}](t, env).UnreadCount)

	code, env = s.do("GET", "/api/users/"+alice.UserID+"/badges/counts", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	counts := decode[map[string]int64](t, env)
	assert.Equal(t, int64(2), counts["bronze"])
}

func TestPreferencesDriveSimilarNotifications(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")

	code, env := s.do("PUT", "/api/users/me/preferences", bob.Token, fiber.Map{"tags": []string{"Rust", "go"}})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []string{"rust", "go"}, decode[struct {
		Tags []string `json:"tags"`
	}](t, env).Tags)

	s.createPost(alice, "go")
	s.h.Wait()

	code, env = s.do("GET", "/api/notifications", bob.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	page := decode[struct {
		Notifications []struct {
			Type string `json:"type"`
		} `json:"notifications"`
	}](t, env)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, "SIMILAR_RESOURCE", page.Notifications[0].Type)

	code, env = s.do("GET", "/api/resources/search?q=concurrency", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, decode[[]struct {
		ID string `json:"id"`
	}](t, env), 1)

	code, env = s.do("GET", "/api/resources/similar?url=https://go.dev/doc", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, decode[[]struct {
		ID string `json:"id"`
	}](t, env), 1)

	code, _ = s.do("GET", "/api/resources/categories", "", nil)
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = s.do("GET", "/api/resources/tags/popular", "", nil)
	assert.Equal(t, fiber.StatusOK, code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do("GET", "/api/status", "", nil)
	require.Equal(t, fiber.StatusOK, code)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "resourcebase_http_requests_total")
}

func TestNewsletterSubscribe(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do("POST", "/api/newsletter/subscribe", "", fiber.Map{"email": "reader@example.com"})
	require.Equal(t, fiber.StatusCreated, code, env.Error)
	out := decode[struct {
		Email string `json:"email"`
	}](t, env)
	assert.Equal(t, "reader@example.com", out.Email)

	code, env = s.do("POST", "/api/newsletter/subscribe", "", fiber.Map{"email": "Reader@Example.com"})
	assert.Equal(t, fiber.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Email already subscribed", env.Error.Message)

	code, _ = s.do("POST", "/api/newsletter/subscribe", "", fiber.Map{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestPublicProfile(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	s.createPost(alice, "go")
	s.h.Wait()

	code, env := s.do("GET", "/api/users/alice", "", nil)
	require.Equal(t, fiber.StatusOK, code, env.Error)

	var profile map[string]json.RawMessage
	require.NoError(t, sonic.Unmarshal(env.Data, &profile))
	assert.NotContains(t, profile, "email")
	assert.NotContains(t, profile, "password")

	out := decode[struct {
		ID             string           `json:"id"`
		Username       string           `json:"username"`
		ResourcesCount int64            `json:"resources_count"`
		BadgeCounts    map[string]int64 `json:"badge_counts"`
	}](t, env)
	assert.Equal(t, alice.UserID, out.ID)
	assert.Equal(t, "alice", out.Username)
	assert.Equal(t, int64(1), out.ResourcesCount)
	assert.NotNil(t, out.BadgeCounts)

	code, _ = s.do("GET", "/api/users/nobody", "", nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	// The private profile route still wins over the username lookup.
	code, _ = s.do("GET", "/api/users/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestCreateResourceRejectsResourceID(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")

	code, _ := s.do("POST", "/api/resources", alice.Token, fiber.Map{
		"title": "Go concurrency",
		"resources": []fiber.Map{{
			"id":   "00000000-0000-0000-0000-000000000001",
			"name": "Go blog",
			"url":  "https://go.dev/blog",
		}},
	})
	assert.Equal(t, fiber.StatusBadRequest, code)
}
