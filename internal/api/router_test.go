package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/service"
	"github.com/videotube/account-service/internal/infrastructure/password"
)

// memUsers is a minimal in-memory credential store.
type memUsers struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int
}

func (r *memUsers) FindByIdentifier(_ context.Context, username, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUsers) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	c := *user
	c.ID = fmt.Sprintf("user-%d", r.nextID)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memUsers) SwapRefreshToken(_ context.Context, id, expected, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.RefreshToken != expected {
		return domain.ErrRefreshTokenConflict
	}
	u.RefreshToken = next
	return nil
}

func (r *memUsers) ClearRefreshToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RefreshToken = ""
	return nil
}

func (r *memUsers) stored(username string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			c := *u
			return &c
		}
	}
	return nil
}

type memMedia struct{}

func (memMedia) Upload(_ context.Context, prefix, filename, _ string, body io.Reader) (domain.Media, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return domain.Media{}, err
	}
	key := prefix + "/" + filename
	return domain.Media{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (memMedia) Delete(context.Context, string) error { return nil }

type testServer struct {
	router http.Handler
	users  *memUsers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	users := &memUsers{users: make(map[string]*domain.User)}
	issuer := service.NewTokenIssuer(users, service.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, zerolog.Nop())
	sessions := service.NewSessionService(service.SessionDeps{
		Users:    users,
		Issuer:   issuer,
		Hasher:   password.NewBcryptHasher(bcrypt.MinCost),
		Uploader: memMedia{},
	}, zerolog.Nop())

	e := NewRouter(Dependencies{
		Sessions:    sessions,
		Verifier:    issuer,
		Checks:      map[string]handler.Check{"mongodb": func(context.Context) error { return nil }},
		Cookies:     handler.CookieConfig{Secure: true},
		Logger:      zerolog.Nop(),
		DisableDocs: true,
		Registry:    prometheus.NewRegistry(),
	})
	return &testServer{router: e, users: users}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func registerRequest(t *testing.T, withAvatar bool) *http.Request {
	t.Helper()
	return registerRequestWithPassword(t, "s3cret", withAvatar)
}

func registerRequestWithPassword(t *testing.T, password string, withAvatar bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"fullName": "Ada Lovelace",
		"email":    "ADA@x.com",
		"username": "Ada",
		"password": password,
	} {
		_ = w.WriteField(k, v)
	}
	if withAvatar {
		fw, _ := w.CreateFormFile("avatar", "ada.png")
		_, _ = fw.Write([]byte("\x89PNG fake"))
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return out
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRouter_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// Register.
	rec := srv.do(registerRequest(t, true))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	user, _ := body["data"].(map[string]any)
	if user["username"] != "ada" || user["email"] != "ada@x.com" {
		t.Fatalf("register: identifiers must be lower-cased, got %+v", user)
	}
	if _, ok := user["password"]; ok {
		t.Fatalf("register: password leaked")
	}
	if _, ok := user["refreshToken"]; ok {
		t.Fatalf("register: refresh token leaked")
	}

	// Duplicate registration.
	rec = srv.do(registerRequest(t, true))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rec.Code)
	}
	if decode(t, rec)["kind"] != "conflict" {
		t.Fatalf("duplicate: expected conflict kind")
	}

	// Login.
	rec = srv.do(jsonRequest(http.MethodPost, "/api/v1/users/login", `{"identifier":"ada","password":"s3cret"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	access := responseCookie(rec, handler.AccessTokenCookie)
	refresh := responseCookie(rec, handler.RefreshTokenCookie)
	if access == nil || refresh == nil || !access.HttpOnly || !refresh.Secure {
		t.Fatalf("login: expected HttpOnly secure session cookies, got %+v %+v", access, refresh)
	}
	if stored := srv.users.stored("ada"); stored.RefreshToken != refresh.Value {
		t.Fatalf("login: stored refresh token does not match the cookie")
	}

	// Wrong password.
	rec = srv.do(jsonRequest(http.MethodPost, "/api/v1/users/login", `{"identifier":"ada@x.com","password":"wrong"}`))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("wrong password: no cookies expected")
	}

	// Logout.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(access)
	rec = srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ck := responseCookie(rec, handler.RefreshTokenCookie); ck == nil || ck.MaxAge >= 0 {
		t.Fatalf("logout: expected refresh cookie to be cleared")
	}
	if stored := srv.users.stored("ada"); stored.RefreshToken != "" {
		t.Fatalf("logout: stored refresh token must be cleared")
	}

	// The old refresh token no longer works.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(refresh)
	if rec = srv.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", rec.Code)
	}
}

func TestRouter_RefreshRotates(t *testing.T) {
	srv := newTestServer(t)
	srv.do(registerRequest(t, true))

	rec := srv.do(jsonRequest(http.MethodPost, "/api/v1/users/login", `{"identifier":"ada","password":"s3cret"}`))
	first := responseCookie(rec, handler.RefreshTokenCookie)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(first)
	rec = srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	second := responseCookie(rec, handler.RefreshTokenCookie)
	if second == nil || second.Value == first.Value {
		t.Fatalf("refresh: expected a rotated refresh token")
	}

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	replay.AddCookie(first)
	if rec = srv.do(replay); rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay: expected 401, got %d", rec.Code)
	}
}

func TestRouter_RegisterWithoutAvatar(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(registerRequest(t, false))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["message"] != "avatar is required" || body["kind"] != "validation" {
		t.Fatalf("unexpected error envelope: %+v", body)
	}
	if _, ok := body["data"]; ok {
		t.Fatalf("error envelope must not carry data")
	}
	if srv.users.stored("ada") != nil {
		t.Fatalf("no user must be stored")
	}
}

func TestRouter_RegisterPasswordTooLong(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(registerRequestWithPassword(t, strings.Repeat("x", 100), true))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["message"] != "password must be at most 72 bytes" || body["kind"] != "validation" {
		t.Fatalf("unexpected error envelope: %+v", body)
	}
	if srv.users.stored("ada") != nil {
		t.Fatalf("no user must be stored")
	}
}

func TestRouter_SwaggerDocument(t *testing.T) {
	e := NewRouter(Dependencies{
		Sessions: service.NewSessionService(service.SessionDeps{}, zerolog.Nop()),
		Logger:   zerolog.Nop(),
		Registry: prometheus.NewRegistry(),
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := decode(t, rec)
	if doc["basePath"] != "/api/v1" {
		t.Fatalf("unexpected basePath: %v", doc["basePath"])
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/users/register", "/users/login", "/users/logout", "/users/refresh-token", "/healthcheck/ready"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("document is missing %s", p)
		}
	}
}

func TestRouter_LoginUnknownUser(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(jsonRequest(http.MethodPost, "/api/v1/users/login", `{"identifier":"ghost","password":"x"}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRouter_LogoutRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if decode(t, rec)["kind"] != "auth" {
		t.Fatalf("expected auth kind")
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/v1/healthcheck", "/api/v1/healthcheck/ready", "/metrics"} {
		rec := srv.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decode(t, rec); body["kind"] != "not_found" {
		t.Fatalf("unexpected envelope: %+v", body)
	}
}
