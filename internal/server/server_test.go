package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bookboard-app/bookboard/internal/auth"
	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/remote"
	"github.com/bookboard-app/bookboard/internal/store"
	"github.com/bookboard-app/bookboard/internal/sync"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// In-memory stand-ins for the remote collections.

type fakeRemotePosts struct{ docs map[string]*model.Post }

func (f *fakeRemotePosts) Get(_ context.Context, id string) (*model.Post, error) {
	return f.docs[id], nil
}
func (f *fakeRemotePosts) Set(_ context.Context, p *model.Post) error {
	cp := *p
	f.docs[p.ID] = &cp
	return nil
}
func (f *fakeRemotePosts) Delete(_ context.Context, id string) error {
	delete(f.docs, id)
	return nil
}
func (f *fakeRemotePosts) ListAll(_ context.Context) ([]*model.Post, error) {
	var out []*model.Post
	for _, p := range f.docs {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type fakeRemoteProfiles struct{ docs map[string]*model.Profile }

func (f *fakeRemoteProfiles) Get(_ context.Context, id string) (*model.Profile, error) {
	return f.docs[id], nil
}
func (f *fakeRemoteProfiles) Set(_ context.Context, p *model.Profile) error {
	cp := *p
	f.docs[p.ID] = &cp
	return nil
}
func (f *fakeRemoteProfiles) Delete(_ context.Context, id string) error {
	delete(f.docs, id)
	return nil
}
func (f *fakeRemoteProfiles) ListAll(_ context.Context) ([]*model.Profile, error) {
	var out []*model.Profile
	for _, p := range f.docs {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type fakeCredentials struct{ byEmail map[string]*remote.Credential }

func (f *fakeCredentials) GetByEmail(_ context.Context, email string) (*remote.Credential, error) {
	return f.byEmail[email], nil
}
func (f *fakeCredentials) Create(_ context.Context, cred *remote.Credential) error {
	if _, ok := f.byEmail[cred.Email]; ok {
		return remote.ErrEmailTaken
	}
	f.byEmail[cred.Email] = cred
	return nil
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "server-test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	posts := sync.NewPostService(db.Posts, &fakeRemotePosts{docs: map[string]*model.Post{}}, db.Outbox, logger)
	profiles := sync.NewProfileService(db.Profiles, &fakeRemoteProfiles{docs: map[string]*model.Profile{}}, db.Outbox, logger)
	authSvc := auth.NewService(&fakeCredentials{byEmail: map[string]*remote.Credential{}},
		profiles, []byte("server-test-secret"), time.Hour, logger)

	return New(authSvc, posts, profiles, nil, logger).Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

func signupUser(t *testing.T, router *gin.Engine, email, name string) (token, userID string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/signup", "", map[string]string{
		"email": email, "password": "correct horse", "name": name,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: status %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Token string        `json:"token"`
		User  model.Profile `json:"user"`
	}](t, w)
	return resp.Token, resp.User.ID
}

func createPost(t *testing.T, router *gin.Engine, token, title, author string) model.Post {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/posts", token, map[string]any{
		"title": title, "author": author, "review": "good", "rating": 4.5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create post: status %d, body %s", w.Code, w.Body.String())
	}
	return decode[model.Post](t, w)
}

func TestSignupLoginFlow(t *testing.T) {
	router := newTestServer(t)

	token, userID := signupUser(t, router, "ada@example.com", "Ada")
	if token == "" || userID == "" {
		t.Fatal("signup returned empty token or user ID")
	}

	// Duplicate signup conflicts.
	w := doJSON(t, router, http.MethodPost, "/api/signup", "", map[string]string{
		"email": "ada@example.com", "password": "correct horse", "name": "Twin",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup: status %d, want 409", w.Code)
	}

	// Login works and returns the same user.
	w = doJSON(t, router, http.MethodPost, "/api/login", "", map[string]string{
		"email": "ada@example.com", "password": "correct horse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		User model.Profile `json:"user"`
	}](t, w)
	if resp.User.ID != userID {
		t.Errorf("login user ID = %q, want %q", resp.User.ID, userID)
	}

	// Wrong password is rejected.
	w = doJSON(t, router, http.MethodPost, "/api/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login: status %d, want 401", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/api/posts", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/posts", "garbage-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status %d, want 401", w.Code)
	}
}

func TestPostLifecycle(t *testing.T) {
	router := newTestServer(t)
	token, userID := signupUser(t, router, "ada@example.com", "Ada")

	post := createPost(t, router, token, "Dune", "Frank Herbert")
	if post.ID == "" || post.OwnerID != userID || post.OwnerName != "Ada" {
		t.Fatalf("created post: %+v", post)
	}

	// Fetch by ID.
	w := doJSON(t, router, http.MethodGet, "/api/posts/"+post.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get post: status %d", w.Code)
	}

	// Update.
	w = doJSON(t, router, http.MethodPut, "/api/posts/"+post.ID, token, map[string]any{
		"title": "Dune", "author": "Frank Herbert", "review": "classic", "rating": 5.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update post: status %d, body %s", w.Code, w.Body.String())
	}
	updated := decode[model.Post](t, w)
	if updated.Rating != 5.0 || updated.Review != "classic" {
		t.Errorf("update not applied: %+v", updated)
	}

	// Delete, then 404.
	w = doJSON(t, router, http.MethodDelete, "/api/posts/"+post.ID, token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete post: status %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/posts/"+post.ID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted post: status %d, want 404", w.Code)
	}
}

// Older clients send the image as a plain string instead of the tagged
// kind/value object. The server classifies it on the way in.
func TestCreatePost_LegacyImageString(t *testing.T) {
	router := newTestServer(t)
	token, _ := signupUser(t, router, "ada@example.com", "Ada")

	w := doJSON(t, router, http.MethodPost, "/api/posts", token, map[string]any{
		"title": "Dune", "author": "Frank Herbert", "review": "good", "rating": 4.5,
		"image": "https://img.example.com/covers/dune.jpg",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create post: status %d, body %s", w.Code, w.Body.String())
	}
	post := decode[model.Post](t, w)
	if post.Image.Kind != model.ImageRemoteURL || post.Image.Value != "https://img.example.com/covers/dune.jpg" {
		t.Errorf("legacy image string decoded to %+v", post.Image)
	}
}

func TestPostOwnershipEnforced(t *testing.T) {
	router := newTestServer(t)
	adaToken, _ := signupUser(t, router, "ada@example.com", "Ada")
	bobToken, _ := signupUser(t, router, "bob@example.com", "Bob")

	post := createPost(t, router, adaToken, "Dune", "Frank Herbert")

	w := doJSON(t, router, http.MethodPut, "/api/posts/"+post.ID, bobToken, map[string]any{
		"title": "Hijacked", "author": "Bob", "review": "mine now", "rating": 1.0,
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign update: status %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/posts/"+post.ID, bobToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign delete: status %d, want 403", w.Code)
	}
}

func TestListAndSearchPosts(t *testing.T) {
	router := newTestServer(t)
	token, _ := signupUser(t, router, "ada@example.com", "Ada")

	createPost(t, router, token, "Dune", "Frank Herbert")
	createPost(t, router, token, "Foundation", "Isaac Asimov")

	w := doJSON(t, router, http.MethodGet, "/api/posts", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list posts: status %d", w.Code)
	}
	all := decode[struct {
		Posts []model.Post `json:"posts"`
	}](t, w)
	if len(all.Posts) != 2 {
		t.Fatalf("listed %d posts, want 2", len(all.Posts))
	}

	w = doJSON(t, router, http.MethodGet, "/api/posts?q=asimov", token, nil)
	filtered := decode[struct {
		Posts []model.Post `json:"posts"`
	}](t, w)
	if len(filtered.Posts) != 1 || filtered.Posts[0].Title != "Foundation" {
		t.Errorf("search result: %+v", filtered.Posts)
	}
}

func TestMyPosts(t *testing.T) {
	router := newTestServer(t)
	adaToken, _ := signupUser(t, router, "ada@example.com", "Ada")
	bobToken, _ := signupUser(t, router, "bob@example.com", "Bob")

	createPost(t, router, adaToken, "Dune", "Frank Herbert")
	createPost(t, router, adaToken, "Hyperion", "Dan Simmons")
	createPost(t, router, bobToken, "Foundation", "Isaac Asimov")

	w := doJSON(t, router, http.MethodGet, "/api/posts/mine", adaToken, nil)
	mine := decode[struct {
		Posts []model.Post `json:"posts"`
	}](t, w)
	if len(mine.Posts) != 2 {
		t.Errorf("ada sees %d own posts, want 2", len(mine.Posts))
	}
}

func TestRefreshPosts(t *testing.T) {
	router := newTestServer(t)
	token, _ := signupUser(t, router, "ada@example.com", "Ada")
	createPost(t, router, token, "Dune", "Frank Herbert")

	w := doJSON(t, router, http.MethodPost, "/api/posts/refresh", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Posts []model.Post `json:"posts"`
	}](t, w)
	if len(resp.Posts) != 1 {
		t.Errorf("refresh returned %d posts, want 1", len(resp.Posts))
	}
}

func TestProfileEndpoints(t *testing.T) {
	router := newTestServer(t)
	token, userID := signupUser(t, router, "ada@example.com", "Ada")

	w := doJSON(t, router, http.MethodGet, "/api/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get me: status %d", w.Code)
	}
	me := decode[model.Profile](t, w)
	if me.ID != userID || me.Name != "Ada" {
		t.Errorf("me = %+v", me)
	}

	w = doJSON(t, router, http.MethodPut, "/api/me", token, map[string]any{
		"name": "Ada Lovelace",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update me: status %d, body %s", w.Code, w.Body.String())
	}
	updated := decode[model.Profile](t, w)
	if updated.Name != "Ada Lovelace" {
		t.Errorf("name = %q after update", updated.Name)
	}

	// New posts pick up the fresh display name.
	post := createPost(t, router, token, "Dune", "Frank Herbert")
	if post.OwnerName != "Ada Lovelace" {
		t.Errorf("OwnerName = %q, want updated name", post.OwnerName)
	}

	// Other users can fetch the profile.
	otherToken, _ := signupUser(t, router, "bob@example.com", "Bob")
	w = doJSON(t, router, http.MethodGet, "/api/users/"+userID, otherToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get profile: status %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/users/no-such-user", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown profile: status %d, want 404", w.Code)
	}
}

func TestUploadWithoutImageStore(t *testing.T) {
	router := newTestServer(t)
	token, _ := signupUser(t, router, "ada@example.com", "Ada")

	req := httptest.NewRequest(http.MethodPost, "/api/images", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("upload without store: status %d, want 503", w.Code)
	}
}
