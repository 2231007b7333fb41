package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"

	"github.com/nitesh/social_agent/internal/service"
	"github.com/nitesh/social_agent/pkg/models"
)

type fakeService struct {
	post    *models.PendingPost
	posts   []*models.PendingPost
	result  *models.PublishResult
	err     error
	lastQ   models.NewsQuery
	lastID  string
	lastOK  bool
	lastFb  string
	lastSt  string
	decided bool
}

func (f *fakeService) Generate(ctx context.Context, q models.NewsQuery) (*models.PendingPost, error) {
	f.lastQ = q
	return f.post, f.err
}

func (f *fakeService) PublishDirect(ctx context.Context, q models.NewsQuery) (*models.PublishResult, error) {
	f.lastQ = q
	return f.result, f.err
}

func (f *fakeService) ListPosts(ctx context.Context, status string) ([]*models.PendingPost, error) {
	f.lastSt = status
	return f.posts, f.err
}

func (f *fakeService) GetPost(ctx context.Context, id string) (*models.PendingPost, error) {
	f.lastID = id
	return f.post, f.err
}

func (f *fakeService) Decide(ctx context.Context, id string, approved bool, feedback string) (*models.PendingPost, error) {
	f.decided = true
	f.lastID, f.lastOK, f.lastFb = id, approved, feedback
	return f.post, f.err
}

type fakeHealth struct{ err error }

func (f fakeHealth) Ping(ctx context.Context) error { return f.err }

func newTestRouter(svc PostService, health HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHandler(svc, health, logger), logger, nil)
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func pendingPost(id string) *models.PendingPost {
	return &models.PendingPost{
		ID:         id,
		TweetText:  "AI breakthrough announced: Researchers unveil new model http://x/y",
		ArticleURL: "http://x/y",
		Status:     models.StatusPending,
	}
}

func TestProcessNews_Created(t *testing.T) {
	svc := &fakeService{post: pendingPost("p1")}
	r := newTestRouter(svc, nil)

	w := do(r, "POST", "/process-news", `{"q":"ai agents","from":"2025-01-10"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	var res models.PendingPost
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "p1", res.ID)
	assert.Equal(t, models.StatusPending, res.Status)

	assert.Equal(t, "ai agents", svc.lastQ.Query)
	assert.Equal(t, "2025-01-10", svc.lastQ.From)
	assert.Equal(t, "popularity", svc.lastQ.SortBy)
	assert.Equal(t, "title,description", svc.lastQ.SearchIn)
	assert.Equal(t, "en", svc.lastQ.Language)
}

func TestProcessNews_GenerateAlias(t *testing.T) {
	svc := &fakeService{post: pendingPost("p1")}
	r := newTestRouter(svc, nil)

	w := do(r, "POST", "/generate", `{"q":"go","sortBy":"publishedAt"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "publishedAt", svc.lastQ.SortBy)
}

func TestProcessNews_Validation(t *testing.T) {
	r := newTestRouter(&fakeService{}, nil)

	cases := []string{
		`{}`,
		`{"from":"2025-01-10"}`,
		`{"q":"ai","from":"10/01/2025"}`,
		`not json`,
	}
	for _, body := range cases {
		w := do(r, "POST", "/process-news", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestProcessNews_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("no news: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("fetch: %w", service.ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("summarize: %w", service.ErrMissingContent), http.StatusUnprocessableEntity},
		{fmt.Errorf("q: %w", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("creds: %w", service.ErrConfiguration), http.StatusInternalServerError},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTestRouter(&fakeService{err: tc.err}, nil)
		w := do(r, "POST", "/process-news", `{"q":"ai"}`)
		assert.Equal(t, tc.code, w.Code)

		var res map[string]string
		json.Unmarshal(w.Body.Bytes(), &res)
		assert.Equal(t, tc.err.Error(), res["error"])
	}
}

func TestListPosts(t *testing.T) {
	svc := &fakeService{posts: []*models.PendingPost{pendingPost("a"), pendingPost("b")}}
	r := newTestRouter(svc, nil)

	w := do(r, "GET", "/pending-posts", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var res []models.PendingPost
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, 2, len(res))
	assert.Equal(t, "", svc.lastSt)
}

func TestListPosts_StatusFilter(t *testing.T) {
	svc := &fakeService{posts: []*models.PendingPost{}}
	r := newTestRouter(svc, nil)

	w := do(r, "GET", "/pending-posts?status=all", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "all", svc.lastSt)
	assert.Equal(t, "[]", w.Body.String())
}

func TestGetPost_NotFound(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("post x: %w", service.ErrNotFound)}
	r := newTestRouter(svc, nil)

	w := do(r, "GET", "/pending-posts/x", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "x", svc.lastID)
}

func TestApprovePost_Approved(t *testing.T) {
	post := pendingPost("p1")
	post.Status = models.StatusApproved
	tweetID := "123"
	post.PostedID = &tweetID
	svc := &fakeService{post: post}
	r := newTestRouter(svc, nil)

	w := do(r, "POST", "/approve-post/p1", `{"approved":true}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", svc.lastID)
	assert.Equal(t, true, svc.lastOK)

	var res map[string]any
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "approved", res["status"])
	assert.Equal(t, "123", res["posted_tweet_id"])
}

func TestApprovePost_Rejected(t *testing.T) {
	post := pendingPost("p1")
	post.Status = models.StatusRejected
	svc := &fakeService{post: post}
	r := newTestRouter(svc, nil)

	w := do(r, "POST", "/approve-post/p1", `{"approved":false,"feedback":"too vague"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, svc.lastOK)
	assert.Equal(t, "too vague", svc.lastFb)
}

func TestApprovePost_MissingApprovedField(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, nil)

	w := do(r, "POST", "/approve-post/p1", `{"feedback":"?"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, svc.decided)
}

func TestApprovePost_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("post p1 is already approved: %w", service.ErrInvalidState), http.StatusBadRequest},
		{fmt.Errorf("post p1: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("post p1: %w", service.ErrBusy), http.StatusConflict},
		{fmt.Errorf("publish: %w", service.ErrUpstream), http.StatusBadGateway},
	}
	for _, tc := range cases {
		r := newTestRouter(&fakeService{err: tc.err}, nil)
		w := do(r, "POST", "/approve-post/p1", `{"approved":true}`)
		assert.Equal(t, tc.code, w.Code)
	}
}

func TestPostDirect(t *testing.T) {
	svc := &fakeService{result: &models.PublishResult{ID: "99", URL: "https://twitter.com/i/web/status/99"}}
	r := newTestRouter(svc, nil)

	w := do(r, "POST", "/post-direct", `{"q":"blockchain"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var res map[string]string
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "99", res["tweet_id"])
	assert.Equal(t, "https://twitter.com/i/web/status/99", res["tweet_url"])
	assert.Equal(t, "blockchain", svc.lastQ.Query)
}

func TestPostDirect_NotFound(t *testing.T) {
	r := newTestRouter(&fakeService{err: service.ErrNotFound}, nil)

	w := do(r, "POST", "/post-direct", `{"q":"nothing"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeService{}, fakeHealth{})
	w := do(r, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var res map[string]string
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "healthy", res["status"])
}

func TestHealth_Unhealthy(t *testing.T) {
	r := newTestRouter(&fakeService{}, fakeHealth{err: errors.New("DB down")})
	w := do(r, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var res map[string]string
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "unhealthy", res["status"])
}
