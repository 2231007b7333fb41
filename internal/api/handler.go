package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nitesh/social_agent/internal/service"
	"github.com/nitesh/social_agent/pkg/models"
)

// PostService is the workflow the handlers drive.
type PostService interface {
	Generate(ctx context.Context, q models.NewsQuery) (*models.PendingPost, error)
	PublishDirect(ctx context.Context, q models.NewsQuery) (*models.PublishResult, error)
	ListPosts(ctx context.Context, status string) ([]*models.PendingPost, error)
	GetPost(ctx context.Context, id string) (*models.PendingPost, error)
	Decide(ctx context.Context, id string, approved bool, feedback string) (*models.PendingPost, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc    PostService
	health HealthChecker
	logger *slog.Logger
}

func NewHandler(svc PostService, health HealthChecker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, health: health, logger: logger}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.POST("/process-news", h.ProcessNews)
	r.POST("/generate", h.ProcessNews)
	r.GET("/pending-posts", h.ListPosts)
	r.GET("/pending-posts/:id", h.GetPost)
	r.POST("/approve-post/:id", h.ApprovePost)
	r.POST("/post-direct", h.PostDirect)
	r.GET("/health", h.Health)
}

// PostRequest is the search body shared by /process-news and /post-direct.
type PostRequest struct {
	Query    string `json:"q" binding:"required"`
	From     string `json:"from" binding:"omitempty,datetime=2006-01-02"`
	SortBy   string `json:"sortBy"`
	SearchIn string `json:"searchIn"`
	Language string `json:"language"`
}

func (r PostRequest) toQuery() models.NewsQuery {
	return models.NewsQuery{
		Query:    r.Query,
		From:     r.From,
		SortBy:   r.SortBy,
		SearchIn: r.SearchIn,
		Language: r.Language,
	}.WithDefaults()
}

// PostApproval is the body of /approve-post/:id. Approved is a pointer so a
// missing field is told apart from false.
type PostApproval struct {
	Approved *bool  `json:"approved" binding:"required"`
	Feedback string `json:"feedback"`
}

// ProcessNews: POST /process-news
// Drafts a tweet for the top matching article and queues it for approval.
// Errors: 400 bad body, 404 no article, 422 article without a usable title
// or url, 502 news API failure, 500 store failure.
func (h *Handler) ProcessNews(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	post, err := h.svc.Generate(c.Request.Context(), req.toQuery())
	if err != nil {
		h.fail(c, "process news", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// ListPosts: GET /pending-posts?status=pending|approved|rejected|all
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.svc.ListPosts(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.fail(c, "list posts", err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost: GET /pending-posts/:id
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.svc.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get post", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// ApprovePost: POST /approve-post/:id
// Body: {"approved": true|false, "feedback": "..."}
// Errors: 400 bad body or post already decided, 404 unknown id, 409 another
// decision in flight, 502 publish failed (post stays pending), 500 missing
// twitter credentials or store failure.
func (h *Handler) ApprovePost(c *gin.Context) {
	var req PostApproval
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	post, err := h.svc.Decide(c.Request.Context(), c.Param("id"), *req.Approved, req.Feedback)
	if err != nil {
		h.fail(c, "approve post", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// PostDirect: POST /post-direct
// Publishes without the approval step. Errors as for ProcessNews, with 502
// also covering a failed publish and 500 missing twitter credentials.
func (h *Handler) PostDirect(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	res, err := h.svc.PublishDirect(c.Request.Context(), req.toQuery())
	if err != nil {
		h.fail(c, "direct post", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Health: GET /health
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.health != nil {
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err)
	} else {
		h.logger.Info(op+" refused", "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps service errors to HTTP codes. Collaborator failures are
// 502 and unusable articles 422 rather than a blanket 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrMissingContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
