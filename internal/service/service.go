package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	dbtypes "github.com/nitesh/social_agent/internal/db"
	"github.com/nitesh/social_agent/internal/lock"
	"github.com/nitesh/social_agent/internal/store"
	"github.com/nitesh/social_agent/internal/summary"
	"github.com/nitesh/social_agent/internal/twitter"
	"github.com/nitesh/social_agent/pkg/models"
)

// PostStore persists pending posts.
type PostStore interface {
	Create(ctx context.Context, p *models.PendingPost) error
	Get(ctx context.Context, id string) (*models.PendingPost, error)
	List(ctx context.Context, status models.Status) ([]*models.PendingPost, error)
	Transition(ctx context.Context, id string, d store.Decision) (*models.PendingPost, error)
}

// NewsFetcher finds articles for a query.
type NewsFetcher interface {
	Fetch(ctx context.Context, q models.NewsQuery) ([]models.Article, error)
}

// Publisher posts final tweet text.
type Publisher interface {
	Publish(ctx context.Context, text string) (*models.PublishResult, error)
}

// ListAll is the ListPosts filter that returns every post.
const ListAll = "all"

// recordTimeout bounds the store write that follows a successful publish.
const recordTimeout = 5 * time.Second

type Service struct {
	repo       PostStore
	news       NewsFetcher
	publisher  Publisher
	summarizer *summary.Summarizer
	locker     lock.Locker
	logger     *slog.Logger
}

func NewService(repo PostStore, news NewsFetcher, publisher Publisher, summarizer *summary.Summarizer, locker lock.Locker, logger *slog.Logger) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:       repo,
		news:       news,
		publisher:  publisher,
		summarizer: summarizer,
		locker:     locker,
		logger:     logger,
	}
}

// Generate drafts a tweet for the top article matching q and stores it as
// pending. No record is created when the search comes back empty.
func (s *Service) Generate(ctx context.Context, q models.NewsQuery) (*models.PendingPost, error) {
	article, draft, err := s.draft(ctx, q)
	if err != nil {
		return nil, err
	}

	post := &models.PendingPost{
		TweetText:  draft.Text,
		ArticleURL: article.URL,
		Hashtags:   dbtypes.StringSlice(draft.Hashtags),
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("save pending post: %w", err)
	}
	s.logger.Info("pending post created", "id", post.ID, "article_url", post.ArticleURL)
	return post, nil
}

// PublishDirect drafts a tweet for the top article and posts it right away,
// bypassing the approval queue.
func (s *Service) PublishDirect(ctx context.Context, q models.NewsQuery) (*models.PublishResult, error) {
	article, draft, err := s.draft(ctx, q)
	if err != nil {
		return nil, err
	}
	res, err := s.publish(ctx, draft.Text)
	if err != nil {
		return nil, err
	}
	s.logger.Info("direct post published", "article_url", article.URL, "tweet_id", res.ID)
	return res, nil
}

// ListPosts returns pending posts. status may be "", a models.Status, or
// ListAll; "" means pending only.
func (s *Service) ListPosts(ctx context.Context, status string) ([]*models.PendingPost, error) {
	var filter models.Status
	switch status {
	case "":
		filter = models.StatusPending
	case ListAll:
		filter = ""
	default:
		filter = models.Status(status)
		if !filter.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
	}
	posts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// GetPost returns a single post by id.
func (s *Service) GetPost(ctx context.Context, id string) (*models.PendingPost, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeErr(id, err)
	}
	return post, nil
}

// Decide approves or rejects a pending post. Approval publishes the stored
// text first; if publishing fails the post stays pending and can be
// approved again later. Rejection never calls the publisher.
func (s *Service) Decide(ctx context.Context, id string, approved bool, feedback string) (*models.PendingPost, error) {
	release, err := s.locker.Acquire(ctx, "post:"+id)
	if errors.Is(err, lock.ErrHeld) {
		return nil, fmt.Errorf("post %s: %w", id, ErrBusy)
	}
	if err != nil {
		return nil, fmt.Errorf("lock post %s: %w", id, err)
	}
	defer release()

	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeErr(id, err)
	}
	if post.Status != models.StatusPending {
		return nil, fmt.Errorf("post %s is already %s: %w", id, post.Status, ErrInvalidState)
	}

	feedback = strings.TrimSpace(feedback)
	if !approved {
		updated, err := s.repo.Transition(ctx, id, store.Decision{Status: models.StatusRejected, Feedback: feedback})
		if err != nil {
			return nil, s.storeErr(id, err)
		}
		s.logger.Info("pending post rejected", "id", id)
		return updated, nil
	}

	res, err := s.publish(ctx, post.TweetText)
	if err != nil {
		s.logger.Warn("approval publish failed, post stays pending", "id", id, "error", err)
		return nil, err
	}

	// the tweet is live; record it even if the caller has gone away
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	updated, err := s.repo.Transition(writeCtx, id, store.Decision{
		Status:    models.StatusApproved,
		PostedID:  res.ID,
		PostedURL: res.URL,
		Feedback:  feedback,
	})
	if err != nil {
		// the tweet is live but the record could not be marked; surface both
		s.logger.Error("tweet published but post not marked approved", "id", id, "tweet_id", res.ID, "error", err)
		return nil, s.storeErr(id, err)
	}
	s.logger.Info("pending post approved", "id", id, "tweet_id", res.ID)
	return updated, nil
}

func (s *Service) draft(ctx context.Context, q models.NewsQuery) (models.Article, summary.Draft, error) {
	if strings.TrimSpace(q.Query) == "" {
		return models.Article{}, summary.Draft{}, fmt.Errorf("%w: query is required", ErrValidation)
	}

	articles, err := s.news.Fetch(ctx, q.WithDefaults())
	if err != nil {
		return models.Article{}, summary.Draft{}, fmt.Errorf("fetch news: %v: %w", err, ErrUpstream)
	}
	if len(articles) == 0 {
		return models.Article{}, summary.Draft{}, fmt.Errorf("no news articles found for %q: %w", q.Query, ErrNotFound)
	}

	article := articles[0]
	d, err := s.summarizer.Draft(article.Title, article.Description, article.URL)
	if err != nil {
		return models.Article{}, summary.Draft{}, fmt.Errorf("summarize %s: %v: %w", article.URL, err, ErrMissingContent)
	}
	return article, d, nil
}

func (s *Service) publish(ctx context.Context, text string) (*models.PublishResult, error) {
	res, err := s.publisher.Publish(ctx, text)
	if errors.Is(err, twitter.ErrMissingCredentials) {
		return nil, fmt.Errorf("publish: %v: %w", err, ErrConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("publish: %v: %w", err, ErrUpstream)
	}
	return res, nil
}

func (s *Service) storeErr(id string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("post %s was decided concurrently: %w", id, ErrInvalidState)
	}
	return fmt.Errorf("post %s: %w", id, err)
}
