package news

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/nitesh/social_agent/pkg/models"
)

// DefaultURL is the researcher endpoint the service was built against.
const DefaultURL = "https://ai-marketing-researcher.onrender.com/fetch-news"

// ErrMalformed is returned when the response body cannot be turned into an
// article.
var ErrMalformed = errors.New("malformed news response")

// StatusError reports a non-2xx answer from the news API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("news api: status=%d body=%s", e.StatusCode, e.Body)
}

// Client searches the news API. It returns at most one article per query.
type Client struct {
	url    string
	hc     *http.Client
	logger *slog.Logger
}

// NewClient creates a new client. If httpClient is nil, a default with a
// 30s timeout is used.
func NewClient(url string, httpClient *http.Client, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{url: url, hc: httpClient, logger: logger}
}

// Fetch posts the query and returns the matching article, if any. An empty
// result is not an error.
func (c *Client) Fetch(ctx context.Context, q models.NewsQuery) ([]models.Article, error) {
	q = q.WithDefaults()
	b, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("news marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("news new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Error("news request failed", "url", c.url, "error", err)
		return nil, fmt.Errorf("news request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("news read body: %w", err)
	}
	c.logger.Info("news request", "query", q.Query, "status", resp.StatusCode, "latency", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	articles, err := decodeArticles(body)
	if err != nil {
		c.logger.Error("news decode failed", "error", err, "body", string(body))
		return nil, err
	}
	return articles, nil
}

// rawArticle accepts both the researcher API's flat shape and the NewsAPI
// shape where source is an object.
type rawArticle struct {
	Source      sourceName `json:"source"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	URLToImage  string     `json:"urlToImage"`
	PublishedAt string     `json:"publishedAt"`
}

// removedMarker is the title NewsAPI puts on withdrawn articles.
const removedMarker = "[Removed]"

type sourceName string

func (s *sourceName) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = sourceName(str)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*s = sourceName(obj.Name)
	return nil
}

// decodeArticles handles a single article object, {"articles": [...]} or a
// bare JSON array and returns at most one article. Entries without a title
// or url are skipped; the body is malformed only when no entry is usable.
func decodeArticles(body []byte) ([]models.Article, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.Article{}, nil
	}

	var raws []rawArticle
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if list, ok := probe["articles"]; ok {
			if err := json.Unmarshal(list, &raws); err != nil {
				return nil, fmt.Errorf("%w: articles: %v", ErrMalformed, err)
			}
			break
		}
		if len(probe) == 0 {
			return []models.Article{}, nil
		}
		var one rawArticle
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		raws = []rawArticle{one}
	default:
		return nil, fmt.Errorf("%w: unexpected body", ErrMalformed)
	}

	// only one article is used; take the first usable entry
	var firstErr error
	for i, r := range raws {
		a, err := r.toArticle()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("article %d: %w", i, err)
			}
			continue
		}
		return []models.Article{a}, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return []models.Article{}, nil
}

func (r rawArticle) toArticle() (models.Article, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" || title == removedMarker || strings.TrimSpace(r.URL) == "" {
		return models.Article{}, fmt.Errorf("%w: missing title or url", ErrMalformed)
	}
	a := models.Article{
		Source:      string(r.Source),
		Title:       r.Title,
		Description: r.Description,
		URL:         strings.TrimSpace(r.URL),
		ImageURL:    r.URLToImage,
	}
	if r.PublishedAt != "" {
		// an unparseable timestamp is not worth failing the article for
		if t, err := dateparse.ParseAny(r.PublishedAt); err == nil {
			a.PublishedAt = t.UTC()
		}
	}
	return a, nil
}
