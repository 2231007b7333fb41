// Package twitter publishes tweets through the X API v2 with OAuth 1.0a
// user-context credentials.
package twitter

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

	"github.com/dghubble/oauth1"

	"github.com/nitesh/social_agent/pkg/models"
)

const (
	DefaultAPIURL = "https://api.twitter.com/2/tweets"
	statusURLFmt  = "https://twitter.com/i/web/status/%s"
)

var (
	// ErrMissingCredentials is returned by Publish when any of the four
	// OAuth values is empty.
	ErrMissingCredentials = errors.New("missing twitter api credentials")
	// ErrMalformed is returned when the API answers 2xx without a tweet id.
	ErrMalformed = errors.New("malformed twitter response")
)

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("twitter api: status=%d body=%s", e.StatusCode, e.Body)
}

// Credentials are the app and user tokens for OAuth 1.0a signing.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Complete reports whether every value is set.
func (c Credentials) Complete() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// Client posts tweets.
type Client struct {
	apiURL string
	hc     *http.Client
	ready  bool
	logger *slog.Logger
}

// NewClient builds a signing client on top of base (nil means a 30s timeout
// client). Incomplete credentials do not fail here; Publish reports them.
func NewClient(apiURL string, creds Credentials, base *http.Client, logger *slog.Logger) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{apiURL: apiURL, ready: creds.Complete(), logger: logger}
	if c.ready {
		cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
		token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
		ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
		c.hc = cfg.Client(ctx, token)
		c.hc.Timeout = base.Timeout
	}
	return c
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Publish posts text as a new tweet and returns its id and public URL.
func (c *Client) Publish(ctx context.Context, text string) (*models.PublishResult, error) {
	if !c.ready {
		return nil, ErrMissingCredentials
	}

	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("twitter marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("twitter new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Error("twitter request failed", "error", err)
		return nil, fmt.Errorf("twitter request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("twitter read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out createTweetResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if out.Data.ID == "" {
		return nil, fmt.Errorf("%w: missing data.id", ErrMalformed)
	}

	res := &models.PublishResult{ID: out.Data.ID, URL: fmt.Sprintf(statusURLFmt, out.Data.ID)}
	c.logger.Info("posted tweet", "tweet_id", res.ID, "url", res.URL)
	return res, nil
}
