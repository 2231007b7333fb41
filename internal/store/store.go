package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	dbtypes "github.com/nitesh/social_agent/internal/db"
	"github.com/nitesh/social_agent/pkg/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	// ErrNotFound is returned when no post has the requested id.
	ErrNotFound = errors.New("pending post not found")
	// ErrConflict is returned when a transition finds the post no longer
	// in the expected status.
	ErrConflict = errors.New("pending post status changed")
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

const postColumns = "id, tweet_text, article_url, hashtags, created_at, status, posted_id, posted_url, feedback, decided_at"

// SQLStore keeps pending posts in a single table. Queries are written with
// '?' placeholders and rebound for the active driver.
type SQLStore struct {
	db          *sqlx.DB
	placeholder sq.PlaceholderFormat
	now         func() time.Time
}

// Open connects to the database. driver is DriverPostgres or DriverSQLite.
func Open(driver, dsn string) (*SQLStore, error) {
	var ph sq.PlaceholderFormat
	switch driver {
	case DriverPostgres:
		ph = sq.Dollar
	case DriverSQLite:
		ph = sq.Question
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time; avoids SQLITE_BUSY between pool connections
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	return &SQLStore{db: db, placeholder: ph, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Ping verifies the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// RunMigrations creates the pending_posts table. The DDL is valid for both
// Postgres and SQLite.
func (s *SQLStore) RunMigrations(ctx context.Context) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS pending_posts(
  id TEXT PRIMARY KEY,
  tweet_text TEXT NOT NULL,
  article_url TEXT NOT NULL,
  hashtags TEXT NOT NULL DEFAULT '[]',
  created_at TIMESTAMP NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  posted_id TEXT,
  posted_url TEXT,
  feedback TEXT,
  decided_at TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_posts_status ON pending_posts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_posts_created ON pending_posts(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Create inserts p as a new pending post, assigning its id and creation
// time.
func (s *SQLStore) Create(ctx context.Context, p *models.PendingPost) error {
	p.ID = uuid.New().String()
	p.CreatedAt = s.now()
	p.Status = models.StatusPending
	p.PostedID, p.PostedURL, p.Feedback, p.DecidedAt = nil, nil, nil, nil
	if p.Hashtags == nil {
		p.Hashtags = dbtypes.StringSlice{}
	}

	query := s.db.Rebind(`
INSERT INTO pending_posts (id, tweet_text, article_url, hashtags, created_at, status)
VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.TweetText,
		p.ArticleURL,
		p.Hashtags,
		p.CreatedAt,
		string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("insert pending post: %w", err)
	}
	return nil
}

// Get returns the post with the given id or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, id string) (*models.PendingPost, error) {
	var p models.PendingPost
	query := s.db.Rebind(`SELECT ` + postColumns + ` FROM pending_posts WHERE id = ?`)
	err := s.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending post id=%s: %w", id, err)
	}
	return &p, nil
}

// List returns posts newest first. An empty status lists every post.
func (s *SQLStore) List(ctx context.Context, status models.Status) ([]*models.PendingPost, error) {
	b := sq.Select(postColumns).
		From("pending_posts").
		OrderBy("created_at DESC", "id").
		PlaceholderFormat(s.placeholder)
	if status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows := []*models.PendingPost{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list pending posts: %w", err)
	}
	return rows, nil
}

// Decision is the terminal state written by Transition.
type Decision struct {
	Status    models.Status
	PostedID  string
	PostedURL string
	Feedback  string
}

// Transition moves a pending post to d.Status. The update only applies while
// the row is still pending, so concurrent decisions cannot both succeed.
func (s *SQLStore) Transition(ctx context.Context, id string, d Decision) (*models.PendingPost, error) {
	if !d.Status.Terminal() {
		return nil, fmt.Errorf("transition to %q: not a terminal status", d.Status)
	}
	if d.Status == models.StatusApproved && d.PostedID == "" {
		return nil, fmt.Errorf("transition to approved: missing posted id")
	}

	query := s.db.Rebind(`
UPDATE pending_posts
SET status = ?, posted_id = ?, posted_url = ?, feedback = ?, decided_at = ?
WHERE id = ? AND status = ?`)
	res, err := s.db.ExecContext(ctx, query,
		string(d.Status),
		nullable(d.PostedID),
		nullable(d.PostedURL),
		nullable(d.Feedback),
		s.now(),
		id,
		string(models.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("update pending post id=%s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update pending post id=%s: %w", id, err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return s.Get(ctx, id)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
