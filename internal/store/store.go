package store

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trendwire/internal/core"
	"trendwire/internal/logger"
)

// ContentStore is the SQLite-backed URL -> article body cache with TTL
// semantics. Rows are keyed by URL (unique) and indexed by its MD5 hex digest.
// Read failures degrade to cache misses and write failures to dropped writes;
// neither aborts the pipeline.
type ContentStore struct {
	db            *sql.DB
	path          string
	retentionDays int
}

const schema = `
CREATE TABLE IF NOT EXISTS scraped_content (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT UNIQUE NOT NULL,
	url_hash TEXT NOT NULL,
	title TEXT,
	content TEXT,
	author TEXT,
	publish_time TEXT,
	word_count INTEGER DEFAULT 0,
	images TEXT,
	metadata TEXT,
	scraper_type TEXT,
	scraped_at TEXT NOT NULL,
	expires_at TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_url_hash ON scraped_content(url_hash);
CREATE INDEX IF NOT EXISTS idx_scraped_at ON scraped_content(scraped_at);
CREATE INDEX IF NOT EXISTS idx_expires_at ON scraped_content(expires_at);
`

// New opens (creating if necessary) the content store at dbPath.
// Schema creation is idempotent.
func New(dbPath string, retentionDays int) (*ContentStore, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "content.db")
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &ContentStore{db: db, path: dbPath, retentionDays: retentionDays}, nil
}

// Close closes the database connection.
func (s *ContentStore) Close() error {
	return s.db.Close()
}

// RetentionDays returns the configured TTL in days.
func (s *ContentStore) RetentionDays() int {
	return s.retentionDays
}

func hashURL(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Put upserts the body under its URL, stamping scraped_at=now and
// expires_at=now+retention. Repeated puts replace the row.
func (s *ContentStore) Put(body *core.FetchedBody, kind core.FetcherKind) error {
	now := time.Now()
	expires := now.AddDate(0, 0, s.retentionDays)

	var publishTime any
	if body.PublishTime != nil {
		publishTime = body.PublishTime.Format(time.RFC3339)
	}

	images, _ := json.Marshal(body.Images)
	metadata, _ := json.Marshal(body.Metadata)

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO scraped_content
		(url, url_hash, title, content, author, publish_time,
		 word_count, images, metadata, scraper_type, scraped_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		body.URL,
		hashURL(body.URL),
		body.Title,
		body.Content,
		body.Author,
		publishTime,
		body.WordCount,
		string(images),
		string(metadata),
		string(kind),
		now.Format(time.RFC3339),
		expires.Format(time.RFC3339),
	)
	if err != nil {
		logger.Error("content store write dropped", err, "url", body.URL)
		return fmt.Errorf("failed to store content: %w", err)
	}
	return nil
}

// Get returns the body for url iff the row exists and has not expired.
// I/O errors are logged and reported as a miss.
func (s *ContentStore) Get(url string) *core.FetchedBody {
	row := s.db.QueryRow(`
		SELECT url, title, content, author, publish_time, word_count,
		       images, metadata, scraped_at, expires_at
		FROM scraped_content
		WHERE url_hash = ? AND (expires_at IS NULL OR expires_at > ?)`,
		hashURL(url), time.Now().Format(time.RFC3339))

	body, err := scanBody(row)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Error("content store read failed", err, "url", url)
		}
		return nil
	}
	return body
}

// Exists reports whether url has a fresh cached body.
func (s *ContentStore) Exists(url string) bool {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM scraped_content
		WHERE url_hash = ? AND (expires_at IS NULL OR expires_at > ?)
		LIMIT 1`,
		hashURL(url), time.Now().Format(time.RFC3339)).Scan(&one)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Error("content store existence check failed", err, "url", url)
		}
		return false
	}
	return true
}

// GetMany returns fresh bodies for the given urls in a single query,
// omitting expired or missing entries.
func (s *ContentStore) GetMany(urls []string) map[string]*core.FetchedBody {
	results := make(map[string]*core.FetchedBody)
	if len(urls) == 0 {
		return results
	}

	placeholders := strings.Repeat("?,", len(urls))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(urls)+1)
	for _, u := range urls {
		args = append(args, hashURL(u))
	}
	args = append(args, time.Now().Format(time.RFC3339))

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT url, title, content, author, publish_time, word_count,
		       images, metadata, scraped_at, expires_at
		FROM scraped_content
		WHERE url_hash IN (%s)
		AND (expires_at IS NULL OR expires_at > ?)`, placeholders), args...)
	if err != nil {
		logger.Error("content store batch read failed", err, "count", len(urls))
		return results
	}
	defer rows.Close()

	for rows.Next() {
		body, err := scanBody(rows)
		if err != nil {
			logger.Error("content store row decode failed", err)
			continue
		}
		results[body.URL] = body
	}
	return results
}

// FilterUnseen returns the subset of urls without a fresh cached body,
// preserving input order. Callers use this to skip cached work before
// batch scraping.
func (s *ContentStore) FilterUnseen(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	existing := s.GetMany(urls)
	unseen := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := existing[u]; !ok {
			unseen = append(unseen, u)
		}
	}
	return unseen
}

// Sweep deletes expired rows and returns the number removed.
func (s *ContentStore) Sweep() int {
	res, err := s.db.Exec(`
		DELETE FROM scraped_content
		WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		time.Now().Format(time.RFC3339))
	if err != nil {
		logger.Error("content store sweep failed", err)
		return 0
	}
	deleted, _ := res.RowsAffected()
	logger.Info("swept expired content", "deleted", deleted)
	return int(deleted)
}

// Stats returns store statistics.
func (s *ContentStore) Stats() core.StoreStats {
	stats := core.StoreStats{RetentionDays: s.retentionDays}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scraped_content`).Scan(&stats.TotalRecords); err != nil {
		logger.Error("content store stats failed", err)
		return stats
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.db.QueryRow(`
		SELECT COUNT(*) FROM scraped_content WHERE scraped_at >= ?`,
		today.Format(time.RFC3339)).Scan(&stats.TodayAdded); err != nil {
		logger.Error("content store stats failed", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.DBSizeBytes = info.Size()
	}
	return stats
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBody(row scanner) (*core.FetchedBody, error) {
	var (
		body        core.FetchedBody
		publishTime sql.NullString
		imagesJSON  sql.NullString
		metaJSON    sql.NullString
		scrapedAt   string
		expiresAt   sql.NullString
	)

	err := row.Scan(
		&body.URL,
		&body.Title,
		&body.Content,
		&body.Author,
		&publishTime,
		&body.WordCount,
		&imagesJSON,
		&metaJSON,
		&scrapedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	if publishTime.Valid && publishTime.String != "" {
		if t, err := time.Parse(time.RFC3339, publishTime.String); err == nil {
			body.PublishTime = &t
		}
	}
	if imagesJSON.Valid && imagesJSON.String != "" {
		_ = json.Unmarshal([]byte(imagesJSON.String), &body.Images)
	}
	body.Metadata = map[string]string{}
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &body.Metadata)
	}
	if t, err := time.Parse(time.RFC3339, scrapedAt); err == nil {
		body.FetchedAt = t
	}
	if expiresAt.Valid && expiresAt.String != "" {
		if t, err := time.Parse(time.RFC3339, expiresAt.String); err == nil {
			body.ExpiresAt = t
		}
	}
	return &body, nil
}
