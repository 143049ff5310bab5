package store

import (
	"path/filepath"
	"testing"
	"time"

	"trendwire/internal/core"
)

func newTestStore(t *testing.T, retentionDays int) *ContentStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "content.db"), retentionDays)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t, 7)

	body := core.NewFetchedBody("https://example.com/a", "Title A", "body text here")
	body.Author = "reporter"
	body.Images = []string{"https://example.com/img.png"}
	body.Metadata["fetcher"] = "plain"

	if err := s.Put(body, core.KindPlain); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got := s.Get("https://example.com/a")
	if got == nil {
		t.Fatal("Get() returned nil for freshly stored URL")
	}
	if got.Title != "Title A" {
		t.Errorf("Title = %q, want %q", got.Title, "Title A")
	}
	if got.Content != "body text here" {
		t.Errorf("Content = %q, want %q", got.Content, "body text here")
	}
	if got.Author != "reporter" {
		t.Errorf("Author = %q, want %q", got.Author, "reporter")
	}
	if got.WordCount != body.WordCount {
		t.Errorf("WordCount = %d, want %d", got.WordCount, body.WordCount)
	}
	if len(got.Images) != 1 || got.Images[0] != "https://example.com/img.png" {
		t.Errorf("Images = %v", got.Images)
	}
	if got.Metadata["fetcher"] != "plain" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
	if got.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not set")
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t, 7)
	if got := s.Get("https://example.com/never"); got != nil {
		t.Errorf("Get() = %v, want nil", got)
	}
	if s.Exists("https://example.com/never") {
		t.Error("Exists() = true for missing URL")
	}
}

func TestPutReplacesExisting(t *testing.T) {
	s := newTestStore(t, 7)

	first := core.NewFetchedBody("https://example.com/a", "Old", "old content")
	if err := s.Put(first, core.KindPlain); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	second := core.NewFetchedBody("https://example.com/a", "New", "new content, longer")
	if err := s.Put(second, core.KindReader); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got := s.Get("https://example.com/a")
	if got == nil {
		t.Fatal("Get() returned nil")
	}
	if got.Title != "New" {
		t.Errorf("Title = %q, want replacement", got.Title)
	}

	stats := s.Stats()
	if stats.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1 after upsert", stats.TotalRecords)
	}
}

func TestWordCountFixedAtConstruction(t *testing.T) {
	s := newTestStore(t, 7)

	body := core.NewFetchedBody("https://example.com/cjk", "t", "中文内容 test")
	want := body.WordCount
	if err := s.Put(body, core.KindPlain); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got := s.Get("https://example.com/cjk")
	if got == nil {
		t.Fatal("Get() returned nil")
	}
	if got.WordCount != want {
		t.Errorf("WordCount = %d, want %d", got.WordCount, want)
	}
}

func TestGetManyOmitsMissing(t *testing.T) {
	s := newTestStore(t, 7)

	for _, u := range []string{"https://a.com/1", "https://a.com/2"} {
		if err := s.Put(core.NewFetchedBody(u, "t", "c"), core.KindPlain); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	got := s.GetMany([]string{"https://a.com/1", "https://a.com/2", "https://a.com/3"})
	if len(got) != 2 {
		t.Fatalf("GetMany() returned %d entries, want 2", len(got))
	}
	if _, ok := got["https://a.com/3"]; ok {
		t.Error("GetMany() included a URL that was never stored")
	}
}

func TestFilterUnseenPreservesOrder(t *testing.T) {
	s := newTestStore(t, 7)

	if err := s.Put(core.NewFetchedBody("https://a.com/2", "t", "c"), core.KindPlain); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	unseen := s.FilterUnseen([]string{"https://a.com/1", "https://a.com/2", "https://a.com/3"})
	if len(unseen) != 2 {
		t.Fatalf("FilterUnseen() returned %d, want 2", len(unseen))
	}
	if unseen[0] != "https://a.com/1" || unseen[1] != "https://a.com/3" {
		t.Errorf("FilterUnseen() order = %v", unseen)
	}
}

func TestExpiredRowsInvisibleAndSwept(t *testing.T) {
	s := newTestStore(t, 7)

	body := core.NewFetchedBody("https://example.com/old", "t", "c")
	if err := s.Put(body, core.KindPlain); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Backdate expiry behind the visibility horizon.
	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	if _, err := s.db.Exec(`UPDATE scraped_content SET expires_at = ?`, past); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	if s.Get("https://example.com/old") != nil {
		t.Error("Get() returned an expired row")
	}
	if s.Exists("https://example.com/old") {
		t.Error("Exists() = true for expired row")
	}
	unseen := s.FilterUnseen([]string{"https://example.com/old"})
	if len(unseen) != 1 {
		t.Errorf("FilterUnseen() should treat expired rows as unseen, got %v", unseen)
	}

	if deleted := s.Sweep(); deleted != 1 {
		t.Errorf("Sweep() = %d, want 1", deleted)
	}
	if s.Stats().TotalRecords != 0 {
		t.Error("expired row still present after Sweep")
	}
}

func TestSweepRemovesRowExpiringRightNow(t *testing.T) {
	s := newTestStore(t, 7)

	if err := s.Put(core.NewFetchedBody("https://example.com/edge", "t", "c"), core.KindPlain); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A row whose expiry equals the sweep instant is already invisible to
	// readers and must be swept too.
	now := time.Now().Format(time.RFC3339)
	if _, err := s.db.Exec(`UPDATE scraped_content SET expires_at = ?`, now); err != nil {
		t.Fatalf("set expiry: %v", err)
	}

	if deleted := s.Sweep(); deleted != 1 {
		t.Errorf("Sweep() = %d, want 1 for expires_at == now", deleted)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t, 3)

	if err := s.Put(core.NewFetchedBody("https://a.com/1", "t", "c"), core.KindPlain); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	stats := s.Stats()
	if stats.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", stats.TotalRecords)
	}
	if stats.TodayAdded != 1 {
		t.Errorf("TodayAdded = %d, want 1", stats.TodayAdded)
	}
	if stats.RetentionDays != 3 {
		t.Errorf("RetentionDays = %d, want 3", stats.RetentionDays)
	}
	if stats.DBSizeBytes == 0 {
		t.Error("DBSizeBytes = 0")
	}
}
