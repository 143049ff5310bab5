package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trendwire/internal/config"
)

func TestParseReaderResponse(t *testing.T) {
	raw := "Title: 今日头条\nURL Source: https://example.com/a\nMarkdown Content:\n正文第一段。\n\n正文第二段。"

	title, source, content := parseReaderResponse(raw)
	if title != "今日头条" {
		t.Errorf("title = %q", title)
	}
	if source != "https://example.com/a" {
		t.Errorf("source = %q", source)
	}
	if !strings.HasPrefix(content, "正文第一段。") {
		t.Errorf("content = %q", content)
	}
}

func TestParseReaderResponseWithoutFraming(t *testing.T) {
	title, _, content := parseReaderResponse("plain body with no metadata lines\nsecond line")
	if title != "" {
		t.Errorf("title = %q, want empty", title)
	}
	if content != "plain body with no metadata lines\nsecond line" {
		t.Errorf("content = %q", content)
	}
}

func TestReaderFetchSendsHeaders(t *testing.T) {
	var gotPath, gotAuth, gotFormat, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAuth = r.Header.Get("Authorization")
		gotFormat = r.Header.Get("X-Return-Format")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("Title: t\nMarkdown Content:\nsome body text"))
	}))
	defer srv.Close()

	f := NewReaderFetcher(config.ReaderMethod{
		Enabled:      true,
		Timeout:      5,
		APIURL:       srv.URL + "/",
		APIKey:       "sk-test",
		ReturnFormat: "markdown",
	})

	out := f.Fetch(context.Background(), "https://example.com/article")
	if !out.Success {
		t.Fatalf("Fetch() failed: %s", out.Err)
	}
	if !strings.Contains(gotPath, "https://example.com/article") {
		t.Errorf("target URL not appended to API path, got %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotFormat != "markdown" {
		t.Errorf("X-Return-Format = %q", gotFormat)
	}
	if gotAccept != "text/plain" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if out.Body.Content != "some body text" {
		t.Errorf("Content = %q", out.Body.Content)
	}
	if out.Body.Title != "t" {
		t.Errorf("Title = %q", out.Body.Title)
	}
}

func TestReaderFetchDropsFragment(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	f := NewReaderFetcher(config.ReaderMethod{Enabled: true, Timeout: 5, APIURL: srv.URL})
	out := f.Fetch(context.Background(), "https://example.com/a?x=1#section-2")
	if !out.Success {
		t.Fatalf("Fetch() failed: %s", out.Err)
	}
	if !strings.Contains(gotURL, "https://example.com/a?x=1") {
		t.Errorf("query lost from target, got %q", gotURL)
	}
	if strings.Contains(gotURL, "#") || strings.Contains(gotURL, "section-2") {
		t.Errorf("fragment leaked into the reader path: %q", gotURL)
	}
	if out.Body.URL != "https://example.com/a?x=1#section-2" {
		t.Errorf("Body.URL = %q, want the original URL untouched", out.Body.URL)
	}
}

func TestReaderFetchWithOptionsHeaders(t *testing.T) {
	var hdr http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr = r.Header.Clone()
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	f := NewReaderFetcher(config.ReaderMethod{Enabled: true, Timeout: 5, APIURL: srv.URL})
	out := f.FetchWithOptions(context.Background(), "https://example.com/a", ReaderOptions{
		NoCache:         true,
		TargetSelector:  ".article",
		WaitForSelector: "#content",
		RemoveSelector:  ".ads",
	})
	if !out.Success {
		t.Fatalf("FetchWithOptions() failed: %s", out.Err)
	}
	if hdr.Get("X-No-Cache") != "true" {
		t.Errorf("X-No-Cache = %q", hdr.Get("X-No-Cache"))
	}
	if hdr.Get("X-Target-Selector") != ".article" {
		t.Errorf("X-Target-Selector = %q", hdr.Get("X-Target-Selector"))
	}
	if hdr.Get("X-Wait-For-Selector") != "#content" {
		t.Errorf("X-Wait-For-Selector = %q", hdr.Get("X-Wait-For-Selector"))
	}
	if hdr.Get("X-Remove-Selector") != ".ads" {
		t.Errorf("X-Remove-Selector = %q", hdr.Get("X-Remove-Selector"))
	}
}

func TestReaderFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	f := NewReaderFetcher(config.ReaderMethod{Enabled: true, Timeout: 5, APIURL: srv.URL})
	out := f.Fetch(context.Background(), "https://example.com/a")
	if out.Success {
		t.Fatal("Fetch() succeeded on HTTP 402")
	}
	if !strings.Contains(out.Err, "402") {
		t.Errorf("error lacks status code: %q", out.Err)
	}
	// Only the first 200 chars of the error body are kept.
	if strings.Contains(out.Err, strings.Repeat("x", 201)) {
		t.Errorf("error body excerpt not truncated: %d chars", len(out.Err))
	}
}

func TestReaderFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Title: only framing\n"))
	}))
	defer srv.Close()

	f := NewReaderFetcher(config.ReaderMethod{Enabled: true, Timeout: 5, APIURL: srv.URL})
	if out := f.Fetch(context.Background(), "https://example.com/a"); out.Success {
		t.Error("Fetch() succeeded with empty content")
	}
}
