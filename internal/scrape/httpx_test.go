package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewHTTPClient("test", 5*time.Second)
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !out.OK {
		t.Fatalf("payload not decoded")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient("test", 5*time.Second)
	var out any
	err := c.GetJSON(context.Background(), srv.URL, &out)
	if err == nil {
		t.Fatalf("expected error")
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("got %T, want FetchError", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (4xx is not retryable)", calls)
	}
}

func TestGetJSONDecodeFailureIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>unexpected</html>`)
	}))
	defer srv.Close()

	c := NewHTTPClient("test", 5*time.Second)
	var out map[string]any
	var fetchErr *FetchError
	if err := c.GetJSON(context.Background(), srv.URL, &out); !errors.As(err, &fetchErr) {
		t.Fatalf("got %v, want FetchError", err)
	}
}

func TestGetTextSetsUserAgentAndHeaders(t *testing.T) {
	var gotUA, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, "body")
	}))
	defer srv.Close()

	c := NewHTTPClient("test", 5*time.Second)
	c.Headers = map[string]string{"Authorization": "Key abc"}
	body, err := c.GetText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if body != "body" {
		t.Fatalf("body = %q", body)
	}
	if gotUA == "" {
		t.Fatalf("no User-Agent sent")
	}
	if gotAuth != "Key abc" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestPauseHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Pause(ctx, time.Minute); err == nil {
		t.Fatalf("expected context error")
	}
	if err := Pause(ctx, -1); err != nil {
		t.Fatalf("non-positive pause should be a no-op, got %v", err)
	}
}
