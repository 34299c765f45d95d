package sunset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchSunset(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"name":"Leeds","sys":{"sunrise":1760594400,"sunset":1760633100}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k3y", Lat: 53.8, Lon: -1.55, BaseURL: srv.URL}, discardLogger())
	got, err := c.FetchSunset(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Unix() != 1760633100 {
		t.Errorf("sunset = %d, want 1760633100", got.Unix())
	}
	for _, want := range []string{"appid=k3y", "lat=53.8", "lon=-1.55"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestFetchSunsetNoKey(t *testing.T) {
	c := NewClient(Config{}, discardLogger())
	if _, err := c.FetchSunset(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestFetchSunsetBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":401}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, discardLogger())
	_, err := c.FetchSunset(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestFetchSunsetMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"sys":{}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, discardLogger())
	if _, err := c.FetchSunset(context.Background()); !errors.Is(err, ErrNoSunset) {
		t.Errorf("expected ErrNoSunset, got %v", err)
	}
}

func TestFetchSunsetRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"sys":{"sunset":1760633100}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, RetryMax: 2}, discardLogger())
	c.http.RetryWaitMin = time.Millisecond
	c.http.RetryWaitMax = time.Millisecond

	if _, err := c.FetchSunset(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestFetchSunsetErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "s3cr3t", BaseURL: srv.URL, RetryMax: 1}, discardLogger())
	c.http.RetryWaitMin = time.Millisecond
	c.http.RetryWaitMax = time.Millisecond

	_, err := c.FetchSunset(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "s3cr3t") {
		t.Errorf("error leaks api key: %v", err)
	}
}

func TestFetchSunsetTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, discardLogger())
	start := time.Now()
	if _, err := c.FetchSunset(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("request was not bounded by the timeout")
	}
}

func TestMinuteOfDay(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	ts := time.Date(2026, 10, 16, 16, 5, 0, 0, time.UTC)
	if got := MinuteOfDay(ts, loc); got != 17*60+5 {
		t.Errorf("MinuteOfDay = %d, want %d", got, 17*60+5)
	}
}

func TestFakeFetcher(t *testing.T) {
	when := time.Unix(1760633100, 0)
	f := NewFakeFetcher(when)
	got, err := f.FetchSunset(context.Background())
	if err != nil || !got.Equal(when) {
		t.Errorf("got %v, %v", got, err)
	}
	f.Set(time.Time{}, errors.New("down"))
	if _, err := f.FetchSunset(context.Background()); err == nil {
		t.Error("expected scripted error")
	}
	if f.Calls() != 2 {
		t.Errorf("calls = %d, want 2", f.Calls())
	}
}
