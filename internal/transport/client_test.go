package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSend_PostsJSONAndReturnsBody(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Options{})
	raw, err := client.Send(context.Background(), server.URL, "/confirm", map[string]string{"id": "T1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/confirm" {
		t.Fatalf("got %s %s", gotMethod, gotPath)
	}
	if gotContentType != "application/json" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if string(gotBody) != `{"id":"T1"}` {
		t.Fatalf("body = %s", gotBody)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("response = %s", raw)
	}
}

func TestGet_IssuesGetWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.ContentLength != 0 {
			t.Errorf("unexpected body, length %d", r.ContentLength)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(Options{})
	raw, err := client.Get(context.Background(), server.URL, "/orders/O1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `[]` {
		t.Fatalf("response = %s", raw)
	}
}

func TestDo_DefaultHeadersApplied(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("Authorization", "Basic abc123")
	client := NewClient(Options{Header: header})

	if _, err := client.Get(context.Background(), server.URL, "/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Basic abc123" {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func TestDo_NonSuccessStatusIsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broke"))
	}))
	defer server.Close()

	client := NewClient(Options{})
	_, err := client.Get(context.Background(), server.URL, "/confirm")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadGateway {
		t.Fatalf("code = %d", statusErr.Code)
	}
	if statusErr.Body != "upstream broke" {
		t.Fatalf("body = %q", statusErr.Body)
	}
}

func TestDo_EmptyBaseURIRejected(t *testing.T) {
	client := NewClient(Options{})
	if _, err := client.Send(context.Background(), "", "/confirm", nil); err == nil {
		t.Fatalf("expected error for empty base uri")
	}
}

func TestDo_TrailingSlashJoinedCleanly(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Options{})
	if _, err := client.Get(context.Background(), server.URL+"/", "/lookup"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/lookup" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Options{Retry: RetryPolicy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}})

	raw, err := client.Send(context.Background(), server.URL, "/confirm", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || !body.OK {
		t.Fatalf("response = %s (%v)", raw, err)
	}
}
