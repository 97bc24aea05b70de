package adapter_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harukit/echosync/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func newClient(baseURL string) adapter.HistoryClient {
	return adapter.NewElevenLabs(baseURL, "test-key", 5*time.Second, 5*time.Second)
}

func TestFetchPage(t *testing.T) {
	var gotCursor, gotPageSize, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/v1/history")
		gotCursor = r.URL.Query().Get("cursor")
		gotPageSize = r.URL.Query().Get("page_size")
		gotAPIKey = r.Header.Get("xi-api-key")

		fmt.Fprint(w, `{
			"history": [
				{"history_item_id": "h1", "date_unix": 1700000000, "voice_id": "v1", "voice_name": "Rachel", "text": "hello", "settings": {"stability": 0.5}},
				{"history_item_id": "h2", "date_unix": 1700000060, "text": "text only"}
			],
			"next_cursor": "aDJfbmV4dA==",
			"has_more": true
		}`)
	}))
	defer srv.Close()

	page, err := newClient(srv.URL).FetchPage(context.Background(), "", 100)
	gt.NoError(t, err)
	gt.Equal(t, gotCursor, "")
	gt.Equal(t, gotPageSize, "100")
	gt.Equal(t, gotAPIKey, "test-key")

	gt.A(t, page.Items).Length(2)
	gt.Equal(t, string(page.Items[0].ID), "h1")
	gt.Equal(t, page.Items[0].Time.Unix(), int64(1700000000))
	gt.Equal(t, page.Items[0].VoiceID, "v1")
	gt.Equal(t, page.Items[0].ArtifactRef(), "h1")
	// Unknown fields survive in the raw payload
	gt.True(t, strings.Contains(string(page.Items[0].Raw), `"stability"`))

	// No voice: no artifact to fetch
	gt.Equal(t, page.Items[1].ArtifactRef(), "")

	gt.Equal(t, page.NextCursor, "aDJfbmV4dA==")
	gt.True(t, page.HasMore)
}

func TestFetchPageSendsCursor(t *testing.T) {
	var gotCursor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		fmt.Fprint(w, `{"history": [], "has_more": false}`)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).FetchPage(context.Background(), "b3BhcXVl", 50)
	gt.NoError(t, err)
	gt.Equal(t, gotCursor, "b3BhcXVl")
}

func TestFetchPageErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, adapter.IsUnauthorized},
		{"forbidden", http.StatusForbidden, adapter.IsUnauthorized},
		{"rate limited", http.StatusTooManyRequests, adapter.IsRateLimited},
		{"server error", http.StatusInternalServerError, adapter.IsTransient},
		{"bad gateway", http.StatusBadGateway, adapter.IsTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).FetchPage(context.Background(), "", 100)
			gt.Error(t, err)
			gt.True(t, tc.check(err))
		})
	}
}

func TestFetchPageRetryAfterHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).FetchPage(context.Background(), "", 100)
	gt.Error(t, err)
	gt.True(t, adapter.IsRateLimited(err))
	gt.Equal(t, adapter.RetryAfterHint(err), 7*time.Second)
}

func TestFetchPageNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newClient(srv.URL).FetchPage(context.Background(), "", 100)
	gt.Error(t, err)
	gt.True(t, adapter.IsTransient(err))
	gt.Equal(t, adapter.RetryAfterHint(err), time.Duration(0))
}

func TestFetchPageMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `<html>gateway</html>`},
		{"item without id", `{"history": [{"date_unix": 1700000000}], "has_more": false}`},
		{"item without timestamp", `{"history": [{"history_item_id": "h1"}], "has_more": false}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).FetchPage(context.Background(), "", 100)
			gt.Error(t, err)
			gt.True(t, adapter.IsMalformed(err))
		})
	}
}

func TestFetchArtifact(t *testing.T) {
	payload := strings.Repeat("ID3mp3bytes", 512)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/v1/history/h1/audio")
		gt.Equal(t, r.Header.Get("xi-api-key"), "test-key")
		w.Header().Set("Content-Type", "audio/mpeg")
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	r, err := newClient(srv.URL).FetchArtifact(context.Background(), "h1")
	gt.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, string(data), payload)
}

func TestFetchArtifactStreamInterrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declare more bytes than we send, then return: the server
		// drops the connection mid-body and the client read fails.
		w.Header().Set("Content-Length", "4096")
		fmt.Fprint(w, "ID3truncated")
	}))
	defer srv.Close()

	r, err := newClient(srv.URL).FetchArtifact(context.Background(), "h1")
	gt.NoError(t, err)
	defer r.Close()

	_, err = io.ReadAll(r)
	gt.Error(t, err)
	gt.True(t, adapter.IsTransient(err))
}

func TestFetchArtifactError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).FetchArtifact(context.Background(), "h1")
	gt.Error(t, err)
	gt.True(t, adapter.IsTransient(err))
}
