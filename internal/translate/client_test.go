package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const samplePayload = `{
	"responseData": {"translatedText": "dog"},
	"responseStatus": 200,
	"matches": [
		{"translation": "dog"},
		{"translation": "hound"},
		{"translation": ""}
	]
}`

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "cane" {
			t.Errorf("query word = %q, want %q", got, "cane")
		}
		if got := r.URL.Query().Get("langpair"); got != "it|en" {
			t.Errorf("langpair = %q, want %q", got, "it|en")
		}
		w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	client := NewClient(server.URL, "it|en", time.Second, time.Minute)
	got, err := client.Lookup(context.Background(), "cane")
	if err != nil {
		t.Fatalf("Lookup() returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"dog", "hound"}, got); diff != "" {
		t.Errorf("translations did not match expected; diff:\n%s", diff)
	}
}

func TestLookupUsesCache(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	client := NewClient(server.URL, "it|en", time.Second, time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := client.Lookup(context.Background(), "cane"); err != nil {
			t.Fatalf("Lookup() returned error: %v", err)
		}
	}

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("service received %d requests, want 1", got)
	}
}

func TestLookupFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "service error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "no translations",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"responseData": {"translatedText": ""}, "responseStatus": 200, "matches": []}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, "it|en", time.Second, time.Minute)
			if _, err := client.Lookup(context.Background(), "cane"); err == nil {
				t.Error("expected Lookup() to return an error")
			}
		})
	}
}
