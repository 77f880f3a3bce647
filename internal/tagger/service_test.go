package tagger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/gencache"
	"github.com/starford/ansuz/internal/provider"
	"github.com/starford/ansuz/internal/testutil"
)

// chatStub serves an OpenAI-style chat completion with the given content.
func chatStub(t *testing.T, calls *atomic.Int64, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":` +
			jsonString(content) + `}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonString(s string) string {
	out := `"`
	for _, r := range s {
		switch r {
		case '"':
			out += `\"`
		case '\n':
			out += `\n`
		case '\\':
			out += `\\`
		default:
			out += string(r)
		}
	}
	return out + `"`
}

func testCache(t *testing.T) *gencache.Cache {
	t.Helper()
	return testutil.TestCache(t)
}

func newService(t *testing.T, endpoint string, cache *gencache.Cache) *Service {
	t.Helper()
	s, err := New(Options{
		Provider: provider.Config{Kind: provider.OpenAI, APIKey: "test", Endpoint: endpoint},
		Cache:    cache,
		CacheTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestFetchTags_ParsesModelOutput(t *testing.T) {
	srv := chatStub(t, nil, `["Kubernetes", "DevOps", "kubernetes"]`)
	s := newService(t, srv.URL, nil)

	tags, err := s.FetchTags(context.Background(), "A tutorial on container orchestration with Kubernetes")
	if err != nil {
		t.Fatalf("FetchTags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "kubernetes" || tags[1] != "devops" {
		t.Errorf("tags = %v", tags)
	}
}

func TestFetchTags_EmptyInputRejectedBeforeNetwork(t *testing.T) {
	var calls atomic.Int64
	srv := chatStub(t, &calls, `["x"]`)
	s := newService(t, srv.URL, nil)

	_, err := s.FetchTags(context.Background(), "   \n\t ")
	if !errors.Is(err, apperr.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	if calls.Load() != 0 {
		t.Errorf("network called %d times for empty input", calls.Load())
	}
}

func TestFetchTags_CacheHitSkipsNetwork(t *testing.T) {
	var calls atomic.Int64
	srv := chatStub(t, &calls, `["go", "testing"]`)
	s := newService(t, srv.URL, testCache(t))

	text := "a note about go testing"
	first, err := s.FetchTags(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.FetchTags(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("network calls = %d, want 1", calls.Load())
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Errorf("cache returned different result: %v vs %v", first, second)
	}
}

func TestFetchTags_CacheKeyedByRequestKind(t *testing.T) {
	var calls atomic.Int64
	srv := chatStub(t, &calls, `{"tags": ["go"], "title": "T"}`)
	s := newService(t, srv.URL, testCache(t))

	text := "same text"
	if _, err := s.FetchTags(context.Background(), text); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FetchProperties(context.Background(), text); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2 (kinds must not share keys)", calls.Load())
	}
}

func TestFetchTags_ProviderChangeInvalidates(t *testing.T) {
	var calls atomic.Int64
	srv := chatStub(t, &calls, `["go"]`)
	cache := testCache(t)

	s := newService(t, srv.URL, cache)
	if err := cache.EnsureProvider(s.ProviderFingerprint()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FetchTags(context.Background(), "text"); err != nil {
		t.Fatal(err)
	}

	// New service with a different model simulates a config change.
	s2, err := New(Options{
		Provider: provider.Config{Kind: provider.OpenAI, APIKey: "test", Endpoint: srv.URL, Model: "other-model"},
		Cache:    cache,
		CacheTTL: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.EnsureProvider(s2.ProviderFingerprint()); err != nil {
		t.Fatal(err)
	}
	if _, err := s2.FetchTags(context.Background(), "text"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2 (old config result leaked)", calls.Load())
	}
}

func TestFetchTags_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	s := newService(t, srv.URL, nil)

	_, err := s.FetchTags(context.Background(), "text")
	if !apperr.IsKind(err, apperr.AuthFailure) {
		t.Errorf("err = %v, want AuthFailure", err)
	}
}

func TestFetchTags_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	s, err := New(Options{
		Provider: provider.Config{Kind: provider.OpenAI, APIKey: "test", Endpoint: srv.URL},
		Timeout:  50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.FetchTags(context.Background(), "text")
	if !apperr.IsKind(err, apperr.Timeout) {
		t.Errorf("err = %v, want Timeout", err)
	}
}

func TestFetchTags_TimeoutMidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		// Headers and a body fragment arrive before the deadline; the
		// rest never does.
		_, _ = w.Write([]byte(`{"choices":[{"message":`))
		w.(http.Flusher).Flush()
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	s, err := New(Options{
		Provider: provider.Config{Kind: provider.OpenAI, APIKey: "test", Endpoint: srv.URL},
		Timeout:  50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.FetchTags(context.Background(), "text")
	if !apperr.IsKind(err, apperr.Timeout) {
		t.Errorf("err = %v, want Timeout", err)
	}
}

func TestFetchProperties_Unparsable(t *testing.T) {
	srv := chatStub(t, nil, "??? !!!")
	s := newService(t, srv.URL, nil)

	_, err := s.FetchProperties(context.Background(), "text")
	if !errors.Is(err, apperr.ErrUnparsable) {
		t.Errorf("err = %v, want ErrUnparsable", err)
	}
}

func TestFetchProperties_OmittedFieldsStayAbsent(t *testing.T) {
	srv := chatStub(t, nil, `{"tags": ["go"], "title": "A Title"}`)
	s := newService(t, srv.URL, nil)

	p, err := s.FetchProperties(context.Background(), "text")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "A Title" || len(p.Tags) != 1 {
		t.Errorf("p = %+v", p)
	}
	if p.Author != "" || p.Summary != "" || len(p.Aliases) != 0 {
		t.Errorf("omitted fields defaulted: %+v", p)
	}
}

func TestTestConnection(t *testing.T) {
	srv := chatStub(t, nil, "pong")
	s := newService(t, srv.URL, nil)

	res := s.TestConnection(context.Background())
	if !res.Success {
		t.Errorf("check failed: %s", res.Message)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(bad.Close)
	s2 := newService(t, bad.URL, nil)
	res = s2.TestConnection(context.Background())
	if res.Success {
		t.Error("expected failure against 401 endpoint")
	}
	if res.Message == "" {
		t.Error("failure must carry a user-readable message")
	}
}
