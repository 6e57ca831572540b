package newsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newswatch/internal/config"
)

func testConfig(baseURL string) config.SearchConfig {
	return config.SearchConfig{
		BaseURL:  baseURL,
		APIKey:   "test-key",
		Language: "en",
		SortBy:   "publishedAt",
		PageSize: 100,
		DaysBack: 7,
	}
}

func articlePayload(url, title string) map[string]any {
	return map[string]any{
		"source":      map[string]any{"name": "Example Wire"},
		"title":       title,
		"description": "desc",
		"content":     "content",
		"url":         url,
		"publishedAt": "2026-03-10T08:00:00Z",
	}
}

func TestSearchBuildsRequest(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"q":        q.Get("q"),
			"language": q.Get("language"),
			"sortBy":   q.Get("sortBy"),
			"pageSize": q.Get("pageSize"),
			"apiKey":   q.Get("apiKey"),
			"from":     q.Get("from"),
			"to":       q.Get("to"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"articles": []any{articlePayload("https://x/a", "A")},
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	client.now = func() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) }

	articles, err := client.Search(context.Background(), `"predictive policing"`)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Source != "Example Wire" {
		t.Fatalf("unexpected source: %s", articles[0].Source)
	}

	if gotQuery["q"] != `"predictive policing"` {
		t.Fatalf("unexpected q: %s", gotQuery["q"])
	}
	if gotQuery["pageSize"] != "100" || gotQuery["apiKey"] != "test-key" {
		t.Fatalf("unexpected params: %+v", gotQuery)
	}
	if gotQuery["from"] != "2026-03-07" || gotQuery["to"] != "2026-03-14" {
		t.Fatalf("unexpected window: %+v", gotQuery)
	}
}

func TestSearchSurfacesAPIErrorMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"code":    "rateLimited",
			"message": "You have made too many requests recently.",
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	_, err := client.Search(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "You have made too many requests recently."; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not carry api message %q", err, want)
	}
}

func TestFetchAllDeduplicatesAcrossQueries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "first":
			json.NewEncoder(w).Encode(map[string]any{
				"status":   "ok",
				"articles": []any{articlePayload("https://x/shared", "Shared"), articlePayload("https://x/a", "A")},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"status":   "ok",
				"articles": []any{articlePayload("https://x/shared", "Shared"), articlePayload("https://x/b", "B")},
			})
		}
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	articles, err := client.FetchAll(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	if len(articles) != 3 {
		t.Fatalf("expected 3 unique articles, got %d", len(articles))
	}
	seen := map[string]int{}
	for _, a := range articles {
		seen[a.URL]++
	}
	if seen["https://x/shared"] != 1 {
		t.Fatalf("shared url kept %d times", seen["https://x/shared"])
	}
}

func TestFetchAllTreatsFailedQueryAsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"articles": []any{articlePayload("https://x/ok", "OK")},
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	articles, err := client.FetchAll(context.Background(), []string{"broken", "fine"})
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if len(articles) != 1 || articles[0].URL != "https://x/ok" {
		t.Fatalf("unexpected articles: %+v", articles)
	}
}
