package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jobsync-dev/jobsync/internal/sync"
)

func pageJSON(id, company, url, role, status, date string) map[string]any {
	title := map[string]any{
		"plain_text": company,
		"text":       map[string]any{"content": company},
	}
	if url != "" {
		title["text"].(map[string]any)["link"] = map[string]any{"url": url}
	}
	return map[string]any{
		"id": id,
		"properties": map[string]any{
			"Name": map[string]any{"title": []any{title}},
			"Role": map[string]any{
				"rich_text": []any{map[string]any{"plain_text": role, "text": map[string]any{"content": role}}},
			},
			"Status":       map[string]any{"select": map[string]any{"name": status}},
			"Date Applied": map[string]any{"date": map[string]any{"start": date}},
		},
	}
}

func TestForEachPageFollowsPagination(t *testing.T) {
	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/databases/db-1/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Notion-Version"); got != apiVersion {
			t.Errorf("Notion-Version = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		cursor, _ := body["start_cursor"].(string)
		cursors = append(cursors, cursor)

		resp := map[string]any{"has_more": false, "results": []any{
			pageJSON("p2", "Beta", "", "PM", "Rejected", "2024-02-01"),
		}}
		if cursor == "" {
			resp = map[string]any{"has_more": true, "next_cursor": "c1", "results": []any{
				pageJSON("p1", "Acme", "https://acme.example/job/1", "SWE", "Applied", "2024-01-15T00:00:00Z"),
			}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewWithBaseURL(srv.URL, "secret", "db-1")

	var pages []sync.RecordPage
	err := client.ForEachPage(context.Background(), func(p sync.RecordPage) (bool, error) {
		pages = append(pages, p)
		return true, nil
	})
	if err != nil {
		t.Fatalf("for each page: %v", err)
	}

	if len(cursors) != 2 || cursors[0] != "" || cursors[1] != "c1" {
		t.Fatalf("cursors = %v", cursors)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}

	first := pages[0]
	if first.ID != "p1" || first.Company != "Acme" || first.Role != "SWE" {
		t.Fatalf("first page = %+v", first)
	}
	if first.URL != "https://acme.example/job/1" {
		t.Fatalf("title link not mapped to URL: %+v", first)
	}
	if first.StatusLabel != "Applied" {
		t.Fatalf("status = %q", first.StatusLabel)
	}
	if !first.DateApplied.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", first.DateApplied)
	}

	// Date-only strings must parse too.
	if !pages[1].DateApplied.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date-only parse = %v", pages[1].DateApplied)
	}
}

func TestForEachPageStopsEarly(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"has_more":    true,
			"next_cursor": "c1",
			"results": []any{
				pageJSON("p1", "Acme", "", "SWE", "Applied", "2024-01-15"),
				pageJSON("p2", "Beta", "", "PM", "Applied", "2024-01-16"),
			},
		})
	}))
	defer srv.Close()

	client := NewWithBaseURL(srv.URL, "secret", "db-1")

	seen := 0
	err := client.ForEachPage(context.Background(), func(sync.RecordPage) (bool, error) {
		seen++
		return false, nil
	})
	if err != nil {
		t.Fatalf("for each page: %v", err)
	}
	if seen != 1 || calls != 1 {
		t.Fatalf("seen=%d calls=%d, want early stop after first page", seen, calls)
	}
}

func TestCreatePageTruncatesDescription(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/pages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "new-page"})
	}))
	defer srv.Close()

	client := NewWithBaseURL(srv.URL, "secret", "db-1")

	id, err := client.CreatePage(context.Background(), sync.Application{
		Company:     "Acme",
		Role:        "SWE",
		URL:         "https://acme.example/job/1",
		SubmittedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:      sync.StatusApplied,
		Description: strings.Repeat("x", maxBlockTextLen+500),
	})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if id != "new-page" {
		t.Fatalf("id = %q", id)
	}

	children := got["children"].([]any)
	if len(children) != 1 {
		t.Fatalf("children = %v", children)
	}
	para := children[0].(map[string]any)["paragraph"].(map[string]any)
	text := para["rich_text"].([]any)[0].(map[string]any)["text"].(map[string]any)["content"].(string)
	if n := len([]rune(text)); n != maxBlockTextLen {
		t.Fatalf("description length = %d, want %d", n, maxBlockTextLen)
	}
	if !strings.HasSuffix(text, "…") {
		t.Fatal("truncated text must end with ellipsis")
	}

	props := got["properties"].(map[string]any)
	title := props["Name"].(map[string]any)["title"].([]any)[0].(map[string]any)
	link := title["text"].(map[string]any)["link"].(map[string]any)["url"].(string)
	if link != "https://acme.example/job/1" {
		t.Fatalf("title link = %q", link)
	}
	status := props["Status"].(map[string]any)["select"].(map[string]any)["name"].(string)
	if status != "Applied" {
		t.Fatalf("status = %q", status)
	}
}

func TestSetStatusAndAppendNoteRequestShapes(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]any
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.Path, body})
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	client := NewWithBaseURL(srv.URL, "secret", "db-1")

	if err := client.SetStatus(context.Background(), "p1", "Rejected"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := client.AppendNote(context.Background(), "p1", "note text"); err != nil {
		t.Fatalf("append note: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("calls = %d", len(calls))
	}
	if calls[0].method != http.MethodPatch || calls[0].path != "/v1/pages/p1" {
		t.Fatalf("set status call = %s %s", calls[0].method, calls[0].path)
	}
	sel := calls[0].body["properties"].(map[string]any)["Status"].(map[string]any)["select"].(map[string]any)
	if sel["name"] != "Rejected" {
		t.Fatalf("status select = %v", sel)
	}
	if calls[1].method != http.MethodPatch || calls[1].path != "/v1/blocks/p1/children" {
		t.Fatalf("append note call = %s %s", calls[1].method, calls[1].path)
	}
}

func TestBadStatusSurfacesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer srv.Close()

	client := NewWithBaseURL(srv.URL, "secret", "db-1")
	err := client.SetStatus(context.Background(), "p1", "Rejected")
	if err == nil || !strings.Contains(err.Error(), "bad status 429") {
		t.Fatalf("err = %v", err)
	}
}
