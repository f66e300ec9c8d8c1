// Package notion is a minimal client for the Notion API, covering only the
// database and page operations the sync engine needs.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jobsync-dev/jobsync/internal/sync"
)

const (
	apiVersion = "2022-06-28"

	propName   = "Name"
	propRole   = "Role"
	propDate   = "Date Applied"
	propStatus = "Status"

	// Single paragraph blocks are capped by the store; longer description and
	// note text is truncated to fit one block.
	maxBlockTextLen = 1800

	pageSize = 100
)

// Client talks to one Notion database. It implements sync.RecordStore.
type Client struct {
	baseURL    string
	token      string
	databaseID string
	client     *http.Client
}

// New creates a client for the given integration token and database.
func New(token, databaseID string) *Client {
	return &Client{
		baseURL:    "https://api.notion.com",
		token:      token,
		databaseID: databaseID,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWithBaseURL is used by tests to point the client at a local server.
func NewWithBaseURL(baseURL, token, databaseID string) *Client {
	c := New(token, databaseID)
	c.baseURL = baseURL
	return c
}

type queryResponse struct {
	Results    []pageObject `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type pageObject struct {
	ID         string                  `json:"id"`
	Properties map[string]propertyData `json:"properties"`
}

type propertyData struct {
	Title    []richText  `json:"title"`
	RichText []richText  `json:"rich_text"`
	Select   *selectData `json:"select"`
	Date     *dateData   `json:"date"`
}

type richText struct {
	PlainText string    `json:"plain_text"`
	Text      *textData `json:"text"`
}

type textData struct {
	Content string    `json:"content"`
	Link    *linkData `json:"link"`
}

type linkData struct {
	URL string `json:"url"`
}

type selectData struct {
	Name string `json:"name"`
}

type dateData struct {
	Start string `json:"start"`
}

// ForEachPage iterates every page of the database in store order, following
// pagination cursors. fn returning false stops the scan early.
func (c *Client) ForEachPage(ctx context.Context, fn func(sync.RecordPage) (bool, error)) error {
	cursor := ""
	for {
		body := map[string]any{"page_size": pageSize}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", body, &resp); err != nil {
			return fmt.Errorf("query database: %w", err)
		}

		for _, page := range resp.Results {
			cont, err := fn(toRecordPage(page))
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}

		if !resp.HasMore {
			return nil
		}
		cursor = resp.NextCursor
	}
}

// QueryCompanyRole returns pages whose title contains company and whose role
// text contains role.
func (c *Client) QueryCompanyRole(ctx context.Context, company, role string) ([]sync.RecordPage, error) {
	body := map[string]any{
		"filter": map[string]any{
			"and": []any{
				map[string]any{"property": propName, "title": map[string]any{"contains": company}},
				map[string]any{"property": propRole, "rich_text": map[string]any{"contains": role}},
			},
		},
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", body, &resp); err != nil {
		return nil, fmt.Errorf("query by company/role: %w", err)
	}
	return toRecordPages(resp.Results), nil
}

// QueryAppliedSince returns pages whose applied date is on or after since.
func (c *Client) QueryAppliedSince(ctx context.Context, since time.Time) ([]sync.RecordPage, error) {
	body := map[string]any{
		"filter": map[string]any{
			"and": []any{
				map[string]any{"property": propDate, "date": map[string]any{"on_or_after": since.Format(time.RFC3339)}},
			},
		},
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", body, &resp); err != nil {
		return nil, fmt.Errorf("query by date: %w", err)
	}
	return toRecordPages(resp.Results), nil
}

// CreatePage creates a record page. A non-empty description is stored once,
// as a single truncated paragraph block under the page.
func (c *Client) CreatePage(ctx context.Context, app sync.Application) (string, error) {
	body := map[string]any{
		"parent":     map[string]any{"database_id": c.databaseID},
		"properties": buildProperties(app),
	}
	if app.Description != "" {
		body["children"] = []any{paragraphBlock(app.Description)}
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, &resp); err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	return resp.ID, nil
}

// UpdatePage overwrites the record page's properties in place. Creation
// metadata is untouched.
func (c *Client) UpdatePage(ctx context.Context, id string, app sync.Application) error {
	body := map[string]any{"properties": buildProperties(app)}
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+id, body, nil); err != nil {
		return fmt.Errorf("update page %s: %w", id, err)
	}
	return nil
}

// SetStatus updates only the status select of a page.
func (c *Client) SetStatus(ctx context.Context, id, statusLabel string) error {
	body := map[string]any{
		"properties": map[string]any{
			propStatus: map[string]any{"select": map[string]any{"name": statusLabel}},
		},
	}
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+id, body, nil); err != nil {
		return fmt.Errorf("set status on %s: %w", id, err)
	}
	return nil
}

// AppendNote appends one paragraph block to the page body.
func (c *Client) AppendNote(ctx context.Context, id, text string) error {
	body := map[string]any{"children": []any{paragraphBlock(text)}}
	if err := c.do(ctx, http.MethodPatch, "/v1/blocks/"+id+"/children", body, nil); err != nil {
		return fmt.Errorf("append note to %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func buildProperties(app sync.Application) map[string]any {
	company := app.Company
	if company == "" {
		company = "Unknown"
	}
	submitted := app.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}

	title := map[string]any{
		"type": "text",
		"text": map[string]any{"content": company},
	}
	if app.URL != "" {
		title["text"].(map[string]any)["link"] = map[string]any{"url": app.URL}
	}

	return map[string]any{
		propName: map[string]any{"title": []any{title}},
		propRole: map[string]any{
			"rich_text": []any{map[string]any{"type": "text", "text": map[string]any{"content": app.Role}}},
		},
		propDate:   map[string]any{"date": map[string]any{"start": submitted.Format(time.RFC3339)}},
		propStatus: map[string]any{"select": map[string]any{"name": app.Status.Label()}},
	}
}

func paragraphBlock(text string) map[string]any {
	return map[string]any{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]any{
			"rich_text": []any{
				map[string]any{"type": "text", "text": map[string]any{"content": truncate(text, maxBlockTextLen)}},
			},
		},
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func toRecordPages(pages []pageObject) []sync.RecordPage {
	out := make([]sync.RecordPage, 0, len(pages))
	for _, p := range pages {
		out = append(out, toRecordPage(p))
	}
	return out
}

func toRecordPage(p pageObject) sync.RecordPage {
	rec := sync.RecordPage{ID: p.ID}

	if prop, ok := p.Properties[propName]; ok {
		for _, t := range prop.Title {
			rec.Company += textContent(t)
			if rec.URL == "" && t.Text != nil && t.Text.Link != nil {
				rec.URL = t.Text.Link.URL
			}
		}
	}
	if prop, ok := p.Properties[propRole]; ok {
		for _, t := range prop.RichText {
			rec.Role += textContent(t)
		}
	}
	if prop, ok := p.Properties[propStatus]; ok && prop.Select != nil {
		rec.StatusLabel = prop.Select.Name
	}
	if prop, ok := p.Properties[propDate]; ok && prop.Date != nil {
		rec.DateApplied = parseDate(prop.Date.Start)
	}
	return rec
}

func textContent(t richText) string {
	if t.Text != nil {
		return t.Text.Content
	}
	return t.PlainText
}

func parseDate(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
