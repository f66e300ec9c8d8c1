package sync

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Engine applies application state to the record store. It holds no cache of
// store contents: every operation re-reads before writing, which is what
// keeps UpsertByURL idempotent under retries. Consistency relies on the
// store's per-record atomicity.
type Engine struct {
	Store   RecordStore
	Matcher CompanyMatcher
	Journal Journal
}

// NewEngine creates an engine with the rule-based company matcher.
func NewEngine(store RecordStore, journal Journal) *Engine {
	return &Engine{Store: store, Matcher: RuleMatcher{}, Journal: journal}
}

// UpsertResult describes the action UpsertByURL took.
type UpsertResult struct {
	Action string `json:"action"`
	PageID string `json:"pageId"`
}

// StatusUpdate is one set-status request against the store.
type StatusUpdate struct {
	Company string `json:"company"`
	Role    string `json:"role"`
	URL     string `json:"url"`
	Status  Status `json:"status"`
	Note    string `json:"note"`
	FanOut  bool   `json:"updateAllCompany"`
}

// StatusResult describes the outcome of SetStatusByCompany. A missing target
// is reported here as Reason "no_match", never as an error.
type StatusResult struct {
	OK           bool   `json:"ok"`
	Reason       string `json:"reason,omitempty"`
	PageID       string `json:"pageId,omitempty"`
	Action       string `json:"action,omitempty"`
	UpdatedCount int    `json:"updatedCount,omitempty"`
}

// UpsertByURL creates or updates the record whose canonical URL matches the
// application's URL. An empty URL never matches an existing record, so two
// URL-less submissions always create two records; documented limitation.
func (e *Engine) UpsertByURL(ctx context.Context, app Application) (*UpsertResult, error) {
	if app.Status == "" {
		app.Status = StatusApplied
	}

	existing, err := e.findByURL(ctx, app.URL)
	if err != nil {
		return nil, fmt.Errorf("find by url: %w", err)
	}

	var res *UpsertResult
	if existing != nil {
		if err := e.Store.UpdatePage(ctx, existing.ID, app); err != nil {
			return nil, fmt.Errorf("update page: %w", err)
		}
		res = &UpsertResult{Action: "updated", PageID: existing.ID}
	} else {
		id, err := e.Store.CreatePage(ctx, app)
		if err != nil {
			return nil, fmt.Errorf("create page: %w", err)
		}
		res = &UpsertResult{Action: "created", PageID: id}
	}

	e.journal(ctx, "application.upsert", map[string]any{
		"company": app.Company,
		"role":    app.Role,
		"url":     app.URL,
		"status":  string(app.Status),
		"action":  res.Action,
		"pageId":  res.PageID,
	})
	return res, nil
}

// SetStatusByCompany updates one record (FanOut false) or every record whose
// company matches (FanOut true). The fan-out path exists for rejections: one
// rejection email usually closes out every open application at that company.
func (e *Engine) SetStatusByCompany(ctx context.Context, upd StatusUpdate) (*StatusResult, error) {
	if upd.FanOut && upd.Company != "" {
		return e.setStatusFanOut(ctx, upd)
	}
	return e.setStatusSingle(ctx, upd)
}

func (e *Engine) setStatusFanOut(ctx context.Context, upd StatusUpdate) (*StatusResult, error) {
	label := upd.Status.Label()
	log.Printf("[sync] fan-out: company=%q status=%q", upd.Company, label)

	var matched []RecordPage
	err := e.Store.ForEachPage(ctx, func(p RecordPage) (bool, error) {
		if e.Matcher.Match(p.Company, upd.Company) {
			matched = append(matched, p)
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}

	updated := 0
	for _, p := range matched {
		// Each status write is attempted independently; one failure must not
		// abort the rest of the fan-out.
		if err := e.Store.SetStatus(ctx, p.ID, label); err != nil {
			log.Printf("[sync] fan-out: set status on %s (%s): %v", p.ID, p.Company, err)
			continue
		}
		updated++
		log.Printf("[sync] fan-out: updated %s (%s)", p.ID, p.Company)

		if upd.Note != "" {
			// Note append is cosmetic; swallow failures.
			if err := e.Store.AppendNote(ctx, p.ID, upd.Note); err != nil {
				log.Printf("[sync] fan-out: append note on %s: %v", p.ID, err)
			}
		}
	}

	e.journal(ctx, "status.fanout", map[string]any{
		"company": upd.Company,
		"status":  string(upd.Status),
		"updated": updated,
	})
	return &StatusResult{OK: true, Action: "company_wide_update", UpdatedCount: updated}, nil
}

func (e *Engine) setStatusSingle(ctx context.Context, upd StatusUpdate) (*StatusResult, error) {
	var page *RecordPage
	if upd.URL != "" {
		p, err := e.findByURL(ctx, upd.URL)
		if err != nil {
			log.Printf("[sync] set status: find by url: %v", err)
		} else {
			page = p
		}
	}
	if page == nil {
		results, err := e.Store.QueryCompanyRole(ctx, upd.Company, upd.Role)
		if err != nil {
			return nil, fmt.Errorf("query company/role: %w", err)
		}
		if len(results) == 0 {
			return &StatusResult{OK: false, Reason: "no_match"}, nil
		}
		page = &results[0]
	}

	if err := e.Store.SetStatus(ctx, page.ID, upd.Status.Label()); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	if upd.Note != "" {
		if err := e.Store.AppendNote(ctx, page.ID, upd.Note); err != nil {
			log.Printf("[sync] set status: append note on %s: %v", page.ID, err)
		}
	}

	e.journal(ctx, "status.set", map[string]any{
		"company": upd.Company,
		"role":    upd.Role,
		"status":  string(upd.Status),
		"pageId":  page.ID,
	})
	return &StatusResult{OK: true, PageID: page.ID}, nil
}

// findByURL scans the whole store for a page whose title link equals url.
// Exact match only; empty url matches nothing.
func (e *Engine) findByURL(ctx context.Context, url string) (*RecordPage, error) {
	target := strings.TrimSpace(url)
	if target == "" {
		return nil, nil
	}

	var found *RecordPage
	err := e.Store.ForEachPage(ctx, func(p RecordPage) (bool, error) {
		if strings.TrimSpace(p.URL) == target {
			page := p
			found = &page
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (e *Engine) journal(ctx context.Context, eventType string, payload any) {
	if e.Journal == nil {
		return
	}
	if err := e.Journal.ApplicationEvent(ctx, eventType, payload); err != nil {
		log.Printf("[sync] journal %s: %v", eventType, err)
	}
}
