package sync

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Reporter sends the periodic applications summary.
type Reporter struct {
	Store    RecordStore
	Notifier Notifier
}

// SendWeekly counts applications dated within the last seven days, bucketed
// by status label, and sends one formatted summary.
func (r *Reporter) SendWeekly(ctx context.Context) error {
	since := time.Now().AddDate(0, 0, -7)
	rows, err := r.Store.QueryAppliedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("query applied since %s: %w", since.Format("2006-01-02"), err)
	}

	buckets := make(map[string]int)
	for _, row := range rows {
		label := row.StatusLabel
		if _, ok := StatusFromLabel(label); !ok {
			label = "Other"
		}
		buckets[label]++
	}

	var parts []string
	for _, label := range StatusLabels() {
		if label == StatusApplied.Label() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: **%d**", label, buckets[label]))
	}
	if buckets["Other"] > 0 {
		parts = append(parts, fmt.Sprintf("Other: **%d**", buckets["Other"]))
	}

	lines := []string{
		"📊 **Weekly Applications (last 7 days)**",
		fmt.Sprintf("Total: **%d**", len(rows)),
		fmt.Sprintf("Applied: **%d**", buckets[StatusApplied.Label()]),
		strings.Join(parts, ", "),
	}
	r.Notifier.Notify(ctx, strings.Join(lines, "\n"))
	return nil
}
