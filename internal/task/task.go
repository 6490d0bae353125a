// Package task defines the queue task schema and validates payloads at the
// ingestion boundary.
package task

import (
	"encoding/json"
	"fmt"

	"github.com/pressfeed/ingestor/internal/urlnorm"
)

// Priority names the three scheduling tiers.
type Priority string

// Priority tiers, highest first.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Task is one unit of work produced by the enrichment service. The producer
// assigns IDs, normalizes the URL and computes the dedup hash; optional
// enrichment fields are passed through verbatim into the article record.
type Task struct {
	ArticleID string   `json:"article_id"`
	LegacyID  string   `json:"id,omitempty"`
	URL       string   `json:"url"`
	Source    string   `json:"source"`
	Category  string   `json:"category"`
	Priority  Priority `json:"priority"`

	URLOriginal string `json:"url_original,omitempty"`
	URLHash     string `json:"url_hash,omitempty"`
	Domain      string `json:"domain,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Enriched    bool   `json:"enriched,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// Parse decodes and validates a task payload. Producers historically emitted
// the identifier under either "article_id" or "id"; both are accepted and
// folded into ArticleID. A missing url_hash is computed from the URL so the
// cache-aside layer always has a fingerprint to work with.
func Parse(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if t.ArticleID == "" {
		t.ArticleID = t.LegacyID
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.URLHash == "" {
		t.URLHash = urlnorm.Fingerprint(t.URL)
	}
	return &t, nil
}

// Validate checks the required fields and the priority tier.
func (t *Task) Validate() error {
	if t.ArticleID == "" {
		return fmt.Errorf("task missing article_id")
	}
	if t.URL == "" {
		return fmt.Errorf("task %s: missing url", t.ArticleID)
	}
	if t.Source == "" {
		return fmt.Errorf("task %s: missing source", t.ArticleID)
	}
	if t.Category == "" {
		return fmt.Errorf("task %s: missing category", t.ArticleID)
	}
	switch t.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return nil
	default:
		return fmt.Errorf("task %s: invalid priority %q", t.ArticleID, t.Priority)
	}
}

// Encode serializes the task for the broker.
func (t *Task) Encode() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task %s: %w", t.ArticleID, err)
	}
	return data, nil
}
