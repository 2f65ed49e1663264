package storage

import (
	"encoding/json"
	"fmt"
)

// --- Webhook registrations ---

// CreateWebhook inserts a new webhook configuration.
func (d *DB) CreateWebhook(w *Webhook) error {
	events, err := json.Marshal(w.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO webhooks (id, url, events, secret, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.URL, string(events), w.Secret, boolToInt(w.Enabled), w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

// ListWebhooks returns all webhook configurations.
func (d *DB) ListWebhooks() ([]Webhook, error) {
	rows, err := d.db.Query(
		`SELECT id, url, events, secret, enabled, created_at FROM webhooks`,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []Webhook
	for rows.Next() {
		var (
			w       Webhook
			events  string
			enabled int
		)
		if err := rows.Scan(&w.ID, &w.URL, &events, &w.Secret, &enabled, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		if err := json.Unmarshal([]byte(events), &w.Events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		w.Enabled = enabled == 1
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
