package storage

import (
	"encoding/json"
	"fmt"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// --- Tier configuration ---

// SeedTiers inserts tiers if the table is empty, so a fresh database starts
// with a valid configuration. Existing rows are left untouched.
func (d *DB) SeedTiers(tiers []trust.Tier) error {
	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM trust_tiers`).Scan(&count); err != nil {
		return fmt.Errorf("count tiers: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, t := range tiers {
		if err := d.SaveTier(t); err != nil {
			return err
		}
	}
	return nil
}

// SaveTier inserts or replaces one tier definition.
func (d *DB) SaveTier(t trust.Tier) error {
	permissions, err := json.Marshal(t.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT OR REPLACE INTO trust_tiers (tier, name, min_score, max_score, description, permissions)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Tier, t.Name, t.MinScore, t.MaxScore, t.Description, string(permissions),
	)
	if err != nil {
		return fmt.Errorf("save tier: %w", err)
	}
	return nil
}

// ListTiers returns all tier definitions ordered by index.
func (d *DB) ListTiers() ([]trust.Tier, error) {
	rows, err := d.db.Query(
		`SELECT tier, name, min_score, max_score, description, permissions
		 FROM trust_tiers ORDER BY tier`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []trust.Tier
	for rows.Next() {
		var (
			t           trust.Tier
			permissions string
		)
		if err := rows.Scan(&t.Tier, &t.Name, &t.MinScore, &t.MaxScore,
			&t.Description, &permissions); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		if err := json.Unmarshal([]byte(permissions), &t.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}
