package storage

import (
	"fmt"
	"strconv"
	"time"
)

// Stats computes the dashboard summary: agent and action totals, agents per
// tier, actions in the last 24 hours, and the composite-score distribution
// over the default bucket boundaries.
func (d *DB) Stats() (*Stats, error) {
	s := &Stats{
		AgentsByTier:      map[string]int{},
		ScoreDistribution: map[string]int{"0.0-0.2": 0, "0.2-0.5": 0, "0.5-0.8": 0, "0.8-1.0": 0},
	}

	if err := d.db.QueryRow(`SELECT COUNT(*) FROM agents`).Scan(&s.TotalAgents); err != nil {
		return nil, fmt.Errorf("count agents: %w", err)
	}
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM receipts`).Scan(&s.TotalActions); err != nil {
		return nil, fmt.Errorf("count receipts: %w", err)
	}

	cutoff := time.Now().Add(-24 * time.Hour).Unix()
	recent, err := d.CountReceipts(cutoff)
	if err != nil {
		return nil, err
	}
	s.RecentActions = recent

	rows, err := d.db.Query(`SELECT tier, COUNT(*) FROM agents GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("agents by tier: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tier, count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("scan tier count: %w", err)
		}
		s.AgentsByTier[strconv.Itoa(tier)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scoreRows, err := d.db.Query(`SELECT composite_score FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("score distribution: %w", err)
	}
	defer scoreRows.Close()
	for scoreRows.Next() {
		var score float64
		if err := scoreRows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		switch {
		case score < 0.2:
			s.ScoreDistribution["0.0-0.2"]++
		case score < 0.5:
			s.ScoreDistribution["0.2-0.5"]++
		case score < 0.8:
			s.ScoreDistribution["0.5-0.8"]++
		default:
			s.ScoreDistribution["0.8-1.0"]++
		}
	}
	return s, scoreRows.Err()
}
