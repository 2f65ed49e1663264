package storage

import (
	"fmt"
	"time"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// --- Trust history ---

// AppendSnapshot inserts a trust history point. Snapshots are append-only.
func (d *DB) AppendSnapshot(s *trust.Snapshot) error {
	_, err := d.db.Exec(
		`INSERT INTO trust_history (agent_id, identity_score, config_score, behavior_score,
		                            composite_score, tier, "trigger", timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.AgentID, s.IdentityScore, s.ConfigScore, s.BehaviorScore,
		s.CompositeScore, s.Tier, s.Trigger, s.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// Snapshots returns up to limit history points for an agent, most recent
// first. A limit <= 0 returns everything.
func (d *DB) Snapshots(agentID string, limit int) ([]trust.Snapshot, error) {
	query := `SELECT agent_id, identity_score, config_score, behavior_score,
	                 composite_score, tier, "trigger", timestamp
	          FROM trust_history WHERE agent_id = ? ORDER BY id DESC`
	args := []any{agentID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []trust.Snapshot
	for rows.Next() {
		var (
			s         trust.Snapshot
			timestamp int64
		)
		if err := rows.Scan(&s.AgentID, &s.IdentityScore, &s.ConfigScore, &s.BehaviorScore,
			&s.CompositeScore, &s.Tier, &s.Trigger, &timestamp); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Timestamp = time.Unix(timestamp, 0).UTC()
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
