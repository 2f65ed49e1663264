package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// --- Receipt chain ---

// AppendReceipt inserts a new receipt. Receipts are immutable once written;
// there are no update or delete operations.
func (d *DB) AppendReceipt(r *trust.Receipt) error {
	_, err := d.db.Exec(
		`INSERT INTO receipts (id, agent_id, action, outcome, timestamp, signature, previous_hash, receipt_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AgentID, r.Action, string(r.Outcome), r.Timestamp.Unix(),
		r.Signature, nullString(r.PreviousHash), r.ReceiptHash,
	)
	if err != nil {
		return fmt.Errorf("append receipt: %w", err)
	}
	return nil
}

// Receipts returns an agent's receipts in creation order (oldest first).
// Insertion rowid breaks ties between receipts in the same second.
func (d *DB) Receipts(agentID string) ([]trust.Receipt, error) {
	rows, err := d.db.Query(
		`SELECT id, agent_id, action, outcome, timestamp, signature, previous_hash, receipt_hash
		 FROM receipts WHERE agent_id = ? ORDER BY rowid`, agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []trust.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, *r)
	}
	return receipts, rows.Err()
}

// LatestReceipt returns the most recently created receipt for an agent, or
// nil when the agent has none.
func (d *DB) LatestReceipt(agentID string) (*trust.Receipt, error) {
	row := d.db.QueryRow(
		`SELECT id, agent_id, action, outcome, timestamp, signature, previous_hash, receipt_hash
		 FROM receipts WHERE agent_id = ? ORDER BY rowid DESC LIMIT 1`, agentID,
	)
	r, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest receipt: %w", err)
	}
	return r, nil
}

// CountReceipts returns the number of receipts recorded after cutoff (zero
// cutoff counts everything).
func (d *DB) CountReceipts(cutoff int64) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM receipts WHERE timestamp > ?`, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count receipts: %w", err)
	}
	return n, nil
}

func scanReceipt(s scanner) (*trust.Receipt, error) {
	var (
		r            trust.Receipt
		outcome      string
		timestamp    int64
		previousHash sql.NullString
	)
	err := s.Scan(&r.ID, &r.AgentID, &r.Action, &outcome, &timestamp,
		&r.Signature, &previousHash, &r.ReceiptHash)
	if err != nil {
		return nil, err
	}
	r.Outcome = trust.Outcome(outcome)
	r.Timestamp = time.Unix(timestamp, 0).UTC()
	r.PreviousHash = previousHash.String
	return &r, nil
}
