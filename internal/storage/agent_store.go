package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// --- Agent CRUD ---

// CreateAgent inserts a new agent record.
func (d *DB) CreateAgent(a *trust.Agent) error {
	capabilities, err := json.Marshal(a.Capabilities)
	if err != nil {
		return fmt.Errorf("encode capabilities: %w", err)
	}

	var attestationType, attestationData sql.NullString
	if a.Attestation != nil {
		attestationType = sql.NullString{String: a.Attestation.Type, Valid: true}
		data, err := json.Marshal(a.Attestation)
		if err != nil {
			return fmt.Errorf("encode attestation: %w", err)
		}
		attestationData = sql.NullString{String: string(data), Valid: true}
	}

	_, err = d.db.Exec(
		`INSERT INTO agents (id, name, provider, spiffe_id, config_hash, capabilities,
		                     attestation_type, attestation_data, config_changes,
		                     identity_score, config_score, behavior_score, composite_score,
		                     tier, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Provider, nullString(a.SPIFFEID), a.ConfigHash, string(capabilities),
		attestationType, attestationData, a.ConfigChanges,
		a.IdentityScore, a.ConfigScore, a.BehaviorScore, a.CompositeScore,
		a.Tier, a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID. Returns trust.ErrAgentNotFound for an
// unknown id.
func (d *DB) GetAgent(id string) (*trust.Agent, error) {
	row := d.db.QueryRow(
		`SELECT id, name, provider, spiffe_id, config_hash, capabilities,
		        attestation_type, attestation_data, config_changes,
		        identity_score, config_score, behavior_score, composite_score,
		        tier, created_at
		 FROM agents WHERE id = ?`, id,
	)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, trust.ErrAgentNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// ListAgents returns all agents ordered by creation time.
func (d *DB) ListAgents() ([]trust.Agent, error) {
	rows, err := d.db.Query(
		`SELECT id, name, provider, spiffe_id, config_hash, capabilities,
		        attestation_type, attestation_data, config_changes,
		        identity_score, config_score, behavior_score, composite_score,
		        tier, created_at
		 FROM agents ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []trust.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// UpdateAgentScores sets the current factor scores, composite, and tier.
func (d *DB) UpdateAgentScores(id string, identity, config, behavior, composite float64, tier int) error {
	res, err := d.db.Exec(
		`UPDATE agents SET identity_score = ?, config_score = ?, behavior_score = ?,
		        composite_score = ?, tier = ? WHERE id = ?`,
		identity, config, behavior, composite, tier, id,
	)
	if err != nil {
		return fmt.Errorf("update agent scores: %w", err)
	}
	return requireRow(res, trust.ErrAgentNotFound)
}

// UpdateAgentConfig sets the current config hash and change counter.
func (d *DB) UpdateAgentConfig(id, configHash string, configChanges int) error {
	res, err := d.db.Exec(
		`UPDATE agents SET config_hash = ?, config_changes = ? WHERE id = ?`,
		configHash, configChanges, id,
	)
	if err != nil {
		return fmt.Errorf("update agent config: %w", err)
	}
	return requireRow(res, trust.ErrAgentNotFound)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(s scanner) (*trust.Agent, error) {
	var (
		a               trust.Agent
		spiffeID        sql.NullString
		capabilities    string
		attestationType sql.NullString
		attestationData sql.NullString
		createdAt       int64
	)
	err := s.Scan(&a.ID, &a.Name, &a.Provider, &spiffeID, &a.ConfigHash, &capabilities,
		&attestationType, &attestationData, &a.ConfigChanges,
		&a.IdentityScore, &a.ConfigScore, &a.BehaviorScore, &a.CompositeScore,
		&a.Tier, &createdAt)
	if err != nil {
		return nil, err
	}

	a.SPIFFEID = spiffeID.String
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := json.Unmarshal([]byte(capabilities), &a.Capabilities); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	if attestationData.Valid {
		var record trust.AttestationRecord
		if err := json.Unmarshal([]byte(attestationData.String), &record); err != nil {
			return nil, fmt.Errorf("decode attestation: %w", err)
		}
		a.Attestation = &record
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// requireRow converts a zero-rows-affected update into notFound.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
