package trust

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Agent is an enrolled AI agent with its current trust state. The capability
// set and attestation are fixed at registration; config-hash changes only
// increment the change counter.
type Agent struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Provider       string             `json:"provider"`
	SPIFFEID       string             `json:"spiffe_id,omitempty"`
	ConfigHash     string             `json:"config_hash"`
	Capabilities   []string           `json:"capabilities"`
	Attestation    *AttestationRecord `json:"attestation,omitempty"`
	ConfigChanges  int                `json:"config_changes"`
	IdentityScore  float64            `json:"identity_score"`
	ConfigScore    float64            `json:"config_score"`
	BehaviorScore  float64            `json:"behavior_score"`
	CompositeScore float64            `json:"composite_score"`
	Tier           int                `json:"tier"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Snapshot is one point in an agent's trust history, written on every
// recomputation and never mutated.
type Snapshot struct {
	AgentID        string    `json:"agent_id"`
	IdentityScore  float64   `json:"identity_score"`
	ConfigScore    float64   `json:"config_score"`
	BehaviorScore  float64   `json:"behavior_score"`
	CompositeScore float64   `json:"composite_score"`
	Tier           int       `json:"tier"`
	Trigger        string    `json:"trigger"`
	Timestamp      time.Time `json:"timestamp"`
}

// Snapshot triggers.
const (
	TriggerRegistered     = "registered"
	TriggerActionRecorded = "action_recorded"
	TriggerConfigChanged  = "config_changed"
)

// Breakdown is the detailed trust report for one agent.
type Breakdown struct {
	AgentID        string                        `json:"agent_id"`
	IdentityScore  float64                       `json:"identity_score"`
	ConfigScore    float64                       `json:"config_score"`
	BehaviorScore  float64                       `json:"behavior_score"`
	CompositeScore float64                       `json:"composite_score"`
	Tier           int                           `json:"tier"`
	TierName       string                        `json:"tier_name"`
	Weights        Weights                       `json:"weights"`
	Factors        map[string]map[string]float64 `json:"factors"`
}

// Store is the persistence collaborator. Implementations must be durable and
// strictly ordered once written; the engine never re-orders or deduplicates.
// Per-agent lookups for unknown ids return ErrAgentNotFound.
type Store interface {
	CreateAgent(a *Agent) error
	GetAgent(id string) (*Agent, error)
	UpdateAgentScores(id string, identity, config, behavior, composite float64, tier int) error
	UpdateAgentConfig(id, configHash string, configChanges int) error

	// AppendReceipt stores a new receipt. Receipts returns an agent's
	// receipts in creation order (oldest first); LatestReceipt returns nil
	// when the agent has none.
	AppendReceipt(r *Receipt) error
	Receipts(agentID string) ([]Receipt, error)
	LatestReceipt(agentID string) (*Receipt, error)

	// AppendSnapshot stores a trust history point. Snapshots returns up to
	// limit points, most recent first (limit <= 0 means no limit).
	AppendSnapshot(s *Snapshot) error
	Snapshots(agentID string, limit int) ([]Snapshot, error)
}

// lockShards is the number of per-agent writer lanes. Mutations on the same
// agent serialize on one shard; different agents usually proceed in parallel.
const lockShards = 64

// Config carries the process-wide engine configuration. It is validated at
// construction and immutable afterwards; tier-table updates are swapped in
// atomically through UpdateTier.
type Config struct {
	// SecretKey signs action receipts. Required.
	SecretKey string
	// Weights for the composite score; nil means DefaultWeights.
	Weights *Weights
	// Tiers is the tier table; nil means DefaultTiers.
	Tiers []Tier
	// Policies is the action policy table; nil means DefaultPolicies.
	Policies PolicyTable
	// Notifier receives mutation events; nil disables notifications.
	Notifier Notifier
	// Clock supplies timestamps; nil means the real clock.
	Clock clockwork.Clock
}

// Engine is the trust-scoring and authorization decision core. All mutating
// operations on a given agent are serialized; reads never block other
// readers.
type Engine struct {
	store    Store
	signer   *Signer
	notifier Notifier
	clock    clockwork.Clock
	weights  Weights

	tiers    atomic.Pointer[TierTable]
	tierMu   sync.Mutex // serializes administrative tier updates
	policies atomic.Pointer[PolicyTable]

	locks [lockShards]sync.Mutex
}

// NewEngine validates cfg and builds the engine. Invalid weights or an
// invalid tier table reject construction.
func NewEngine(store Store, cfg Config) (*Engine, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("engine: secret key is required")
	}

	weights := DefaultWeights()
	if cfg.Weights != nil {
		weights = *cfg.Weights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	tiers := cfg.Tiers
	if tiers == nil {
		tiers = DefaultTiers()
	}
	table, err := NewTierTable(tiers)
	if err != nil {
		return nil, err
	}

	policies := cfg.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	e := &Engine{
		store:    store,
		signer:   NewSigner(cfg.SecretKey),
		notifier: cfg.Notifier,
		clock:    clock,
		weights:  weights,
	}
	e.tiers.Store(table)
	e.policies.Store(&policies)
	return e, nil
}

// lockFor returns the writer lane for an agent id.
func (e *Engine) lockFor(agentID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return &e.locks[h.Sum32()%lockShards]
}

func (e *Engine) notify(eventType EventType, agentID string, data map[string]any) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(Event{
		Type:      eventType,
		AgentID:   agentID,
		Timestamp: e.now(),
		Data:      data,
	})
}

// now returns the current time, UTC, truncated to whole seconds so that
// stored timestamps reproduce the signed receipt message byte-exactly.
func (e *Engine) now() time.Time {
	return e.clock.Now().UTC().Truncate(time.Second)
}

// Registration is the input to RegisterAgent.
type Registration struct {
	Name         string             `json:"name"`
	Provider     string             `json:"provider"`
	SPIFFEID     string             `json:"spiffe_id,omitempty"`
	ConfigHash   string             `json:"config_hash"`
	Capabilities []string           `json:"capabilities"`
	Attestation  *AttestationRecord `json:"attestation,omitempty"`
}

// RegisterAgent creates an agent with its initial trust state: identity from
// the attestation evaluator, config score 1.0, behavior 0.0, composite
// floored at 0.1. A malformed attestation rejects the call with
// ErrInvalidAttestation and no state change.
func (e *Engine) RegisterAgent(reg Registration) (*Agent, error) {
	var attestation Attestation
	if reg.Attestation != nil {
		variant, err := reg.Attestation.Variant()
		if err != nil {
			return nil, err
		}
		attestation = variant
	}

	identity, _ := IdentityScore(IdentityInput{
		HasName:       reg.Name != "",
		HasProvider:   reg.Provider != "",
		HasConfigHash: reg.ConfigHash != "",
		Capabilities:  len(reg.Capabilities),
		Attestation:   attestation,
	})
	config, _ := ConfigScore(0)
	behavior := 0.0
	composite := CompositeScore(e.weights, identity, config, behavior)
	tier := e.tiers.Load().Resolve(composite)

	now := e.now()
	agent := &Agent{
		ID:             uuid.NewString(),
		Name:           reg.Name,
		Provider:       reg.Provider,
		SPIFFEID:       reg.SPIFFEID,
		ConfigHash:     reg.ConfigHash,
		Capabilities:   reg.Capabilities,
		Attestation:    reg.Attestation,
		IdentityScore:  identity,
		ConfigScore:    config,
		BehaviorScore:  behavior,
		CompositeScore: composite,
		Tier:           tier.Tier,
		CreatedAt:      now,
	}

	mu := e.lockFor(agent.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.store.CreateAgent(agent); err != nil {
		return nil, err
	}
	if err := e.appendSnapshot(agent, TriggerRegistered, now); err != nil {
		return nil, err
	}

	e.notify(EventTrustChanged, agent.ID, map[string]any{
		"composite_score": composite,
		"tier":            tier.Tier,
		"trigger":         TriggerRegistered,
	})
	return agent, nil
}

// GetAgent returns an agent's current profile and scores.
func (e *Engine) GetAgent(agentID string) (*Agent, error) {
	return e.store.GetAgent(agentID)
}

// RecordAction appends a signed receipt to the agent's chain and recomputes
// its trust state. The append is exclusive per agent: the previous-hash
// reference always reflects a single serialized history.
func (e *Engine) RecordAction(agentID, action string, outcome Outcome) (*Receipt, error) {
	mu := e.lockFor(agentID)
	mu.Lock()
	defer mu.Unlock()

	agent, err := e.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	previousHash := ""
	if prev, err := e.store.LatestReceipt(agentID); err != nil {
		return nil, err
	} else if prev != nil {
		previousHash = prev.ReceiptHash
	}

	receipt := &Receipt{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		Action:       action,
		Outcome:      outcome,
		Timestamp:    now,
		PreviousHash: previousHash,
	}
	receipt.Signature = e.signer.Sign(agentID, action, outcome, now, previousHash)
	receipt.ReceiptHash = e.signer.ReceiptHash(receipt.ID, receipt.Signature)

	if err := e.store.AppendReceipt(receipt); err != nil {
		return nil, err
	}
	if err := e.recompute(agent, TriggerActionRecorded, now); err != nil {
		return nil, err
	}
	return receipt, nil
}

// UpdateConfigHash records a config-hash update. A hash identical to the
// stored one is a no-op; a distinct hash increments the change counter by
// exactly one and recomputes trust with trigger "config_changed".
func (e *Engine) UpdateConfigHash(agentID, configHash string) (*Agent, error) {
	mu := e.lockFor(agentID)
	mu.Lock()
	defer mu.Unlock()

	agent, err := e.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	if agent.ConfigHash == configHash {
		return agent, nil
	}

	agent.ConfigHash = configHash
	agent.ConfigChanges++
	if err := e.store.UpdateAgentConfig(agentID, configHash, agent.ConfigChanges); err != nil {
		return nil, err
	}
	if err := e.recompute(agent, TriggerConfigChanged, e.now()); err != nil {
		return nil, err
	}
	return agent, nil
}

// recompute re-derives all factor scores, the composite, and the tier for
// agent, persists the new state plus a snapshot, and fires notifications.
// Callers must hold the agent's writer lane. The agent struct is updated in
// place.
func (e *Engine) recompute(agent *Agent, trigger string, now time.Time) error {
	var attestation Attestation
	if agent.Attestation != nil {
		variant, err := agent.Attestation.Variant()
		if err != nil {
			return err
		}
		attestation = variant
	}
	identity, _ := IdentityScore(IdentityInput{
		HasName:       agent.Name != "",
		HasProvider:   agent.Provider != "",
		HasConfigHash: agent.ConfigHash != "",
		Capabilities:  len(agent.Capabilities),
		Attestation:   attestation,
	})
	config, _ := ConfigScore(agent.ConfigChanges)

	outcomes, err := e.outcomeHistory(agent.ID)
	if err != nil {
		return err
	}
	behavior, _ := BehaviorScore(outcomes)

	composite := CompositeScore(e.weights, identity, config, behavior)
	tier := e.tiers.Load().Resolve(composite)

	oldComposite, oldTier := agent.CompositeScore, agent.Tier
	agent.IdentityScore = identity
	agent.ConfigScore = config
	agent.BehaviorScore = behavior
	agent.CompositeScore = composite
	agent.Tier = tier.Tier

	if err := e.store.UpdateAgentScores(agent.ID, identity, config, behavior, composite, tier.Tier); err != nil {
		return err
	}
	if err := e.appendSnapshot(agent, trigger, now); err != nil {
		return err
	}

	e.notify(EventTrustChanged, agent.ID, map[string]any{
		"old_composite_score": oldComposite,
		"composite_score":     composite,
		"tier":                tier.Tier,
		"trigger":             trigger,
	})
	if tier.Tier != oldTier {
		e.notify(EventTierChanged, agent.ID, map[string]any{
			"old_tier": oldTier,
			"tier":     tier.Tier,
			"trigger":  trigger,
		})
	}
	return nil
}

func (e *Engine) appendSnapshot(agent *Agent, trigger string, now time.Time) error {
	return e.store.AppendSnapshot(&Snapshot{
		AgentID:        agent.ID,
		IdentityScore:  agent.IdentityScore,
		ConfigScore:    agent.ConfigScore,
		BehaviorScore:  agent.BehaviorScore,
		CompositeScore: agent.CompositeScore,
		Tier:           agent.Tier,
		Trigger:        trigger,
		Timestamp:      now,
	})
}

// outcomeHistory returns the agent's outcomes most recent first, as the
// behavior scorer expects.
func (e *Engine) outcomeHistory(agentID string) ([]Outcome, error) {
	receipts, err := e.store.Receipts(agentID)
	if err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, len(receipts))
	for i, r := range receipts {
		outcomes[len(receipts)-1-i] = r.Outcome
	}
	return outcomes, nil
}

// TrustBreakdown returns the agent's current factor scores with per-factor
// detail. Pure read against the latest committed state.
func (e *Engine) TrustBreakdown(agentID string) (*Breakdown, error) {
	agent, err := e.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	var attestation Attestation
	if agent.Attestation != nil {
		if variant, err := agent.Attestation.Variant(); err == nil {
			attestation = variant
		}
	}
	identity, identityFactors := IdentityScore(IdentityInput{
		HasName:       agent.Name != "",
		HasProvider:   agent.Provider != "",
		HasConfigHash: agent.ConfigHash != "",
		Capabilities:  len(agent.Capabilities),
		Attestation:   attestation,
	})
	config, configFactors := ConfigScore(agent.ConfigChanges)

	outcomes, err := e.outcomeHistory(agentID)
	if err != nil {
		return nil, err
	}
	behavior, behaviorFactors := BehaviorScore(outcomes)

	tierName := "Unknown"
	if tier, ok := e.tiers.Load().Get(agent.Tier); ok {
		tierName = tier.Name
	}

	return &Breakdown{
		AgentID:        agentID,
		IdentityScore:  identity,
		ConfigScore:    config,
		BehaviorScore:  behavior,
		CompositeScore: agent.CompositeScore,
		Tier:           agent.Tier,
		TierName:       tierName,
		Weights:        e.weights,
		Factors: map[string]map[string]float64{
			"identity": identityFactors,
			"config":   configFactors,
			"behavior": behaviorFactors,
		},
	}, nil
}

// TrustHistory returns up to limit snapshots, most recent first.
func (e *Engine) TrustHistory(agentID string, limit int) ([]Snapshot, error) {
	if _, err := e.store.GetAgent(agentID); err != nil {
		return nil, err
	}
	return e.store.Snapshots(agentID, limit)
}

// Authorize decides whether the agent may perform action, against the latest
// committed (tier, score) snapshot. An action with no policy entry fails
// with *PolicyMissingError. Denials fire an authorization_denied event but
// change no stored state.
func (e *Engine) Authorize(agentID, action string) (Decision, error) {
	agent, err := e.store.GetAgent(agentID)
	if err != nil {
		return Decision{}, err
	}
	return e.decide(agent, action)
}

// AuthorizeBatch evaluates each action independently against the same
// (tier, score) snapshot, so all results in one batch are mutually
// consistent. A missing policy entry for any action fails the call.
func (e *Engine) AuthorizeBatch(agentID string, actions []string) (map[string]Decision, error) {
	agent, err := e.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	decisions := make(map[string]Decision, len(actions))
	for _, action := range actions {
		d, err := e.decide(agent, action)
		if err != nil {
			return nil, err
		}
		decisions[action] = d
	}
	return decisions, nil
}

func (e *Engine) decide(agent *Agent, action string) (Decision, error) {
	policy, ok := (*e.policies.Load())[action]
	if !ok {
		return Decision{}, &PolicyMissingError{Action: action}
	}
	d := Decide(agent.ID, action, agent.Tier, agent.CompositeScore, policy)
	if !d.Allowed {
		e.notify(EventAuthorizationDenied, agent.ID, map[string]any{
			"action": action,
			"reason": d.Reason,
		})
	}
	return d, nil
}

// ReceiptChain returns the agent's receipts newest first.
func (e *Engine) ReceiptChain(agentID string) ([]Receipt, error) {
	if _, err := e.store.GetAgent(agentID); err != nil {
		return nil, err
	}
	receipts, err := e.store.Receipts(agentID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(receipts)-1; i < j; i, j = i+1, j-1 {
		receipts[i], receipts[j] = receipts[j], receipts[i]
	}
	return receipts, nil
}

// VerifyChain verifies the agent's full receipt chain. A broken chain is
// returned as a *ChainBrokenError and additionally raised as a
// receipt_chain_broken event; it is never repaired.
func (e *Engine) VerifyChain(agentID string) error {
	if _, err := e.store.GetAgent(agentID); err != nil {
		return err
	}
	receipts, err := e.store.Receipts(agentID)
	if err != nil {
		return err
	}
	if err := e.signer.VerifyChain(receipts); err != nil {
		var broken *ChainBrokenError
		if errors.As(err, &broken) {
			e.notify(EventReceiptChainBroken, agentID, map[string]any{
				"index":  broken.Index,
				"reason": broken.Reason,
			})
		}
		return err
	}
	return nil
}

// ListTiers returns the current tier table, ordered.
func (e *Engine) ListTiers() []Tier {
	return e.tiers.Load().Tiers()
}

// GetTier returns one tier definition by index.
func (e *Engine) GetTier(index int) (Tier, bool) {
	return e.tiers.Load().Get(index)
}

// UpdateTier replaces the definition at index, revalidating the whole table
// before swapping it in atomically. In-flight decisions see either the old
// table or the new one, never a partial update. On any validation failure
// the previous table is retained.
func (e *Engine) UpdateTier(index int, def Tier) error {
	e.tierMu.Lock()
	defer e.tierMu.Unlock()

	current := e.tiers.Load().Tiers()
	if index < 0 || index >= len(current) {
		return &InvalidTierRangeError{Reason: fmt.Sprintf("no tier with index %d", index)}
	}
	def.Tier = index
	current[index] = def

	table, err := NewTierTable(current)
	if err != nil {
		return err
	}
	e.tiers.Store(table)
	return nil
}

// PermittedActions returns the action names permitted at the given tier
// index, for an external token-issuance collaborator to place in claims.
func (e *Engine) PermittedActions(tier int) ([]string, error) {
	perms, ok := e.tiers.Load().Permitted(tier)
	if !ok {
		return nil, &InvalidTierRangeError{Reason: fmt.Sprintf("no tier with index %d", tier)}
	}
	return perms, nil
}

// Weights returns the configured factor weights.
func (e *Engine) Weights() Weights { return e.weights }
