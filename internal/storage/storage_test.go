package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "trustgate.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testAgent(id string) *trust.Agent {
	return &trust.Agent{
		ID:             id,
		Name:           "billing-agent",
		Provider:       "openai",
		SPIFFEID:       "spiffe://example.org/billing",
		ConfigHash:     "sha256:abc",
		Capabilities:   []string{"read_data", "call_api"},
		ConfigChanges:  0,
		IdentityScore:  0.9,
		ConfigScore:    1.0,
		BehaviorScore:  0.0,
		CompositeScore: 0.47,
		Tier:           1,
		CreatedAt:      time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestAgentRoundtrip(t *testing.T) {
	db := testDB(t)

	want := testAgent("agent-1")
	want.Attestation = &trust.AttestationRecord{
		Type: "api_key",
		Data: []byte(`{"key_hash":"deadbeef"}`),
	}
	if err := db.CreateAgent(want); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	got, err := db.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Name != want.Name || got.Provider != want.Provider || got.SPIFFEID != want.SPIFFEID {
		t.Errorf("identity fields = %q/%q/%q", got.Name, got.Provider, got.SPIFFEID)
	}
	if len(got.Capabilities) != 2 || got.Capabilities[0] != "read_data" {
		t.Errorf("capabilities = %v", got.Capabilities)
	}
	if got.Attestation == nil || got.Attestation.Type != "api_key" {
		t.Errorf("attestation = %+v", got.Attestation)
	}
	if got.CompositeScore != want.CompositeScore || got.Tier != want.Tier {
		t.Errorf("scores = %v tier %d", got.CompositeScore, got.Tier)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("created at = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestAgentWithoutOptionalFields(t *testing.T) {
	db := testDB(t)

	a := testAgent("agent-1")
	a.SPIFFEID = ""
	a.Attestation = nil
	if err := db.CreateAgent(a); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	got, err := db.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.SPIFFEID != "" {
		t.Errorf("spiffe id = %q, want empty", got.SPIFFEID)
	}
	if got.Attestation != nil {
		t.Errorf("attestation = %+v, want nil", got.Attestation)
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetAgent("nope"); !errors.Is(err, trust.ErrAgentNotFound) {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestUpdateAgentScores(t *testing.T) {
	db := testDB(t)
	if err := db.CreateAgent(testAgent("agent-1")); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateAgentScores("agent-1", 0.9, 0.8, 0.7, 0.76, 2); err != nil {
		t.Fatalf("UpdateAgentScores: %v", err)
	}
	got, _ := db.GetAgent("agent-1")
	if got.ConfigScore != 0.8 || got.BehaviorScore != 0.7 || got.CompositeScore != 0.76 || got.Tier != 2 {
		t.Errorf("scores after update = %+v", got)
	}

	err := db.UpdateAgentScores("nope", 0.1, 0.1, 0.1, 0.1, 0)
	if !errors.Is(err, trust.ErrAgentNotFound) {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestUpdateAgentConfig(t *testing.T) {
	db := testDB(t)
	if err := db.CreateAgent(testAgent("agent-1")); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateAgentConfig("agent-1", "sha256:v2", 1); err != nil {
		t.Fatalf("UpdateAgentConfig: %v", err)
	}
	got, _ := db.GetAgent("agent-1")
	if got.ConfigHash != "sha256:v2" || got.ConfigChanges != 1 {
		t.Errorf("config = %q changes %d", got.ConfigHash, got.ConfigChanges)
	}

	err := db.UpdateAgentConfig("nope", "h", 1)
	if !errors.Is(err, trust.ErrAgentNotFound) {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestListAgents(t *testing.T) {
	db := testDB(t)

	first := testAgent("agent-1")
	second := testAgent("agent-2")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	if err := db.CreateAgent(second); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateAgent(first); err != nil {
		t.Fatal(err)
	}

	agents, err := db.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 2 || agents[0].ID != "agent-1" || agents[1].ID != "agent-2" {
		t.Errorf("agents = %v, want creation order", agents)
	}
}

func seedReceipts(t *testing.T, db *DB, agentID string, n int) []trust.Receipt {
	t.Helper()
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	signer := trust.NewSigner("test-secret")
	previousHash := ""
	var receipts []trust.Receipt
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		r := trust.Receipt{
			ID:           "r-" + string(rune('a'+i)),
			AgentID:      agentID,
			Action:       "call_api",
			Outcome:      trust.OutcomeSuccess,
			Timestamp:    ts,
			PreviousHash: previousHash,
		}
		r.Signature = signer.Sign(agentID, r.Action, r.Outcome, ts, previousHash)
		r.ReceiptHash = signer.ReceiptHash(r.ID, r.Signature)
		previousHash = r.ReceiptHash
		if err := db.AppendReceipt(&r); err != nil {
			t.Fatalf("AppendReceipt %d: %v", i, err)
		}
		receipts = append(receipts, r)
	}
	return receipts
}

func TestReceipts(t *testing.T) {
	db := testDB(t)
	if err := db.CreateAgent(testAgent("agent-1")); err != nil {
		t.Fatal(err)
	}

	want := seedReceipts(t, db, "agent-1", 5)

	got, err := db.Receipts("agent-1")
	if err != nil {
		t.Fatalf("Receipts: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("receipts = %d, want 5", len(got))
	}
	for i := range got {
		if got[i].ID != want[i].ID {
			t.Errorf("receipt %d = %q, want %q (oldest first)", i, got[i].ID, want[i].ID)
		}
		if got[i].Signature != want[i].Signature || got[i].ReceiptHash != want[i].ReceiptHash {
			t.Errorf("receipt %d signature or hash did not round-trip", i)
		}
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("receipt %d timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
	}

	// The stored chain still verifies: everything the signature covers
	// round-tripped byte-exactly.
	if err := trust.NewSigner("test-secret").VerifyChain(got); err != nil {
		t.Errorf("VerifyChain on stored receipts: %v", err)
	}
}

func TestLatestReceipt(t *testing.T) {
	db := testDB(t)
	if err := db.CreateAgent(testAgent("agent-1")); err != nil {
		t.Fatal(err)
	}

	latest, err := db.LatestReceipt("agent-1")
	if err != nil {
		t.Fatalf("LatestReceipt: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want nil for empty chain", latest)
	}

	want := seedReceipts(t, db, "agent-1", 3)
	latest, err = db.LatestReceipt("agent-1")
	if err != nil {
		t.Fatalf("LatestReceipt: %v", err)
	}
	if latest == nil || latest.ID != want[2].ID {
		t.Errorf("latest = %+v, want %q", latest, want[2].ID)
	}
}

func TestCountReceipts(t *testing.T) {
	db := testDB(t)
	if err := db.CreateAgent(testAgent("agent-1")); err != nil {
		t.Fatal(err)
	}
	receipts := seedReceipts(t, db, "agent-1", 4)

	total, err := db.CountReceipts(0)
	if err != nil {
		t.Fatalf("CountReceipts: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}

	// Cutoff at the second receipt's timestamp: strictly-after counts two.
	after, err := db.CountReceipts(receipts[1].Timestamp.Unix())
	if err != nil {
		t.Fatalf("CountReceipts: %v", err)
	}
	if after != 2 {
		t.Errorf("after cutoff = %d, want 2", after)
	}
}

func TestSnapshots(t *testing.T) {
	db := testDB(t)
	if err := db.CreateAgent(testAgent("agent-1")); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := db.AppendSnapshot(&trust.Snapshot{
			AgentID:        "agent-1",
			IdentityScore:  0.9,
			ConfigScore:    1.0,
			BehaviorScore:  float64(i) / 10,
			CompositeScore: 0.47 + float64(i)/100,
			Tier:           1,
			Trigger:        trust.TriggerActionRecorded,
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendSnapshot %d: %v", i, err)
		}
	}

	all, err := db.Snapshots("agent-1", 0)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("snapshots = %d, want 5", len(all))
	}
	if all[0].BehaviorScore != 0.4 || all[4].BehaviorScore != 0.0 {
		t.Errorf("snapshots not most recent first: %v ... %v", all[0].BehaviorScore, all[4].BehaviorScore)
	}

	limited, err := db.Snapshots("agent-1", 2)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(limited) != 2 || limited[0].BehaviorScore != 0.4 {
		t.Errorf("limited snapshots = %v", limited)
	}
}

func TestSeedTiers(t *testing.T) {
	db := testDB(t)

	if err := db.SeedTiers(trust.DefaultTiers()); err != nil {
		t.Fatalf("SeedTiers: %v", err)
	}
	tiers, err := db.ListTiers()
	if err != nil {
		t.Fatalf("ListTiers: %v", err)
	}
	if len(tiers) != 4 {
		t.Fatalf("tiers = %d, want 4", len(tiers))
	}
	if tiers[0].Name != "Untrusted" || tiers[3].Name != "Privileged" {
		t.Errorf("tier names = %q ... %q", tiers[0].Name, tiers[3].Name)
	}

	// Seeding again over a customized table is a no-op.
	custom := tiers[2]
	custom.Name = "Vetted"
	if err := db.SaveTier(custom); err != nil {
		t.Fatalf("SaveTier: %v", err)
	}
	if err := db.SeedTiers(trust.DefaultTiers()); err != nil {
		t.Fatalf("SeedTiers: %v", err)
	}
	tiers, _ = db.ListTiers()
	if tiers[2].Name != "Vetted" {
		t.Errorf("tier 2 = %q after reseed, want Vetted", tiers[2].Name)
	}
	if len(tiers[2].Permissions) == 0 {
		t.Error("permissions did not round-trip")
	}
}

func TestWebhooks(t *testing.T) {
	db := testDB(t)

	hook := &Webhook{
		ID:        "wh-1",
		URL:       "https://example.com/hook",
		Events:    []string{"tier_changed"},
		Secret:    "s3cret",
		Enabled:   true,
		CreatedAt: time.Now().Unix(),
	}
	if err := db.CreateWebhook(hook); err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}

	hooks, err := db.ListWebhooks()
	if err != nil {
		t.Fatalf("ListWebhooks: %v", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("hooks = %d, want 1", len(hooks))
	}
	got := hooks[0]
	if got.URL != hook.URL || got.Secret != hook.Secret || !got.Enabled {
		t.Errorf("webhook = %+v", got)
	}
	if len(got.Events) != 1 || got.Events[0] != "tier_changed" {
		t.Errorf("events = %v", got.Events)
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)

	low := testAgent("agent-low")
	low.CompositeScore, low.Tier = 0.15, 0
	mid := testAgent("agent-mid")
	mid.CompositeScore, mid.Tier = 0.47, 1
	high := testAgent("agent-high")
	high.CompositeScore, high.Tier = 0.97, 3
	for _, a := range []*trust.Agent{low, mid, high} {
		if err := db.CreateAgent(a); err != nil {
			t.Fatal(err)
		}
	}
	seedReceipts(t, db, "agent-mid", 3)

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalAgents != 3 {
		t.Errorf("total agents = %d, want 3", stats.TotalAgents)
	}
	if stats.TotalActions != 3 {
		t.Errorf("total actions = %d, want 3", stats.TotalActions)
	}
	if stats.AgentsByTier["0"] != 1 || stats.AgentsByTier["1"] != 1 || stats.AgentsByTier["3"] != 1 {
		t.Errorf("agents by tier = %v", stats.AgentsByTier)
	}
	dist := stats.ScoreDistribution
	if dist["0.0-0.2"] != 1 || dist["0.2-0.5"] != 1 || dist["0.8-1.0"] != 1 || dist["0.5-0.8"] != 0 {
		t.Errorf("score distribution = %v", dist)
	}
}
