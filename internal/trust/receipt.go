package trust

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Receipt is a signed, immutable record of one agent action outcome, linked
// to its predecessor by hash. Receipts form a singly-linked hash chain per
// agent, ordered by creation.
type Receipt struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	Action       string    `json:"action"`
	Outcome      Outcome   `json:"outcome"`
	Timestamp    time.Time `json:"timestamp"`
	Signature    string    `json:"signature"`
	PreviousHash string    `json:"previous_hash,omitempty"` // empty for an agent's first receipt
	ReceiptHash  string    `json:"receipt_hash"`
}

// Signer produces and verifies receipt signatures and chain hashes with a
// process-wide secret key. The key is immutable for the life of the process.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer from the shared secret key.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// signatureMessage builds the canonical byte-exact message that is signed
// for a receipt:
//
//	agentID + "|" + action + "|" + outcome + "|" + RFC3339(timestamp) + "|" + previousHash-or-empty
func signatureMessage(agentID, action string, outcome Outcome, ts time.Time, previousHash string) []byte {
	msg := agentID + "|" + action + "|" + string(outcome) + "|" +
		ts.UTC().Format(time.RFC3339) + "|" + previousHash
	return []byte(msg)
}

// Sign computes the HMAC-SHA256 signature over the canonical receipt message,
// hex encoded.
func (s *Signer) Sign(agentID, action string, outcome Outcome, ts time.Time, previousHash string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(signatureMessage(agentID, action, outcome, ts, previousHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// ReceiptHash computes the chain hash for a receipt:
// SHA-256(receiptID + "|" + signature), hex encoded.
func (s *Signer) ReceiptHash(receiptID, signature string) string {
	sum := sha256.Sum256([]byte(receiptID + "|" + signature))
	return hex.EncodeToString(sum[:])
}

// VerifyReceipt checks a single receipt against its predecessor (nil for an
// agent's first receipt) without walking the full chain. It recomputes the
// signature and receipt hash from the stored fields and checks the
// previous-hash link.
func (s *Signer) VerifyReceipt(r Receipt, previous *Receipt) error {
	expectedSig := s.Sign(r.AgentID, r.Action, r.Outcome, r.Timestamp, r.PreviousHash)
	if !hmac.Equal([]byte(expectedSig), []byte(r.Signature)) {
		return &ChainBrokenError{Index: 0, Reason: "signature mismatch"}
	}
	if got := s.ReceiptHash(r.ID, r.Signature); got != r.ReceiptHash {
		return &ChainBrokenError{Index: 0, Reason: "receipt hash mismatch"}
	}
	if previous == nil {
		if r.PreviousHash != "" {
			return &ChainBrokenError{Index: 0, Reason: "first receipt has non-empty previous hash"}
		}
		return nil
	}
	if r.PreviousHash != previous.ReceiptHash {
		return &ChainBrokenError{Index: 0, Reason: "previous hash does not match prior receipt"}
	}
	return nil
}

// VerifyChain walks receipts in creation order (oldest first), recomputing
// each signature and the expected previous-hash link. It fails with a
// *ChainBrokenError at the first index where either check fails. Chains of
// length 0 or 1 are trivially valid (length 1 still requires an empty
// previous hash).
func (s *Signer) VerifyChain(receipts []Receipt) error {
	expectedPrev := ""
	for i, r := range receipts {
		expectedSig := s.Sign(r.AgentID, r.Action, r.Outcome, r.Timestamp, r.PreviousHash)
		if !hmac.Equal([]byte(expectedSig), []byte(r.Signature)) {
			return &ChainBrokenError{Index: i, Reason: "signature mismatch"}
		}
		if got := s.ReceiptHash(r.ID, r.Signature); got != r.ReceiptHash {
			return &ChainBrokenError{Index: i, Reason: "receipt hash mismatch"}
		}
		if r.PreviousHash != expectedPrev {
			return &ChainBrokenError{Index: i, Reason: "previous hash does not match prior receipt"}
		}
		expectedPrev = r.ReceiptHash
	}
	return nil
}
