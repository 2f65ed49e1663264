// Package trust implements the Trustgate scoring and authorization core:
// factor scorers, composite trust scores, tier resolution, the signed
// per-agent receipt chain, and the authorization decision logic.
package trust

import (
	"encoding/json"
	"fmt"
)

// Attestation type labels as they appear on the wire and in storage.
const (
	AttestationX509         = "x509"
	AttestationJWTSVID      = "jwt"
	AttestationAPIKey       = "api_key"
	AttestationSelfDeclared = "self_declared"
)

// Attestation is identity-proof material supplied at registration. It is a
// closed set of variants; each variant contributes only a strength signal to
// the identity score and is never interpreted beyond that.
type Attestation interface {
	// Type returns the wire label for this attestation variant.
	Type() string
	// Strength returns the attestation-type bonus in [0, 1].
	Strength() float64

	isAttestation()
}

// X509Attestation carries a certificate chain (PEM or DER, base64). The
// strongest attestation class.
type X509Attestation struct {
	CertificateChain []string `json:"certificate_chain"`
}

func (X509Attestation) Type() string       { return AttestationX509 }
func (X509Attestation) Strength() float64  { return 1.0 }
func (X509Attestation) isAttestation()     {}

// JWTSVIDAttestation carries a JWT-SVID token.
type JWTSVIDAttestation struct {
	Token string `json:"token"`
}

func (JWTSVIDAttestation) Type() string      { return AttestationJWTSVID }
func (JWTSVIDAttestation) Strength() float64 { return 0.9 }
func (JWTSVIDAttestation) isAttestation()    {}

// APIKeyAttestation carries a hash of a pre-shared API key.
type APIKeyAttestation struct {
	KeyHash string `json:"key_hash"`
}

func (APIKeyAttestation) Type() string      { return AttestationAPIKey }
func (APIKeyAttestation) Strength() float64 { return 0.6 }
func (APIKeyAttestation) isAttestation()    {}

// SelfDeclaredAttestation carries no verifiable material.
type SelfDeclaredAttestation struct{}

func (SelfDeclaredAttestation) Type() string      { return AttestationSelfDeclared }
func (SelfDeclaredAttestation) Strength() float64 { return 0.3 }
func (SelfDeclaredAttestation) isAttestation()    {}

// AttestationRecord is the tagged JSON envelope used on the API and in
// storage: {"type": "...", "data": {...}}.
type AttestationRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Variant decodes the record into its concrete attestation type. Returns an
// error wrapping ErrInvalidAttestation if the type is unknown, the payload
// does not parse, or required material is missing.
func (r *AttestationRecord) Variant() (Attestation, error) {
	switch r.Type {
	case AttestationX509:
		var a X509Attestation
		if err := decodeAttestationData(r.Data, &a); err != nil {
			return nil, err
		}
		if len(a.CertificateChain) == 0 {
			return nil, fmt.Errorf("%w: x509 attestation has empty certificate chain", ErrInvalidAttestation)
		}
		return a, nil
	case AttestationJWTSVID:
		var a JWTSVIDAttestation
		if err := decodeAttestationData(r.Data, &a); err != nil {
			return nil, err
		}
		if a.Token == "" {
			return nil, fmt.Errorf("%w: jwt attestation has empty token", ErrInvalidAttestation)
		}
		return a, nil
	case AttestationAPIKey:
		var a APIKeyAttestation
		if err := decodeAttestationData(r.Data, &a); err != nil {
			return nil, err
		}
		if a.KeyHash == "" {
			return nil, fmt.Errorf("%w: api_key attestation has empty key hash", ErrInvalidAttestation)
		}
		return a, nil
	case AttestationSelfDeclared:
		return SelfDeclaredAttestation{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown attestation type %q", ErrInvalidAttestation, r.Type)
	}
}

// NewAttestationRecord encodes a concrete attestation back into its tagged
// envelope form.
func NewAttestationRecord(a Attestation) (*AttestationRecord, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode attestation: %w", err)
	}
	return &AttestationRecord{Type: a.Type(), Data: data}, nil
}

func decodeAttestationData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing attestation data", ErrInvalidAttestation)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttestation, err)
	}
	return nil
}
