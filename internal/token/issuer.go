// Package token encodes an agent's current trust tier and permitted actions
// into signed JWTs for downstream services. Token content comes from the
// trust engine; this package only handles encoding and verification.
package token

import (
	"fmt"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// DefaultTTL is the token lifetime used when the caller does not specify one.
const DefaultTTL = time.Hour

// Claims is the token payload.
type Claims struct {
	Name             string   `json:"name"`
	Tier             int      `json:"tier"`
	TrustScore       float64  `json:"trust_score"`
	PermittedActions []string `json:"permitted_actions"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	issuer string
}

// NewIssuer creates an Issuer signing with secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: "trust-gateway"}
}

// Issue creates a token for the agent's current trust state. The trust score
// is rounded to three decimals. A ttl of zero uses DefaultTTL.
func (i *Issuer) Issue(agent *trust.Agent, permitted []string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	claims := Claims{
		Name:             agent.Name,
		Tier:             agent.Tier,
		TrustScore:       math.Round(agent.CompositeScore*1000) / 1000,
		PermittedActions: permitted,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agent.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(i.issuer))
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}
