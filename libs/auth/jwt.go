package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrDisabled     = errors.New("token verification is not configured")
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleSeeker = "seeker"
)

// Claims is the token payload issued by the identity provider. Subject carries the seeker id.
type Claims struct {
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	SeekerID string
	TenantID string
	Role     string
}

func (c Claims) Principal() Principal {
	return Principal{SeekerID: c.Subject, TenantID: c.TenantID, Role: c.Role}
}

// HasRole reports whether the principal holds any of roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// KeySource resolves RS256 verification keys by key id.
type KeySource interface {
	Get(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// Verifier validates HS256 tokens against a shared secret and RS256 tokens against a key
// source. Either may be left empty.
type Verifier struct {
	secret []byte
	keys   KeySource
	parser *jwt.Parser
}

func NewVerifier(secret string, keys KeySource) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		keys:   keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodRS256.Alg()}),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

func (v *Verifier) Enabled() bool {
	return v != nil && (len(v.secret) > 0 || v.keys != nil)
}

func (v *Verifier) Verify(ctx context.Context, token string) (Claims, error) {
	if !v.Enabled() {
		return Claims{}, ErrDisabled
	}
	var claims Claims
	parsed, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if len(v.secret) == 0 {
				return nil, jwt.ErrTokenUnverifiable
			}
			return v.secret, nil
		case *jwt.SigningMethodRSA:
			if v.keys == nil {
				return nil, jwt.ErrTokenUnverifiable
			}
			kid, _ := t.Header["kid"].(string)
			return v.keys.Get(ctx, kid)
		}
		return nil, jwt.ErrSignatureInvalid
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// SignHS256 issues a token with the shared secret. Used by local tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
