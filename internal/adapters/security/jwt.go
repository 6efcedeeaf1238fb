package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

const tokenIssuer = "iamcore"

type tokenClaims struct {
	Username    string   `json:"username"`
	Roles       []string `json:"roles,omitempty"`
	SessionID   string   `json:"sid"`
	MFAVerified bool     `json:"mfa_verified"`
	Kind        string   `json:"kind"`
	jwt.RegisteredClaims
}

// JWTSigner issues and validates RS256 tokens. Key material comes from a PEM
// block in production; with no key configured it generates an ephemeral pair,
// which keeps dev and test environments honest about signature verification
// while invalidating all tokens on restart.
type JWTSigner struct {
	privateKey *rsa.PrivateKey
	keyID      string
}

func NewJWTSigner(privateKeyPEM []byte) (*JWTSigner, error) {
	var key *rsa.PrivateKey
	if len(privateKeyPEM) > 0 {
		parsed, err := parsePrivateKeyPEM(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: parse signing key: %v", domain.ErrConfigurationError, err)
		}
		key = parsed
	} else {
		generated, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		key = generated
	}
	return &JWTSigner{privateKey: key, keyID: deriveKeyID(&key.PublicKey)}, nil
}

func parsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not RSA")
	}
	return key, nil
}

// deriveKeyID fingerprints the public modulus so the kid is stable for a
// given key without extra configuration.
func deriveKeyID(pub *rsa.PublicKey) string {
	sum := sha256.Sum256(pub.N.Bytes())
	return hex.EncodeToString(sum[:8])
}

func (s *JWTSigner) Sign(claims ports.AuthClaims) (string, error) {
	tc := tokenClaims{
		Username:    claims.Username,
		Roles:       claims.Roles,
		SessionID:   claims.SessionID.String(),
		MFAVerified: claims.MFAVerified,
		Kind:        string(claims.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   claims.PrincipalID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			NotBefore: jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, tc)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTSigner) ParseAndValidate(raw string) (ports.AuthClaims, error) {
	var tc tokenClaims
	token, err := jwt.ParseWithClaims(raw, &tc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != s.keyID {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return &s.privateKey.PublicKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}

	principalID, err := uuid.Parse(tc.Subject)
	if err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	sessionID, err := uuid.Parse(tc.SessionID)
	if err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}

	out := ports.AuthClaims{
		PrincipalID: principalID,
		Username:    tc.Username,
		Roles:       tc.Roles,
		SessionID:   sessionID,
		MFAVerified: tc.MFAVerified,
		Kind:        ports.TokenKind(tc.Kind),
		KeyID:       s.keyID,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}

// PublicJWKs exposes the verification key set for sibling services that
// validate tokens locally instead of calling introspection.
func (s *JWTSigner) PublicJWKs() ([]map[string]any, error) {
	pub := &s.privateKey.PublicKey
	return []map[string]any{{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": s.keyID,
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}, nil
}

var _ ports.TokenSigner = (*JWTSigner)(nil)
