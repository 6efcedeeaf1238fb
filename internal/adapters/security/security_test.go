package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

func TestBcryptHashAndCompare(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(minBcryptCost)

	hash, err := h.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "s3cret-password" {
		t.Fatalf("hash must not equal plaintext")
	}

	if err := h.Compare(hash, "s3cret-password"); err != nil {
		t.Fatalf("compare with correct password failed: %v", err)
	}
	if err := h.Compare(hash, "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestBcryptRejectsDegenerateInput(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(minBcryptCost)

	if _, err := h.Hash(""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected rejection of empty password, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("x", 73)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected rejection past bcrypt's 72-byte limit, got %v", err)
	}
}

func TestJWTSignParseRoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := NewJWTSigner(nil)
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	in := ports.AuthClaims{
		PrincipalID: uuid.New(),
		Username:    "alice",
		Roles:       []string{"viewer", "editor"},
		SessionID:   uuid.New(),
		MFAVerified: true,
		Kind:        ports.TokenKindAccess,
		IssuedAt:    now,
		ExpiresAt:   now.Add(15 * time.Minute),
	}

	raw, err := signer.Sign(in)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	out, err := signer.ParseAndValidate(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.PrincipalID != in.PrincipalID || out.SessionID != in.SessionID {
		t.Fatalf("identity fields lost in round trip: %+v", out)
	}
	if out.Username != "alice" || !out.MFAVerified || out.Kind != ports.TokenKindAccess {
		t.Fatalf("claim fields lost in round trip: %+v", out)
	}
	if len(out.Roles) != 2 {
		t.Fatalf("roles lost in round trip: %v", out.Roles)
	}
	if !out.ExpiresAt.Equal(in.ExpiresAt) {
		t.Fatalf("expiry mismatch: %v != %v", out.ExpiresAt, in.ExpiresAt)
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	signer, err := NewJWTSigner(nil)
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}

	now := time.Now().UTC()
	raw, err := signer.Sign(ports.AuthClaims{
		PrincipalID: uuid.New(),
		SessionID:   uuid.New(),
		Kind:        ports.TokenKindAccess,
		IssuedAt:    now.Add(-time.Hour),
		ExpiresAt:   now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := signer.ParseAndValidate(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestJWTRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	signerA, err := NewJWTSigner(nil)
	if err != nil {
		t.Fatalf("build signer a: %v", err)
	}
	signerB, err := NewJWTSigner(nil)
	if err != nil {
		t.Fatalf("build signer b: %v", err)
	}

	now := time.Now().UTC()
	raw, err := signerA.Sign(ports.AuthClaims{
		PrincipalID: uuid.New(),
		SessionID:   uuid.New(),
		Kind:        ports.TokenKindAccess,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := signerB.ParseAndValidate(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign key, got %v", err)
	}
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	signer, err := NewJWTSigner(nil)
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}

	now := time.Now().UTC()
	raw, err := signer.Sign(ports.AuthClaims{
		PrincipalID: uuid.New(),
		SessionID:   uuid.New(),
		Kind:        ports.TokenKindAccess,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := signer.ParseAndValidate(tampered); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for tampered payload, got %v", err)
	}
	if _, err := signer.ParseAndValidate("not-a-token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for garbage, got %v", err)
	}
}

func TestJWTPublicJWKs(t *testing.T) {
	t.Parallel()

	signer, err := NewJWTSigner(nil)
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}
	keys, err := signer.PublicJWKs()
	if err != nil {
		t.Fatalf("jwks failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected one key, got %d", len(keys))
	}
	key := keys[0]
	if key["kty"] != "RSA" || key["alg"] != "RS256" || key["use"] != "sig" {
		t.Fatalf("unexpected jwk header fields: %v", key)
	}
	if key["kid"] == "" || key["n"] == "" || key["e"] == "" {
		t.Fatalf("jwk misses key material: %v", key)
	}
}

func TestJWTRejectsMalformedPEM(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTSigner([]byte("not a pem block")); !errors.Is(err, domain.ErrConfigurationError) {
		t.Fatalf("expected ErrConfigurationError, got %v", err)
	}
}

func TestTOTPGenerateAndValidateWithSkew(t *testing.T) {
	t.Parallel()

	p := NewTOTPProvider()
	enrollment, err := p.GenerateSecret("alice")
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if enrollment.Secret == "" {
		t.Fatalf("expected secret material")
	}
	if !strings.Contains(enrollment.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning uri: %s", enrollment.ProvisioningURI)
	}

	at := time.Date(2026, 3, 14, 12, 0, 15, 0, time.UTC)
	code, err := totp.GenerateCodeCustom(enrollment.Secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}

	ok, err := p.Validate(code, enrollment.Secret, at)
	if err != nil || !ok {
		t.Fatalf("expected valid code at issue time, ok=%v err=%v", ok, err)
	}

	// One 30s step of skew in both directions stays inside the window.
	if ok, _ := p.Validate(code, enrollment.Secret, at.Add(30*time.Second)); !ok {
		t.Fatalf("expected code accepted one step late")
	}
	if ok, _ := p.Validate(code, enrollment.Secret, at.Add(-30*time.Second)); !ok {
		t.Fatalf("expected code accepted one step early")
	}
	if ok, _ := p.Validate(code, enrollment.Secret, at.Add(2*time.Minute)); ok {
		t.Fatalf("expected code rejected outside skew window")
	}
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if ok, _ := p.Validate(wrong, enrollment.Secret, at); ok {
		t.Fatalf("expected wrong code rejected")
	}
}
