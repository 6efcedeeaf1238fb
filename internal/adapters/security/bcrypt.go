package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

const (
	minBcryptCost     = 10
	defaultBcryptCost = 12
)

// BcryptHasher implements ports.PasswordHasher with the bcrypt-v1 scheme.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < minBcryptCost || cost > bcrypt.MaxCost {
		cost = defaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("%w: empty password", domain.ErrInvalidInput)
	}
	// bcrypt ignores input past 72 bytes; reject instead of silently
	// truncating.
	if len(plaintext) > 72 {
		return "", fmt.Errorf("%w: password exceeds 72 bytes", domain.ErrInvalidInput)
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(out), nil
}

func (h *BcryptHasher) Compare(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.ErrInvalidCredentials
		}
		return fmt.Errorf("bcrypt compare: %w", err)
	}
	return nil
}

var _ ports.PasswordHasher = (*BcryptHasher)(nil)
