package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether the username or the password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked signals temporary lockout after repeated failed attempts.
	// Callers read the retry-after hint from the lockout state, not from this error.
	ErrAccountLocked = errors.New("account locked")
	// ErrMFAVerificationFailed covers every second-factor rejection: wrong code,
	// expired challenge, replayed token, consumed backup code.
	ErrMFAVerificationFailed = errors.New("mfa verification failed")
	ErrMFASetupFailed        = errors.New("mfa setup failed")
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionExpired        = errors.New("session expired")
	ErrSessionRevoked        = errors.New("session revoked")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidInput          = errors.New("invalid input")
	ErrConflict              = errors.New("conflict")
	// ErrConfigurationError marks a malformed policy update. The caller is already
	// privileged, so the wrapped detail may be returned verbatim.
	ErrConfigurationError = errors.New("configuration error")
	// ErrAuditWriteFailed is operational only. It is logged, never surfaced to the
	// authentication flow that triggered the write.
	ErrAuditWriteFailed = errors.New("audit write failed")
)
