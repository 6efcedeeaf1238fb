package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
)

// SetupMFA enrolls or updates a factor for the authenticated principal.
// Secrets and backup codes are returned exactly once, at enrollment.
func (s *Service) SetupMFA(ctx context.Context, rawToken string, req MFASetupRequest) (MFASetupResponse, error) {
	claims, _, err := s.authorize(ctx, rawToken)
	if err != nil {
		return MFASetupResponse{}, err
	}

	method := domain.MFAMethodType(req.Method)
	if !domain.ValidMFAMethodType(method) {
		return MFASetupResponse{}, fmt.Errorf("%w: unknown mfa method %q", domain.ErrInvalidInput, req.Method)
	}

	resp := MFASetupResponse{
		Method:   method,
		Enabled:  req.Enabled,
		Priority: req.Priority,
	}

	m := domain.MFAMethod{
		MethodID:    uuid.New(),
		PrincipalID: claims.PrincipalID,
		Type:        method,
		Enabled:     req.Enabled,
		Priority:    req.Priority,
	}

	switch method {
	case domain.MFAMethodTOTP:
		enrollment, err := s.totp.GenerateSecret(claims.Username)
		if err != nil {
			return MFASetupResponse{}, fmt.Errorf("%w: generate totp secret: %v", domain.ErrMFASetupFailed, err)
		}
		now := s.now()
		if err := s.mfa.UpsertTOTPSecret(ctx, claims.PrincipalID, enrollment.Secret, now); err != nil {
			return MFASetupResponse{}, fmt.Errorf("store totp secret: %w", err)
		}
		codes, hashes, err := s.generateBackupCodes()
		if err != nil {
			return MFASetupResponse{}, err
		}
		if err := s.mfa.ReplaceBackupCodes(ctx, claims.PrincipalID, hashes, now); err != nil {
			return MFASetupResponse{}, fmt.Errorf("store backup codes: %w", err)
		}
		resp.Secret = enrollment.Secret
		resp.ProvisioningURI = enrollment.ProvisioningURI
		resp.BackupCodes = codes

	case domain.MFAMethodSMS, domain.MFAMethodEmail:
		if req.Destination == "" {
			return MFASetupResponse{}, fmt.Errorf("%w: destination required for %s", domain.ErrInvalidInput, method)
		}
		m.Destination = req.Destination
		resp.MaskedDestination = maskDestination(req.Destination)

	case domain.MFAMethodHardwareToken, domain.MFAMethodBiometric:
		if req.RegistrationRef == "" {
			return MFASetupResponse{}, fmt.Errorf("%w: registration_ref required for %s", domain.ErrInvalidInput, method)
		}
		m.RegistrationRef = req.RegistrationRef
		resp.RegistrationRef = req.RegistrationRef
	}

	if err := s.mfa.UpsertMethod(ctx, m); err != nil {
		return MFASetupResponse{}, fmt.Errorf("store mfa method: %w", err)
	}

	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditMFASetup,
		PrincipalID: uuidPtr(claims.PrincipalID),
		SessionID:   uuidPtr(claims.SessionID),
		Detail:      map[string]any{"method": method, "enabled": req.Enabled},
	})
	return resp, nil
}

// generateBackupCodes mints one-time recovery codes; only their hashes are
// persisted.
func (s *Service) generateBackupCodes() ([]string, []string, error) {
	codes := make([]string, 0, s.cfg.BackupCodeCount)
	hashes := make([]string, 0, s.cfg.BackupCodeCount)
	for i := 0; i < s.cfg.BackupCodeCount; i++ {
		code, err := randomDigits(10)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, hashToken(code))
	}
	return codes, hashes, nil
}
