package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/quorasec/iamcore/internal/application"
	"github.com/quorasec/iamcore/internal/domain"
)

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
		return
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, r, "login", err)
		return
	}
	if resp.MFARequired {
		writeSuccess(w, http.StatusAccepted, resp)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) mfaVerify(w http.ResponseWriter, r *http.Request) {
	var req application.MFAVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if req.ChallengeToken == "" || req.Method == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "challenge_token, method and code are required")
		return
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	resp, err := h.service.VerifyMFA(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, r, "mfa_verify", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		writeServiceError(r.Context(), w, "logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "refresh_token is required")
		return
	}

	tokens, err := h.service.RenewSession(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(r.Context(), w, "renew", err)
		return
	}
	writeSuccess(w, http.StatusOK, tokens)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ValidateToken(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, "validate", err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// writeAuthError maps login-path failures, attaching Retry-After on lockout.
func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	statusCode, code, message := mapDomainError(err)
	if errors.Is(err, domain.ErrAccountLocked) {
		if retryAfter, ok := retryAfterFromError(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		}
	}
	logHTTPOperationError(r.Context(), operation, statusCode, code, message, err)
	writeError(w, statusCode, code, message)
}
