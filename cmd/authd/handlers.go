package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/middleware"
)

const maxJSONBody = 1 << 20

type handlers struct {
	engine *authguard.Engine
	store  accountStore
	now    func() time.Time
	// registerRoles are the roles open to self-service registration; the
	// first is the default.
	registerRoles []string
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"session_id"`
}

func (h *handlers) tokens(p *authguard.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        p.ExpiresIn(h.now()),
		RefreshExpiresAt: p.RefreshExpiresAt,
		SessionID:        p.SessionID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "malformed JSON body"})
		return false
	}
	return true
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Health(r.Context())
	status := http.StatusOK
	if !st.RedisAvailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"redis":      st.RedisAvailable,
		"latency_ms": st.RedisLatency.Milliseconds(),
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := h.engine.Login(r.Context(), body.Identifier, body.Password,
		authguard.SessionContextFromRequest(r), body.RememberMe)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		tokenResponse
		UserID     string `json:"user_id"`
		Role       string `json:"role"`
		Suspicious bool   `json:"suspicious"`
	}{h.tokens(res.Tokens), res.Identity.UserID, res.Identity.Role, res.Suspicious})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
		Role       string `json:"role"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Identifier) == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "identifier and password are required"})
		return
	}
	role := body.Role
	if role == "" {
		role = h.registerRoles[0]
	}
	if !slices.Contains(h.registerRoles, role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "role is not open for registration"})
		return
	}

	res, err := h.engine.Register(r.Context(), authguard.Registration{
		Identifier: body.Identifier,
		Password:   body.Password,
		Role:       role,
	}, authguard.SessionContextFromRequest(r))
	if err != nil {
		var ae *authguard.Error
		if errors.As(err, &ae) && ae.Kind == authguard.KindWeakPassword {
			writeJSON(w, middleware.StatusFor(ae.Kind), map[string]any{
				"error":      ae.Kind.String(),
				"message":    ae.Error(),
				"violations": ae.Violations,
			})
			return
		}
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		tokenResponse
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}{h.tokens(res.Tokens), res.Identity.UserID, res.Identity.Role})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	pair, err := h.engine.RotateTokens(r.Context(), body.RefreshToken)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.tokens(pair))
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Logout(r.Context(), bearer(r)); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	acc, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, authguard.ErrInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":    acc.UserID,
		"role":       acc.Role,
		"session_id": acc.SessionID,
	})
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	acc, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, authguard.ErrInvalidToken)
		return
	}
	list, err := h.engine.ListActiveSessions(r.Context(), acc.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, s := range list {
		out = append(out, map[string]any{
			"session_id":    s.SessionID,
			"current":       s.SessionID == acc.SessionID,
			"suspicious":    s.Suspicious,
			"country":       s.Country,
			"city":          s.City,
			"device_type":   s.DeviceType,
			"browser":       s.Browser,
			"os":            s.OS,
			"created_at":    s.CreatedAt,
			"last_activity": s.LastActivity,
			"expires_at":    s.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// revokeSession ends one of the caller's own sessions.
func (h *handlers) revokeSession(w http.ResponseWriter, r *http.Request) {
	acc, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, authguard.ErrInvalidToken)
		return
	}
	id := chi.URLParam(r, "id")
	list, err := h.engine.ListActiveSessions(r.Context(), acc.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	owned := false
	for _, s := range list {
		if s.SessionID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "session not found"})
		return
	}
	if err := h.engine.RevokeSession(r.Context(), id); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) securityEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.store.ListSecurityEvents(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if events == nil {
		events = []authguard.SecurityEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
