package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/actionhost/agentgate/internal/apierr"
	"github.com/actionhost/agentgate/internal/audit"
	"github.com/actionhost/agentgate/internal/authn"
	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/orchestrator"
	"github.com/actionhost/agentgate/internal/store"
)

// adminHandler implements the operator-facing surface: agent management,
// settings, the approval queue, safe mode, lockdown, and audit retrieval.
type adminHandler struct {
	store   store.Store
	orch    *orchestrator.Orchestrator
	session *authn.SessionIssuer
	log     *zap.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *adminHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.New(apierr.Validation, "malformed request body"))
		return
	}

	user, err := h.store.GetAdminUserByUsername(r.Context(), req.Username)
	if err != nil || !authn.VerifyPassword(req.Password, user.PasswordHash) {
		// Same response for unknown username and wrong password, so a
		// caller can't use response shape to enumerate valid usernames.
		writeError(w, apierr.New(apierr.Authentication, "invalid credentials"))
		return
	}

	token, err := h.session.Issue(user.ID)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "issue session", err))
		return
	}

	if _, err := h.orch.Audit(r.Context(), audit.EventAdminLogin, map[string]interface{}{"userId": user.ID}); err != nil {
		h.log.Warn("audit login failed", zap.Error(err))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sessionTTL),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"userId": user.ID, "username": user.Username})
}

func (h *adminHandler) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) me(w http.ResponseWriter, r *http.Request) {
	userID, _ := adminUserIDFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"userId": userID})
}

func (h *adminHandler) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.store.ListAgents(r.Context())
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "list agents", err))
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

type createAgentRequest struct {
	Name string `json:"name"`
}

func (h *adminHandler) createAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, apierr.New(apierr.Validation, "missing required field: name"))
		return
	}

	plaintext, err := authn.GenerateAPIKey()
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "generate agent key", err))
		return
	}

	agent := domain.Agent{
		ID:         uuid.NewString(),
		Name:       req.Name,
		APIKeyHash: authn.HashAPIKey(plaintext),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.store.CreateAgent(r.Context(), agent); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "persist agent", err))
		return
	}

	if _, err := h.orch.Audit(r.Context(), audit.EventAgentCreated, map[string]interface{}{"agentId": agent.ID, "name": agent.Name}); err != nil {
		h.log.Warn("audit agent creation failed", zap.Error(err))
	}

	// The plaintext key is returned exactly once, here; it is never
	// retrievable again.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     agent.ID,
		"name":   agent.Name,
		"apiKey": plaintext,
	})
}

func (h *adminHandler) rotateAgentKey(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	plaintext, err := authn.GenerateAPIKey()
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "generate agent key", err))
		return
	}
	if err := h.store.UpdateAgentKeyHash(r.Context(), agentID, authn.HashAPIKey(plaintext)); err != nil {
		if err == store.ErrNotFound {
			writeError(w, apierr.New(apierr.NotFound, "agent not found"))
			return
		}
		writeError(w, apierr.Wrap(apierr.Internal, "rotate agent key", err))
		return
	}
	if _, err := h.orch.Audit(r.Context(), audit.EventAgentKeyRotated, map[string]interface{}{"agentId": agentID}); err != nil {
		h.log.Warn("audit key rotation failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"apiKey": plaintext})
}

type setCapabilityRequest struct {
	Enabled bool                   `json:"enabled"`
	Config  map[string]interface{} `json:"config"`
}

func (h *adminHandler) setCapability(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	capType := domain.CapabilityType(chi.URLParam(r, "type"))

	var req setCapabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.New(apierr.Validation, "malformed request body"))
		return
	}

	config := req.Config
	if config == nil {
		if defaults, ok := h.orch.DefaultCapabilityConfig(capType); ok {
			config = defaults
		}
	}

	agentCap := domain.AgentCapability{
		ID:      uuid.NewString(),
		AgentID: agentID,
		Type:    capType,
		Enabled: req.Enabled,
		Config:  config,
	}
	if existing, err := h.store.GetCapability(r.Context(), agentID, capType); err == nil {
		agentCap.ID = existing.ID
	}
	if err := h.store.UpsertCapability(r.Context(), agentCap); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "persist capability", err))
		return
	}

	if _, err := h.orch.Audit(r.Context(), audit.EventCapabilityUpdated, map[string]interface{}{
		"agentId": agentID, "type": capType, "enabled": req.Enabled,
	}); err != nil {
		h.log.Warn("audit capability change failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, agentCap)
}

func (h *adminHandler) listSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ListSettings(r.Context())
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "list settings", err))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *adminHandler) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	setting, err := h.store.GetSetting(r.Context(), key)
	if err != nil {
		writeError(w, apierr.New(apierr.NotFound, "setting not found"))
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (h *adminHandler) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body struct {
		Value interface{} `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apierr.New(apierr.Validation, "malformed request body"))
		return
	}
	setting := domain.Setting{Key: key, Value: body.Value}
	if err := h.store.SetSetting(r.Context(), setting); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "persist setting", err))
		return
	}

	adminUserID, _ := adminUserIDFrom(r.Context())
	if _, err := h.orch.Audit(r.Context(), audit.EventSettingUpdated, map[string]interface{}{
		"key": key, "value": body.Value, "changedBy": adminUserID,
	}); err != nil {
		h.log.Warn("audit setting change failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, setting)
}

func (h *adminHandler) listActionRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(r.URL.Query().Get("status"))
	requests, err := h.store.ListRequests(r.Context(), status)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "list action requests", err))
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *adminHandler) getActionRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.store.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, apierr.New(apierr.NotFound, "action request not found"))
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type approvePlanRequest struct {
	Decision domain.Decision `json:"decision"`
}

func (h *adminHandler) approvePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")
	adminUserID, _ := adminUserIDFrom(r.Context())

	var req approvePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.New(apierr.Validation, "malformed request body"))
		return
	}
	if req.Decision != domain.DecisionApproved && req.Decision != domain.DecisionRejected {
		writeError(w, apierr.New(apierr.Validation, "decision must be approved or rejected"))
		return
	}

	if err := h.orch.ApprovePlan(r.Context(), adminUserID, planID, req.Decision); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) getSafeMode(w http.ResponseWriter, r *http.Request) {
	setting, err := h.store.GetSetting(r.Context(), domain.SettingSafeMode)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": setting.Value})
}

type setSafeModeRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *adminHandler) setSafeMode(w http.ResponseWriter, r *http.Request) {
	adminUserID, _ := adminUserIDFrom(r.Context())
	var req setSafeModeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.New(apierr.Validation, "malformed request body"))
		return
	}
	if err := h.orch.SetSafeMode(r.Context(), adminUserID, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": req.Enabled})
}

func (h *adminHandler) lockdown(w http.ResponseWriter, r *http.Request) {
	adminUserID, _ := adminUserIDFrom(r.Context())
	affected, err := h.orch.EmergencyLockdown(r.Context(), adminUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agentsAffected": affected})
}

func (h *adminHandler) listAudit(w http.ResponseWriter, r *http.Request) {
	sinceID := r.URL.Query().Get("since_id")
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	events, err := h.store.ListAuditEvents(r.Context(), sinceID, limit)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "list audit events", err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}
