package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/actionhost/agentgate/internal/apierr"
	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/orchestrator"
)

// agentHandler implements the three agent-facing operations: submit an
// intent, preview it, and carry out an already-approved plan.
type agentHandler struct {
	orch *orchestrator.Orchestrator
	log  *zap.Logger
}

func (h *agentHandler) createActionRequest(w http.ResponseWriter, r *http.Request) {
	agentID, _ := agentIDFrom(r.Context())

	var input domain.ActionInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, apierr.New(apierr.Validation, "malformed request body"))
		return
	}

	requestID, err := h.orch.CreateRequest(r.Context(), agentID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"requestId": requestID})
}

func (h *agentHandler) dryRun(w http.ResponseWriter, r *http.Request) {
	agentID, _ := agentIDFrom(r.Context())
	requestID := chi.URLParam(r, "id")

	plan, summary, err := h.orch.DryRun(r.Context(), agentID, requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":    plan,
		"summary": summary,
	})
}

func (h *agentHandler) executePlan(w http.ResponseWriter, r *http.Request) {
	agentID, _ := agentIDFrom(r.Context())
	planID := chi.URLParam(r, "id")

	receipt, err := h.orch.ExecutePlan(r.Context(), agentID, planID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
