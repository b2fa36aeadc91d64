package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/actionhost/agentgate/internal/audit"
	"github.com/actionhost/agentgate/internal/authn"
	"github.com/actionhost/agentgate/internal/capability"
	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/orchestrator"
	"github.com/actionhost/agentgate/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store, string) {
	t.Helper()
	st := store.NewMemory()
	registry := capability.NewRegistry(zap.NewNop())
	capability.RegisterBuiltins(registry)
	auditLog := audit.New(st)
	orch := orchestrator.New(st, registry, auditLog, nil, zap.NewNop())
	session := authn.NewSessionIssuer("test-secret", time.Hour)

	srv := New(st, orch, session, zap.NewNop())

	passwordHash, err := authn.HashPassword("correct-password", authn.MinBcryptCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := st.CreateAdminUser(context.Background(), domain.AdminUser{
		ID: "admin-1", Username: "root", PasswordHash: passwordHash, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create admin user: %v", err)
	}

	return srv, st, passwordHash
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv, _, _ := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Username: "root", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	srv, _, _ := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Username: "root", Password: "correct-password"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	found := false
	for _, c := range cookies {
		if c.Name == sessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session cookie to be set")
	}
}

func TestAdminEndpointRejectsMissingSession(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/agents", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func loginAndGetCookie(t *testing.T, srv *Server) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: "root", Password: "correct-password"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestCreateAgentAndUseKeyEndToEnd(t *testing.T) {
	srv, st, _ := newTestServer(t)
	cookie := loginAndGetCookie(t, srv)

	createBody, _ := json.Marshal(createAgentRequest{Name: "worker-1"})
	createReq := httptest.NewRequest(http.MethodPost, "/api/admin/agents", bytes.NewReader(createBody))
	createReq.AddCookie(cookie)
	createRec := httptest.NewRecorder()
	srv.ServeHTTP(createRec, createReq)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", createRec.Code, createRec.Body.String())
	}

	var created map[string]interface{}
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	agentID := created["id"].(string)
	apiKey := created["apiKey"].(string)

	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := st.UpsertCapability(context.Background(), domain.AgentCapability{AgentID: agentID, Type: domain.CapabilityFilesystem, Enabled: true}); err != nil {
		t.Fatalf("upsert capability: %v", err)
	}
	if err := st.SetSetting(context.Background(), domain.Setting{Key: domain.SettingAllowedRoots, Value: []interface{}{dir}}); err != nil {
		t.Fatalf("set allowed_roots: %v", err)
	}

	actionBody, _ := json.Marshal(domain.ActionInput{
		Type: domain.CapabilityFilesystem, Operation: "read", Params: map[string]interface{}{"path": path},
	})
	actionReq := httptest.NewRequest(http.MethodPost, "/api/agent/action-requests", bytes.NewReader(actionBody))
	actionReq.Header.Set("X-Agent-Key", apiKey)
	actionRec := httptest.NewRecorder()
	srv.ServeHTTP(actionRec, actionReq)
	if actionRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", actionRec.Code, actionRec.Body.String())
	}

	unauthorizedReq := httptest.NewRequest(http.MethodPost, "/api/agent/action-requests", bytes.NewReader(actionBody))
	unauthorizedReq.Header.Set("X-Agent-Key", "sk_agent_wrong")
	unauthorizedRec := httptest.NewRecorder()
	srv.ServeHTTP(unauthorizedRec, unauthorizedReq)
	if unauthorizedRec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d", unauthorizedRec.Code)
	}
}
