package store

import (
	"context"
	"sync"
	"time"

	"github.com/actionhost/agentgate/internal/domain"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store implementation used by orchestrator and
// httpapi tests; it holds no state beyond the process lifetime.
type Memory struct {
	mu sync.Mutex

	agents       map[string]domain.Agent
	capabilities map[string]domain.AgentCapability // key: agentID+"/"+type
	requests     map[string]domain.ActionRequest
	plans        map[string]domain.Plan
	plansByReq   map[string][]string // requestID -> plan IDs in creation order
	approvals    map[string]domain.Approval // key: planID
	receipts     []domain.ExecutionReceipt
	settings     map[string]domain.Setting
	adminUsers   map[string]domain.AdminUser // key: username
	auditEvents  []domain.AuditEvent
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		agents:       make(map[string]domain.Agent),
		capabilities: make(map[string]domain.AgentCapability),
		requests:     make(map[string]domain.ActionRequest),
		plans:        make(map[string]domain.Plan),
		plansByReq:   make(map[string][]string),
		approvals:    make(map[string]domain.Approval),
		settings:     make(map[string]domain.Setting),
		adminUsers:   make(map[string]domain.AdminUser),
	}
}

func capKey(agentID string, t domain.CapabilityType) string { return agentID + "/" + string(t) }

func (m *Memory) CreateAgent(_ context.Context, agent domain.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = agent
	return nil
}

func (m *Memory) GetAgent(_ context.Context, id string) (*domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) GetAgentByKeyHash(_ context.Context, keyHash string) (*domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.APIKeyHash == keyHash {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListAgents(_ context.Context) ([]domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) UpdateAgentKeyHash(_ context.Context, id, keyHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return ErrNotFound
	}
	a.APIKeyHash = keyHash
	m.agents[id] = a
	return nil
}

func (m *Memory) TouchAgentLastSeen(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return ErrNotFound
	}
	a.LastSeenAt = &at
	m.agents[id] = a
	return nil
}

func (m *Memory) UpsertCapability(_ context.Context, cap domain.AgentCapability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capabilities[capKey(cap.AgentID, cap.Type)] = cap
	return nil
}

func (m *Memory) GetCapability(_ context.Context, agentID string, capType domain.CapabilityType) (*domain.AgentCapability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.capabilities[capKey(agentID, capType)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ListCapabilities(_ context.Context, agentID string) ([]domain.AgentCapability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AgentCapability
	for _, c := range m.capabilities {
		if c.AgentID == agentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) CreateRequest(_ context.Context, req domain.ActionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*domain.ActionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListRequests(_ context.Context, status domain.RequestStatus) ([]domain.ActionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ActionRequest
	for _, r := range m.requests {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) UpdateRequestStatus(_ context.Context, id string, expected, next domain.RequestStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != expected {
		return false, nil
	}
	r.Status = next
	m.requests[id] = r
	return true, nil
}

func (m *Memory) CreatePlan(_ context.Context, plan domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = plan
	m.plansByReq[plan.RequestID] = append(m.plansByReq[plan.RequestID], plan.ID)
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id string) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) GetLatestPlanForRequest(_ context.Context, requestID string) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.plansByReq[requestID]
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	p := m.plans[ids[len(ids)-1]]
	return &p, nil
}

func (m *Memory) CreateApproval(_ context.Context, approval domain.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.approvals[approval.PlanID]; exists {
		return domain.ErrAlreadyDecided
	}
	m.approvals[approval.PlanID] = approval
	return nil
}

func (m *Memory) GetApprovalByPlan(_ context.Context, planID string) (*domain.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[planID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) CreateReceipt(_ context.Context, receipt domain.ExecutionReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, receipt)
	return nil
}

func (m *Memory) GetSetting(_ context.Context, key string) (*domain.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) SetSetting(_ context.Context, setting domain.Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[setting.Key] = setting
	return nil
}

func (m *Memory) ListSettings(_ context.Context) ([]domain.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Setting, 0, len(m.settings))
	for _, s := range m.settings {
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) CreateAdminUser(_ context.Context, user domain.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminUsers[user.Username] = user
	return nil
}

func (m *Memory) GetAdminUserByUsername(_ context.Context, username string) (*domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.adminUsers[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) LastAuditEvent(_ context.Context) (*domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.auditEvents) == 0 {
		return nil, nil
	}
	e := m.auditEvents[len(m.auditEvents)-1]
	return &e, nil
}

func (m *Memory) AppendAuditEvent(_ context.Context, event domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditEvents = append(m.auditEvents, event)
	return nil
}

func (m *Memory) ListAuditEvents(_ context.Context, sinceID string, limit int) ([]domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if sinceID != "" {
		for i, e := range m.auditEvents {
			if e.ID == sinceID {
				start = i + 1
				break
			}
		}
	}
	end := len(m.auditEvents)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	if start >= end {
		return nil, nil
	}
	out := make([]domain.AuditEvent, end-start)
	copy(out, m.auditEvents[start:end])
	return out, nil
}
