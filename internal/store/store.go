// Package store defines the persistence contract the orchestrator depends
// on. internal/store/postgres implements it against Postgres; this package
// also carries an in-memory Memory implementation used by orchestrator and
// httpapi tests.
package store

import (
	"context"
	"time"

	"github.com/actionhost/agentgate/internal/domain"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "store: not found" }

// Store is the full persistence surface the orchestrator and HTTP layer
// need. Its LastAuditEvent and AppendAuditEvent methods cover the narrower
// audit.Store contract, so an *audit.Log can be built directly on top of it.
type Store interface {
	CreateAgent(ctx context.Context, agent domain.Agent) error
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	GetAgentByKeyHash(ctx context.Context, keyHash string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	UpdateAgentKeyHash(ctx context.Context, id, keyHash string) error
	TouchAgentLastSeen(ctx context.Context, id string, at time.Time) error

	UpsertCapability(ctx context.Context, cap domain.AgentCapability) error
	GetCapability(ctx context.Context, agentID string, capType domain.CapabilityType) (*domain.AgentCapability, error)
	ListCapabilities(ctx context.Context, agentID string) ([]domain.AgentCapability, error)

	CreateRequest(ctx context.Context, req domain.ActionRequest) error
	GetRequest(ctx context.Context, id string) (*domain.ActionRequest, error)
	ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.ActionRequest, error)
	// UpdateRequestStatus performs a conditional transition (`UPDATE ...
	// WHERE status = expected`), returning ok=false without error when the
	// row's current status no longer matches expected.
	UpdateRequestStatus(ctx context.Context, id string, expected, next domain.RequestStatus) (ok bool, err error)

	CreatePlan(ctx context.Context, plan domain.Plan) error
	GetPlan(ctx context.Context, id string) (*domain.Plan, error)
	GetLatestPlanForRequest(ctx context.Context, requestID string) (*domain.Plan, error)

	CreateApproval(ctx context.Context, approval domain.Approval) error
	GetApprovalByPlan(ctx context.Context, planID string) (*domain.Approval, error)

	CreateReceipt(ctx context.Context, receipt domain.ExecutionReceipt) error

	GetSetting(ctx context.Context, key string) (*domain.Setting, error)
	SetSetting(ctx context.Context, setting domain.Setting) error
	ListSettings(ctx context.Context) ([]domain.Setting, error)

	CreateAdminUser(ctx context.Context, user domain.AdminUser) error
	GetAdminUserByUsername(ctx context.Context, username string) (*domain.AdminUser, error)

	LastAuditEvent(ctx context.Context) (*domain.AuditEvent, error)
	AppendAuditEvent(ctx context.Context, event domain.AuditEvent) error
	ListAuditEvents(ctx context.Context, sinceID string, limit int) ([]domain.AuditEvent, error)
}
