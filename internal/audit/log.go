// Package audit implements the append-only, hash-chained audit log. Every
// entry commits to the one before it, so tampering with or reordering a
// past entry is detectable by re-walking the chain.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/actionhost/agentgate/internal/canon"
	"github.com/actionhost/agentgate/internal/domain"
)

// Event types emitted by the core.
const (
	EventAdminLogin        = "ADMIN_LOGIN"
	EventAgentCreated      = "AGENT_CREATED"
	EventAgentKeyRotated   = "AGENT_KEY_ROTATED"
	EventCapabilityUpdated = "CAPABILITY_UPDATED"
	EventSettingUpdated    = "SETTING_UPDATED"
	EventSafeModeChanged   = "SAFE_MODE_CHANGED"
	EventEmergencyLockdown = "EMERGENCY_LOCKDOWN"
	EventRequestCreated    = "REQUEST_CREATED"
	EventDryRunComplete    = "DRY_RUN_COMPLETE"
	EventPlanDecision      = "PLAN_DECISION"
	EventPlanExecuted      = "PLAN_EXECUTED"
)

// Store is the minimal persistence contract the log needs. Implementations
// persist events durably; Log owns serializing the hash chain on top.
type Store interface {
	LastAuditEvent(ctx context.Context) (*domain.AuditEvent, error)
	AppendAuditEvent(ctx context.Context, event domain.AuditEvent) error
}

// Log serializes all chain-extending appends behind a single mutex. Two
// goroutines calling Append concurrently still produce a linear, gapless
// prevHash -> eventHash sequence; only the hash computation itself needs
// this lock — the underlying Store may batch or persist asynchronously as
// long as LastAuditEvent reflects everything already appended through it.
type Log struct {
	store Store
	mu    sync.Mutex
}

// New constructs a Log backed by store.
func New(store Store) *Log {
	return &Log{store: store}
}

// payload is the canonicalized triple hashed into each event.
type payload struct {
	EventType string      `json:"eventType"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Append computes the next link in the chain and persists it. data may be
// any JSON-marshalable value describing what happened.
func (l *Log) Append(ctx context.Context, eventType string, data interface{}) (domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := domain.GenesisHash
	last, err := l.store.LastAuditEvent(ctx)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("audit: fetch last event: %w", err)
	}
	if last != nil {
		prevHash = last.EventHash
	}

	now := time.Now().UTC()
	p := payload{EventType: eventType, Data: data, Timestamp: now.Format(time.RFC3339Nano)}

	canonBytes, err := canon.JSON(p)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("audit: canonicalize payload: %w", err)
	}
	eventHash := canon.SHA256Hex([]byte(prevHash + string(canonBytes)))

	event := domain.AuditEvent{
		ID:        uuid.NewString(),
		PrevHash:  prevHash,
		EventHash: eventHash,
		EventType: eventType,
		Data:      p,
		CreatedAt: now,
	}

	if err := l.store.AppendAuditEvent(ctx, event); err != nil {
		return domain.AuditEvent{}, fmt.Errorf("audit: persist event: %w", err)
	}
	return event, nil
}

// Verify walks events in ascending insertion order and checks that each
// eventHash commits to its own prevHash+data, and that each prevHash
// matches the previous row's eventHash (GENESIS for the first row).
func Verify(events []domain.AuditEvent) error {
	prevHash := domain.GenesisHash
	for i, e := range events {
		if e.PrevHash != prevHash {
			return fmt.Errorf("audit: chain break at index %d: prevHash %q does not match prior eventHash %q", i, e.PrevHash, prevHash)
		}
		canonBytes, err := canon.JSON(e.Data)
		if err != nil {
			return fmt.Errorf("audit: canonicalize event %d data: %w", i, err)
		}
		want := canon.SHA256Hex([]byte(e.PrevHash + string(canonBytes)))
		if want != e.EventHash {
			return fmt.Errorf("audit: hash mismatch at index %d: want %s, got %s", i, want, e.EventHash)
		}
		prevHash = e.EventHash
	}
	return nil
}
