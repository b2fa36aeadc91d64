package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/actionhost/agentgate/internal/domain"
)

type memStore struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (m *memStore) LastAuditEvent(_ context.Context) (*domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil, nil
	}
	e := m.events[len(m.events)-1]
	return &e, nil
}

func (m *memStore) AppendAuditEvent(_ context.Context, e domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func TestAppendGenesis(t *testing.T) {
	store := &memStore{}
	log := New(store)

	event, err := log.Append(context.Background(), EventAgentCreated, map[string]interface{}{"agentId": "a1"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if event.PrevHash != domain.GenesisHash {
		t.Fatalf("expected GENESIS prevHash, got %s", event.PrevHash)
	}
}

func TestAppendChainsHashes(t *testing.T) {
	store := &memStore{}
	log := New(store)

	first, err := log.Append(context.Background(), EventAgentCreated, map[string]interface{}{"agentId": "a1"})
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	second, err := log.Append(context.Background(), EventRequestCreated, map[string]interface{}{"requestId": "r1"})
	if err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if second.PrevHash != first.EventHash {
		t.Fatalf("expected second.prevHash == first.eventHash, got %s vs %s", second.PrevHash, first.EventHash)
	}

	if err := Verify(store.events); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	store := &memStore{}
	log := New(store)

	if _, err := log.Append(context.Background(), EventAgentCreated, map[string]interface{}{"agentId": "a1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := log.Append(context.Background(), EventRequestCreated, map[string]interface{}{"requestId": "r1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	store.events[0].Data = map[string]interface{}{"eventType": EventAgentCreated, "data": map[string]interface{}{"agentId": "tampered"}, "timestamp": "2020-01-01T00:00:00Z"}

	if err := Verify(store.events); err == nil {
		t.Fatal("expected tampering to be detected")
	}
}

func TestAppendConcurrentIsLinearizable(t *testing.T) {
	store := &memStore{}
	log := New(store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = log.Append(context.Background(), EventRequestCreated, map[string]interface{}{"n": n})
		}(i)
	}
	wg.Wait()

	if len(store.events) != 20 {
		t.Fatalf("expected 20 events, got %d", len(store.events))
	}
	if err := Verify(store.events); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
