package ratelimit

import "testing"

func TestAllowBurstThenDeny(t *testing.T) {
	l := New(1, 2)
	if !l.Allow("agent-1") {
		t.Fatal("expected first request to be allowed")
	}
	if !l.Allow("agent-1") {
		t.Fatal("expected second request within burst to be allowed")
	}
	if l.Allow("agent-1") {
		t.Fatal("expected third immediate request to be denied")
	}
}

func TestAllowIsPerAgent(t *testing.T) {
	l := New(1, 1)
	if !l.Allow("agent-1") {
		t.Fatal("expected agent-1 first request to be allowed")
	}
	if !l.Allow("agent-2") {
		t.Fatal("expected agent-2 to have its own independent bucket")
	}
}
