// Package ratelimit implements the per-agent rate limiter that createRequest
// consults as a policy collaborator: read-then-act and racy by one request
// window, which the orchestrator accepts because the worst case is one
// extra pending request, not unauthorized execution.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerAgentLimiter holds one token-bucket limiter per agent, created lazily
// on first use.
type PerAgentLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New constructs a limiter allowing rps requests per second with burst
// capacity, per agent.
func New(rps float64, burst int) *PerAgentLimiter {
	return &PerAgentLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether agentID may proceed right now, consuming a token
// if so.
func (p *PerAgentLimiter) Allow(agentID string) bool {
	return p.limiterFor(agentID).Allow()
}

func (p *PerAgentLimiter) limiterFor(agentID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[agentID]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.limiters[agentID] = l
	}
	return l
}
