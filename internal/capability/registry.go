package capability

import (
	"sync"

	"go.uber.org/zap"

	"github.com/actionhost/agentgate/internal/domain"
)

// Registry is the single-instance set of effectors keyed by capability
// type. Registration is idempotent: a second call for an already-bound
// type is a no-op, logged as a warning rather than an error, since it
// typically indicates a redundant call during startup rather than a
// programming mistake worth failing on.
type Registry struct {
	mu     sync.RWMutex
	log    *zap.Logger
	byType map[domain.CapabilityType]Effector
}

// NewRegistry constructs an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:    log,
		byType: make(map[domain.CapabilityType]Effector),
	}
}

// Register binds plugin to its Type(). Duplicate registration is ignored.
func (r *Registry) Register(plugin Effector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := plugin.Type()
	if _, exists := r.byType[t]; exists {
		r.log.Warn("effector already registered, ignoring duplicate", zap.String("type", string(t)))
		return
	}
	r.byType[t] = plugin
}

// Get returns the effector bound to t, if any.
func (r *Registry) Get(t domain.CapabilityType) (Effector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plugin, ok := r.byType[t]
	return plugin, ok
}

// RegisterBuiltins registers the four built-in effectors in the fixed,
// deterministic order the core relies on: filesystem, shell, network, echo.
func RegisterBuiltins(r *Registry) {
	r.Register(NewFilesystemEffector())
	r.Register(NewShellEffector())
	r.Register(NewNetworkEffector())
	r.Register(NewEchoEffector())
}
