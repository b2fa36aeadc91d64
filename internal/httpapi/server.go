// Package httpapi wires the orchestrator's six operations and the store's
// admin-facing queries to the wire contract: a chi router split into an
// agent-authenticated group and an admin-session-authenticated group.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/actionhost/agentgate/internal/authn"
	"github.com/actionhost/agentgate/internal/orchestrator"
	"github.com/actionhost/agentgate/internal/store"
)

const sessionCookieName = "agentgate_session"
const sessionTTL = 12 * time.Hour

// Server is the top-level http.Handler for agentgated.
type Server struct {
	router *chi.Mux
	log    *zap.Logger

	store   store.Store
	orch    *orchestrator.Orchestrator
	session *authn.SessionIssuer

	admin *adminHandler
	agent *agentHandler
}

// New constructs the router and binds every route the wire contract names.
func New(st store.Store, orch *orchestrator.Orchestrator, session *authn.SessionIssuer, log *zap.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     log.Named("httpapi"),
		store:   st,
		orch:    orch,
		session: session,
		admin:   &adminHandler{store: st, orch: orch, session: session, log: log.Named("admin")},
		agent:   &agentHandler{orch: orch, log: log.Named("agent")},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", s.admin.login)

		r.Group(func(r chi.Router) {
			r.Use(adminAuth(s.session))

			r.Post("/logout", s.admin.logout)
			r.Get("/me", s.admin.me)

			r.Get("/agents", s.admin.listAgents)
			r.Post("/agents", s.admin.createAgent)
			r.Post("/agents/{id}/rotate-key", s.admin.rotateAgentKey)
			r.Patch("/agents/{id}/capabilities/{type}", s.admin.setCapability)

			r.Get("/settings", s.admin.listSettings)
			r.Get("/settings/{key}", s.admin.getSetting)
			r.Put("/settings/{key}", s.admin.putSetting)

			r.Get("/action-requests", s.admin.listActionRequests)
			r.Get("/action-requests/{id}", s.admin.getActionRequest)

			r.Post("/plans/{id}/approve", s.admin.approvePlan)

			r.Get("/safe-mode", s.admin.getSafeMode)
			r.Post("/safe-mode", s.admin.setSafeMode)
			r.Post("/lockdown", s.admin.lockdown)

			r.Get("/audit", s.admin.listAudit)
		})
	})

	r.Route("/api/agent", func(r chi.Router) {
		r.Use(agentAuth(s.store))

		r.Post("/action-requests", s.agent.createActionRequest)
		r.Post("/action-requests/{id}/dry-run", s.agent.dryRun)
		r.Post("/plans/{id}/execute", s.agent.executePlan)
	})
}

// ServeHTTP lets Server stand in for a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
