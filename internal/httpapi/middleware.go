package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/actionhost/agentgate/internal/apierr"
	"github.com/actionhost/agentgate/internal/authn"
	"github.com/actionhost/agentgate/internal/store"
)

// agentAuth accepts either an `Authorization: Bearer sk_agent_...` header or
// an `X-Agent-Key` header, hashes the presented key, and resolves it to an
// agent through st. Unknown or malformed keys fail closed.
func agentAuth(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plaintext := r.Header.Get("X-Agent-Key")
			if plaintext == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					plaintext = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if plaintext == "" {
				writeError(w, apierr.New(apierr.Authentication, "missing agent key"))
				return
			}

			agent, err := st.GetAgentByKeyHash(r.Context(), authn.HashAPIKey(plaintext))
			if err != nil {
				writeError(w, apierr.New(apierr.Authentication, "invalid agent key"))
				return
			}

			go func() {
				_ = st.TouchAgentLastSeen(context.Background(), agent.ID, time.Now().UTC())
			}()

			next.ServeHTTP(w, r.WithContext(withAgentID(r.Context(), agent.ID)))
		})
	}
}

// adminAuth requires a valid session cookie signed by issuer.
func adminAuth(issuer *authn.SessionIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil {
				writeError(w, apierr.New(apierr.Authentication, "missing session cookie"))
				return
			}
			claims, err := issuer.Verify(cookie.Value)
			if err != nil {
				writeError(w, apierr.New(apierr.Authentication, "invalid or expired session"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withAdminUserID(r.Context(), claims.UserID)))
		})
	}
}
