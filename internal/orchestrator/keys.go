package orchestrator

import "github.com/actionhost/agentgate/internal/authn"

// generateAndHashKey mints a fresh plaintext agent key and returns only
// its hash — callers that must not leak the plaintext (lockdown) use this;
// callers that need to hand the key back once (agent creation, rotation)
// call authn.GenerateAPIKey directly.
func generateAndHashKey() (string, error) {
	plaintext, err := authn.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	return authn.HashAPIKey(plaintext), nil
}
