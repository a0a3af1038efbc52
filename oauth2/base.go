// Package oauth2 implements the provider-facing half of federated
// login: it runs the authorization-code handshake with an external
// OAuth provider and reduces the callback to a verified
// identity.Assertion. The resolver in the root package never sees a
// provider's wire format, only the assertion.
package oauth2

import (
	"net/http"

	"github.com/reelstash/identity"
)

// CompleteFunc is invoked with the verified assertion once a provider
// callback has been exchanged and validated. The host app uses it to
// resolve the principal and issue a session.
type CompleteFunc func(w http.ResponseWriter, r *http.Request, a identity.Assertion)

// Provider runs the redirect handshake for one external identity
// provider and verifies its callbacks.
type Provider interface {
	// Name is the provider's short name ("google", "github").
	Name() string

	// HandleBegin redirects the caller to the provider's consent page,
	// recording the anti-CSRF state and the post-login callback URL.
	HandleBegin(w http.ResponseWriter, r *http.Request)

	// HandleCallback validates the provider's redirect back, exchanges
	// the code, fetches the external profile and hands the resulting
	// assertion to the configured CompleteFunc.
	HandleCallback(w http.ResponseWriter, r *http.Request)
}

// Handler mounts a provider's begin and callback endpoints on a mux,
// relative to a prefix such as /auth/google.
func Handler(p Provider) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.HandleBegin)
	mux.HandleFunc("/callback", p.HandleCallback)
	return mux
}
