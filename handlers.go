package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// AuthHandlers exposes the identity subsystem over HTTP. Downstream
// link-management handlers consume the principal id these endpoints
// establish; nothing else in the service talks to the credential store.
type AuthHandlers struct {
	Local    *LocalAuth
	Resolver *Resolver
	Sessions *SessionIssuer
	Store    CredentialStore

	// ClientURL is where a completed federated login redirects, with
	// the session token attached as a query parameter.
	ClientURL string
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := parseCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	p, err := h.Local.Register(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.Sessions.Issue(p.ID)
	if err != nil {
		log.Println("error issuing session token: ", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       p.ID,
		"username": p.Username,
		"email":    p.Email,
		"token":    token,
	})
}

// HandleLogin handles POST /auth/login.
func (h *AuthHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := parseCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.Local.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Println("error validating credentials: ", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.Sessions.Issue(p.ID)
	if err != nil {
		log.Println("error issuing session token: ", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	resp := map[string]any{
		"id":       p.ID,
		"username": p.Username,
		"email":    p.Email,
		"token":    token,
	}
	if p.AvatarURL != "" {
		resp["avatar_url"] = p.AvatarURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMe handles GET /auth/me. It must be mounted behind
// Middleware.EnsureSession.
func (h *AuthHandlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	principalID, ok := PrincipalIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	p, err := h.Store.FindByID(r.Context(), principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "principal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	resp := map[string]any{
		"id":       p.ID,
		"username": p.Username,
		"email":    p.Email,
	}
	if p.AvatarURL != "" {
		resp["avatar_url"] = p.AvatarURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// CompleteFederated finishes a federated login: the provider callback
// hands over a verified assertion, we resolve it to a principal, issue a
// session token, and bounce the browser back to the client with the
// token in the query string.
func (h *AuthHandlers) CompleteFederated(w http.ResponseWriter, r *http.Request, a Assertion) {
	h.CompleteFederatedTo(w, r, a, h.ClientURL)
}

// CompleteFederatedTo is CompleteFederated with an explicit redirect
// target, for host apps that remember a per-login return location.
func (h *AuthHandlers) CompleteFederatedTo(w http.ResponseWriter, r *http.Request, a Assertion, clientURL string) {
	p, err := h.Resolver.Resolve(r.Context(), a)
	if err != nil {
		log.Println("error resolving federated assertion: ", err)
		writeError(w, http.StatusUnauthorized, "federated login failed")
		return
	}

	token, err := h.Sessions.Issue(p.ID)
	if err != nil {
		log.Println("error issuing session token: ", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	target := strings.TrimSuffix(clientURL, "/")
	http.Redirect(w, r, fmt.Sprintf("%s?token=%s", target, url.QueryEscape(token)), http.StatusFound)
}

func parseCredentials(r *http.Request) (*credentialsRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("error parsing form")
		}
		return &credentialsRequest{
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
			Username: r.FormValue("username"),
		}, nil
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid post body")
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
