package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/reelstash/identity"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Google implements Provider for Google sign-in.
type Google struct {
	Complete CompleteFunc

	// UserInfoURL overrides the Google userinfo endpoint (tests).
	UserInfoURL string

	// Config is the underlying OAuth2 client configuration.
	Config oauth2.Config
}

func NewGoogle(clientID, clientSecret, callbackURL string, complete CompleteFunc) *Google {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}
	return &Google{
		Complete: complete,
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

func (g *Google) Name() string { return "google" }

func (g *Google) HandleBegin(w http.ResponseWriter, r *http.Request) {
	beginRedirect(&g.Config, w, r)
}

func (g *Google) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if err := checkState(w, r); err != nil {
		log.Println("google callback rejected: ", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := g.Config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Println("google code exchange failed: ", err)
		http.Error(w, "code exchange failed", http.StatusUnauthorized)
		return
	}

	assertion, err := g.fetchAssertion(token)
	if err != nil {
		log.Println("google userinfo fetch failed: ", err)
		http.Error(w, "failed to fetch user info", http.StatusUnauthorized)
		return
	}

	g.Complete(w, r, assertion)
}

func (g *Google) fetchAssertion(token *oauth2.Token) (identity.Assertion, error) {
	endpoint := g.UserInfoURL
	if endpoint == "" {
		endpoint = googleUserInfoURL
	}

	resp, err := http.Get(endpoint + "?access_token=" + token.AccessToken)
	if err != nil {
		return identity.Assertion{}, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return identity.Assertion{}, fmt.Errorf("failed reading user info: %w", err)
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return identity.Assertion{}, fmt.Errorf("failed parsing user info: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return identity.Assertion{}, fmt.Errorf("provider returned incomplete profile")
	}

	return identity.Assertion{
		ExternalID:  info.ID,
		Email:       info.Email,
		DisplayName: info.Name,
		AvatarURL:   info.Picture,
	}, nil
}
