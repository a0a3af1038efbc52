package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/reelstash/identity"
)

const githubUserInfoURL = "https://api.github.com/user"

// Github implements Provider for GitHub sign-in.
type Github struct {
	Complete CompleteFunc

	// UserInfoURL overrides the GitHub user endpoint (tests).
	UserInfoURL string

	// Config is the underlying OAuth2 client configuration.
	Config oauth2.Config
}

func NewGithub(clientID, clientSecret, callbackURL string, complete CompleteFunc) *Github {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_GITHUB_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_GITHUB_CALLBACK_URL")
	}
	return &Github{
		Complete: complete,
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

func (g *Github) Name() string { return "github" }

func (g *Github) HandleBegin(w http.ResponseWriter, r *http.Request) {
	beginRedirect(&g.Config, w, r)
}

func (g *Github) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if err := checkState(w, r); err != nil {
		log.Println("github callback rejected: ", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := g.Config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Println("github code exchange failed: ", err)
		http.Error(w, "code exchange failed", http.StatusUnauthorized)
		return
	}

	assertion, err := g.fetchAssertion(token)
	if err != nil {
		log.Println("github user fetch failed: ", err)
		http.Error(w, "failed to fetch user info", http.StatusUnauthorized)
		return
	}

	g.Complete(w, r, assertion)
}

func (g *Github) fetchAssertion(token *oauth2.Token) (identity.Assertion, error) {
	endpoint := g.UserInfoURL
	if endpoint == "" {
		endpoint = githubUserInfoURL
	}

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return identity.Assertion{}, fmt.Errorf("failed building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return identity.Assertion{}, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return identity.Assertion{}, fmt.Errorf("failed reading user info: %w", err)
	}

	// GitHub identifies users by a numeric id; login is the handle and
	// name may be empty.
	var info struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return identity.Assertion{}, fmt.Errorf("failed parsing user info: %w", err)
	}
	if info.ID == 0 || info.Email == "" {
		return identity.Assertion{}, fmt.Errorf("provider returned incomplete profile")
	}

	display := info.Name
	if display == "" {
		display = info.Login
	}
	return identity.Assertion{
		ExternalID:  strconv.FormatInt(info.ID, 10),
		Email:       info.Email,
		DisplayName: display,
		AvatarURL:   info.AvatarURL,
	}, nil
}
