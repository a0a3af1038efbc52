package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const stateCookieName = "oauthstate"

func generateStateCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Println("Error generating rand: ", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		MaxAge:   600,
		HttpOnly: true,
	})
	return state
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// beginRedirect sets the state cookie and sends the caller to the
// provider's consent page.
func beginRedirect(config *oauth2.Config, w http.ResponseWriter, r *http.Request) {
	state := generateStateCookie(w)
	http.Redirect(w, r, config.AuthCodeURL(state), http.StatusFound)
}

// checkState verifies the anti-CSRF state round-trip on a callback.
func checkState(w http.ResponseWriter, r *http.Request) error {
	cookie, _ := r.Cookie(stateCookieName)
	if cookie == nil {
		return fmt.Errorf("oauth state cookie missing")
	}
	if r.FormValue("state") != cookie.Value {
		clearStateCookie(w)
		return fmt.Errorf("oauth state mismatch")
	}
	clearStateCookie(w)
	return nil
}
