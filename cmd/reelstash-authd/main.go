// Command reelstash-authd serves the identity endpoints for the
// reelstash bookmarking service: password register/login, Google
// federated login, and the authenticated profile endpoint. Link CRUD
// lives in a separate service that consumes the session tokens issued
// here.
package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/caarlos0/env/v11"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/reelstash/identity"
	"github.com/reelstash/identity/oauth2"
	fsstore "github.com/reelstash/identity/stores/fs"
	gormstore "github.com/reelstash/identity/stores/gorm"
)

type config struct {
	Addr       string        `env:"AUTH_ADDR" envDefault:":8080"`
	SigningKey string        `env:"AUTH_SIGNING_KEY,required"`
	TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"720h"`

	// ClientURL is the frontend location a finished federated login
	// redirects to, token attached as ?token=.
	ClientURL string `env:"AUTH_CLIENT_URL" envDefault:"http://localhost:3000/auth/callback"`

	// DatabaseDSN selects the sqlite-backed store; when empty the
	// JSON-file store under StorageDir is used instead.
	DatabaseDSN string `env:"AUTH_DATABASE_DSN"`
	StorageDir  string `env:"AUTH_STORAGE_DIR" envDefault:"./data"`

	GoogleClientID     string `env:"OAUTH2_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"OAUTH2_GOOGLE_CALLBACK_URL"`
}

// sessionKeyNext remembers where to send the browser after a federated
// login that started with a ?next= parameter.
const sessionKeyNext = "authNextURL"

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalln("invalid configuration: ", err)
	}

	store, err := openStore(&cfg)
	if err != nil {
		log.Fatalln("failed opening credential store: ", err)
	}

	issuer, err := identity.NewSessionIssuer(cfg.SigningKey,
		identity.WithSessionTTL(cfg.TokenTTL))
	if err != nil {
		log.Fatalln("failed creating session issuer: ", err)
	}

	handlers := &identity.AuthHandlers{
		Local:     identity.NewLocalAuth(store),
		Resolver:  identity.NewResolver(store),
		Sessions:  issuer,
		Store:     store,
		ClientURL: cfg.ClientURL,
	}
	middleware := &identity.Middleware{Verify: issuer.Verify}

	// The scs session backs only the federated redirect flow; issued
	// tokens are stateless and never stored server-side.
	session := scs.New()
	session.Lifetime = 15 * time.Minute

	google := oauth2.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL,
		func(w http.ResponseWriter, r *http.Request, a identity.Assertion) {
			target := session.PopString(r.Context(), sessionKeyNext)
			if target == "" {
				target = cfg.ClientURL
			}
			handlers.CompleteFederatedTo(w, r, a, target)
		})

	router := mux.NewRouter()
	router.HandleFunc("/auth/register", handlers.HandleRegister).Methods("POST")
	router.HandleFunc("/auth/login", handlers.HandleLogin).Methods("POST")
	router.Handle("/auth/me", middleware.EnsureSession(http.HandlerFunc(handlers.HandleMe))).Methods("GET")
	router.HandleFunc("/auth/google", func(w http.ResponseWriter, r *http.Request) {
		if next := r.URL.Query().Get("next"); next != "" {
			session.Put(r.Context(), sessionKeyNext, next)
		}
		google.HandleBegin(w, r)
	}).Methods("GET")
	router.HandleFunc("/auth/google/callback", google.HandleCallback).Methods("GET")

	slog.Info("reelstash-authd listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, session.LoadAndSave(router)); err != nil {
		log.Fatalln("server error: ", err)
	}
}

func openStore(cfg *config) (identity.CredentialStore, error) {
	if cfg.DatabaseDSN != "" {
		db, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, err
		}
		slog.Info("using sqlite credential store", "dsn", cfg.DatabaseDSN)
		return gormstore.NewPrincipalStore(db), nil
	}

	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, err
	}
	slog.Info("using file credential store", "dir", cfg.StorageDir)
	return fsstore.NewPrincipalStore(cfg.StorageDir), nil
}
