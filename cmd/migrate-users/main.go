// Command migrate-users absorbs the retired hosted-auth directory into
// the credential store and rewrites saved-link ownership to the new
// principal ids. Run it once per environment; reruns are safe and
// repair any records a previous interrupted run left behind.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/reelstash/identity"
	"github.com/reelstash/identity/legacy"
	fsstore "github.com/reelstash/identity/stores/fs"
	gormstore "github.com/reelstash/identity/stores/gorm"
)

type config struct {
	LegacyBaseURL    string `env:"LEGACY_AUTH_URL,required"`
	LegacyServiceKey string `env:"LEGACY_SERVICE_KEY,required"`

	DatabaseDSN string `env:"AUTH_DATABASE_DSN"`
	StorageDir  string `env:"AUTH_STORAGE_DIR" envDefault:"./data"`

	PageSize int           `env:"MIGRATE_PAGE_SIZE" envDefault:"50"`
	Timeout  time.Duration `env:"MIGRATE_TIMEOUT" envDefault:"30m"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalln("invalid configuration: ", err)
	}

	store, links, err := openStores(&cfg)
	if err != nil {
		log.Fatalln("failed opening stores: ", err)
	}

	migrator := legacy.NewMigrator(
		legacy.NewClient(cfg.LegacyBaseURL, cfg.LegacyServiceKey),
		store, links)
	migrator.PageSize = cfg.PageSize

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	summary, err := migrator.Run(ctx)
	if err != nil {
		log.Fatalln("migration aborted: ", err)
	}

	slog.Info("migration finished",
		"migrated", summary.Migrated,
		"failed", summary.Failed,
		"links_rewritten", summary.LinksRewritten)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func openStores(cfg *config) (identity.CredentialStore, identity.LinkRewriter, error) {
	if cfg.DatabaseDSN != "" {
		db, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN), &gorm.Config{})
		if err != nil {
			return nil, nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, nil, err
		}
		return gormstore.NewPrincipalStore(db), gormstore.NewLinkStore(db), nil
	}

	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, nil, err
	}
	return fsstore.NewPrincipalStore(cfg.StorageDir), fsstore.NewLinkStore(cfg.StorageDir), nil
}
