// Package pipeline wires configuration into a ready http.Client whose
// transport restores scrambled pages.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/udisondev/pagelock/internal/config"
	"github.com/udisondev/pagelock/internal/db"
	"github.com/udisondev/pagelock/internal/imaging"
	"github.com/udisondev/pagelock/internal/intercept"
	"github.com/udisondev/pagelock/internal/keys"
	"github.com/udisondev/pagelock/internal/model"
)

// Pipeline owns the intercepting client and the resources behind it.
type Pipeline struct {
	Client    *http.Client
	Transport *intercept.Transport
	Tables    *keys.TableResolver
	Scripts   *keys.ScriptResolver

	database *db.DB
}

// New builds the pipeline. With cache.persist the key material cache writes
// through to PostgreSQL, migrations are applied first.
func New(ctx context.Context, cfg config.Pagelock, base http.RoundTripper) (*Pipeline, error) {
	p := &Pipeline{}

	var store keys.Store
	if cfg.Cache.Persist {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			database.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("key material persisted", "host", cfg.Database.Host, "db", cfg.Database.DBName)
		p.database = database
		store = database.KeyStore()
	}

	// Клиент для вспомогательных запросов ключей идёт мимо перехватчика.
	keyClient := &http.Client{Transport: base}
	opts := []keys.Option{
		keys.WithTimeout(cfg.HTTP.KeyTimeout),
		keys.WithUserAgent(cfg.HTTP.UserAgent),
	}

	if cfg.SpeedBinb.Enabled {
		p.Tables = keys.NewTableResolver(keyClient, keys.NewCache[model.ChapterKeys](cfg.Cache.TTL, store), opts...)
	}
	if cfg.ColaManga.Enabled {
		scripts, err := keys.NewScriptResolver(keyClient, cfg.ColaManga.ScriptURL, keys.NewCache[model.KeyMapping](cfg.Cache.TTL, store), opts...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("creating colamanga script resolver: %w", err)
		}
		p.Scripts = scripts
	}

	rules, err := intercept.NewRules(cfg, intercept.Resolvers{Tables: p.Tables, Scripts: p.Scripts})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("building rules: %w", err)
	}

	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name())
	}
	slog.Info("page rules enabled", "rules", names)

	p.Transport = intercept.NewTransport(base,
		intercept.WithRules(rules...),
		intercept.WithCompositor(imaging.NewCompositor(cfg.Output.JPEGQuality, cfg.Output.KeepPNG, cfg.Output.MaxWidth)),
	)
	p.Client = &http.Client{Transport: p.Transport}
	return p, nil
}

// Close releases the database pool, if any.
func (p *Pipeline) Close() {
	if p.database != nil {
		p.database.Close()
		p.database = nil
	}
}
