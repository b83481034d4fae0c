package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/insead-events/internal/config"
	"github.com/pfrederiksen/insead-events/internal/httpclient"
	"github.com/pfrederiksen/insead-events/internal/logger"
)

// Open builds the store selected by cfg.Store.Backend.
// out receives dry-run output.
func Open(ctx context.Context, cfg config.Config, out io.Writer, log *logger.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendAirtable:
		a, err := NewAirtable(cfg.Store.Airtable, WithAirtableRetry(httpclient.Policy{
			MaxRetries:  cfg.Crawl.MaxRetries + 1,
			Initial:     cfg.Crawl.RetryBackoff,
			MaxInterval: 10 * time.Second,
			Log:         log,
		}))
		if err != nil {
			return nil, err
		}
		return a, nil

	case config.BackendDynamoDB:
		d, err := NewDynamoDBFromConfig(ctx, cfg.Store.DynamoDB)
		if err != nil {
			return nil, err
		}
		return d, nil

	case config.BackendPostgres:
		p, err := ConnectPostgres(ctx, cfg.Store.Postgres.URL)
		if err != nil {
			return nil, err
		}
		if err := p.EnsureSchema(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil

	case config.BackendFile:
		f, err := NewFile(cfg.Store.File.Path)
		if err != nil {
			return nil, err
		}
		if log != nil {
			log.Info("Using file store", logger.Fields{"path": f.Path()})
		}
		return f, nil

	case config.BackendDryRun:
		return NewDryRun(out), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
