// Command insead-events-lambda runs one scrape-and-sync per invocation,
// typically from an EventBridge schedule.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/pfrederiksen/insead-events/internal/app"
	"github.com/pfrederiksen/insead-events/internal/config"
	"github.com/pfrederiksen/insead-events/internal/logger"
	"github.com/pfrederiksen/insead-events/internal/metrics"
)

// EnvConfigPath optionally points at a YAML config bundled with the function
const EnvConfigPath = "INSEAD_EVENTS_CONFIG"

// SyncRequest is the invocation payload. Every field is optional.
type SyncRequest struct {
	Store  string `json:"store,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
}

type runFunc func(ctx context.Context, cfg config.Config, opts app.Options) (*app.Summary, error)

type handler struct {
	configPath string
	log        *logger.Logger
	run        runFunc
}

func (h *handler) handle(ctx context.Context, req SyncRequest) (*app.Summary, error) {
	cfg, err := config.Read(h.configPath)
	if err != nil {
		return nil, err
	}
	if req.Store != "" {
		cfg.Store.Backend = req.Store
	}
	if req.DryRun {
		cfg.Store.Backend = config.BackendDryRun
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	summary, err := h.run(ctx, cfg, app.Options{
		Log:     h.log,
		Out:     os.Stdout,
		Metrics: metrics.New(),
	})
	if err != nil {
		return summary, err
	}
	if summary.SyncFailed() {
		// Returning an error marks the invocation failed so the schedule alarms.
		return summary, fmt.Errorf("run %s: some records failed to sync", summary.RunID)
	}
	return summary, nil
}

func main() {
	_ = godotenv.Load()

	h := &handler{
		configPath: os.Getenv(EnvConfigPath),
		log:        logger.Default(),
		run:        app.Run,
	}
	lambda.Start(h.handle)
}
