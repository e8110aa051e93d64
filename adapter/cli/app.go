package cli

import (
	"context"

	"github.com/felixgeelhaar/flagwise/internal/flags/application"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

// App holds the CLI application dependencies.
type App struct {
	Evaluator     *application.Evaluator
	Administrator *application.Administrator

	Health  *observability.HealthRegistry
	Metrics *observability.InMemoryMetrics

	// HTTPAddr is where serve listens.
	HTTPAddr string

	// RunPeerSync consumes peer invalidations until ctx is done.
	RunPeerSync func(ctx context.Context) error
	// Migrate applies schema migrations and returns the files run.
	Migrate func(ctx context.Context) ([]string, error)
}

var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
