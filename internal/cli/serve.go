package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemforge/schemforge/internal/server"
	"github.com/schemforge/schemforge/pkg/cache"
	"github.com/schemforge/schemforge/pkg/pipeline"
	"github.com/schemforge/schemforge/pkg/report"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		redisURL string
		mongoURI string
		mongoDB  string
		scope    string
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline as an HTTP service",
		Long: `Run the pipeline as an HTTP service.

The server accepts inline schematics on POST /api/runs, executes the
full pipeline, and returns the run report with base64-encoded artifacts.
Reports are retrievable by run ID from GET /api/runs/{id}.

By default results are cached on disk and reports kept in memory. Use
--redis for a shared cache and --mongo for persistent reports, for
deployments with more than one replica.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, redisURL, mongoURI, mongoDB, scope, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&redisURL, "redis", "", "Redis URL for shared caching (e.g. redis://localhost:6379/0)")
	cmd.Flags().StringVar(&mongoURI, "mongo", "", "MongoDB URI for persistent reports (e.g. mongodb://localhost:27017)")
	cmd.Flags().StringVar(&mongoDB, "mongo-db", appName, "MongoDB database name")
	cmd.Flags().StringVar(&scope, "cache-scope", "", "prefix cache keys, for shared cache instances")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runServe wires the cache, keyer, and report store, then serves until
// the context is cancelled.
func (c *CLI) runServe(ctx context.Context, addr, redisURL, mongoURI, mongoDB, scope string, noCache bool) error {
	store, err := newStore(ctx, mongoURI, mongoDB)
	if err != nil {
		return fmt.Errorf("connect report store: %w", err)
	}
	defer store.Close(context.Background())

	cch, err := newServerCache(ctx, redisURL, noCache)
	if err != nil {
		return fmt.Errorf("connect cache: %w", err)
	}

	var keyer cache.Keyer = cache.NewDefaultKeyer()
	if scope != "" {
		keyer = cache.NewScopedKeyer(keyer, scope)
	}

	runner := pipeline.NewRunner(cch, keyer, c.Logger)
	defer runner.Close()

	return server.New(runner, store, c.Logger).ListenAndServe(ctx, addr)
}

// newServerCache prefers Redis when configured, falling back to the
// local file cache used by the rest of the CLI.
func newServerCache(ctx context.Context, redisURL string, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if redisURL != "" {
		return cache.NewRedisCache(ctx, redisURL)
	}
	return newCache(false)
}

// newStore builds the report store: MongoDB when configured, in-memory
// otherwise.
func newStore(ctx context.Context, mongoURI, mongoDB string) (report.Store, error) {
	if mongoURI == "" {
		return report.NewMemoryStore(), nil
	}
	return report.NewMongoStore(ctx, mongoURI, mongoDB)
}
