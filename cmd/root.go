package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pressfeed/ingestor/internal/app"
	"github.com/pressfeed/ingestor/internal/cache"
	"github.com/pressfeed/ingestor/internal/logging"
	"github.com/pressfeed/ingestor/internal/queue"
	"github.com/pressfeed/ingestor/internal/scraper"
	"github.com/pressfeed/ingestor/internal/store"
	"github.com/pressfeed/ingestor/pkg/config"
)

var verbose bool

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface that commands use. Keeping it an
// interface lets tests inject a mock app through the same context slot.
type App interface {
	Close()
	Logger() *zap.Logger
	Broker() queue.Broker
	Store() store.Store
	Cache() *cache.ArticleCache
	Scraper() *scraper.Scraper
	Queues() []string
	PopTimeout() time.Duration
}

// newApp is the application factory. It is a variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	return app.New(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingestor",
		Short: "Priority-queue article ingestion pipeline.",
		Long: `ingestor consumes article URLs from three priority-ordered queues,
decides scrape-or-skip through a cache-aside layer, fetches and extracts
article content from the live web and persists normalized records exactly
once per logical article.`,

		// Runs after config is loaded but before the subcommand's RunE:
		// the place to build and inject the application services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if verbose {
				logging.InitLogger(true)
			}
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(config.InitConfig)

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (development) logging")

	cmd.AddCommand(newConsumeCmd())
	cmd.AddCommand(newQueuesCmd())

	return cmd
}

// resolveApp retrieves the injected App from the command context.
func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. A startup failure exits non-zero before
// any queue or store operation runs.
func Execute() {
	logging.InitLogger(false)
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("command execution failed", zap.Error(err))
	}
}
