// Package cmd defines and implements the CLI commands for the ingestor
// executable.
package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pressfeed/ingestor/internal/api"
	"github.com/pressfeed/ingestor/internal/consumer"
)

// newConsumeCmd creates the 'consume' subcommand, which runs the ingestion
// pipeline either continuously or as one bounded batch.
func newConsumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume article tasks from the priority queues",
		Long: `Drains the high, medium and low priority queues in strict order,
dispatching tasks to a bounded worker pool. In batch mode (the default) the
run stops once the queues stay empty or --max-items is reached; with
--continuous it runs until interrupted.`,

		RunE: runConsumeCommand,
	}

	cmd.Flags().Bool("continuous", false, "keep consuming instead of stopping on empty queues")
	cmd.Flags().Int("workers", 0, "worker pool size (default from config, 10)")
	cmd.Flags().Int("max-items", 0, "stop after this many tasks (0 = unlimited)")
	cmd.Flags().Bool("force", false, "re-scrape even on cache hits")

	return cmd
}

func runConsumeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = viper.GetInt("consumer.workers")
	}
	continuous, _ := cmd.Flags().GetBool("continuous")
	maxItems, _ := cmd.Flags().GetInt("max-items")
	force, _ := cmd.Flags().GetBool("force")

	cons := consumer.New(
		appInstance.Broker(),
		appInstance.Store(),
		appInstance.Cache(),
		appInstance.Scraper(),
		consumer.Config{
			Queues:     appInstance.Queues(),
			Workers:    workers,
			PopTimeout: appInstance.PopTimeout(),
			IdleSleep:  viper.GetDuration("consumer.idle_sleep"),
			Force:      force,
		},
		logger,
	)

	ops := api.New(viper.GetString("ops.listen_addr"), cons.Snapshot, logger)
	ops.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown", zap.Error(err))
		}
	}()

	// An interrupt stops the drain loop; the in-flight batch finishes and
	// final statistics are flushed before the command returns.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := cons.Run(ctx, consumer.RunOptions{
		Continuous: continuous,
		MaxItems:   maxItems,
	})
	logger.Info("consume finished",
		zap.Int("processed", stats.Processed),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed))
	return nil
}
