// Package cli builds the scrapequeue command tree: serve, migrate,
// stats and enqueue. Grounded on ChuLiYu-raft-recovery's internal/cli.BuildCLI,
// which assembles the same shape (one root *cobra.Command, config
// loaded from a --config flag, one buildXCommand per subcommand).
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/bus"
	"github.com/scrapeloop/queue/config"
	"github.com/scrapeloop/queue/job"
	"github.com/scrapeloop/queue/metrics"
	"github.com/scrapeloop/queue/owner"
	"github.com/scrapeloop/queue/store/bunstore"
)

var configFile string

// BuildCLI assembles the root scrapequeue command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scrapequeue",
		Short: "scrapequeue: a durable job queue for a scraping platform",
		Long: `scrapequeue dispatches, leases and accounts for scrape jobs
backed by Postgres, with an optional AMQP prefetch/notification tier.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "scrapequeue.yaml", "config file path")

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildMigrateCommand())
	rootCmd.AddCommand(buildStatsCommand())
	rootCmd.AddCommand(buildEnqueueCommand())

	return rootCmd
}

func openStore(cfg *config.Config) (*bunstore.Store, error) {
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	return bunstore.NewPostgresStore(cfg.Postgres.DSN, cfg.Queue.Name)
}

func buildServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Dispatcher, Reaper, GroupSweeper and Retention loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	return cmd
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var bridge queue.Bridge
	var notify queue.Notifier = s
	if cfg.Bus.URL != "" {
		session := bus.NewSession(cfg.Bus.URL, bus.DefaultBackoff, log)
		if err := session.Start(ctx); err != nil {
			return fmt.Errorf("start bus session: %w", err)
		}
		defer session.Stop()
		bridge = bus.NewSender(session, cfg.Queue.Name)
		notify = bus.NewNotifier(session)
	}

	q := queue.New(s, bridge, notify, cfg.QueueConfig(), log)
	if err := q.Start(ctx); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Queue.Name)
		if err := collector.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		sampler := metrics.NewSampler(q, collector, 10*time.Second, log)
		sampler.PoolStats = func() sql.DBStats { return s.DB().Stats() }
		if err := sampler.Start(ctx); err != nil {
			return fmt.Errorf("start metrics sampler: %w", err)
		}
		defer sampler.Stop(5 * time.Second)

		addr := cfg.Metrics.Addr
		if addr == "" {
			addr = ":9090"
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			log.Info("metrics server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	log.Info("scrapequeue started", "name", cfg.Queue.Name)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	return q.Stop(10 * time.Second)
}

func buildMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the jobs/groups/concurrency tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			s, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			if err := s.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("migration complete")
			return nil
		},
	}
	return cmd
}

func buildStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a job-count snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			s, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			counts, err := s.Snapshot(cmd.Context(), cfg.Queue.ConcurrencyLimit.ToStore())
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			out := map[string]int64{"concurrency-limited": counts.ConcurrencyLimited}
			for status, n := range counts.Counts {
				out[status.String()] = n
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	return cmd
}

func buildEnqueueCommand() *cobra.Command {
	var ownerID string
	var data string
	var priority int

	cmd := &cobra.Command{
		Use:   "enqueue [job-id]",
		Short: "Enqueue a single job from the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			s, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("job-id must be a UUID: %w", err)
			}

			var payload map[string]any
			if data != "" {
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("parse --data as JSON: %w", err)
				}
			}

			j := &job.Job{
				ID:       id,
				Status:   job.Queued,
				Priority: priority,
				Data:     payload,
				OwnerID:  owner.Normalize(ownerID),
			}
			if err := s.AddJob(cmd.Context(), j); err != nil {
				return fmt.Errorf("add job: %w", err)
			}
			fmt.Printf("enqueued %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "owner identifier (UUID or arbitrary string)")
	cmd.Flags().StringVar(&data, "data", "", "job payload as a JSON object")
	cmd.Flags().IntVar(&priority, "priority", 0, "dispatch priority (smaller dispatches first)")
	cmd.MarkFlagRequired("owner")

	return cmd
}
