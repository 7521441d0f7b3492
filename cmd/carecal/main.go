package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carecal/carecal/internal/config"
	"github.com/carecal/carecal/internal/domain/intervention"
	"github.com/carecal/carecal/internal/domain/person"
	"github.com/carecal/carecal/internal/domain/reminder"
	"github.com/carecal/carecal/internal/platform/db"
	"github.com/carecal/carecal/internal/platform/dispatch"
	"github.com/carecal/carecal/internal/platform/events"
	"github.com/carecal/carecal/internal/platform/metrics"
	"github.com/carecal/carecal/internal/platform/middleware"
	"github.com/carecal/carecal/internal/platform/sender"
)

// PlannerAdapter adapts a reminder.Planner to the intervention.ReminderPlanner
// interface, avoiding circular imports between the intervention and reminder
// packages.
type PlannerAdapter struct {
	planner *reminder.Planner
}

func NewPlannerAdapter(planner *reminder.Planner) *PlannerAdapter {
	return &PlannerAdapter{planner: planner}
}

// PlanReminders implements intervention.ReminderPlanner.
func (a *PlannerAdapter) PlanReminders(ctx context.Context, interventionID uuid.UUID, rules []intervention.RuleSpec) error {
	specs := make([]reminder.RuleSpec, 0, len(rules))
	for _, r := range rules {
		ch, err := sender.ParseChannel(r.Channel)
		if err != nil {
			return err
		}
		specs = append(specs, reminder.RuleSpec{
			OffsetMinutes: r.OffsetMinutes,
			Channel:       ch,
			Enabled:       r.Enabled,
		})
	}
	return a.planner.Plan(ctx, interventionID, specs)
}

// OnDateChanged implements intervention.ReminderPlanner.
func (a *PlannerAdapter) OnDateChanged(ctx context.Context, interventionID uuid.UUID) error {
	return a.planner.OnDateChanged(ctx, interventionID)
}

// OnStatusChanged implements intervention.ReminderPlanner. The intervention
// service only calls it for terminal statuses, so it maps straight to a
// pending-reminder cancellation.
func (a *PlannerAdapter) OnStatusChanged(ctx context.Context, interventionID uuid.UUID, _ string) error {
	return a.planner.CancelPending(ctx, interventionID)
}

// InterventionSourceAdapter adapts the intervention repository to the
// reminder.InterventionSource interface.
type InterventionSourceAdapter struct {
	repo intervention.Repository
}

func NewInterventionSourceAdapter(repo intervention.Repository) *InterventionSourceAdapter {
	return &InterventionSourceAdapter{repo: repo}
}

// Get implements reminder.InterventionSource.
func (a *InterventionSourceAdapter) Get(ctx context.Context, id uuid.UUID) (*reminder.InterventionInfo, error) {
	iv, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &reminder.InterventionInfo{
		ID:             iv.ID,
		PatientID:      iv.PatientID,
		PractitionerID: iv.PractitionerID,
		Title:          iv.Title,
		Location:       iv.Location,
		Priority:       iv.Priority,
		ScheduledAt:    iv.ScheduledAt,
		Active:         iv.Active(),
	}, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "carecal",
		Short: "Intervention reminder API server and worker",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the reminder sweep and dispatch worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)
	metrics.Init()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Repositories
	people := person.NewDirectory(pool)
	ivRepo := intervention.NewRepo(pool)
	ruleRepo := reminder.NewRuleRepo(pool)
	remRepo := reminder.NewReminderRepo(pool)
	logRepo := reminder.NewLogRepo(pool)

	// Reminder planning, wired into the intervention service through adapters.
	source := NewInterventionSourceAdapter(ivRepo)
	planner := reminder.NewPlanner(ruleRepo, remRepo, source, logger)

	ivSvc := intervention.NewService(ivRepo, people, NewPlannerAdapter(planner))
	remSvc := reminder.NewService(remRepo, logRepo, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")
	intervention.NewHandler(ivSvc).RegisterRoutes(apiV1)
	reminder.NewHandler(remSvc).RegisterRoutes(apiV1)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/healthz/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	people := person.NewDirectory(pool)
	ivRepo := intervention.NewRepo(pool)
	remRepo := reminder.NewReminderRepo(pool)
	logRepo := reminder.NewLogRepo(pool)
	source := NewInterventionSourceAdapter(ivRepo)

	// Channel senders. Console senders stand in until real providers are
	// configured.
	registry := sender.NewRegistry()
	registry.Register(sender.ChannelEmail, &sender.ConsoleSender{Channel: sender.ChannelEmail, Logger: logger})
	registry.Register(sender.ChannelSMS, &sender.ConsoleSender{Channel: sender.ChannelSMS, Logger: logger})
	registry.Register(sender.ChannelPush, &sender.ConsoleSender{Channel: sender.ChannelPush, Logger: logger})

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer publisher.Close()
	if publisher != nil {
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("outcome events enabled")
	}

	recorder := reminder.NewRecorder(
		remRepo, logRepo, source, people,
		registry, sender.NewTemplateEngine(), publisher, logger,
	)

	queue := dispatch.New(recorder.Process, dispatch.Options{
		Workers:      cfg.DispatchWorkers,
		MaxRetries:   cfg.DispatchMaxRetries,
		HistoryLimit: cfg.DispatchHistoryLimit,
	}, logger)
	queue.Start(ctx)

	engine := reminder.NewEngine(remRepo, queue, cfg.SweepInterval(), cfg.SweepBatchSize, logger)
	go engine.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
	queue.Wait()
	logger.Info().Msg("worker stopped")
	return nil
}
