package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/directory"
	"github.com/clinicore/clinicore/internal/domain/scheduling"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/events"
	"github.com/clinicore/clinicore/internal/platform/lock"
	"github.com/clinicore/clinicore/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicore-server",
		Short: "Clinic availability and booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
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

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			practitioners, _ := cmd.Flags().GetInt("practitioners")
			patients, _ := cmd.Flags().GetInt("patients")

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

			return runSeed(ctx, pool, practitioners, patients)
		},
	}
	cmd.Flags().Int("practitioners", 10, "Number of practitioners to create")
	cmd.Flags().Int("patients", 100, "Number of patients to create")
	return cmd
}

func runSeed(ctx context.Context, pool *pgxpool.Pool, practitioners, patients int) error {
	gofakeit.Seed(time.Now().UnixNano())

	repo := directory.NewRepo(pool)

	branch := &directory.Branch{
		Name:    gofakeit.Company() + " Clinic",
		Address: ptr(gofakeit.Street()),
		City:    ptr(gofakeit.City()),
		Phone:   ptr(gofakeit.Phone()),
	}
	if err := repo.CreateBranch(ctx, branch); err != nil {
		return fmt.Errorf("seed branch: %w", err)
	}

	specialties := []string{
		"Dermatology", "Cardiology", "General Practice", "Orthopedics",
		"Endocrinology", "Neurology", "Pediatrics", "Psychiatry",
	}

	var practitionerIDs []uuid.UUID
	for i := 0; i < practitioners; i++ {
		p := &directory.Practitioner{
			FirstName: gofakeit.FirstName(),
			LastName:  gofakeit.LastName(),
			Specialty: ptr(specialties[gofakeit.Number(0, len(specialties)-1)]),
			Email:     ptr(gofakeit.Email()),
			Phone:     ptr(gofakeit.Phone()),
		}
		if err := repo.CreatePractitioner(ctx, p); err != nil {
			return fmt.Errorf("seed practitioner: %w", err)
		}
		practitionerIDs = append(practitionerIDs, p.ID)
	}

	for i := 0; i < patients; i++ {
		p := &directory.Patient{
			FirstName: gofakeit.FirstName(),
			LastName:  gofakeit.LastName(),
			BirthDate: ptr(gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC),
			).Format("2006-01-02")),
			Email: ptr(gofakeit.Email()),
			Phone: ptr(gofakeit.Phone()),
		}
		if err := repo.CreatePatient(ctx, p); err != nil {
			return fmt.Errorf("seed patient: %w", err)
		}
	}

	// A weekday morning slot per practitioner so the grid has something to
	// resolve right after seeding.
	windows := scheduling.NewWindowRepo(pool)
	slots := scheduling.NewSlotRepo(pool)
	days := []scheduling.Weekday{
		scheduling.Monday, scheduling.Tuesday, scheduling.Wednesday,
		scheduling.Thursday, scheduling.Friday,
	}
	for _, prid := range practitionerIDs {
		w, err := windows.GetOrCreate(ctx, "09:00", "13:00", nil)
		if err != nil {
			return fmt.Errorf("seed window: %w", err)
		}
		sl := &scheduling.RecurringSlot{
			PractitionerID:  prid,
			BranchID:        branch.ID,
			DayOfWeek:       days[gofakeit.Number(0, len(days)-1)],
			DurationMinutes: scheduling.DefaultDurationMinutes,
			WindowIDs:       []uuid.UUID{w.ID},
		}
		if err := slots.Create(ctx, sl); err != nil {
			return fmt.Errorf("seed slot: %w", err)
		}
	}

	fmt.Printf("Seeded 1 branch, %d practitioners, %d patients.\n", practitioners, patients)
	return nil
}

func ptr[T any](v T) *T { return &v }

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Agenda lock, advisory. Without Redis the engine still serializes
	// bookings through the database unique index.
	locker := lock.NewNoopLocker()
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		locker = lock.NewRedisAgendaLocker(client, 5*time.Second)
		logger.Info().Msg("redis agenda lock enabled")
	}

	// Event publisher
	publisher := events.NewNoopPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).
			Msg("kafka publisher enabled")
	}
	defer publisher.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Directory domain
	dirRepo := directory.NewRepo(pool)
	dirSvc := directory.NewService(dirRepo)
	directory.NewHandler(dirSvc).RegisterRoutes(apiV1)

	// Scheduling domain
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	schedSvc := scheduling.NewService(
		scheduling.NewWindowRepo(pool),
		scheduling.NewSlotRepo(pool),
		scheduling.NewAppointmentRepo(pool),
		dirSvc,
		inTx,
		locker,
		publisher,
		logger,
	)
	scheduling.NewHandler(schedSvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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
