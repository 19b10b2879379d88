package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/visionscreen/presbyopia/internal/config"
	"github.com/visionscreen/presbyopia/internal/domain/dashboard"
	"github.com/visionscreen/presbyopia/internal/domain/screening"
	"github.com/visionscreen/presbyopia/internal/platform/db"
	"github.com/visionscreen/presbyopia/internal/platform/middleware"
	"github.com/visionscreen/presbyopia/internal/platform/reporting"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "screening-server",
		Short: "Presbyopia screening dashboard API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Generate a population and serve the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func generateCmd() *cobra.Command {
	var (
		count int
		seed  int64
		out   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic population as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return writePopulation(w, count, seed)
		},
	}
	cmd.Flags().IntVar(&count, "count", 5000, "number of records")
	cmd.Flags().Int64Var(&seed, "seed", 0, "generator seed (0 = time based)")
	cmd.Flags().StringVarP(&out, "out", "o", screening.ExportFilename, "output file, - for stdout")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		count  int
		seed   int64
		ageMin int
		ageMax int
		f      screening.Filter
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard view for a filter as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("age-min") {
				f.AgeMin = &ageMin
			}
			if cmd.Flags().Changed("age-max") {
				f.AgeMax = &ageMax
			}
			view, err := buildReport(cmd.Context(), count, seed, f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
	cmd.Flags().IntVar(&count, "count", 5000, "number of records")
	cmd.Flags().Int64Var(&seed, "seed", 0, "generator seed (0 = time based)")
	cmd.Flags().IntVar(&ageMin, "age-min", screening.MinAge, "minimum age")
	cmd.Flags().IntVar(&ageMax, "age-max", screening.MaxAge, "maximum age")
	cmd.Flags().StringVar(&f.City, "city", "", "restrict to one city")
	cmd.Flags().StringVar(&f.Gender, "gender", "", "Male or Female")
	cmd.Flags().StringVar(&f.Occupation, "occupation", "", "restrict to one occupation")
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// resolveSeed maps the "time based" seed 0 to the current time.
func resolveSeed(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

func writePopulation(w io.Writer, count int, seed int64) error {
	records := screening.NewSeededGenerator(resolveSeed(seed)).Generate(count)
	return screening.WriteCSV(w, records)
}

func buildReport(ctx context.Context, count int, seed int64, f screening.Filter) (*dashboard.View, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	svc := screening.NewService(screening.NewMemoryRepo(), 0, zerolog.Nop())
	defer svc.Close()

	if err := svc.Initialize(ctx, screening.NewSeededGenerator(resolveSeed(seed)).Generate(count)); err != nil {
		return nil, err
	}
	return dashboard.NewService(svc).Build(ctx, f)
}

// loadPopulation generates and inserts the session's population. A failure
// leaves svc empty and the server running in degraded mode.
func loadPopulation(ctx context.Context, cfg *config.Config, svc *screening.Service, logger zerolog.Logger) {
	runID := uuid.NewString()
	seed := resolveSeed(cfg.GeneratorSeed)
	start := time.Now()

	records := screening.NewSeededGenerator(seed).Generate(cfg.PopulationSize)
	if err := svc.Initialize(ctx, records); err != nil {
		logger.Error().Err(err).Str("run_id", runID).Msg("population load failed, serving empty views")
		return
	}
	logger.Info().
		Str("run_id", runID).
		Int64("seed", seed).
		Int("records", len(records)).
		Dur("took", time.Since(start)).
		Msg("population loaded")
}

func newServer(cfg *config.Config, logger zerolog.Logger, svc *screening.Service, store *db.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{echo.HeaderContentDisposition, "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	dashboard.NewHandler(dashboard.NewService(svc), svc).RegisterRoutes(apiV1)
	reporting.NewHandler(store.Querier).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		status := "ok"
		if !svc.Ready() {
			status = "degraded"
		}
		total, err := svc.TotalCount(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  status,
			"driver":  store.Driver,
			"records": total,
		})
	})
	e.GET("/health/db", db.HealthHandler(store.Driver, store.Repo, store.Pool))

	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Record store
	ctx := context.Background()
	store, err := db.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open record store")
	}
	logger.Info().Str("driver", store.Driver).Msg("record store opened")

	svc := screening.NewService(store.Repo, cfg.CacheTTL, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error().Err(err).Msg("close record store")
		}
	}()
	loadPopulation(ctx, cfg, svc, logger)

	e := newServer(cfg, logger, svc, store)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
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
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
