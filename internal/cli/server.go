package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"survey-quiz-service/internal/app"
	"survey-quiz-service/internal/config"
	"survey-quiz-service/internal/logging"
	"survey-quiz-service/internal/metrics"
	transport "survey-quiz-service/internal/transport/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Minute

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the survey server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	res, err := openResources(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	loader, err := questionLoader(cfg, res)
	if err != nil {
		return err
	}
	bank, err := app.LoadQuestionBank(ctx, loader)
	if err != nil {
		return err
	}
	sessions, sweeper, err := sessionRepository(cfg, res)
	if err != nil {
		return err
	}
	records, err := recordStore(ctx, cfg, res)
	if err != nil {
		return err
	}

	m := metrics.New()
	notifier, err := buildNotifier(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	service := app.NewQuizService(bank, sessions, records, notifier,
		app.WithLogger(logger.Named("survey")),
		app.WithMetrics(m),
		app.WithRichReports(notifier.RichText()),
	)
	handler, err := transport.NewHandler(service, transport.Options{
		CookieSecure: cfg.Server.CookieSecure,
		CookieTTL:    config.TTLDuration(cfg.Session.TTL, defaultSessionTTL),
		Logger:       logger.Named("http"),
		Metrics:      m,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting survey service",
			zap.String("port", finalPort),
			zap.Int("questions", bank.Len()),
			zap.String("sessions", cfg.Session.Backend),
			zap.String("records", cfg.Records.Backend),
			zap.String("notifier", cfg.Notifier.Transport),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if sweeper != nil {
		g.Go(func() error {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := sweeper.Sweep(); n > 0 {
						logger.Debug("expired sessions removed", zap.Int("count", n))
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		// Results finalized by the last requests may still be on their way out.
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), app.DefaultFinalizeTimeout)
		defer cancelDrain()
		if werr := service.Wait(drainCtx); werr != nil {
			logger.Warn("pending result notifications abandoned", zap.Error(werr))
		}
		return err
	})

	return g.Wait()
}
