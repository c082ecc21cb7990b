package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"blog/internal/config"
	"blog/internal/models"
	"blog/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Feed.ImportOnRun {
		if err := importFeed(ctx, cfg, store, log, cfg.Feed.Owner); err != nil {
			log.WithError(err).Warn("feed import on start failed")
		}
	}

	srv, err := server.New(server.Options{
		Store:         store,
		Mailer:        newSender(cfg, log),
		Log:           log,
		Title:         cfg.Blog.Title,
		PageSize:      cfg.Blog.PageSize,
		CookieName:    cfg.Session.CookieName,
		SessionTTL:    cfg.Session.TTL,
		SecureCookies: cfg.Session.Secure,
		FlashSecret:   cfg.Session.FlashSecret,
		Inbox:         cfg.Mail.Inbox,
		RateLimit:     cfg.RateLimit.RPS,
		RateBurst:     cfg.RateLimit.Burst,
	})
	if err != nil {
		return err
	}

	sched, err := startSweeper(ctx, cfg, store, srv, log)
	if err != nil {
		return err
	}
	defer sched.Stop()

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// startSweeper schedules removal of dead sessions and idle rate limiters.
func startSweeper(ctx context.Context, cfg *config.Config, store *models.Store, srv *server.Server, log logrus.FieldLogger) (*cron.Cron, error) {
	sched := cron.New(cron.WithLogger(cron.PrintfLogger(log)))
	_, err := sched.AddFunc(cfg.Session.SweepSchedule, func() {
		n, err := store.DeleteExpiredSessions(ctx)
		if err != nil {
			log.WithError(err).Warn("session sweep failed")
			return
		}
		pruned := srv.PruneLimiters(time.Hour)
		log.WithFields(logrus.Fields{"sessions": n, "limiters": pruned}).Debug("sweep done")
	})
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}
