package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mudler/remindbot/core/conversations"
	"github.com/mudler/remindbot/core/scheduler"
	"github.com/mudler/remindbot/pkg/config"
	"github.com/mudler/remindbot/services"
	"github.com/mudler/remindbot/services/connectors"
	"github.com/mudler/remindbot/webui"
	"github.com/mudler/xlog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := services.Store(cfg)
	if err != nil {
		return err
	}

	telegram, err := services.Telegram(cfg)
	if err != nil {
		store.Close()
		return err
	}

	sched := scheduler.NewScheduler(store, telegram,
		scheduler.WithLocation(cfg.Location()),
		scheduler.WithDeliveryTimeout(cfg.DeliveryTimeout),
	)
	defer sched.Stop()

	if err := sched.Restore(); err != nil {
		if !errors.Is(err, scheduler.ErrPersistence) {
			return err
		}
		xlog.Error("Restored reminders could not be saved", "error", err)
	}

	handler := conversations.NewHandler(sched, conversations.WithDraftTTL(cfg.DraftTTL))

	app := webui.NewApp(
		webui.WithScheduler(sched),
		webui.WithApiKeys(cfg.APIKeys...),
		webui.WithWebhook(connectors.WebhookPath, telegram.WebhookHandler()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() {
		xlog.Info("Starting HTTP server", "addr", cfg.ListenAddr)
		if err := app.Listen(cfg.ListenAddr); err != nil {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := telegram.Start(ctx, handler); err != nil {
			errs <- fmt.Errorf("telegram: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		xlog.Info("Shutting down")
	case err = <-errs:
		xlog.Error("Stopping after failure", "error", err)
	}
	stop()

	if shutdownErr := app.ShutdownWithTimeout(5 * time.Second); shutdownErr != nil {
		xlog.Error("HTTP server shutdown failed", "error", shutdownErr)
	}
	return err
}
