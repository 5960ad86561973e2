package main

import (
	"context"
	"log"
	"time"

	"github.com/gurulk/platform/pkg/async"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/notifications"
	"github.com/gurulk/platform/pkg/server"
)

const (
	emailWorkers     = 4
	emailTaskTimeout = 30 * time.Second
)

func main() {
	app, err := server.New("notificationservice")
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	client, err := app.AuthClient()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	pool := async.NewWorkerPool(context.Background(), app.Logger, emailWorkers, "email", emailTaskTimeout)
	app.OnShutdown(func(context.Context) error {
		return pool.Shutdown(app.Cfg.Server.ShutdownTimeout)
	})

	// assign through the interface only when SMTP is configured, so the
	// service sees a true nil and skips email entirely
	var mailer notifications.Mailer
	if smtp := notifications.NewSMTPMailer(app.Cfg.SMTP, app.Metrics); smtp != nil {
		mailer = smtp
	}

	service := notifications.NewService(
		notifications.NewStore(app.DB), client, mailer, pool, app.Logger, app.Metrics)
	notifications.NewHandler(service, app.Logger).RegisterRoutes(app.Router)

	if err := app.Guard(middleware.NewRemoteValidator(client), notifications.Policies()); err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
}
