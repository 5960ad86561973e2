package main

import (
	"context"
	"log"
	"os"

	"github.com/gurulk/platform/pkg/content"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/server"
)

func main() {
	app, err := server.New("contentservice")
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	client, err := app.AuthClient()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	service := content.NewService(content.NewStore(app.DB), app.Logger, app.Metrics)
	content.NewHandler(service, app.Logger).RegisterRoutes(app.Router)

	if err := app.Guard(middleware.NewRemoteValidator(client), content.Policies()); err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	sweeper := content.NewSweeper(service, app.Logger, os.Getenv("GURULK_SWEEP_SCHEDULE"))
	if err := sweeper.Start(); err != nil {
		log.Fatalf("starting download sweeper failed: %v", err)
	}
	app.OnShutdown(func(context.Context) error {
		sweeper.Stop()
		return nil
	})

	if err := app.Run(); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
}
