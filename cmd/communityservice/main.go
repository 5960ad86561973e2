package main

import (
	"log"

	"github.com/gurulk/platform/pkg/community"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/server"
)

func main() {
	app, err := server.New("communityservice")
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	client, err := app.AuthClient()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	service := community.NewService(community.NewStore(app.DB), app.Logger)
	community.NewHandler(service, app.Logger).RegisterRoutes(app.Router)

	if err := app.Guard(middleware.NewRemoteValidator(client), community.Policies()); err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
}
