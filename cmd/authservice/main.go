package main

import (
	"log"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/server"
	"github.com/gurulk/platform/pkg/users"
)

func main() {
	app, err := server.New("authservice")
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	tokens := auth.NewTokenService([]byte(app.Cfg.Auth.JWTSecret), app.Cfg.Auth.TokenTTL)
	service := users.NewService(users.NewStore(app.DB), tokens, app.Logger, app.Metrics)

	users.NewHandler(service, app.Logger).RegisterRoutes(app.Router)

	// the auth service validates its own tokens without a network hop
	if err := app.Guard(users.NewLocalValidator(service), users.Policies()); err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
}
