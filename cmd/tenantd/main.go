package main

import (
	"log"

	"github.com/tenantkit/tenantkit/internal/tenancy/app"
	"github.com/tenantkit/tenantkit/internal/tenancy/service"
)

// tenantd runs the tenancy engine's maintenance daemon: it owns the
// database, applies migrations and sweeps expired invitations. The services
// themselves are consumed in-process by the embedding application through
// app.Application accessors.
func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg, service.Options{}, app.Collaborators{})
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
