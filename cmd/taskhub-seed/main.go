package main

import (
	"context"
	"flag"
	"log"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/identity"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/workspaces"
)

func main() {
	rolesOnly := flag.Bool("roles-only", false, "Seed the role table without creating the super admin")
	timeout := flag.Duration("timeout", time.Minute, "Overall timeout")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := store.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := rbac.SeedRoles(ctx, db); err != nil {
		log.Fatalf("Failed to seed roles: %v", err)
	}
	log.Println("Roles seeded")

	if *rolesOnly {
		return
	}
	if cfg.SuperAdmin.Email == "" {
		log.Println("TASKHUB_SUPER_ADMIN_EMAIL not set, skipping super admin")
		return
	}

	roles, err := rbac.NewStore(db, 8)
	if err != nil {
		log.Fatalf("Failed to create role store: %v", err)
	}
	users := identity.NewService(db, workspaces.NewService(db, roles, nil, nil), nil)

	created, err := users.SeedSuperAdmin(ctx, cfg.SuperAdmin.Email, cfg.SuperAdmin.Name, cfg.SuperAdmin.Password)
	if err != nil {
		log.Fatalf("Failed to seed super admin: %v", err)
	}
	if created {
		log.Printf("Super admin %s created", cfg.SuperAdmin.Email)
	} else {
		log.Printf("Super admin %s already exists, role ensured", cfg.SuperAdmin.Email)
	}
}
