package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/erocrawler/gmanimato/internal/config"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	pg "github.com/erocrawler/gmanimato/internal/infra/db/postgres"
)

// Bootstraps the schema and seeds default admin settings.

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, pg.Schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	settingsRepo := pg.NewSettingsRepo(pool)
	current, err := settingsRepo.Get(ctx, nil)
	if err != nil {
		log.Fatalf("read settings: %v", err)
	}
	if !current.UpdatedAt.IsZero() {
		fmt.Println("admin settings already present. No changes.")
		return
	}

	if err := settingsRepo.Save(ctx, nil, model.DefaultAdminSettings()); err != nil {
		log.Fatalf("seed settings: %v", err)
	}
	fmt.Println("seeded default admin settings")
}
