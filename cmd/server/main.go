package main

import (
	"time"

	"freshstock-system/config"
	"freshstock-system/internal/database"
	"freshstock-system/internal/gateway/handlers"
	"freshstock-system/internal/ledger"
	"freshstock-system/internal/seed"
	"freshstock-system/internal/utils"
)

func main() {
	cfg := config.LoadConfig()
	logg := config.GetLogger()

	utils.SetJWTSecret(cfg.Auth.JWTSecret)

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		logg.Fatalf("Failed to connect to db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logg.Fatalf("Failed to migrate database: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	clock, err := ledger.NewClock(cfg.Ledger.Timezone)
	if err != nil {
		logg.Fatalf("Invalid ledger timezone: %v", err)
	}
	classifier := ledger.Classifier{WindowDays: cfg.Ledger.NearExpiryDays}
	ledgerSvc := ledger.NewService(db, clock, classifier)

	if err := seed.EnsureAdminUser(db, cfg.Auth.AdminPassword, logg); err != nil {
		logg.Fatalf("Failed to seed admin user: %v", err)
	}
	if err := seed.ProductsFromCSV(db, clock, cfg.Seed.ProductsCSV, cfg.Ledger.DefaultShelfLifeDays, logg); err != nil {
		logg.Fatalf("Failed to seed catalog: %v", err)
	}

	tokenTTL := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
	stockHandler := handlers.NewStockHandler(ledgerSvc, redisClient, logg)
	catalogHandler := handlers.NewCatalogHandler(db, ledgerSvc, redisClient, logg, cfg.Ledger.DefaultShelfLifeDays)
	userHandler := handlers.NewUserHandler(db, ledgerSvc, logg, tokenTTL)
	dashboardHandler := handlers.NewDashboardHandler(db, ledgerSvc, redisClient, logg)

	r := newRouter(routerDeps{
		db:        db,
		redis:     redisClient,
		stock:     stockHandler,
		catalog:   catalogHandler,
		users:     userHandler,
		dashboard: dashboardHandler,
	})

	addr := ":" + cfg.HTTP.Port
	logg.Infof("Starting server on %s", addr)
	if err := r.Run(addr); err != nil {
		logg.Fatalf("Failed to start server: %v", err)
	}
}
