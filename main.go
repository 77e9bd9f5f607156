package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/thiefhunt/config"
	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/persistence"
	"github.com/wfunc/thiefhunt/server"
	"github.com/wfunc/thiefhunt/services"
)

func openStore(cfg *config.Config) (*persistence.GormStore, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	default:
		return persistence.NewGormSQLite(cfg.Database.SQLite.Path)
	}
}

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	seedRoles := flag.Bool("seed-roles", false, "install the default twelve role catalog and exit")
	flag.Parse()

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Infof("Database connection successful (%s).", cfg.Database.Driver)

	if *seedRoles {
		seeded, err := services.NewCatalogService(db).SeedDefaultCatalog(context.Background())
		if err != nil {
			logger.Log.Fatalf("Failed to seed roles: %v", err)
		}
		if seeded {
			logger.Log.Info("Default role catalog installed.")
		} else {
			logger.Log.Info("Role catalog already complete, nothing to do.")
		}
		return
	}

	// Initialize Game Server
	gameServer, err := server.NewGameServer(cfg, db)
	if err != nil {
		logger.Log.Fatalf("Failed to create game server: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down game server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(ctx); err != nil {
			logger.Log.Errorf("Shutdown error: %v", err)
		}
	}()

	// Start Server
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
	// blocks until the signal handler's shutdown has finished
	gameServer.Shutdown(context.Background())
	logger.Log.Info("Game server stopped.")
}
