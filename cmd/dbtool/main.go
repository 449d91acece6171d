package main

import (
	"database/sql"
	"log"
	"pi360-service/internal/adapters/repositories"
	"pi360-service/internal/config"
	"pi360-service/internal/platform/db"
	"pi360-service/internal/platform/logging"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// dbtool prepares a postgres facility snapshot and geocode cache.
func main() {
	envErr := godotenv.Load()

	logger, err := logging.New(config.Get("LOG_LEVEL", "info"))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("no .env file found (using environment variables)")
	}

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	conn, err := db.Open(databaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/service_locations.json")
	if err := initAndSeed(conn, seedPath, logger); err != nil {
		logger.Fatal("init and seed", zap.Error(err))
	}
}

func initAndSeed(conn *sql.DB, seedPath string, logger *zap.Logger) error {
	logger.Info("initializing database schema")
	if err := repositories.InitSchema(conn, repositories.Postgres); err != nil {
		return err
	}
	logger.Info("schema ready")

	logger.Info("seeding facility snapshot", zap.String("path", seedPath))
	if err := repositories.SeedFromJSON(conn, repositories.Postgres, seedPath); err != nil {
		return err
	}
	logger.Info("seeding complete")

	return nil
}
