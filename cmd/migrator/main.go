package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"authsvc/internal/config"
	"authsvc/internal/storage"
	"authsvc/internal/storage/migrator"
	"authsvc/internal/storage/mongodb"
)

func main() {
	var configPath, direction string
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.StringVar(&direction, "direction", "up", "migration direction: up or down")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		log.Fatal("config path is required")
	}

	cfg := config.MustLoadPath(configPath)

	if err := run(cfg.Storage, direction); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}

func run(cfg config.StorageConfig, direction string) error {
	switch cfg.Driver {
	case storage.DriverSQLite:
		return migrateSQL(cfg.Driver, cfg.Path, direction)
	case storage.DriverPostgres:
		return migrateSQL(cfg.Driver, cfg.DSN, direction)
	case storage.DriverMongoDB:
		if direction != "up" {
			return errors.New("mongodb only supports -direction up")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Println("Connecting to MongoDB...")

		// New creates the indexes on connect.
		s, err := mongodb.New(ctx, cfg.DSN, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to mongodb: %w", err)
		}
		defer s.Close(ctx)

		log.Println("MongoDB indexes are in place")
		return nil
	default:
		log.Printf("driver %q has no schema, nothing to do", cfg.Driver)
		return nil
	}
}

func migrateSQL(driver, dsn, direction string) error {
	switch direction {
	case "up":
		applied, err := migrator.Up(driver, dsn)
		if err != nil {
			return err
		}
		if !applied {
			fmt.Println("no migrations to apply")
			return nil
		}
		fmt.Println("migrations applied")
	case "down":
		if err := migrator.Down(driver, dsn); err != nil {
			return err
		}
		fmt.Println("migrations rolled back")
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}

	return nil
}
