// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/domain/rates"
	"timberlot/internal/infrastructure/storage/postgres"
	"timberlot/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Connect to database
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	// Seed the initial exchange rate: without an active rate every
	// financial operation fails closed.
	if err := seedInitialRate(ctx, pool, log); err != nil {
		log.Fatalw("failed to seed initial exchange rate", "error", err)
	}

	// Seed demo data if requested
	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedInitialRate(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	initialRate := os.Getenv("INITIAL_USD_RUB_RATE")
	if initialRate == "" {
		initialRate = "95.00"
	}

	// Check if an active rate already exists
	var existingID id.ID
	err := pool.Pool.QueryRow(ctx,
		`SELECT id FROM exchange_rates WHERE direction = $1 AND is_active AND NOT deletion_mark`,
		string(currency.USDToRUB),
	).Scan(&existingID)
	if err == nil {
		log.Infow("active exchange rate already exists",
			"direction", currency.USDToRUB, "rate_id", existingID)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check active rate exists: %w", err)
	}

	rateID := id.New()
	now := time.Now().UTC()

	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO exchange_rates (
			id, direction, rate, source, set_by,
			effective_at, is_active, version, deletion_mark
		)
		VALUES ($1, $2, $3, $4, 'seed', $5, true, 1, false)
	`, rateID, string(currency.USDToRUB), initialRate, string(rates.SourceManual), now)
	if err != nil {
		return fmt.Errorf("insert initial rate: %w", err)
	}

	log.Infow("initial exchange rate created",
		"direction", currency.USDToRUB,
		"rate", initialRate,
		"rate_id", rateID,
	)

	return nil
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	log.Info("seeding demo data...")

	clients := []struct {
		name          string
		phone         string
		contactPerson string
	}{
		{"Узбекистон Ёгоч", "+998 90 123-45-67", "Алишер Каримов"},
		{"Ташкент Строй", "+998 71 200-10-20", "Бахтиёр Рахимов"},
		{"Самарканд Мебель", "+998 66 233-44-55", "Дилшод Усманов"},
	}

	for i, c := range clients {
		clientID := id.New()
		code := fmt.Sprintf("CL-%03d", i+1)
		_, err := pool.Pool.Exec(ctx, `
			INSERT INTO cat_clients (id, code, name, phone, contact_person, version, deletion_mark)
			VALUES ($1, $2, $3, $4, $5, 1, false)
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, clientID, code, c.name, c.phone, c.contactPerson)
		if err != nil {
			log.Warnw("failed to seed client", "name", c.name, "error", err)
		}
	}

	log.Info("demo data seeded successfully")
	return nil
}
