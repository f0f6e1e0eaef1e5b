package main

import (
	"context"
	"time"

	cfg "silkyroad/src/configuration"
	"silkyroad/src/logging"
	db "silkyroad/src/repository"

	"github.com/jackc/pgx/v5"
)

func main() {
	config := cfg.ReadProperties()
	log := logging.New(config.LogLevel, config.LogFormat)
	if config.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := pgx.Connect(ctx, config.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}
	defer conn.Close(ctx)

	if err := db.Migrate(ctx, conn, log); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.Info("database constraints are up to date")
}
