package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/NordCoder/Healthwatch/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	down := flag.Bool("down", false, "roll back the latest migration instead of migrating up")
	flag.Parse()

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		log.Fatal("DB_DSN is empty")
	}

	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if *down {
		if err := migrations.Down(ctx, db); err != nil {
			log.Fatal(err)
		}
		log.Println("migrations: down OK")
		return
	}
	if err := migrations.Up(ctx, db); err != nil {
		log.Fatal(err)
	}
	log.Println("migrations: up OK")
}
