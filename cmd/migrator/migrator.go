package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	pg "github.com/NordCoder/Tokengate/internal/repository/postgres"
	"github.com/NordCoder/Tokengate/migrations"
)

func main() {
	driver := flag.String("driver", "postgres", "postgres or sqlite")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if *driver == "sqlite" {
		dsn = os.Getenv("STORAGE_SQLITE_PATH")
	}
	if dsn == "" {
		log.Fatal("DB_DSN (postgres) or STORAGE_SQLITE_PATH (sqlite) is empty")
	}

	ctx := context.Background()
	var (
		db      *sql.DB
		dialect = goose.DialectPostgres
	)
	if *driver == "sqlite" {
		dialect = goose.DialectSQLite3
		sdb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = sdb
	} else {
		pdb, err := pg.NewDB(ctx, pg.Config{DSN: dsn, AppName: "migrator", MaxConns: 2})
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pdb.Close()
		db = pdb.SQL()
	}
	defer db.Close()

	n, err := migrations.Up(ctx, db, dialect)
	if err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	log.Printf("migrations: up OK (%d applied)", n)
}
