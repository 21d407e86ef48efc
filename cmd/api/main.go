package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"tablecheck/adapters/api"
	"tablecheck/adapters/source"
	"tablecheck/adapters/suitestore"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"
	"tablecheck/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	// One connection pool serves both the SQL source and the suite store.
	var db *sqlx.DB
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		var err error
		db, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
	}

	store, err := openStore(db)
	if err != nil {
		log.Fatalf("failed to open suite store: %v", err)
	}

	resolver := source.NewResolver(buildSources(db), source.WithTimeout(time.Minute))
	server := api.NewServer(resolver, store, metrics.NewEngine(), expectations.NewRegistry())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}
	log.Printf("[API] listening on :%s", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", port), server.Handler()); err != nil {
		log.Fatal(err)
	}
}

func buildSources(db *sqlx.DB) []ports.BatchSource {
	sources := []ports.BatchSource{
		source.NewInlineSource(),
		source.NewFileSource(),
	}
	if db != nil {
		sources = append(sources, source.NewSQLSource(db))
	}
	return sources
}

func openStore(db *sqlx.DB) (ports.SuiteStore, error) {
	if db != nil {
		return suitestore.NewPostgresStore(db)
	}

	dir := os.Getenv("TABLECHECK_DATA_DIR")
	if dir == "" {
		dir = ".tablecheck"
	}
	if os.Getenv("TABLECHECK_STORE") == "bolt" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return suitestore.NewBoltStore(dir + "/suites.db")
	}
	return suitestore.NewJSONFileStore(dir)
}
