package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tablecheck/adapters/source"
	"tablecheck/adapters/suitestore"
	"tablecheck/app"
	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/internal/estimate"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"
	"tablecheck/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "suite":
		err = runSuite(ctx, os.Args[2:])
	case "validate":
		err = runValidate(ctx, os.Args[2:])
	case "estimate":
		err = runEstimate(ctx, os.Args[2:])
	case "checkpoint":
		err = runCheckpoint(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tablecheck <command>

commands:
  suite new|list|show|delete   manage expectation suites
  validate                     validate a batch against a suite
  estimate                     estimate bounds for an expectation from batches
  checkpoint                   run a checkpoint YAML file`)
}

// openStore picks the store backend from the environment:
// DATABASE_URL selects postgres, TABLECHECK_STORE=bolt selects bbolt,
// anything else is JSON files under TABLECHECK_DATA_DIR (default .tablecheck).
func openStore() (ports.SuiteStore, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
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

func newResolver() *source.Resolver {
	return source.NewResolver([]ports.BatchSource{
		source.NewInlineSource(),
		source.NewFileSource(),
	}, source.WithTimeout(time.Minute))
}

func runSuite(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tablecheck suite new|list|show|delete [flags]")
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("suite", flag.ExitOnError)
	name := fs.String("name", "", "suite name")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "new":
		suiteName, err := core.ParseSuiteName(*name)
		if err != nil {
			return err
		}
		return store.SaveSuite(ctx, expectation.NewSuite(suiteName))
	case "list":
		names, err := store.ListSuites(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	case "show":
		suiteName, err := core.ParseSuiteName(*name)
		if err != nil {
			return err
		}
		suite, err := store.GetSuite(ctx, suiteName)
		if err != nil {
			return err
		}
		return printJSON(suite)
	case "delete":
		suiteName, err := core.ParseSuiteName(*name)
		if err != nil {
			return err
		}
		return store.DeleteSuite(ctx, suiteName)
	default:
		return fmt.Errorf("unknown suite command %q", args[0])
	}
}

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	suiteName := fs.String("suite", "", "suite name")
	path := fs.String("path", "", "CSV/XLSX path or glob")
	identifiers := fs.String("identifiers", "", "batch identifiers as k=v,k=v")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	name, err := core.ParseSuiteName(*suiteName)
	if err != nil {
		return err
	}
	suite, err := store.GetSuite(ctx, name)
	if err != nil {
		return err
	}

	batches, err := newResolver().Resolve(ctx, batch.Request{
		Source:           batch.SourcePath,
		Path:             *path,
		BatchIdentifiers: parseIdentifiers(*identifiers),
	})
	if err != nil {
		return err
	}

	engine := metrics.NewEngine()
	registry := expectations.NewRegistry()
	validator := app.NewValidator(suite, engine, registry, store)
	if err := validator.BindBatches(batches); err != nil {
		return err
	}
	result, err := validator.RunValidation(ctx)
	if err != nil {
		return err
	}
	if err := store.SaveResult(ctx, result); err != nil {
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func runEstimate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	expectationType := fs.String("type", "", "expectation type")
	column := fs.String("column", "", "target column")
	path := fs.String("path", "", "CSV/XLSX path or glob")
	precision := fs.Int("precision", -1, "decimal places for estimated bounds (-1 = native)")
	suiteName := fs.String("suite", "", "optional suite to save the resolved expectation into")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine := metrics.NewEngine()
	registry := expectations.NewRegistry()
	estimator := estimate.NewEstimator(engine, registry)

	if ok, err := estimator.IsEstimable(*expectationType); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotEstimable, *expectationType)
	}

	batches, err := newResolver().Resolve(ctx, batch.Request{
		Source: batch.SourcePath,
		Path:   *path,
	})
	if err != nil {
		return err
	}

	cfg := expectation.Config{
		Type:   *expectationType,
		Kwargs: expectation.Kwargs{},
	}
	if *column != "" {
		cfg.Kwargs[expectation.KwargColumn] = *column
	}

	report, err := estimator.Estimate(ctx, cfg, batches, estimate.Policy{Precision: *precision})
	if err != nil {
		return err
	}

	if *suiteName != "" {
		store, err := openStore()
		if err != nil {
			return err
		}
		name, err := core.ParseSuiteName(*suiteName)
		if err != nil {
			return err
		}
		suite, err := store.GetSuite(ctx, name)
		if err != nil {
			return err
		}
		if _, err := suite.Add(report.Config); err != nil {
			return err
		}
		if err := store.SaveSuite(ctx, suite); err != nil {
			return err
		}
	}
	return printJSON(report)
}

func runCheckpoint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	file := fs.String("file", "", "checkpoint YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cp, err := app.LoadCheckpoint(*file)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	runner := app.NewCheckpointRunner(newResolver(), store, metrics.NewEngine(), expectations.NewRegistry())
	result, err := runner.Run(ctx, cp)
	if err != nil {
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func parseIdentifiers(raw string) map[string]string {
	identifiers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			identifiers[parts[0]] = parts[1]
		}
	}
	return identifiers
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
