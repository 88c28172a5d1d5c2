package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/calw/pocketsort/internal/config"
	"github.com/calw/pocketsort/internal/database"
	"github.com/calw/pocketsort/internal/database/repository"
	"github.com/calw/pocketsort/internal/logger"
	"github.com/calw/pocketsort/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatal().Err(err).Msg("mkdir db dir")
	}
	if err := database.RunMigrations(cfg.Database.Path, "internal/database/migrations"); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.SeedDefaults(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("seed defaults")
	}

	app := newApp(cfg, db, log)

	var runErr error
	switch os.Args[1] {
	case "add":
		runErr = app.runAdd(ctx, os.Args[2:])
	case "import":
		runErr = app.runImport(ctx, os.Args[2:])
	case "recategorize":
		runErr = app.runRecategorize(ctx, os.Args[2:])
	case "probe":
		runErr = app.runProbe(os.Args[2:])
	case "imports":
		runErr = app.runImports(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pocketsort <command> [flags]

commands:
  add           record a single transaction, categorized by the rules
  import        import rows from a JSON file of records
  recategorize  re-run rules over transaction ids
  probe         dry-run a rule against a sample transaction
  imports       list or delete import records`)
}

type app struct {
	cfg      config.Config
	log      zerolog.Logger
	engine   *service.RuleEngine
	importer *service.Importer
	txns     *service.TransactionService
	imports  *repository.ImportRepo
	loc      *time.Location
}

func newApp(cfg config.Config, db *sql.DB, log zerolog.Logger) *app {
	txRepo := repository.NewTransactionRepo(db)
	ruleRepo := repository.NewRuleRepo(db)
	importRepo := repository.NewImportRepo(db)

	loc, err := time.LoadLocation(cfg.Import.Timezone)
	if err != nil {
		log.Warn().Err(err).Msg("falling back to UTC for row dates")
		loc = time.UTC
	}

	engine := &service.RuleEngine{Rules: ruleRepo, Transactions: txRepo, Log: log}
	importer := &service.Importer{
		Transactions:         txRepo,
		Imports:              importRepo,
		Engine:               engine,
		Log:                  log,
		CheckBatchDuplicates: cfg.Import.CheckBatchDuplicates,
		Location:             loc,
	}
	txService := &service.TransactionService{Transactions: txRepo, Engine: engine, Log: log}
	return &app{cfg: cfg, log: log, engine: engine, importer: importer, txns: txService, imports: importRepo, loc: loc}
}

func (a *app) runAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	date := fs.String("date", "", "transaction date, e.g. 2026-03-14")
	description := fs.String("description", "", "transaction description")
	amount := fs.String("amount", "", "amount, e.g. -45.67")
	merchant := fs.String("merchant", "", "merchant name")
	notes := fs.String("notes", "", "free-form notes")
	category := fs.String("category", "", "explicit category id, bypassing the rules")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Funnel the flags through row validation so dates and amounts are
	// normalized exactly like imported rows.
	row := service.RowRecord{
		"date":        *date,
		"description": *description,
		"amount":      *amount,
		"merchant":    *merchant,
		"notes":       *notes,
		"categoryId":  *category,
	}
	c, rowErr := service.ValidateRow(row, service.ColumnMapping{}, 1, a.loc)
	if rowErr != nil {
		return fmt.Errorf("%s", rowErr.Error)
	}

	txn, err := a.txns.Create(ctx, service.CreateTransactionInput{
		Date:        c.Date,
		Description: c.Description,
		AmountCents: c.AmountCents,
		Merchant:    c.Merchant,
		Notes:       c.Notes,
		CategoryID:  c.CategoryID,
	})
	if err != nil {
		return err
	}
	return printJSON(txn)
}

func (a *app) runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "JSON file holding an array of row records")
	name := fs.String("name", "", "original filename for the import record")
	fileType := fs.String("type", "csv", "source file type recorded on the import")
	mappingFile := fs.String("mapping", "", "JSON file mapping fields to source columns")
	importID := fs.String("import-id", "", "existing import record to re-run")
	force := fs.Bool("force", false, "skip duplicate detection for this submission")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var rows []service.RowRecord
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("parse rows: %w", err)
	}

	var mapping service.ColumnMapping
	if *mappingFile != "" {
		m, err := os.ReadFile(*mappingFile)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(m, &mapping); err != nil {
			return fmt.Errorf("parse mapping: %w", err)
		}
	}

	filename := *name
	if filename == "" {
		filename = filepath.Base(*file)
	}

	outcome, err := a.importer.Run(ctx, service.ImportRequest{
		Filename: filename,
		FileType: *fileType,
		Rows:     rows,
		Mapping:  mapping,
		ImportID: *importID,
		Force:    *force,
	})
	if err != nil {
		return err
	}
	return printJSON(outcome)
}

func (a *app) runRecategorize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recategorize", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids := fs.Args()
	if len(ids) == 0 {
		return fmt.Errorf("at least one transaction id is required")
	}
	return printJSON(a.engine.Recategorize(ctx, ids))
}

func (a *app) runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	field := fs.String("field", "", "rule field (description or merchant)")
	operator := fs.String("operator", "", "rule operator (contains, equals, startsWith)")
	value := fs.String("value", "", "rule value")
	description := fs.String("description", "", "sample transaction description")
	merchant := fs.String("merchant", "", "sample transaction merchant")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *value == "" {
		return fmt.Errorf("-value is required")
	}
	subject := service.Subject{Description: *description, Merchant: *merchant}
	return printJSON(service.ProbeRule(subject, *field, *operator, *value))
}

func (a *app) runImports(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("imports", flag.ExitOnError)
	status := fs.String("status", "", "filter by status")
	remove := fs.String("rm", "", "delete the import record with this id")
	deleteTxns := fs.Bool("delete-transactions", false, "with -rm, delete the batch's transactions instead of unlinking")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *remove != "" {
		return a.imports.Delete(ctx, *remove, *deleteTxns)
	}
	records, err := a.imports.List(ctx, *status)
	if err != nil {
		return err
	}
	return printJSON(records)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
