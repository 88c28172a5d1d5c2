package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/calw/pocketsort/internal/database"
	"github.com/calw/pocketsort/internal/database/repository"
)

// Importer runs the validate-dedupe-categorize-commit pipeline for a
// batch of external rows, tracking the run in an import record.
type Importer struct {
	Transactions TransactionStore
	Imports      ImportStore
	Engine       *RuleEngine
	Log          zerolog.Logger

	// CheckBatchDuplicates also rejects rows that duplicate an earlier
	// row of the same batch. Off by default: only persisted state is
	// consulted, so identical rows within one file all insert.
	CheckBatchDuplicates bool
	// Location interprets bare calendar dates in rows.
	Location *time.Location
}

// ImportRequest describes one import invocation. ImportID re-targets an
// existing record (the "import anyway" follow-up); Force bypasses
// duplicate detection entirely for that explicit re-submission.
type ImportRequest struct {
	Filename string
	FileType string
	Rows     []RowRecord
	Mapping  ColumnMapping
	ImportID string
	Force    bool
}

// Duplicate reports a row skipped because a persisted transaction
// already carries the same (date, description, amount) key.
type Duplicate struct {
	Row        int                    `json:"row"`
	ExistingID string                 `json:"existingId"`
	Existing   repository.Transaction `json:"existing"`
}

// ImportOutcome is the aggregate report of one import run. Duplicates
// are listed apart from ErrorDetails so a caller can offer importing
// them anyway.
type ImportOutcome struct {
	ImportID     string      `json:"transactionImportId"`
	Imported     int         `json:"imported"`
	Skipped      int         `json:"skipped"`
	Errors       int         `json:"errors"`
	Duplicates   []Duplicate `json:"duplicates"`
	ErrorDetails []RowError  `json:"errorDetails"`
}

// Run executes the full pipeline. Row-level problems are collected into
// the outcome; only a failure of the orchestration itself is returned
// as an error, after a best-effort attempt to mark the record failed.
func (s *Importer) Run(ctx context.Context, req ImportRequest) (ImportOutcome, error) {
	outcome, err := s.run(ctx, req)
	if err != nil {
		s.markFailed(ctx, outcome.ImportID, err)
		return ImportOutcome{}, err
	}
	return outcome, nil
}

func (s *Importer) run(ctx context.Context, req ImportRequest) (ImportOutcome, error) {
	if len(req.Rows) == 0 {
		return ImportOutcome{}, fmt.Errorf("import: no rows provided")
	}

	candidates, rowErrors := ValidateRows(req.Rows, req.Mapping, s.Location)

	record, err := s.importRecord(ctx, req, len(candidates))
	if err != nil {
		return ImportOutcome{}, err
	}
	outcome := ImportOutcome{ImportID: record.ID, ErrorDetails: rowErrors}

	processing := repository.StatusProcessing
	if err := s.Imports.Update(ctx, record.ID, repository.ImportUpdate{Status: &processing}); err != nil {
		return outcome, fmt.Errorf("import %s: mark processing: %w", record.ID, err)
	}

	staged := s.stage(ctx, candidates, req.Force, &outcome)

	for _, st := range staged {
		if err := s.Transactions.Insert(ctx, st.txn); err != nil {
			outcome.ErrorDetails = append(outcome.ErrorDetails, RowError{
				Row:   st.row,
				Error: fmt.Sprintf("insert failed: %v", err),
			})
			continue
		}
		outcome.Imported++
	}
	outcome.Skipped = len(outcome.Duplicates)
	outcome.Errors = len(outcome.ErrorDetails)

	if err := s.finalize(ctx, record, outcome); err != nil {
		return outcome, err
	}

	s.Log.Info().
		Str("import_id", record.ID).
		Str("filename", record.Filename).
		Int("imported", outcome.Imported).
		Int("skipped", outcome.Skipped).
		Int("errors", outcome.Errors).
		Msg("import finished")
	return outcome, nil
}

// importRecord creates a fresh pending record, or loads the existing one
// when the caller re-invokes an earlier import.
func (s *Importer) importRecord(ctx context.Context, req ImportRequest, validRows int) (*repository.TransactionImport, error) {
	if req.ImportID != "" {
		record, err := s.Imports.Get(ctx, req.ImportID)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", req.ImportID, err)
		}
		if record == nil {
			return nil, fmt.Errorf("import %s: %w", req.ImportID, repository.ErrNotFound)
		}
		return record, nil
	}

	record := repository.TransactionImport{
		ID:        uuid.NewString(),
		Filename:  req.Filename,
		FileType:  req.FileType,
		Status:    repository.StatusPending,
		TotalRows: len(req.Rows),
		ValidRows: validRows,
	}
	if mapped, err := json.Marshal(req.Mapping); err == nil {
		m := string(mapped)
		record.ColumnMapping = &m
	}
	if err := s.Imports.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create import record: %w", err)
	}
	return &record, nil
}

type stagedTransaction struct {
	txn repository.Transaction
	row int
}

// stage runs duplicate detection and rule evaluation over validated
// candidates, returning the transactions ready to insert.
func (s *Importer) stage(ctx context.Context, candidates []Candidate, force bool, outcome *ImportOutcome) []stagedTransaction {
	staged := make([]stagedTransaction, 0, len(candidates))
	seen := map[string]bool{}

	for _, c := range candidates {
		if !force {
			if s.CheckBatchDuplicates {
				key := batchKey(c)
				if seen[key] {
					outcome.Duplicates = append(outcome.Duplicates, Duplicate{Row: c.Row})
					continue
				}
				seen[key] = true
			}
			existing, err := s.Transactions.FindExact(ctx, c.Date, c.Description, c.AmountCents)
			if err != nil {
				outcome.ErrorDetails = append(outcome.ErrorDetails, RowError{
					Row: c.Row, Error: fmt.Sprintf("duplicate check failed: %v", err),
				})
				continue
			}
			if existing != nil {
				outcome.Duplicates = append(outcome.Duplicates, Duplicate{
					Row: c.Row, ExistingID: existing.ID, Existing: *existing,
				})
				continue
			}
		}

		categoryID := c.CategoryID
		if categoryID == nil {
			match, err := s.Engine.Evaluate(ctx, Subject{Description: c.Description, Merchant: deref(c.Merchant)})
			if err != nil {
				outcome.ErrorDetails = append(outcome.ErrorDetails, RowError{
					Row: c.Row, Error: fmt.Sprintf("rule evaluation failed: %v", err),
				})
				continue
			}
			if match != nil {
				id := match.CategoryID
				categoryID = &id
			}
		}

		importID := outcome.ImportID
		txn := repository.Transaction{
			ID:          uuid.NewString(),
			Date:        c.Date,
			Description: c.Description,
			AmountCents: c.AmountCents,
			Merchant:    c.Merchant,
			Notes:       c.Notes,
			CategoryID:  categoryID,
			ImportID:    &importID,
		}
		staged = append(staged, stagedTransaction{txn: txn, row: c.Row})
	}
	return staged
}

// finalize drives the record to its terminal status. Failed means
// nothing imported and at least one error; partial means both errors
// and imports; everything else, the all-duplicates case included, is
// completed.
func (s *Importer) finalize(ctx context.Context, record *repository.TransactionImport, outcome ImportOutcome) error {
	status := repository.StatusCompleted
	if outcome.Errors > 0 {
		if outcome.Imported == 0 {
			status = repository.StatusFailed
		} else {
			status = repository.StatusPartial
		}
	}

	imported := record.ImportedCount + outcome.Imported
	skipped := record.SkippedCount + outcome.Skipped
	errorCount := record.ErrorCount + outcome.Errors
	completedAt := database.Now()
	update := repository.ImportUpdate{
		Status:        &status,
		ImportedCount: &imported,
		SkippedCount:  &skipped,
		ErrorCount:    &errorCount,
		CompletedAt:   &completedAt,
	}
	if len(outcome.ErrorDetails) > 0 {
		if details, err := json.Marshal(outcome.ErrorDetails); err == nil {
			d := string(details)
			update.ErrorDetails = &d
		}
	}
	if err := s.Imports.Update(ctx, record.ID, update); err != nil {
		return fmt.Errorf("import %s: finalize: %w", record.ID, err)
	}
	return nil
}

// markFailed is an explicit attempt-and-ignore write: a failure here
// must never mask the original error returned to the caller.
func (s *Importer) markFailed(ctx context.Context, importID string, cause error) {
	if importID == "" {
		return
	}
	status := repository.StatusFailed
	completedAt := database.Now()
	details, _ := json.Marshal([]RowError{{Error: cause.Error()}})
	d := string(details)
	if err := s.Imports.Update(ctx, importID, repository.ImportUpdate{
		Status:       &status,
		ErrorDetails: &d,
		CompletedAt:  &completedAt,
	}); err != nil {
		s.Log.Warn().Err(err).Str("import_id", importID).Msg("could not mark import failed")
	}
}

func batchKey(c Candidate) string {
	return fmt.Sprintf("%s|%s|%d", c.Date.Format(time.DateOnly), c.Description, c.AmountCents)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
