package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/calw/pocketsort/internal/database/repository"
)

// Subject carries the transaction fields rules can match against.
type Subject struct {
	Description string
	Merchant    string
}

// Match is the rule selected for a transaction, with its owning category.
type Match struct {
	Rule       repository.Rule
	CategoryID string
	Category   repository.Category
}

// RuleEngine evaluates categorization rules against transactions. It is
// stateless: the active rule set is reloaded on every evaluation, since
// rules are edited while transactions keep arriving.
type RuleEngine struct {
	Rules        RuleSource
	Transactions TransactionStore
	Log          zerolog.Logger
}

// matchValue tests one field value against one rule value. Comparison is
// case-insensitive on both sides; the stored rule value is already
// lower-cased but that is not assumed here. An empty field value never
// matches, and an unknown operator matches nothing rather than failing.
func matchValue(fieldValue, ruleValue, operator string) bool {
	if fieldValue == "" {
		return false
	}
	field := strings.ToLower(fieldValue)
	value := strings.ToLower(ruleValue)

	switch operator {
	case repository.OpContains:
		return strings.Contains(field, value)
	case repository.OpEquals:
		return field == value
	case repository.OpStartsWith:
		return strings.HasPrefix(field, value)
	default:
		return false
	}
}

// subjectField resolves a rule's field against the subject. Unrecognized
// field names resolve to the empty string, which never matches.
func subjectField(field string, s Subject) string {
	switch field {
	case repository.FieldDescription:
		return s.Description
	case repository.FieldMerchant:
		return s.Merchant
	default:
		return ""
	}
}

// Evaluate returns the first active rule matching the subject, walking
// rules by priority descending with earlier-created rules winning ties.
// A nil match is a normal outcome, not an error.
func (e *RuleEngine) Evaluate(ctx context.Context, s Subject) (*Match, error) {
	rules, err := e.Rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active rules: %w", err)
	}

	for _, rule := range rules {
		if matchValue(subjectField(rule.Field, s), rule.Value, rule.Operator) {
			m := &Match{Rule: rule, CategoryID: rule.CategoryID}
			if rule.Category != nil {
				m.Category = *rule.Category
			}
			e.Log.Debug().
				Str("rule_id", rule.ID).
				Str("rule_name", rule.Name).
				Str("category_id", rule.CategoryID).
				Msg("rule matched")
			return m, nil
		}
	}
	return nil, nil
}

// ApplyTo evaluates rules for one stored transaction and persists the
// matched category. A miss leaves the transaction untouched.
func (e *RuleEngine) ApplyTo(ctx context.Context, transactionID string) (*repository.Transaction, error) {
	txn, err := e.Transactions.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, repository.ErrNotFound)
	}

	match, err := e.Evaluate(ctx, subjectFromTransaction(*txn))
	if err != nil {
		return nil, err
	}
	if match == nil {
		return txn, nil
	}

	categoryID := match.CategoryID
	if err := e.Transactions.UpdateCategory(ctx, txn.ID, &categoryID); err != nil {
		return nil, err
	}
	txn.CategoryID = &categoryID
	return txn, nil
}

// ItemError reports a per-transaction failure inside a bulk operation.
type ItemError struct {
	TransactionID string `json:"transactionId"`
	Error         string `json:"error"`
}

// RecategorizeSummary is the outcome of a bulk recategorize run. Ids
// that resolved but matched no rule are counted as neither updated nor
// failed: total - updated - failed is the no-op count.
type RecategorizeSummary struct {
	Total   int         `json:"total"`
	Updated int         `json:"updated"`
	Failed  int         `json:"failed"`
	Errors  []ItemError `json:"errors"`
}

// Recategorize re-runs rule evaluation for each transaction id
// independently. One id failing never aborts the batch, and a miss
// never clears a category that is already set.
func (e *RuleEngine) Recategorize(ctx context.Context, transactionIDs []string) RecategorizeSummary {
	summary := RecategorizeSummary{Total: len(transactionIDs)}

	for _, id := range transactionIDs {
		txn, err := e.Transactions.Get(ctx, id)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{TransactionID: id, Error: err.Error()})
			continue
		}
		if txn == nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{TransactionID: id, Error: "transaction not found"})
			continue
		}

		match, err := e.Evaluate(ctx, subjectFromTransaction(*txn))
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{TransactionID: id, Error: err.Error()})
			continue
		}
		if match == nil {
			continue
		}

		categoryID := match.CategoryID
		if err := e.Transactions.UpdateCategory(ctx, id, &categoryID); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{TransactionID: id, Error: err.Error()})
			continue
		}
		summary.Updated++
	}

	e.Log.Info().
		Int("total", summary.Total).
		Int("updated", summary.Updated).
		Int("failed", summary.Failed).
		Msg("recategorize finished")
	return summary
}

// ProbeResult reports a dry-run of one hypothetical rule.
type ProbeResult struct {
	Matches    bool   `json:"matches"`
	Field      string `json:"field"`
	FieldValue string `json:"fieldValue"`
	RuleValue  string `json:"ruleValue"`
	Operator   string `json:"operator"`
}

// ProbeRule tests a rule against a subject without touching the store.
// Field defaults to description and operator to contains.
func ProbeRule(s Subject, field, operator, value string) ProbeResult {
	if field == "" {
		field = repository.FieldDescription
	}
	if operator == "" {
		operator = repository.OpContains
	}
	fieldValue := subjectField(field, s)
	return ProbeResult{
		Matches:    matchValue(fieldValue, value, operator),
		Field:      field,
		FieldValue: fieldValue,
		RuleValue:  value,
		Operator:   operator,
	}
}

func subjectFromTransaction(t repository.Transaction) Subject {
	s := Subject{Description: t.Description}
	if t.Merchant != nil {
		s.Merchant = *t.Merchant
	}
	return s
}
