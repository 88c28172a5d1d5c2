package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/calw/pocketsort/internal/database/repository"
)

type seedRule struct {
	name     string
	value    string
	field    string
	operator string
	priority int
}

type seedCategory struct {
	name  string
	icon  string
	color string
	rules []seedRule
}

var seedCategories = []seedCategory{
	{name: "Groceries", icon: "🛒", color: "#10b981", rules: []seedRule{
		{"Walmart", "walmart", repository.FieldDescription, repository.OpContains, 100},
		{"Safeway", "safeway", repository.FieldDescription, repository.OpContains, 102},
		{"Kroger", "kroger", repository.FieldDescription, repository.OpContains, 103},
		{"Whole Foods", "whole foods", repository.FieldDescription, repository.OpContains, 104},
		{"Trader Joe", "trader joe", repository.FieldDescription, repository.OpContains, 105},
		{"Costco", "costco", repository.FieldDescription, repository.OpContains, 106},
	}},
	{name: "Gas", icon: "⛽", color: "#f59e0b", rules: []seedRule{
		{"Shell", "shell", repository.FieldMerchant, repository.OpContains, 110},
		{"Chevron", "chevron", repository.FieldMerchant, repository.OpContains, 111},
		{"BP", "bp", repository.FieldMerchant, repository.OpContains, 112},
		{"Exxon", "exxon", repository.FieldMerchant, repository.OpContains, 114},
	}},
	{name: "Restaurants", icon: "🍽️", color: "#ef4444", rules: []seedRule{
		{"McDonald", "mcdonalds", repository.FieldDescription, repository.OpContains, 120},
		{"Subway", "subway", repository.FieldDescription, repository.OpContains, 121},
		{"Chipotle", "chipotle", repository.FieldDescription, repository.OpContains, 122},
		{"Taco Bell", "taco bell", repository.FieldDescription, repository.OpContains, 123},
	}},
	{name: "Utilities", icon: "💡", color: "#3b82f6", rules: []seedRule{
		{"Electric Company", "electric", repository.FieldDescription, repository.OpContains, 130},
		{"Water Company", "water", repository.FieldDescription, repository.OpContains, 131},
		{"Internet Provider", "internet", repository.FieldDescription, repository.OpContains, 133},
	}},
	{name: "Healthcare", icon: "⚕️", color: "#dc2626", rules: []seedRule{
		{"Pharmacy", "pharmacy", repository.FieldDescription, repository.OpContains, 140},
		{"CVS", "cvs", repository.FieldDescription, repository.OpContains, 141},
		{"Walgreens", "walgreens", repository.FieldDescription, repository.OpContains, 142},
	}},
	{name: "Shopping", icon: "🛍️", color: "#ec4899", rules: []seedRule{
		{"Amazon", "amazon", repository.FieldDescription, repository.OpContains, 160},
		{"eBay", "ebay", repository.FieldDescription, repository.OpContains, 161},
	}},
	{name: "Transportation", icon: "🚗", color: "#06b6d4", rules: []seedRule{
		{"Uber", "uber", repository.FieldDescription, repository.OpContains, 170},
		{"Lyft", "lyft", repository.FieldDescription, repository.OpContains, 171},
		{"Parking", "parking", repository.FieldDescription, repository.OpContains, 174},
	}},
	{name: "Subscriptions", icon: "📱", color: "#06b6d4", rules: []seedRule{
		{"Netflix", "netflix", repository.FieldDescription, repository.OpContains, 180},
		{"Spotify", "spotify", repository.FieldDescription, repository.OpContains, 181},
	}},
	{name: "Coffee Shops", icon: "☕", color: "#92400e", rules: []seedRule{
		{"Starbucks", "starbucks", repository.FieldDescription, repository.OpContains, 190},
		{"Dunkin", "dunkin'", repository.FieldDescription, repository.OpContains, 191},
		{"Local Coffee", "coffee", repository.FieldDescription, repository.OpContains, 192},
	}},
}

// SeedDefaults ensures baseline system categories and rules exist for
// new databases. It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	catRepo := repository.NewCategoryRepo(db)
	ruleRepo := repository.NewRuleRepo(db)

	existing, err := ruleRepo.List(ctx, repository.RuleFilters{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, sc := range seedCategories {
		catID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+sc.name)).String()
		icon, color := sc.icon, sc.color
		cat := repository.Category{ID: catID, Name: sc.name, Icon: &icon, Color: &color, IsSystem: true}
		if err := catRepo.Upsert(ctx, cat); err != nil {
			return err
		}
		for _, sr := range sc.rules {
			rule := repository.Rule{
				ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte("rule:"+sc.name+":"+sr.name)).String(),
				Name:       sr.name,
				Field:      sr.field,
				Operator:   sr.operator,
				Value:      sr.value,
				Priority:   sr.priority,
				IsActive:   true,
				IsSystem:   true,
				CategoryID: catID,
			}
			if err := ruleRepo.Create(ctx, rule); err != nil {
				return err
			}
		}
	}
	return nil
}
