package persistence

import (
	"strings"

	"github.com/storefront/backend/internal/domain/shared"
)

// defaultSortField keeps listings newest first
const defaultSortField = "created_at"

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// OrderSortFields contains allowed sort fields for orders
var OrderSortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"status":          true,
	"amount":          true,
	"tracking_status": true,
	"return_status":   true,
}

// ReturnSortFields contains allowed sort fields for returns
var ReturnSortFields = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"status":        true,
	"refund_amount": true,
	"resolved_at":   true,
}

// orderClause builds an ORDER BY clause from filter. id breaks ties so
// pages stay stable when the sort column repeats.
func orderClause(filter shared.Filter, allowed map[string]bool) string {
	field := ValidateSortField(filter.OrderBy, allowed, defaultSortField)
	return field + " " + ValidateSortOrder(filter.OrderDir) + ", id DESC"
}
