package config

import (
	"os"
	"strings"
)

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoCreateInventoryOnReceipt controls whether purchase receipt may lazily
// create missing inventory rows (with zero quantity) instead of failing.
// Debit paths never auto-create.
//
// Set via env:
// - AUTO_CREATE_INVENTORY_ON_RECEIPT=false
func AutoCreateInventoryOnReceipt() bool {
	return envBool("AUTO_CREATE_INVENTORY_ON_RECEIPT", true)
}

// StrictOrderImmutability blocks edits to a sales order once it has passed
// the first approval gate; the order must be rejected back to the
// salesperson (or cancelled) and resubmitted instead.
//
// Set via env:
// - STRICT_ORDER_IMMUTABLE=false
func StrictOrderImmutability() bool {
	return envBool("STRICT_ORDER_IMMUTABLE", true)
}
