package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IllegalTransitionError reports an event fired against a status that does
// not accept it.
type IllegalTransitionError struct {
	Entity string
	From   string
	Event  string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s in status %s does not accept event %s", e.Entity, e.From, e.Event)
}

// InsufficientStockError reports a debit that would take an inventory below
// zero. The ledger guarantees nothing was changed when this is returned.
type InsufficientStockError struct {
	ItemName  string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %s, available %s",
		e.ItemName, e.Required.String(), e.Available.String())
}

// PermissionDeniedError reports an actor lacking the permission an
// operation requires.
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %s does not hold permission %s", e.Role, e.Permission)
}
