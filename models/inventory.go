package models

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Inventory is one stock position, identified by (inventory_type, item_id).
// Quantity is derived: it is always recomputed as the sum of the batches
// after every mutation, never adjusted in place.
type Inventory struct {
	ID            int             `gorm:"primary_key" json:"id"`
	InventoryType InventoryType   `gorm:"size:20;not null;uniqueIndex:uix_inventory_item" json:"inventory_type"`
	ItemId        int             `gorm:"not null;uniqueIndex:uix_inventory_item" json:"item_id"`
	ItemName      string          `gorm:"size:100;not null" json:"item_name"`
	Unit          string          `gorm:"size:20" json:"unit"`
	Quantity      decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"quantity"`
	Location      string          `gorm:"size:100" json:"location"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Batch is a dated lot within an inventory. Debits consume batches oldest
// first; credits always create a new batch.
type Batch struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InventoryId int             `gorm:"not null;index" json:"inventory_id"`
	BatchNumber string          `gorm:"size:50;not null;index" json:"batch_number"`
	Quantity    decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	BatchDate   time.Time       `gorm:"not null;index" json:"batch_date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// StockTransaction is the append-only movement ledger. Quantity is signed:
// credits positive, debits negative. Rows are never updated or deleted;
// reversals append a compensating row.
type StockTransaction struct {
	ID              int                  `gorm:"primary_key" json:"id"`
	InventoryId     int                  `gorm:"not null;index" json:"inventory_id"`
	TransactionType StockTransactionType `gorm:"size:20;not null;index" json:"transaction_type"`
	Quantity        decimal.Decimal      `gorm:"type:decimal(14,4);not null" json:"quantity"`
	BalanceAfter    decimal.Decimal      `gorm:"type:decimal(14,4);not null" json:"balance_after"`
	ReferenceType   string               `gorm:"size:50;index:idx_stock_txn_ref" json:"reference_type"`
	ReferenceId     int                  `gorm:"index:idx_stock_txn_ref" json:"reference_id"`
	ReferenceNo     string               `gorm:"size:50" json:"reference_no"`
	OperatorId      int                  `json:"operator_id"`
	OperatorName    string               `gorm:"size:100" json:"operator_name"`
	Remark          string               `gorm:"size:200" json:"remark"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

// StockEntry describes one credit or debit against an inventory.
type StockEntry struct {
	InventoryType   InventoryType
	ItemId          int
	ItemName        string
	Unit            string
	Quantity        decimal.Decimal // always positive; direction comes from the call
	TransactionType StockTransactionType
	BatchNumber     string // credits only; generated when empty
	ReferenceType   string
	ReferenceId     int
	ReferenceNo     string
	OperatorId      int
	OperatorName    string
	Remark          string
}

// BatchAllocation records how much of a debit one batch satisfied.
type BatchAllocation struct {
	BatchId     int
	BatchNumber string
	Quantity    decimal.Decimal
}

// lockForUpdate takes a row lock where the dialect supports it. The sqlite
// driver used in tests rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// FindInventory fetches a stock position. May return RecordNotFound.
func FindInventory(tx *gorm.DB, inventoryType InventoryType, itemId int) (*Inventory, error) {
	var inventory Inventory
	err := tx.Where("inventory_type = ? AND item_id = ?", inventoryType, itemId).
		First(&inventory).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	} else if err != nil {
		return nil, err
	}
	return &inventory, nil
}

func findInventoryForUpdate(tx *gorm.DB, inventoryType InventoryType, itemId int) (*Inventory, error) {
	var inventory Inventory
	err := lockForUpdate(tx).
		Where("inventory_type = ? AND item_id = ?", inventoryType, itemId).
		First(&inventory).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	} else if err != nil {
		return nil, err
	}
	return &inventory, nil
}

// AvailableQuantity returns the on-hand quantity of an item, zero when the
// stock position does not exist yet.
func AvailableQuantity(tx *gorm.DB, inventoryType InventoryType, itemId int) (decimal.Decimal, error) {
	inventory, err := FindInventory(tx, inventoryType, itemId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return decimal.Zero, nil
	} else if err != nil {
		return decimal.Zero, err
	}
	return inventory.Quantity, nil
}

// recomputeQuantity re-derives Inventory.Quantity from its batches.
func recomputeQuantity(tx *gorm.DB, inventory *Inventory) error {
	var total decimal.NullDecimal
	if err := tx.Model(&Batch{}).
		Where("inventory_id = ?", inventory.ID).
		Select("SUM(quantity)").Scan(&total).Error; err != nil {
		return err
	}
	inventory.Quantity = decimal.Zero
	if total.Valid {
		inventory.Quantity = total.Decimal
	}
	return tx.Model(&Inventory{}).Where("id = ?", inventory.ID).
		Update("quantity", inventory.Quantity).Error
}

// CreditInventory adds stock: it creates a new batch, re-derives the
// on-hand quantity and appends a ledger row. When the stock position does
// not exist yet it is created lazily (behind a feature flag).
func CreditInventory(tx *gorm.DB, entry *StockEntry) (*StockTransaction, error) {
	if err := utils.ValidatePositiveQuantity("credit quantity", entry.Quantity); err != nil {
		return nil, err
	}

	inventory, err := findInventoryForUpdate(tx, entry.InventoryType, entry.ItemId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		if !config.AutoCreateInventoryOnReceipt() {
			return nil, errors.New("inventory not found for " + entry.ItemName)
		}
		inventory = &Inventory{
			InventoryType: entry.InventoryType,
			ItemId:        entry.ItemId,
			ItemName:      entry.ItemName,
			Unit:          entry.Unit,
			Quantity:      decimal.Zero,
		}
		if err := tx.Create(inventory).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	batchNumber := entry.BatchNumber
	if batchNumber == "" {
		batchNumber = utils.DocumentNumber("B")
	}
	batch := Batch{
		InventoryId: inventory.ID,
		BatchNumber: batchNumber,
		Quantity:    entry.Quantity,
		BatchDate:   time.Now().UTC(),
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, err
	}

	if err := recomputeQuantity(tx, inventory); err != nil {
		return nil, err
	}

	txn := StockTransaction{
		InventoryId:     inventory.ID,
		TransactionType: entry.TransactionType,
		Quantity:        entry.Quantity,
		BalanceAfter:    inventory.Quantity,
		ReferenceType:   entry.ReferenceType,
		ReferenceId:     entry.ReferenceId,
		ReferenceNo:     entry.ReferenceNo,
		OperatorId:      entry.OperatorId,
		OperatorName:    entry.OperatorName,
		Remark:          entry.Remark,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// DebitInventory removes stock, consuming batches oldest first. It fails
// with InsufficientStockError before touching anything when on-hand stock
// does not cover the debit; a missing stock position counts as zero.
func DebitInventory(tx *gorm.DB, entry *StockEntry) (*StockTransaction, []BatchAllocation, error) {
	if err := utils.ValidatePositiveQuantity("debit quantity", entry.Quantity); err != nil {
		return nil, nil, err
	}

	inventory, err := findInventoryForUpdate(tx, entry.InventoryType, entry.ItemId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, nil, &InsufficientStockError{
			ItemName:  entry.ItemName,
			Required:  entry.Quantity,
			Available: decimal.Zero,
		}
	} else if err != nil {
		return nil, nil, err
	}

	if inventory.Quantity.LessThan(entry.Quantity) {
		return nil, nil, &InsufficientStockError{
			ItemName:  entry.ItemName,
			Required:  entry.Quantity,
			Available: inventory.Quantity,
		}
	}

	var batches []*Batch
	if err := lockForUpdate(tx).
		Where("inventory_id = ? AND quantity > 0", inventory.ID).
		Order("batch_date, created_at, id").
		Find(&batches).Error; err != nil {
		return nil, nil, err
	}

	remaining := entry.Quantity
	var allocations []BatchAllocation
	for _, batch := range batches {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(batch.Quantity, remaining)
		if err := tx.Model(&Batch{}).Where("id = ?", batch.ID).
			Update("quantity", batch.Quantity.Sub(take)).Error; err != nil {
			return nil, nil, err
		}
		allocations = append(allocations, BatchAllocation{
			BatchId:     batch.ID,
			BatchNumber: batch.BatchNumber,
			Quantity:    take,
		})
		remaining = remaining.Sub(take)
	}
	if remaining.GreaterThan(decimal.Zero) {
		// batches disagree with the derived quantity; refuse rather than go negative
		return nil, nil, errors.New("batch quantities out of sync for " + entry.ItemName)
	}

	if err := recomputeQuantity(tx, inventory); err != nil {
		return nil, nil, err
	}

	txn := StockTransaction{
		InventoryId:     inventory.ID,
		TransactionType: entry.TransactionType,
		Quantity:        entry.Quantity.Neg(),
		BalanceAfter:    inventory.Quantity,
		ReferenceType:   entry.ReferenceType,
		ReferenceId:     entry.ReferenceId,
		ReferenceNo:     entry.ReferenceNo,
		OperatorId:      entry.OperatorId,
		OperatorName:    entry.OperatorName,
		Remark:          entry.Remark,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, nil, err
	}
	return &txn, allocations, nil
}
