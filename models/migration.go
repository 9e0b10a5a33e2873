package models

import (
	"gorm.io/gorm"
)

// Migrate creates or updates every table. Called once at startup after the
// database connection is established.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserProfile{},
		&Customer{},
		&Product{},
		&Material{},
		&BOM{},
		&Inventory{},
		&Batch{},
		&StockTransaction{},
		&SalesOrder{},
		&SalesOrderItem{},
		&SalesOrderItemBatch{},
		&ProductionTask{},
		&MaterialRequisition{},
		&MaterialRequisitionItem{},
		&QCRecord{},
		&FinishedProductInbound{},
		&ShippingNotice{},
		&Driver{},
		&Vehicle{},
		&Shipment{},
		&PurchaseTask{},
		&PurchaseTaskItem{},
		&InventoryAdjustmentRequest{},
	)
}
