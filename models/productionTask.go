package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// ProductionTask covers the shortage of one sales order item: its required
// quantity is the shortage, not the full ordered quantity.
type ProductionTask struct {
	ID                int                  `gorm:"primary_key" json:"id"`
	TaskNo            string               `gorm:"size:50;not null;uniqueIndex" json:"task_no"`
	OrderId           int                  `gorm:"not null;index" json:"order_id"`
	Order             *SalesOrder          `gorm:"foreignKey:OrderId" json:"order,omitempty"`
	OrderItemId       int                  `gorm:"not null;index" json:"order_item_id"`
	ProductId         int                  `gorm:"not null;index" json:"product_id"`
	Product           *Product             `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	RequiredQuantity  decimal.Decimal      `gorm:"type:decimal(14,4);not null" json:"required_quantity"`
	CompletedQuantity decimal.Decimal      `gorm:"type:decimal(14,4);not null;default:0" json:"completed_quantity"`
	Status            ProductionTaskStatus `gorm:"size:25;not null;default:pending;index" json:"status"`
	ReceivedById      int                  `json:"received_by_id"`
	ReceivedByName    string               `gorm:"size:100" json:"received_by_name"`
	ReceivedAt        *time.Time           `json:"received_at"`
	Remark            string               `gorm:"size:500" json:"remark"`
	CreatedAt         time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type MaterialRequisition struct {
	ID              int                       `gorm:"primary_key" json:"id"`
	RequisitionNo   string                    `gorm:"size:50;not null;uniqueIndex" json:"requisition_no"`
	TaskId          int                       `gorm:"not null;index" json:"task_id"`
	Task            *ProductionTask           `gorm:"foreignKey:TaskId" json:"task,omitempty"`
	Status          RequisitionStatus         `gorm:"size:20;not null;default:pending;index" json:"status"`
	RequestedById   int                       `json:"requested_by_id"`
	RequestedByName string                    `gorm:"size:100" json:"requested_by_name"`
	IssuedAt        *time.Time                `json:"issued_at"`
	Items           []MaterialRequisitionItem `gorm:"foreignKey:RequisitionId" json:"items"`
	CreatedAt       time.Time                 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                 `gorm:"autoUpdateTime" json:"updated_at"`
}

type MaterialRequisitionItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	RequisitionId int             `gorm:"not null;index" json:"requisition_id"`
	MaterialId    int             `gorm:"not null;index" json:"material_id"`
	Material      *Material       `gorm:"foreignKey:MaterialId" json:"material,omitempty"`
	Quantity      decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type QCRecord struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TaskId        int             `gorm:"not null;index" json:"task_id"`
	Task          *ProductionTask `gorm:"foreignKey:TaskId" json:"task,omitempty"`
	Result        QCResult        `gorm:"size:20;not null" json:"result"`
	CheckedQty    decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"checked_qty"`
	InspectorId   int             `json:"inspector_id"`
	InspectorName string          `gorm:"size:100" json:"inspector_name"`
	Remark        string          `gorm:"size:500" json:"remark"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// FinishedProductInbound is one warehouse receipt of finished goods against
// a production task.
type FinishedProductInbound struct {
	ID             int             `gorm:"primary_key" json:"id"`
	InboundNo      string          `gorm:"size:50;not null;uniqueIndex" json:"inbound_no"`
	TaskId         int             `gorm:"not null;index" json:"task_id"`
	Task           *ProductionTask `gorm:"foreignKey:TaskId" json:"task,omitempty"`
	Quantity       decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	BatchNumber    string          `gorm:"size:50" json:"batch_number"`
	ReceivedById   int             `json:"received_by_id"`
	ReceivedByName string          `gorm:"size:100" json:"received_by_name"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetProductionTask(ctx context.Context, id int) (*ProductionTask, error) {
	db := config.GetDB()
	return utils.FetchModel[ProductionTask](db.WithContext(ctx), id, "Order", "Product")
}

func GetProductionTasks(ctx context.Context, status ProductionTaskStatus) ([]*ProductionTask, error) {
	db := config.GetDB().WithContext(ctx).Preload("Order").Preload("Product")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	var tasks []*ProductionTask
	if err := db.Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func GetMaterialRequisition(ctx context.Context, id int) (*MaterialRequisition, error) {
	db := config.GetDB()
	return utils.FetchModel[MaterialRequisition](db.WithContext(ctx), id,
		"Task", "Items", "Items.Material")
}
