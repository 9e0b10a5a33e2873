package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// InventoryAdjustmentRequest corrects a stock position by a signed delta.
// The delta is applied to the ledger only when the request is approved.
type InventoryAdjustmentRequest struct {
	ID              int              `gorm:"primary_key" json:"id"`
	RequestNo       string           `gorm:"size:50;not null;uniqueIndex" json:"request_no"`
	InventoryId     int              `gorm:"not null;index" json:"inventory_id"`
	Inventory       *Inventory       `gorm:"foreignKey:InventoryId" json:"inventory,omitempty"`
	Delta           decimal.Decimal  `gorm:"type:decimal(14,4);not null" json:"delta"`
	Reason          string           `gorm:"size:500;not null" json:"reason"`
	Status          AdjustmentStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	RequestedById   int              `json:"requested_by_id"`
	RequestedByName string           `gorm:"size:100" json:"requested_by_name"`
	ReviewedById    int              `json:"reviewed_by_id"`
	ReviewedByName  string           `gorm:"size:100" json:"reviewed_by_name"`
	ReviewedAt      *time.Time       `json:"reviewed_at"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryAdjustmentRequest struct {
	InventoryId int             `json:"inventory_id" binding:"required"`
	Delta       decimal.Decimal `json:"delta" binding:"required"`
	Reason      string          `json:"reason" binding:"required"`
}

func CreateInventoryAdjustmentRequest(ctx context.Context, input *NewInventoryAdjustmentRequest) (*InventoryAdjustmentRequest, error) {
	db := config.GetDB().WithContext(ctx)
	if err := utils.ValidateResourceId[Inventory](db, input.InventoryId); err != nil {
		return nil, errors.New("inventory not found")
	}
	if input.Delta.IsZero() {
		return nil, errors.New("adjustment delta cannot be zero")
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	request := InventoryAdjustmentRequest{
		RequestNo:       utils.DocumentNumber("ADJ"),
		InventoryId:     input.InventoryId,
		Delta:           input.Delta,
		Reason:          input.Reason,
		Status:          AdjustmentStatusPending,
		RequestedById:   userId,
		RequestedByName: userName,
	}
	if err := db.Create(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func GetInventoryAdjustmentRequest(ctx context.Context, id int) (*InventoryAdjustmentRequest, error) {
	db := config.GetDB()
	return utils.FetchModel[InventoryAdjustmentRequest](db.WithContext(ctx), id, "Inventory")
}
