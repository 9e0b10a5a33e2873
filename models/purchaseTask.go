package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// PurchaseTask requests replenishment of materials. Receipt credits
// material stock; it is the only path allowed to create missing inventory
// rows.
type PurchaseTask struct {
	ID              int                `gorm:"primary_key" json:"id"`
	TaskNo          string             `gorm:"size:50;not null;uniqueIndex" json:"task_no"`
	Status          PurchaseTaskStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	Supplier        string             `gorm:"size:100" json:"supplier"`
	RequestedById   int                `json:"requested_by_id"`
	RequestedByName string             `gorm:"size:100" json:"requested_by_name"`
	ApprovedById    int                `json:"approved_by_id"`
	ReceivedAt      *time.Time         `json:"received_at"`
	Remark          string             `gorm:"size:500" json:"remark"`
	Items           []PurchaseTaskItem `gorm:"foreignKey:TaskId" json:"items"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseTaskItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	TaskId     int             `gorm:"not null;index" json:"task_id"`
	MaterialId int             `gorm:"not null;index" json:"material_id"`
	Material   *Material       `gorm:"foreignKey:MaterialId" json:"material,omitempty"`
	Quantity   decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_price"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPurchaseTaskItem struct {
	MaterialId int             `json:"material_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type NewPurchaseTask struct {
	Supplier string                 `json:"supplier"`
	Remark   string                 `json:"remark"`
	Items    []*NewPurchaseTaskItem `json:"items" binding:"required,dive"`
}

func CreatePurchaseTask(ctx context.Context, input *NewPurchaseTask) (*PurchaseTask, error) {
	db := config.GetDB().WithContext(ctx)
	if len(input.Items) == 0 {
		return nil, errors.New("purchase task must have at least one item")
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Material](db, item.MaterialId); err != nil {
			return nil, errors.New("material not found")
		}
		if err := utils.ValidatePositiveQuantity("purchase quantity", item.Quantity); err != nil {
			return nil, err
		}
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	task := PurchaseTask{
		TaskNo:          utils.DocumentNumber("PT"),
		Status:          PurchaseTaskStatusPending,
		Supplier:        input.Supplier,
		RequestedById:   userId,
		RequestedByName: userName,
		Remark:          input.Remark,
	}
	for _, item := range input.Items {
		task.Items = append(task.Items, PurchaseTaskItem{
			MaterialId: item.MaterialId,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}

	if err := db.Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func GetPurchaseTask(ctx context.Context, id int) (*PurchaseTask, error) {
	db := config.GetDB()
	return utils.FetchModel[PurchaseTask](db.WithContext(ctx), id, "Items", "Items.Material")
}
