package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SalesOrder struct {
	ID                int              `gorm:"primary_key" json:"id"`
	OrderNo           string           `gorm:"size:50;not null;uniqueIndex" json:"order_no"`
	CustomerId        int              `gorm:"not null;index" json:"customer_id"`
	Customer          *Customer        `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	Status            SalesOrderStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	TotalAmount       decimal.Decimal  `gorm:"type:decimal(14,4);not null" json:"total_amount"`
	DeliveryDate      *time.Time       `json:"delivery_date"`
	Remark            string           `gorm:"size:500" json:"remark"`
	CreatedById       int              `json:"created_by_id"`
	CreatedByName     string           `gorm:"size:100" json:"created_by_name"`
	ApprovedById      int              `json:"approved_by_id"`
	ApprovedByName    string           `gorm:"size:100" json:"approved_by_name"`
	ApprovedAt        *time.Time       `json:"approved_at"`
	CEOApprovedById   int              `json:"ceo_approved_by_id"`
	CEOApprovedByName string           `gorm:"size:100" json:"ceo_approved_by_name"`
	CEOApprovedAt     *time.Time       `json:"ceo_approved_at"`
	RejectedById      int              `json:"rejected_by_id"`
	RejectedByName    string           `gorm:"size:100" json:"rejected_by_name"`
	RejectedAt        *time.Time       `json:"rejected_at"`
	RejectReason      string           `gorm:"size:500" json:"reject_reason"`
	TerminatedById    int              `json:"terminated_by_id"`
	TerminatedByName  string           `gorm:"size:100" json:"terminated_by_name"`
	TerminatedAt      *time.Time       `json:"terminated_at"`
	TerminateReason   string           `gorm:"size:500" json:"terminate_reason"`
	Items             []SalesOrderItem `gorm:"foreignKey:OrderId" json:"items"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesOrderItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"not null;index" json:"order_id"`
	ProductId int             `gorm:"not null;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	Quantity  decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_price"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"amount"`
	// ReservedQty is the part of Quantity already debited from finished
	// goods stock when the order was approved.
	ReservedQty decimal.Decimal       `gorm:"type:decimal(14,4);not null;default:0" json:"reserved_qty"`
	Batches     []SalesOrderItemBatch `gorm:"foreignKey:OrderItemId" json:"batches,omitempty"`
	CreatedAt   time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

// SalesOrderItemBatch records which stock batches a reservation consumed,
// so a later terminate can be audited against the ledger.
type SalesOrderItemBatch struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderItemId int             `gorm:"not null;index" json:"order_item_id"`
	BatchNumber string          `gorm:"size:50;not null" json:"batch_number"`
	Quantity    decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewSalesOrderItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type NewSalesOrder struct {
	CustomerId   int                  `json:"customer_id" binding:"required"`
	DeliveryDate *time.Time           `json:"delivery_date"`
	Remark       string               `json:"remark"`
	Items        []*NewSalesOrderItem `json:"items" binding:"required,dive"`
}

func (input *NewSalesOrder) validate(tx *gorm.DB) error {
	if len(input.Items) == 0 {
		return errors.New("order must have at least one item")
	}
	if err := utils.ValidateResourceId[Customer](tx, input.CustomerId); err != nil {
		return errors.New("customer not found")
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Product](tx, item.ProductId); err != nil {
			return errors.New("product not found")
		}
		if err := utils.ValidatePositiveQuantity("order quantity", item.Quantity); err != nil {
			return err
		}
		if item.UnitPrice.IsNegative() {
			return errors.New("unit price cannot be negative")
		}
	}
	return nil
}

func CreateSalesOrder(ctx context.Context, input *NewSalesOrder) (*SalesOrder, error) {
	db := config.GetDB().WithContext(ctx)
	if err := input.validate(db); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	order := SalesOrder{
		OrderNo:       utils.DocumentNumber("SO"),
		CustomerId:    input.CustomerId,
		Status:        SalesOrderStatusPending,
		DeliveryDate:  input.DeliveryDate,
		Remark:        input.Remark,
		CreatedById:   userId,
		CreatedByName: userName,
	}

	total := decimal.Zero
	for _, item := range input.Items {
		amount := item.Quantity.Mul(item.UnitPrice)
		order.Items = append(order.Items, SalesOrderItem{
			ProductId:   item.ProductId,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      amount,
			ReservedQty: decimal.Zero,
		})
		total = total.Add(amount)
	}
	order.TotalAmount = total

	if err := db.Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateSalesOrder replaces the editable fields and items of an order.
// Only pending and rejected orders can be edited; editing a rejected order
// sends it back to pending for a fresh approval round.
func UpdateSalesOrder(ctx context.Context, id int, input *NewSalesOrder) (*SalesOrder, error) {
	db := config.GetDB().WithContext(ctx)
	if err := input.validate(db); err != nil {
		return nil, err
	}

	var updated *SalesOrder
	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := utils.FetchModel[SalesOrder](lockForUpdate(tx), id)
		if err != nil {
			return err
		}
		if config.StrictOrderImmutability() &&
			order.Status != SalesOrderStatusPending && order.Status != SalesOrderStatusRejected {
			return &IllegalTransitionError{Entity: "sales order", From: string(order.Status), Event: "edit"}
		}

		var itemIds []int
		if err := tx.Model(&SalesOrderItem{}).Where("order_id = ?", order.ID).
			Pluck("id", &itemIds).Error; err != nil {
			return err
		}
		if len(itemIds) > 0 {
			if err := tx.Where("order_item_id IN ?", itemIds).
				Delete(&SalesOrderItemBatch{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&SalesOrderItem{}).Error; err != nil {
			return err
		}

		order.CustomerId = input.CustomerId
		order.DeliveryDate = input.DeliveryDate
		order.Remark = input.Remark
		if order.Status == SalesOrderStatusRejected {
			order.Status = SalesOrderStatusPending
			order.RejectReason = ""
			order.RejectedById = 0
			order.RejectedByName = ""
			order.RejectedAt = nil
		}

		total := decimal.Zero
		order.Items = nil
		for _, item := range input.Items {
			amount := item.Quantity.Mul(item.UnitPrice)
			order.Items = append(order.Items, SalesOrderItem{
				OrderId:     order.ID,
				ProductId:   item.ProductId,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Amount:      amount,
				ReservedQty: decimal.Zero,
			})
			total = total.Add(amount)
		}
		order.TotalAmount = total

		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(order).Error; err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	db := config.GetDB()
	return utils.FetchModel[SalesOrder](db.WithContext(ctx), id,
		"Customer", "Items", "Items.Product", "Items.Batches")
}

func GetSalesOrders(ctx context.Context, status SalesOrderStatus) ([]*SalesOrder, error) {
	db := config.GetDB().WithContext(ctx).Preload("Customer").Preload("Items")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	var orders []*SalesOrder
	if err := db.Order("id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
