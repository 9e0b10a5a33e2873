package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type NewShipment struct {
	NoticeId  int    `json:"notice_id" binding:"required"`
	DriverId  int    `json:"driver_id" binding:"required"`
	VehicleId int    `json:"vehicle_id" binding:"required"`
	Remark    string `json:"remark"`
}

// CreateShipment assigns a driver and vehicle to a pending shipping
// notice. The shipment starts loading; stock moves only on ConfirmShipment.
func (s *FulfillmentService) CreateShipment(ctx context.Context, actor models.Actor, input *NewShipment) (*models.Shipment, error) {
	if err := actor.Require(models.PermShipmentCreate); err != nil {
		return nil, err
	}

	var shipment *models.Shipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		notice, err := utils.FetchModel[models.ShippingNotice](lockForUpdate(tx), input.NoticeId)
		if err != nil {
			return err
		}
		if notice.Status != models.ShippingNoticeStatusPending {
			return &models.IllegalTransitionError{
				Entity: "shipping notice", From: string(notice.Status), Event: "create_shipment",
			}
		}
		order, err := utils.FetchModel[models.SalesOrder](tx, notice.OrderId)
		if err != nil {
			return err
		}
		if order.Status != models.SalesOrderStatusReadyToShip {
			return &models.IllegalTransitionError{
				Entity: "sales order", From: string(order.Status), Event: "create_shipment",
			}
		}
		if err := utils.ValidateResourceId[models.Driver](tx, input.DriverId); err != nil {
			return errors.New("driver not found")
		}
		if err := utils.ValidateResourceId[models.Vehicle](tx, input.VehicleId); err != nil {
			return errors.New("vehicle not found")
		}

		shipment = &models.Shipment{
			ShipmentNo: utils.DocumentNumber("SH"),
			NoticeId:   notice.ID,
			OrderId:    notice.OrderId,
			DriverId:   input.DriverId,
			VehicleId:  input.VehicleId,
			Status:     models.ShipmentStatusLoading,
			Remark:     input.Remark,
		}
		return tx.Create(shipment).Error
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

// ConfirmShipment is the goods leaving the factory: it debits each order
// line's outstanding quantity (ordered minus the part reserved at
// approval, which already left stock) as a sale, and moves the order to
// shipped. The whole thing is one transaction; an insufficiency on any
// line leaves nothing shipped.
func (s *FulfillmentService) ConfirmShipment(ctx context.Context, actor models.Actor, shipmentId int) (*models.Shipment, error) {
	if err := actor.Require(models.PermShipmentShip); err != nil {
		return nil, err
	}

	release, err := utils.StockLock(ctx, s.locker, fmt.Sprintf("shipment:%d", shipmentId), moduleName, "ConfirmShipment")
	if err != nil {
		return nil, err
	}
	defer release()

	var confirmed *models.Shipment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipment, err := utils.FetchModel[models.Shipment](lockForUpdate(tx), shipmentId)
		if err != nil {
			return err
		}
		if shipment.Status != models.ShipmentStatusLoading {
			return &models.IllegalTransitionError{
				Entity: "shipment", From: string(shipment.Status), Event: "ship",
			}
		}

		order, err := fetchOrderForUpdate(tx, shipment.OrderId)
		if err != nil {
			return err
		}
		next, err := models.NextOrderStatus(order.Status, models.OrderEventShip)
		if err != nil {
			return err
		}

		for i := range order.Items {
			item := &order.Items[i]
			outstanding := item.Quantity.Sub(item.ReservedQty)
			if outstanding.LessThanOrEqual(decimal.Zero) {
				continue
			}
			productName := ""
			unit := ""
			if item.Product != nil {
				productName = item.Product.Name
				unit = item.Product.Unit
			}
			if _, _, err := models.DebitInventory(tx, &models.StockEntry{
				InventoryType:   models.InventoryTypeProduct,
				ItemId:          item.ProductId,
				ItemName:        productName,
				Unit:            unit,
				Quantity:        outstanding,
				TransactionType: models.StockTransactionTypeSaleOut,
				ReferenceType:   "shipment",
				ReferenceId:     shipment.ID,
				ReferenceNo:     shipment.ShipmentNo,
				OperatorId:      actor.UserId,
				OperatorName:    actor.UserName,
			}); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Shipment{}).Where("id = ?", shipment.ID).
			Updates(map[string]interface{}{
				"status":     models.ShipmentStatusShipped,
				"shipped_at": nowPtr(),
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ShippingNotice{}).Where("id = ?", shipment.NoticeId).
			Update("status", models.ShippingNoticeStatusShipped).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Update("status", next).Error; err != nil {
			return err
		}
		shipment.Status = models.ShipmentStatusShipped
		confirmed = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"shipment_id": shipmentId,
	}).Info("shipment confirmed, order shipped")
	return confirmed, nil
}

// ConfirmDelivery closes the loop: once every shipment of the order is
// delivered, the order completes.
func (s *FulfillmentService) ConfirmDelivery(ctx context.Context, actor models.Actor, shipmentId int) (*models.Shipment, error) {
	if err := actor.Require(models.PermShipmentDeliver); err != nil {
		return nil, err
	}

	var delivered *models.Shipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipment, err := utils.FetchModel[models.Shipment](lockForUpdate(tx), shipmentId)
		if err != nil {
			return err
		}
		if shipment.Status != models.ShipmentStatusShipped {
			return &models.IllegalTransitionError{
				Entity: "shipment", From: string(shipment.Status), Event: "deliver",
			}
		}

		if err := tx.Model(&models.Shipment{}).Where("id = ?", shipment.ID).
			Updates(map[string]interface{}{
				"status":       models.ShipmentStatusDelivered,
				"delivered_at": nowPtr(),
			}).Error; err != nil {
			return err
		}
		shipment.Status = models.ShipmentStatusDelivered

		var undelivered int64
		if err := tx.Model(&models.Shipment{}).
			Where("order_id = ? AND status <> ?", shipment.OrderId, models.ShipmentStatusDelivered).
			Count(&undelivered).Error; err != nil {
			return err
		}
		if undelivered == 0 {
			order, err := utils.FetchModel[models.SalesOrder](lockForUpdate(tx), shipment.OrderId)
			if err != nil {
				return err
			}
			next, err := models.NextOrderStatus(order.Status, models.OrderEventDeliver)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
				Update("status", next).Error; err != nil {
				return err
			}
		}
		delivered = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivered, nil
}
