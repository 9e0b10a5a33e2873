package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const moduleName = "workflow"

// FulfillmentService drives every sales order status transition and the
// stock side effects attached to them. All dependencies are injected;
// tests run it against an in-memory database with a nil lock client.
type FulfillmentService struct {
	db     *gorm.DB
	logger *logrus.Logger
	locker *redislock.Client
}

func NewFulfillmentService(db *gorm.DB, logger *logrus.Logger, locker *redislock.Client) *FulfillmentService {
	return &FulfillmentService{db: db, logger: logger, locker: locker}
}

// fetchOrderForUpdate loads an order with its items under a row lock.
func fetchOrderForUpdate(tx *gorm.DB, orderId int) (*models.SalesOrder, error) {
	order, err := utils.FetchModel[models.SalesOrder](lockForUpdate(tx), orderId)
	if err != nil {
		return nil, err
	}
	if err := tx.Preload("Product").Where("order_id = ?", orderId).
		Order("id").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// sqlite used in tests rejects FOR UPDATE
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// ApproveOrder moves a pending order to the CEO's queue.
func (s *FulfillmentService) ApproveOrder(ctx context.Context, actor models.Actor, orderId int) (*models.SalesOrder, error) {
	if err := actor.Require(models.PermOrderApprove); err != nil {
		return nil, err
	}
	return s.transitionOrder(ctx, orderId, models.OrderEventApprove, func(tx *gorm.DB, order *models.SalesOrder) error {
		return tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"approved_by_id":   actor.UserId,
				"approved_by_name": actor.UserName,
				"approved_at":      nowPtr(),
			}).Error
	})
}

// CEOApproveOrder is the pivotal transition: it approves the order, debits
// finished goods stock for whatever can be reserved, opens production
// tasks for the shortages and routes the order to production or shipping.
// Everything happens in one transaction.
func (s *FulfillmentService) CEOApproveOrder(ctx context.Context, actor models.Actor, orderId int) (*OrderRoutingResult, error) {
	if err := actor.Require(models.PermOrderCEOApprove); err != nil {
		return nil, err
	}

	release, err := utils.StockLock(ctx, s.locker, fmt.Sprintf("order:%d", orderId), moduleName, "CEOApproveOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	var result *OrderRoutingResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := fetchOrderForUpdate(tx, orderId)
		if err != nil {
			return err
		}
		next, err := models.NextOrderStatus(order.Status, models.OrderEventCEOApprove)
		if err != nil {
			return err
		}
		order.Status = next

		result, err = s.reserveAndRoute(tx, actor, order)
		if err != nil {
			return err
		}
		return tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"status":               order.Status,
				"ceo_approved_by_id":   actor.UserId,
				"ceo_approved_by_name": actor.UserName,
				"ceo_approved_at":      nowPtr(),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderId,
		"status":   result.Status,
		"tasks":    len(result.Tasks),
	}).Info("sales order approved and routed")
	return result, nil
}

// RejectOrder sends a pending or CEO-pending order back to the
// salesperson with a reason.
func (s *FulfillmentService) RejectOrder(ctx context.Context, actor models.Actor, orderId int, reason string) (*models.SalesOrder, error) {
	if err := actor.Require(models.PermOrderReject); err != nil {
		return nil, err
	}
	return s.transitionOrder(ctx, orderId, models.OrderEventReject, func(tx *gorm.DB, order *models.SalesOrder) error {
		order.RejectReason = reason
		return tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"reject_reason":    reason,
				"rejected_by_id":   actor.UserId,
				"rejected_by_name": actor.UserName,
				"rejected_at":      nowPtr(),
			}).Error
	})
}

// ResubmitOrder puts a rejected order back into the approval queue.
func (s *FulfillmentService) ResubmitOrder(ctx context.Context, actor models.Actor, orderId int) (*models.SalesOrder, error) {
	if err := actor.Require(models.PermOrderEdit); err != nil {
		return nil, err
	}
	return s.transitionOrder(ctx, orderId, models.OrderEventResubmit, func(tx *gorm.DB, order *models.SalesOrder) error {
		order.RejectReason = ""
		return tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"reject_reason":    "",
				"rejected_by_id":   0,
				"rejected_by_name": "",
				"rejected_at":      nil,
			}).Error
	})
}

// CancelOrder withdraws a pending order. Nothing has been reserved yet at
// that point, so there is no stock to release.
func (s *FulfillmentService) CancelOrder(ctx context.Context, actor models.Actor, orderId int) (*models.SalesOrder, error) {
	if err := actor.Require(models.PermOrderCancel); err != nil {
		return nil, err
	}
	return s.transitionOrder(ctx, orderId, models.OrderEventCancel, func(tx *gorm.DB, order *models.SalesOrder) error {
		return nil
	})
}

// TerminateOrder aborts an in-flight order and unwinds its side effects in
// one transaction: open production tasks and their requisitions are
// terminated, reserved finished goods are credited back, and for already
// shipped orders the full ordered quantity is returned to stock.
func (s *FulfillmentService) TerminateOrder(ctx context.Context, actor models.Actor, orderId int, reason string) (*models.SalesOrder, error) {
	if err := actor.Require(models.PermOrderTerminate); err != nil {
		return nil, err
	}

	release, err := utils.StockLock(ctx, s.locker, fmt.Sprintf("order:%d", orderId), moduleName, "TerminateOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	var terminated *models.SalesOrder
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := fetchOrderForUpdate(tx, orderId)
		if err != nil {
			return err
		}
		fromStatus := order.Status
		next, err := models.NextOrderStatus(order.Status, models.OrderEventTerminate)
		if err != nil {
			return err
		}

		fullReason := fmt.Sprintf("order %s terminated: %s", order.OrderNo, reason)

		// terminate open production tasks and their requisitions
		var tasks []*models.ProductionTask
		if err := tx.Where("order_id = ?", order.ID).Find(&tasks).Error; err != nil {
			return err
		}
		for _, task := range tasks {
			if task.Status.IsTerminal() {
				continue
			}
			if err := tx.Model(&models.ProductionTask{}).Where("id = ?", task.ID).
				Updates(map[string]interface{}{
					"status": models.ProductionTaskStatusTerminated,
					"remark": fullReason,
				}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.MaterialRequisition{}).
				Where("task_id = ? AND status NOT IN ?", task.ID,
					[]models.RequisitionStatus{models.RequisitionStatusCancelled, models.RequisitionStatusTerminated}).
				Update("status", models.RequisitionStatusTerminated).Error; err != nil {
				return err
			}
		}

		// credit finished goods back: reserved quantities for orders still
		// in the factory, the full ordered quantity for shipped orders
		// (goods coming back)
		for i := range order.Items {
			item := &order.Items[i]
			creditQty := item.ReservedQty
			if fromStatus == models.SalesOrderStatusShipped {
				creditQty = item.Quantity
			}
			if creditQty.LessThanOrEqual(decimal.Zero) {
				continue
			}
			productName := ""
			unit := ""
			if item.Product != nil {
				productName = item.Product.Name
				unit = item.Product.Unit
			}
			if _, err := models.CreditInventory(tx, &models.StockEntry{
				InventoryType:   models.InventoryTypeProduct,
				ItemId:          item.ProductId,
				ItemName:        productName,
				Unit:            unit,
				Quantity:        creditQty,
				TransactionType: models.StockTransactionTypeAdjustment,
				ReferenceType:   "sales_order",
				ReferenceId:     order.ID,
				ReferenceNo:     order.OrderNo,
				OperatorId:      actor.UserId,
				OperatorName:    actor.UserName,
				Remark:          fullReason,
			}); err != nil {
				return err
			}
		}

		terminatedAt := nowPtr()
		if err := tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"status":             next,
				"terminate_reason":   fullReason,
				"terminated_by_id":   actor.UserId,
				"terminated_by_name": actor.UserName,
				"terminated_at":      terminatedAt,
			}).Error; err != nil {
			return err
		}
		order.Status = next
		order.TerminateReason = fullReason
		order.TerminatedById = actor.UserId
		order.TerminatedByName = actor.UserName
		order.TerminatedAt = terminatedAt
		terminated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderId,
		"reason":   reason,
	}).Info("sales order terminated")
	return terminated, nil
}

// transitionOrder applies a plain status transition (no stock side
// effects) plus an optional per-event mutation, atomically.
func (s *FulfillmentService) transitionOrder(ctx context.Context, orderId int, event models.OrderEvent,
	mutate func(tx *gorm.DB, order *models.SalesOrder) error) (*models.SalesOrder, error) {

	var updated *models.SalesOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := utils.FetchModel[models.SalesOrder](lockForUpdate(tx), orderId)
		if err != nil {
			return err
		}
		next, err := models.NextOrderStatus(order.Status, event)
		if err != nil {
			return err
		}
		if err := mutate(tx, order); err != nil {
			return err
		}
		if err := tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Update("status", next).Error; err != nil {
			return err
		}
		order.Status = next
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func nowPtr() *time.Time {
	now := time.Now().UTC()
	return &now
}
