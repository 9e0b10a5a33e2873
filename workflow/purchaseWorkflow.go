package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ApprovePurchaseTask clears a pending purchase for ordering.
func (s *FulfillmentService) ApprovePurchaseTask(ctx context.Context, actor models.Actor, taskId int) (*models.PurchaseTask, error) {
	if err := actor.Require(models.PermPurchaseApprove); err != nil {
		return nil, err
	}

	var approved *models.PurchaseTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := utils.FetchModel[models.PurchaseTask](lockForUpdate(tx), taskId)
		if err != nil {
			return err
		}
		if task.Status != models.PurchaseTaskStatusPending {
			return &models.IllegalTransitionError{
				Entity: "purchase task", From: string(task.Status), Event: "approve",
			}
		}
		if err := tx.Model(&models.PurchaseTask{}).Where("id = ?", task.ID).
			Updates(map[string]interface{}{
				"status":         models.PurchaseTaskStatusApproved,
				"approved_by_id": actor.UserId,
			}).Error; err != nil {
			return err
		}
		task.Status = models.PurchaseTaskStatusApproved
		approved = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// ReceivePurchaseTask books the purchased materials into the warehouse.
// Each line becomes a new batch credited as purchase_in; this is the one
// path that may lazily create a missing inventory row.
func (s *FulfillmentService) ReceivePurchaseTask(ctx context.Context, actor models.Actor, taskId int) (*models.PurchaseTask, error) {
	if err := actor.Require(models.PermPurchaseReceive); err != nil {
		return nil, err
	}

	release, err := utils.StockLock(ctx, s.locker, fmt.Sprintf("purchase:%d", taskId), moduleName, "ReceivePurchaseTask")
	if err != nil {
		return nil, err
	}
	defer release()

	var received *models.PurchaseTask
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := utils.FetchModel[models.PurchaseTask](lockForUpdate(tx), taskId, "Items", "Items.Material")
		if err != nil {
			return err
		}
		if task.Status != models.PurchaseTaskStatusApproved {
			return &models.IllegalTransitionError{
				Entity: "purchase task", From: string(task.Status), Event: "receive",
			}
		}

		for _, item := range task.Items {
			name := ""
			unit := ""
			if item.Material != nil {
				name = item.Material.Name
				unit = item.Material.Unit
			}
			if _, err := models.CreditInventory(tx, &models.StockEntry{
				InventoryType:   models.InventoryTypeMaterial,
				ItemId:          item.MaterialId,
				ItemName:        name,
				Unit:            unit,
				Quantity:        item.Quantity,
				TransactionType: models.StockTransactionTypePurchaseIn,
				ReferenceType:   "purchase_task",
				ReferenceId:     task.ID,
				ReferenceNo:     task.TaskNo,
				OperatorId:      actor.UserId,
				OperatorName:    actor.UserName,
			}); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.PurchaseTask{}).Where("id = ?", task.ID).
			Updates(map[string]interface{}{
				"status":      models.PurchaseTaskStatusCompleted,
				"received_at": nowPtr(),
			}).Error; err != nil {
			return err
		}
		task.Status = models.PurchaseTaskStatusCompleted
		received = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"purchase_task_id": taskId,
	}).Info("purchase task received into stock")
	return received, nil
}
