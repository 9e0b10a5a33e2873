package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

// ReviewAdjustment approves or rejects a pending stock correction. An
// approval applies the signed delta through the ledger in the same
// transaction: a negative delta that stock cannot cover fails the whole
// review and the request stays pending.
func (s *FulfillmentService) ReviewAdjustment(ctx context.Context, actor models.Actor, requestId int, approve bool) (*models.InventoryAdjustmentRequest, error) {
	if err := actor.Require(models.PermAdjustmentApprove); err != nil {
		return nil, err
	}

	release, err := utils.StockLock(ctx, s.locker, fmt.Sprintf("adjustment:%d", requestId), moduleName, "ReviewAdjustment")
	if err != nil {
		return nil, err
	}
	defer release()

	var reviewed *models.InventoryAdjustmentRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := utils.FetchModel[models.InventoryAdjustmentRequest](lockForUpdate(tx), requestId, "Inventory")
		if err != nil {
			return err
		}
		if request.Status != models.AdjustmentStatusPending {
			return &models.IllegalTransitionError{
				Entity: "inventory adjustment", From: string(request.Status), Event: "review",
			}
		}

		status := models.AdjustmentStatusRejected
		if approve {
			status = models.AdjustmentStatusCompleted
			inventory := request.Inventory

			entry := &models.StockEntry{
				InventoryType:   inventory.InventoryType,
				ItemId:          inventory.ItemId,
				ItemName:        inventory.ItemName,
				Unit:            inventory.Unit,
				Quantity:        request.Delta.Abs(),
				TransactionType: models.StockTransactionTypeAdjustment,
				ReferenceType:   "inventory_adjustment",
				ReferenceId:     request.ID,
				ReferenceNo:     request.RequestNo,
				OperatorId:      actor.UserId,
				OperatorName:    actor.UserName,
				Remark:          request.Reason,
			}
			if request.Delta.IsNegative() {
				if _, _, err := models.DebitInventory(tx, entry); err != nil {
					return err
				}
			} else {
				if _, err := models.CreditInventory(tx, entry); err != nil {
					return err
				}
			}
		}

		if err := tx.Model(&models.InventoryAdjustmentRequest{}).Where("id = ?", request.ID).
			Updates(map[string]interface{}{
				"status":           status,
				"reviewed_by_id":   actor.UserId,
				"reviewed_by_name": actor.UserName,
				"reviewed_at":      nowPtr(),
			}).Error; err != nil {
			return err
		}
		request.Status = status
		reviewed = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}
