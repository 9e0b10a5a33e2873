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

// TaskReceiveResult reports what receiving a production task did. When
// materials were sufficient a requisition was issued and stock debited;
// otherwise the task is parked as material_insufficient and Shortages
// lists what is missing.
type TaskReceiveResult struct {
	Task        *models.ProductionTask      `json:"task"`
	Requisition *models.MaterialRequisition `json:"requisition,omitempty"`
	Sufficient  bool                        `json:"sufficient"`
	Shortages   []MaterialRequirement       `json:"shortages,omitempty"`
}

// ReceiveTask is the production worker picking up a task. It resolves the
// BOM for the required quantity, and when every material is on hand it
// issues an auto-approved requisition, debits material stock and moves the
// task into production. Short materials park the task instead; receiving
// again after replenishment retries.
func (s *FulfillmentService) ReceiveTask(ctx context.Context, actor models.Actor, taskId int) (*TaskReceiveResult, error) {
	if err := actor.Require(models.PermTaskReceive); err != nil {
		return nil, err
	}

	release, err := utils.StockLock(ctx, s.locker, fmt.Sprintf("task:%d", taskId), moduleName, "ReceiveTask")
	if err != nil {
		return nil, err
	}
	defer release()

	var result *TaskReceiveResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := utils.FetchModel[models.ProductionTask](lockForUpdate(tx), taskId)
		if err != nil {
			return err
		}
		if !task.Status.Receivable() {
			return &models.IllegalTransitionError{
				Entity: "production task", From: string(task.Status), Event: "receive",
			}
		}

		boms, err := models.GetBOMItems(tx, task.ProductId)
		if err != nil {
			return err
		}

		sufficient := true
		var shortages []MaterialRequirement
		for _, bom := range boms {
			required := bom.Quantity.Mul(task.RequiredQuantity)
			available, err := models.AvailableQuantity(tx, models.InventoryTypeMaterial, bom.MaterialId)
			if err != nil {
				return err
			}
			if available.LessThan(required) {
				sufficient = false
				name := ""
				if bom.Material != nil {
					name = bom.Material.Name
				}
				shortages = append(shortages, MaterialRequirement{
					MaterialId:   bom.MaterialId,
					MaterialName: name,
					Required:     required,
					Available:    available,
					Shortage:     required.Sub(available),
				})
			}
		}

		if !sufficient {
			if err := tx.Model(&models.ProductionTask{}).Where("id = ?", task.ID).
				Update("status", models.ProductionTaskStatusMaterialInsufficient).Error; err != nil {
				return err
			}
			task.Status = models.ProductionTaskStatusMaterialInsufficient
			result = &TaskReceiveResult{Task: task, Sufficient: false, Shortages: shortages}
			return nil
		}

		// materials are on hand: issue an auto-approved requisition and
		// debit them in the same transaction
		requisition := &models.MaterialRequisition{
			RequisitionNo:   utils.DocumentNumber("MR"),
			TaskId:          task.ID,
			Status:          models.RequisitionStatusApproved,
			RequestedById:   actor.UserId,
			RequestedByName: actor.UserName,
		}
		if err := tx.Create(requisition).Error; err != nil {
			return err
		}

		for _, bom := range boms {
			required := bom.Quantity.Mul(task.RequiredQuantity)
			name := ""
			unit := ""
			if bom.Material != nil {
				name = bom.Material.Name
				unit = bom.Material.Unit
			}
			if err := tx.Create(&models.MaterialRequisitionItem{
				RequisitionId: requisition.ID,
				MaterialId:    bom.MaterialId,
				Quantity:      required,
			}).Error; err != nil {
				return err
			}
			if _, _, err := models.DebitInventory(tx, &models.StockEntry{
				InventoryType:   models.InventoryTypeMaterial,
				ItemId:          bom.MaterialId,
				ItemName:        name,
				Unit:            unit,
				Quantity:        required,
				TransactionType: models.StockTransactionTypeProductionOut,
				ReferenceType:   "material_requisition",
				ReferenceId:     requisition.ID,
				ReferenceNo:     requisition.RequisitionNo,
				OperatorId:      actor.UserId,
				OperatorName:    actor.UserName,
			}); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.MaterialRequisition{}).Where("id = ?", requisition.ID).
			Updates(map[string]interface{}{
				"status":    models.RequisitionStatusIssued,
				"issued_at": nowPtr(),
			}).Error; err != nil {
			return err
		}
		requisition.Status = models.RequisitionStatusIssued

		if err := tx.Model(&models.ProductionTask{}).Where("id = ?", task.ID).
			Updates(map[string]interface{}{
				"status":           models.ProductionTaskStatusInProduction,
				"received_by_id":   actor.UserId,
				"received_by_name": actor.UserName,
				"received_at":      nowPtr(),
			}).Error; err != nil {
			return err
		}
		task.Status = models.ProductionTaskStatusInProduction

		result = &TaskReceiveResult{Task: task, Requisition: requisition, Sufficient: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":    taskId,
		"sufficient": result.Sufficient,
	}).Info("production task received")
	return result, nil
}

// RecordQC records a quality check against a task in production. A
// qualified result moves the task to qc_checking; rework and unqualified
// results keep it in production.
func (s *FulfillmentService) RecordQC(ctx context.Context, actor models.Actor, taskId int, qcResult models.QCResult, checkedQty decimal.Decimal, remark string) (*models.QCRecord, error) {
	if err := actor.Require(models.PermQCRecord); err != nil {
		return nil, err
	}
	switch qcResult {
	case models.QCResultQualified, models.QCResultUnqualified, models.QCResultRework:
	default:
		return nil, errors.New("invalid qc result")
	}

	var record *models.QCRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := utils.FetchModel[models.ProductionTask](lockForUpdate(tx), taskId)
		if err != nil {
			return err
		}
		if task.Status != models.ProductionTaskStatusInProduction {
			return &models.IllegalTransitionError{
				Entity: "production task", From: string(task.Status), Event: "qc",
			}
		}

		record = &models.QCRecord{
			TaskId:        task.ID,
			Result:        qcResult,
			CheckedQty:    checkedQty,
			InspectorId:   actor.UserId,
			InspectorName: actor.UserName,
			Remark:        remark,
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		if qcResult == models.QCResultQualified {
			if err := tx.Model(&models.ProductionTask{}).Where("id = ?", task.ID).
				Update("status", models.ProductionTaskStatusQCChecking).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RecordInbound books finished goods from a task into the warehouse: it
// credits product stock, advances the task's completed quantity and, when
// the order now has everything on hand, flips it to ready_to_ship.
func (s *FulfillmentService) RecordInbound(ctx context.Context, actor models.Actor, taskId int, quantity decimal.Decimal, batchNumber string) (*models.FinishedProductInbound, error) {
	if err := actor.Require(models.PermInboundRecord); err != nil {
		return nil, err
	}
	if err := utils.ValidatePositiveQuantity("inbound quantity", quantity); err != nil {
		return nil, err
	}

	release, err := utils.StockLock(ctx, s.locker, fmt.Sprintf("task:%d", taskId), moduleName, "RecordInbound")
	if err != nil {
		return nil, err
	}
	defer release()

	var inbound *models.FinishedProductInbound
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := utils.FetchModel[models.ProductionTask](lockForUpdate(tx), taskId)
		if err != nil {
			return err
		}
		if task.Status != models.ProductionTaskStatusInProduction &&
			task.Status != models.ProductionTaskStatusQCChecking {
			return &models.IllegalTransitionError{
				Entity: "production task", From: string(task.Status), Event: "inbound",
			}
		}

		product, err := utils.FetchModel[models.Product](tx, task.ProductId)
		if err != nil {
			return err
		}

		inbound = &models.FinishedProductInbound{
			InboundNo:      utils.DocumentNumber("IN"),
			TaskId:         task.ID,
			Quantity:       quantity,
			BatchNumber:    batchNumber,
			ReceivedById:   actor.UserId,
			ReceivedByName: actor.UserName,
		}
		if err := tx.Create(inbound).Error; err != nil {
			return err
		}

		if _, err := models.CreditInventory(tx, &models.StockEntry{
			InventoryType:   models.InventoryTypeProduct,
			ItemId:          task.ProductId,
			ItemName:        product.Name,
			Unit:            product.Unit,
			Quantity:        quantity,
			TransactionType: models.StockTransactionTypeProductionIn,
			BatchNumber:     batchNumber,
			ReferenceType:   "finished_product_inbound",
			ReferenceId:     inbound.ID,
			ReferenceNo:     inbound.InboundNo,
			OperatorId:      actor.UserId,
			OperatorName:    actor.UserName,
		}); err != nil {
			return err
		}

		completed := task.CompletedQuantity.Add(quantity)
		updates := map[string]interface{}{"completed_quantity": completed}
		if completed.GreaterThanOrEqual(task.RequiredQuantity) {
			updates["status"] = models.ProductionTaskStatusCompleted
		}
		if err := tx.Model(&models.ProductionTask{}).Where("id = ?", task.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		return s.checkOrderReadyToShip(tx, task.OrderId)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":  taskId,
		"quantity": quantity.String(),
	}).Info("finished product inbound recorded")
	return inbound, nil
}

// checkOrderReadyToShip flips an in-production order to ready_to_ship once
// every line's outstanding quantity (ordered minus already reserved) is
// covered by finished goods stock, and raises the shipping notice.
func (s *FulfillmentService) checkOrderReadyToShip(tx *gorm.DB, orderId int) error {
	order, err := fetchOrderForUpdate(tx, orderId)
	if err != nil {
		return err
	}
	if order.Status != models.SalesOrderStatusInProduction {
		return nil
	}

	for i := range order.Items {
		item := &order.Items[i]
		outstanding := item.Quantity.Sub(item.ReservedQty)
		if outstanding.LessThanOrEqual(decimal.Zero) {
			continue
		}
		available, err := models.AvailableQuantity(tx, models.InventoryTypeProduct, item.ProductId)
		if err != nil {
			return err
		}
		if available.LessThan(outstanding) {
			return nil
		}
	}

	next, err := models.NextOrderStatus(order.Status, models.OrderEventRouteShipping)
	if err != nil {
		return err
	}
	notice := &models.ShippingNotice{
		NoticeNo: utils.DocumentNumber("SN"),
		OrderId:  order.ID,
		Status:   models.ShippingNoticeStatusPending,
	}
	if err := tx.Create(notice).Error; err != nil {
		return err
	}
	return tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
		Update("status", next).Error
}
