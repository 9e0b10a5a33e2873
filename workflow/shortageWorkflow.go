package workflow

import (
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemRouting is the per-line outcome of CEO approval: how much could be
// reserved from stock and how much production has to cover.
type ItemRouting struct {
	OrderItemId int                         `json:"order_item_id"`
	ProductId   int                         `json:"product_id"`
	ProductName string                      `json:"product_name"`
	Quantity    decimal.Decimal             `json:"quantity"`
	Reserved    decimal.Decimal             `json:"reserved"`
	Shortage    decimal.Decimal             `json:"shortage"`
	TaskNo      string                      `json:"task_no,omitempty"`
	TaskStatus  models.ProductionTaskStatus `json:"task_status,omitempty"`
}

// MaterialRequirement aggregates the raw material demand of all production
// tasks an approval spawned, against on-hand material stock.
type MaterialRequirement struct {
	MaterialId   int             `json:"material_id"`
	MaterialName string          `json:"material_name"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Shortage     decimal.Decimal `json:"shortage"`
}

type OrderRoutingResult struct {
	OrderId   int                      `json:"order_id"`
	OrderNo   string                   `json:"order_no"`
	Status    models.SalesOrderStatus  `json:"status"`
	Items     []ItemRouting            `json:"items"`
	Materials []MaterialRequirement    `json:"materials"`
	Tasks     []*models.ProductionTask `json:"tasks"`
	NoticeNo  string                   `json:"notice_no,omitempty"`
}

// reserveAndRoute runs inside the CEO approval transaction. Per order line
// it reserves what finished goods stock covers (a real ledger debit, FIFO
// over batches) and opens a production task for the rest. Material
// sufficiency for the tasks is judged against a running availability that
// earlier tasks in the same order already claimed from. When nothing is
// short the order goes straight to shipping.
func (s *FulfillmentService) reserveAndRoute(tx *gorm.DB, actor models.Actor, order *models.SalesOrder) (*OrderRoutingResult, error) {
	result := &OrderRoutingResult{
		OrderId: order.ID,
		OrderNo: order.OrderNo,
	}

	materialAvail := make(map[int]decimal.Decimal)
	materialName := make(map[int]string)
	materialRequired := make(map[int]decimal.Decimal)
	var materialOrder []int

	for i := range order.Items {
		item := &order.Items[i]
		productName := ""
		unit := ""
		if item.Product != nil {
			productName = item.Product.Name
			unit = item.Product.Unit
		}

		available, err := models.AvailableQuantity(tx, models.InventoryTypeProduct, item.ProductId)
		if err != nil {
			return nil, err
		}
		reserve := decimal.Min(available, item.Quantity)
		shortage := item.Quantity.Sub(reserve)

		routing := ItemRouting{
			OrderItemId: item.ID,
			ProductId:   item.ProductId,
			ProductName: productName,
			Quantity:    item.Quantity,
			Reserved:    reserve,
			Shortage:    shortage,
		}

		if reserve.GreaterThan(decimal.Zero) {
			_, allocations, err := models.DebitInventory(tx, &models.StockEntry{
				InventoryType:   models.InventoryTypeProduct,
				ItemId:          item.ProductId,
				ItemName:        productName,
				Unit:            unit,
				Quantity:        reserve,
				TransactionType: models.StockTransactionTypeAdjustment,
				ReferenceType:   "sales_order",
				ReferenceId:     order.ID,
				ReferenceNo:     order.OrderNo,
				OperatorId:      actor.UserId,
				OperatorName:    actor.UserName,
				Remark:          "reserved for order " + order.OrderNo,
			})
			if err != nil {
				return nil, err
			}
			for _, alloc := range allocations {
				if err := tx.Create(&models.SalesOrderItemBatch{
					OrderItemId: item.ID,
					BatchNumber: alloc.BatchNumber,
					Quantity:    alloc.Quantity,
				}).Error; err != nil {
					return nil, err
				}
			}
			if err := tx.Model(&models.SalesOrderItem{}).Where("id = ?", item.ID).
				Update("reserved_qty", reserve).Error; err != nil {
				return nil, err
			}
			item.ReservedQty = reserve
		}

		if shortage.GreaterThan(decimal.Zero) {
			boms, err := models.GetBOMItems(tx, item.ProductId)
			if err != nil {
				return nil, err
			}

			sufficient := true
			requirements := make(map[int]decimal.Decimal, len(boms))
			for _, bom := range boms {
				required := bom.Quantity.Mul(shortage)
				requirements[bom.MaterialId] = required

				if _, seen := materialAvail[bom.MaterialId]; !seen {
					avail, err := models.AvailableQuantity(tx, models.InventoryTypeMaterial, bom.MaterialId)
					if err != nil {
						return nil, err
					}
					materialAvail[bom.MaterialId] = avail
					if bom.Material != nil {
						materialName[bom.MaterialId] = bom.Material.Name
					}
					materialOrder = append(materialOrder, bom.MaterialId)
				}
				materialRequired[bom.MaterialId] = materialRequired[bom.MaterialId].Add(required)
				if materialAvail[bom.MaterialId].LessThan(required) {
					sufficient = false
				}
			}

			status := models.ProductionTaskStatusPending
			if !sufficient {
				status = models.ProductionTaskStatusMaterialInsufficient
			} else {
				// earmark the materials so later lines see what is left
				for materialId, required := range requirements {
					materialAvail[materialId] = materialAvail[materialId].Sub(required)
				}
			}

			task := &models.ProductionTask{
				TaskNo:           utils.DocumentNumber("MO"),
				OrderId:          order.ID,
				OrderItemId:      item.ID,
				ProductId:        item.ProductId,
				RequiredQuantity: shortage,
				Status:           status,
			}
			if err := tx.Create(task).Error; err != nil {
				return nil, err
			}
			result.Tasks = append(result.Tasks, task)
			routing.TaskNo = task.TaskNo
			routing.TaskStatus = task.Status
		}

		result.Items = append(result.Items, routing)
	}

	for _, materialId := range materialOrder {
		available, err := models.AvailableQuantity(tx, models.InventoryTypeMaterial, materialId)
		if err != nil {
			return nil, err
		}
		required := materialRequired[materialId]
		shortage := decimal.Max(decimal.Zero, required.Sub(available))
		result.Materials = append(result.Materials, MaterialRequirement{
			MaterialId:   materialId,
			MaterialName: materialName[materialId],
			Required:     required,
			Available:    available,
			Shortage:     shortage,
		})
	}

	event := models.OrderEventRouteProduction
	if len(result.Tasks) == 0 {
		event = models.OrderEventRouteShipping
		notice := &models.ShippingNotice{
			NoticeNo: utils.DocumentNumber("SN"),
			OrderId:  order.ID,
			Status:   models.ShippingNoticeStatusPending,
		}
		if err := tx.Create(notice).Error; err != nil {
			return nil, err
		}
		result.NoticeNo = notice.NoticeNo
	}

	next, err := models.NextOrderStatus(order.Status, event)
	if err != nil {
		return nil, err
	}
	order.Status = next
	result.Status = next
	return result, nil
}
