package main

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var (
	serviceOnce sync.Once
	service     *workflow.FulfillmentService
)

// getService builds the fulfillment service on first use, after the
// readiness gate has guaranteed the database connection exists.
func getService() *workflow.FulfillmentService {
	serviceOnce.Do(func() {
		service = workflow.NewFulfillmentService(config.GetDB(), config.GetLogger(), config.GetRedisLock())
	})
	return service
}

// respondError maps domain errors onto HTTP statuses: illegal transitions
// conflict, stock insufficiency is unprocessable, permission problems are
// forbidden and unknown ids are not found.
func respondError(c *gin.Context, err error) {
	var illegal *models.IllegalTransitionError
	var insufficient *models.InsufficientStockError
	var denied *models.PermissionDeniedError
	switch {
	case errors.As(err, &illegal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     err.Error(),
			"item":      insufficient.ItemName,
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	// master data
	api.POST("/customers", func(c *gin.Context) {
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, customer)
	})
	api.GET("/customers", func(c *gin.Context) {
		customers, err := models.GetCustomers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, customers)
	})
	api.POST("/products", func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	})
	api.POST("/materials", func(c *gin.Context) {
		var input models.NewMaterial
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		material, err := models.CreateMaterial(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, material)
	})
	api.PUT("/products/:id/bom", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var items []*models.NewBOMItem
		if err := c.ShouldBindJSON(&items); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		boms, err := models.SetBOM(c.Request.Context(), id, items)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, boms)
	})
	api.POST("/drivers", func(c *gin.Context) {
		var input models.NewDriver
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		driver, err := models.CreateDriver(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, driver)
	})
	api.POST("/vehicles", func(c *gin.Context) {
		var input models.NewVehicle
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		vehicle, err := models.CreateVehicle(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, vehicle)
	})

	// sales orders
	api.POST("/orders", func(c *gin.Context) {
		actor := models.ActorFromContext(c.Request.Context())
		if err := actor.Require(models.PermOrderCreate); err != nil {
			respondError(c, err)
			return
		}
		var input models.NewSalesOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := models.CreateSalesOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	})
	api.PUT("/orders/:id", func(c *gin.Context) {
		actor := models.ActorFromContext(c.Request.Context())
		if err := actor.Require(models.PermOrderEdit); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewSalesOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := models.UpdateSalesOrder(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})
	api.GET("/orders/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		order, err := models.GetSalesOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})
	api.GET("/orders", func(c *gin.Context) {
		orders, err := models.GetSalesOrders(c.Request.Context(), models.SalesOrderStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	})

	api.POST("/orders/:id/approve", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().ApproveOrder(c.Request.Context(), actor, id)
	}))
	api.POST("/orders/:id/ceo-approve", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().CEOApproveOrder(c.Request.Context(), actor, id)
	}))
	api.POST("/orders/:id/reject", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		var body struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		return getService().RejectOrder(c.Request.Context(), actor, id, body.Reason)
	}))
	api.POST("/orders/:id/resubmit", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().ResubmitOrder(c.Request.Context(), actor, id)
	}))
	api.POST("/orders/:id/cancel", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().CancelOrder(c.Request.Context(), actor, id)
	}))
	api.POST("/orders/:id/terminate", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		var body struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		return getService().TerminateOrder(c.Request.Context(), actor, id, body.Reason)
	}))

	// production
	api.GET("/production-tasks", func(c *gin.Context) {
		tasks, err := models.GetProductionTasks(c.Request.Context(), models.ProductionTaskStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	})
	api.POST("/production-tasks/:id/receive", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().ReceiveTask(c.Request.Context(), actor, id)
	}))
	api.POST("/production-tasks/:id/qc", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		var body struct {
			Result     models.QCResult `json:"result" binding:"required"`
			CheckedQty decimal.Decimal `json:"checked_qty"`
			Remark     string          `json:"remark"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		return getService().RecordQC(c.Request.Context(), actor, id, body.Result, body.CheckedQty, body.Remark)
	}))
	api.POST("/production-tasks/:id/inbound", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		var body struct {
			Quantity    decimal.Decimal `json:"quantity" binding:"required"`
			BatchNumber string          `json:"batch_number"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		return getService().RecordInbound(c.Request.Context(), actor, id, body.Quantity, body.BatchNumber)
	}))

	// shipping
	api.GET("/shipping-notices", func(c *gin.Context) {
		notices, err := models.GetShippingNotices(c.Request.Context(), models.ShippingNoticeStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, notices)
	})
	api.POST("/shipments", func(c *gin.Context) {
		actor := models.ActorFromContext(c.Request.Context())
		var input workflow.NewShipment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		shipment, err := getService().CreateShipment(c.Request.Context(), actor, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, shipment)
	})
	api.POST("/shipments/:id/ship", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().ConfirmShipment(c.Request.Context(), actor, id)
	}))
	api.POST("/shipments/:id/deliver", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().ConfirmDelivery(c.Request.Context(), actor, id)
	}))

	// purchasing
	api.POST("/purchase-tasks", func(c *gin.Context) {
		actor := models.ActorFromContext(c.Request.Context())
		if err := actor.Require(models.PermPurchaseCreate); err != nil {
			respondError(c, err)
			return
		}
		var input models.NewPurchaseTask
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		task, err := models.CreatePurchaseTask(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	})
	api.POST("/purchase-tasks/:id/approve", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().ApprovePurchaseTask(c.Request.Context(), actor, id)
	}))
	api.POST("/purchase-tasks/:id/receive", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		return getService().ReceivePurchaseTask(c.Request.Context(), actor, id)
	}))

	// stock corrections
	api.POST("/inventory-adjustments", func(c *gin.Context) {
		actor := models.ActorFromContext(c.Request.Context())
		if err := actor.Require(models.PermAdjustmentCreate); err != nil {
			respondError(c, err)
			return
		}
		var input models.NewInventoryAdjustmentRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		request, err := models.CreateInventoryAdjustmentRequest(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, request)
	})
	api.POST("/inventory-adjustments/:id/review", orderTransition(func(c *gin.Context, actor models.Actor, id int) (interface{}, error) {
		var body struct {
			Approve *bool `json:"approve" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		return getService().ReviewAdjustment(c.Request.Context(), actor, id, *body.Approve)
	}))
}

// orderTransition wraps the common shape of a transition endpoint: parse
// the id, rebuild the actor, run the operation, map the error.
func orderTransition(run func(c *gin.Context, actor models.Actor, id int) (interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		actor := models.ActorFromContext(c.Request.Context())
		result, err := run(c, actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
