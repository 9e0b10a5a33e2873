package models

type InventoryType string

const (
	InventoryTypeProduct  InventoryType = "product"
	InventoryTypeMaterial InventoryType = "material"
	InventoryTypeOther    InventoryType = "other"
)

type StockTransactionType string

const (
	StockTransactionTypeSaleOut       StockTransactionType = "sale_out"
	StockTransactionTypeProductionOut StockTransactionType = "production_out"
	StockTransactionTypeProductionIn  StockTransactionType = "production_in"
	StockTransactionTypePurchaseIn    StockTransactionType = "purchase_in"
	StockTransactionTypeAdjustment    StockTransactionType = "adjustment"
)

type SalesOrderStatus string

const (
	SalesOrderStatusPending      SalesOrderStatus = "pending"
	SalesOrderStatusCEOPending   SalesOrderStatus = "ceo_pending"
	SalesOrderStatusCEOApproved  SalesOrderStatus = "ceo_approved"
	SalesOrderStatusRejected     SalesOrderStatus = "rejected"
	SalesOrderStatusInProduction SalesOrderStatus = "in_production"
	SalesOrderStatusReadyToShip  SalesOrderStatus = "ready_to_ship"
	SalesOrderStatusShipped      SalesOrderStatus = "shipped"
	SalesOrderStatusCompleted    SalesOrderStatus = "completed"
	SalesOrderStatusCancelled    SalesOrderStatus = "cancelled"
	SalesOrderStatusTerminated   SalesOrderStatus = "terminated"
)

// IsTerminal reports whether the status is final. Terminal orders accept no
// further transitions.
func (s SalesOrderStatus) IsTerminal() bool {
	switch s {
	case SalesOrderStatusCompleted, SalesOrderStatusCancelled, SalesOrderStatusTerminated:
		return true
	}
	return false
}

type OrderEvent string

const (
	OrderEventApprove         OrderEvent = "approve"
	OrderEventCEOApprove      OrderEvent = "ceo_approve"
	OrderEventReject          OrderEvent = "reject"
	OrderEventResubmit        OrderEvent = "resubmit"
	OrderEventCancel          OrderEvent = "cancel"
	OrderEventRouteProduction OrderEvent = "route_production"
	OrderEventRouteShipping   OrderEvent = "route_shipping"
	OrderEventShip            OrderEvent = "ship"
	OrderEventDeliver         OrderEvent = "deliver"
	OrderEventTerminate       OrderEvent = "terminate"
)

// orderTransitions is the closed transition graph for sales orders.
// Every transition function resolves (current, event) here; anything not in
// the table is an illegal transition.
var orderTransitions = map[SalesOrderStatus]map[OrderEvent]SalesOrderStatus{
	SalesOrderStatusPending: {
		OrderEventApprove: SalesOrderStatusCEOPending,
		OrderEventReject:  SalesOrderStatusRejected,
		OrderEventCancel:  SalesOrderStatusCancelled,
	},
	SalesOrderStatusCEOPending: {
		OrderEventCEOApprove: SalesOrderStatusCEOApproved,
		OrderEventReject:     SalesOrderStatusRejected,
	},
	SalesOrderStatusCEOApproved: {
		OrderEventRouteProduction: SalesOrderStatusInProduction,
		OrderEventRouteShipping:   SalesOrderStatusReadyToShip,
	},
	SalesOrderStatusRejected: {
		OrderEventResubmit: SalesOrderStatusPending,
	},
	SalesOrderStatusInProduction: {
		OrderEventRouteShipping: SalesOrderStatusReadyToShip,
		OrderEventTerminate:     SalesOrderStatusTerminated,
	},
	SalesOrderStatusReadyToShip: {
		OrderEventShip:      SalesOrderStatusShipped,
		OrderEventTerminate: SalesOrderStatusTerminated,
	},
	SalesOrderStatusShipped: {
		OrderEventDeliver:   SalesOrderStatusCompleted,
		OrderEventTerminate: SalesOrderStatusTerminated,
	},
}

// NextOrderStatus resolves a sales order transition against the graph.
func NextOrderStatus(current SalesOrderStatus, event OrderEvent) (SalesOrderStatus, error) {
	if events, ok := orderTransitions[current]; ok {
		if next, ok := events[event]; ok {
			return next, nil
		}
	}
	return "", &IllegalTransitionError{Entity: "sales order", From: string(current), Event: string(event)}
}

type ProductionTaskStatus string

const (
	ProductionTaskStatusPending              ProductionTaskStatus = "pending"
	ProductionTaskStatusMaterialInsufficient ProductionTaskStatus = "material_insufficient"
	ProductionTaskStatusReceived             ProductionTaskStatus = "received"
	ProductionTaskStatusMaterialPreparing    ProductionTaskStatus = "material_preparing"
	ProductionTaskStatusInProduction         ProductionTaskStatus = "in_production"
	ProductionTaskStatusQCChecking           ProductionTaskStatus = "qc_checking"
	ProductionTaskStatusCompleted            ProductionTaskStatus = "completed"
	ProductionTaskStatusCancelled            ProductionTaskStatus = "cancelled"
	ProductionTaskStatusTerminated           ProductionTaskStatus = "terminated"
)

func (s ProductionTaskStatus) IsTerminal() bool {
	switch s {
	case ProductionTaskStatusCompleted, ProductionTaskStatusCancelled, ProductionTaskStatusTerminated:
		return true
	}
	return false
}

// Receivable reports whether a task may be picked up by production.
func (s ProductionTaskStatus) Receivable() bool {
	return s == ProductionTaskStatusPending || s == ProductionTaskStatusMaterialInsufficient
}

type RequisitionStatus string

const (
	RequisitionStatusPending    RequisitionStatus = "pending"
	RequisitionStatusApproved   RequisitionStatus = "approved"
	RequisitionStatusIssued     RequisitionStatus = "issued"
	RequisitionStatusCancelled  RequisitionStatus = "cancelled"
	RequisitionStatusTerminated RequisitionStatus = "terminated"
)

func (s RequisitionStatus) IsTerminal() bool {
	return s == RequisitionStatusCancelled || s == RequisitionStatusTerminated
}

type QCResult string

const (
	QCResultQualified   QCResult = "qualified"
	QCResultUnqualified QCResult = "unqualified"
	QCResultRework      QCResult = "rework"
)

type ShippingNoticeStatus string

const (
	ShippingNoticeStatusPending ShippingNoticeStatus = "pending"
	ShippingNoticeStatusShipped ShippingNoticeStatus = "shipped"
)

type ShipmentStatus string

const (
	ShipmentStatusLoading   ShipmentStatus = "loading"
	ShipmentStatusShipped   ShipmentStatus = "shipped"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
)

type PurchaseTaskStatus string

const (
	PurchaseTaskStatusPending   PurchaseTaskStatus = "pending"
	PurchaseTaskStatusApproved  PurchaseTaskStatus = "approved"
	PurchaseTaskStatusReceived  PurchaseTaskStatus = "received"
	PurchaseTaskStatusCompleted PurchaseTaskStatus = "completed"
	PurchaseTaskStatusCancelled PurchaseTaskStatus = "cancelled"
)

type AdjustmentStatus string

const (
	AdjustmentStatusPending   AdjustmentStatus = "pending"
	AdjustmentStatusApproved  AdjustmentStatus = "approved"
	AdjustmentStatusRejected  AdjustmentStatus = "rejected"
	AdjustmentStatusCompleted AdjustmentStatus = "completed"
)

type MaterialType string

const (
	MaterialTypeRaw       MaterialType = "raw"
	MaterialTypeAuxiliary MaterialType = "auxiliary"
	MaterialTypeTool      MaterialType = "tool"
	MaterialTypeOffice    MaterialType = "office"
)

type CreditLevel string

const (
	CreditLevelA CreditLevel = "A"
	CreditLevelB CreditLevel = "B"
	CreditLevelC CreditLevel = "C"
	CreditLevelD CreditLevel = "D"
)
