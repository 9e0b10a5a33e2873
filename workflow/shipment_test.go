package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/models"
)

// setupReadyToShip builds an order that reserved 60 at approval, produced
// the remaining 40 through a task, and is now ready_to_ship with 40 pcs on
// hand for the truck.
func setupReadyToShip(t *testing.T, s *FulfillmentService, f *fixture) (orderId int, noticeId int) {
	t.Helper()
	db := s.db

	f.creditProduct(t, db, "60", "B1")
	f.creditMaterial(t, db, "100")

	order := f.newOrder(t, "100")
	approveToCEO(t, s, order.ID)
	result, err := s.CEOApproveOrder(testCtx(), actorFor(models.RoleCEO), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	taskId := result.Tasks[0].ID
	if _, err := s.ReceiveTask(testCtx(), actorFor(models.RoleProduction), taskId); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordQC(testCtx(), actorFor(models.RoleQC), taskId,
		models.QCResultQualified, dec("40"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordInbound(testCtx(), actorFor(models.RoleWarehouse), taskId, dec("40"), "FP1"); err != nil {
		t.Fatal(err)
	}

	var notice models.ShippingNotice
	if err := db.Where("order_id = ?", order.ID).First(&notice).Error; err != nil {
		t.Fatalf("notice: %v", err)
	}
	return order.ID, notice.ID
}

func newCrew(t *testing.T) (driverId, vehicleId int) {
	t.Helper()
	driver, err := models.CreateDriver(testCtx(), &models.NewDriver{Name: "U Kyaw", Phone: "0912"})
	if err != nil {
		t.Fatal(err)
	}
	vehicle, err := models.CreateVehicle(testCtx(), &models.NewVehicle{PlateNumber: "YGN-1234"})
	if err != nil {
		t.Fatal(err)
	}
	return driver.ID, vehicle.ID
}

func TestShipmentLifecycle(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	orderId, noticeId := setupReadyToShip(t, s, f)
	driverId, vehicleId := newCrew(t)

	shipment, err := s.CreateShipment(testCtx(), actorFor(models.RoleLogistics), &NewShipment{
		NoticeId: noticeId, DriverId: driverId, VehicleId: vehicleId,
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}
	if shipment.Status != models.ShipmentStatusLoading {
		t.Fatalf("shipment status %s, want loading", shipment.Status)
	}
	// loading alone moves no stock
	if !productOnHand(t, db, f).Equal(dec("40")) {
		t.Fatal("loading must not debit stock")
	}

	shipped, err := s.ConfirmShipment(testCtx(), actorFor(models.RoleLogistics), shipment.ID)
	if err != nil {
		t.Fatalf("confirm shipment: %v", err)
	}
	if shipped.Status != models.ShipmentStatusShipped {
		t.Fatalf("shipment status %s, want shipped", shipped.Status)
	}

	// 60 were already debited at approval; shipping debits the outstanding 40
	if !productOnHand(t, db, f).IsZero() {
		t.Fatalf("outstanding 40 should leave stock, got %s", productOnHand(t, db, f))
	}
	var saleOut models.StockTransaction
	if err := db.Where("transaction_type = ?", models.StockTransactionTypeSaleOut).
		First(&saleOut).Error; err != nil {
		t.Fatal(err)
	}
	if !saleOut.Quantity.Equal(dec("-40")) {
		t.Fatalf("sale_out %s, want -40", saleOut.Quantity)
	}

	order, _ := models.GetSalesOrder(testCtx(), orderId)
	if order.Status != models.SalesOrderStatusShipped {
		t.Fatalf("order status %s, want shipped", order.Status)
	}

	delivered, err := s.ConfirmDelivery(testCtx(), actorFor(models.RoleLogistics), shipment.ID)
	if err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	if delivered.Status != models.ShipmentStatusDelivered {
		t.Fatalf("shipment status %s, want delivered", delivered.Status)
	}
	order, _ = models.GetSalesOrder(testCtx(), orderId)
	if order.Status != models.SalesOrderStatusCompleted {
		t.Fatalf("order status %s, want completed", order.Status)
	}

	// delivering twice is illegal
	_, err = s.ConfirmDelivery(testCtx(), actorFor(models.RoleLogistics), shipment.ID)
	var illegal *models.IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
}

func TestConfirmShipmentInsufficientStockShipsNothing(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	orderId, noticeId := setupReadyToShip(t, s, f)
	driverId, vehicleId := newCrew(t)

	shipment, err := s.CreateShipment(testCtx(), actorFor(models.RoleLogistics), &NewShipment{
		NoticeId: noticeId, DriverId: driverId, VehicleId: vehicleId,
	})
	if err != nil {
		t.Fatal(err)
	}

	// someone else takes the produced goods before the truck leaves
	if _, _, err := models.DebitInventory(db, &models.StockEntry{
		InventoryType:   models.InventoryTypeProduct,
		ItemId:          f.product.ID,
		ItemName:        f.product.Name,
		Quantity:        dec("5"),
		TransactionType: models.StockTransactionTypeAdjustment,
	}); err != nil {
		t.Fatal(err)
	}

	_, err = s.ConfirmShipment(testCtx(), actorFor(models.RoleLogistics), shipment.ID)
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	// the whole transition rolled back
	order, _ := models.GetSalesOrder(testCtx(), orderId)
	if order.Status != models.SalesOrderStatusReadyToShip {
		t.Fatalf("order status %s, want ready_to_ship", order.Status)
	}
	reloaded, _ := models.GetShipment(testCtx(), shipment.ID)
	if reloaded.Status != models.ShipmentStatusLoading {
		t.Fatalf("shipment status %s, want loading", reloaded.Status)
	}
	if !productOnHand(t, db, f).Equal(dec("35")) {
		t.Fatalf("stock %s, want 35 untouched by the failed shipment", productOnHand(t, db, f))
	}
}
