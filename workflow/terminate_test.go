package workflow

import (
	"errors"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/models"
)

func TestTerminateInProductionCascades(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
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

	terminated, err := s.TerminateOrder(testCtx(), actorFor(models.RoleCEO), order.ID, "customer walked away")
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if terminated.Status != models.SalesOrderStatusTerminated {
		t.Fatalf("order status %s, want terminated", terminated.Status)
	}
	if !strings.Contains(terminated.TerminateReason, terminated.OrderNo) ||
		!strings.Contains(terminated.TerminateReason, "customer walked away") {
		t.Fatalf("reason should carry order number and cause: %q", terminated.TerminateReason)
	}

	// the open task and its issued requisition were terminated with it
	task, _ := models.GetProductionTask(testCtx(), taskId)
	if task.Status != models.ProductionTaskStatusTerminated {
		t.Fatalf("task status %s, want terminated", task.Status)
	}
	var requisition models.MaterialRequisition
	if err := db.Where("task_id = ?", taskId).First(&requisition).Error; err != nil {
		t.Fatal(err)
	}
	if requisition.Status != models.RequisitionStatusTerminated {
		t.Fatalf("requisition status %s, want terminated", requisition.Status)
	}

	// the 60 reserved came back; issued materials are consumed WIP and stay out
	if !productOnHand(t, db, f).Equal(dec("60")) {
		t.Fatalf("product on hand %s, want 60", productOnHand(t, db, f))
	}
	if !materialOnHand(t, db, f).Equal(dec("20")) {
		t.Fatalf("material on hand %s, want 20", materialOnHand(t, db, f))
	}

	// terminate is not repeatable
	_, err = s.TerminateOrder(testCtx(), actorFor(models.RoleCEO), order.ID, "again")
	var illegal *models.IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("second terminate should be illegal, got %v", err)
	}
}

func TestTerminateShippedCreditsFullQuantity(t *testing.T) {
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
	if _, err := s.ConfirmShipment(testCtx(), actorFor(models.RoleLogistics), shipment.ID); err != nil {
		t.Fatal(err)
	}
	if !productOnHand(t, db, f).IsZero() {
		t.Fatal("everything should be on the truck")
	}

	if _, err := s.TerminateOrder(testCtx(), actorFor(models.RoleCEO), orderId, "goods refused at the gate"); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	// the whole ordered quantity comes back to stock
	if !productOnHand(t, db, f).Equal(dec("100")) {
		t.Fatalf("product on hand %s, want 100", productOnHand(t, db, f))
	}
	order, _ := models.GetSalesOrder(testCtx(), orderId)
	if order.Status != models.SalesOrderStatusTerminated {
		t.Fatalf("order status %s, want terminated", order.Status)
	}
}

func TestTerminateDoesNotTouchOtherOrders(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	f.creditProduct(t, db, "50", "B1")
	f.creditMaterial(t, db, "400")

	first := f.newOrder(t, "30")
	second := f.newOrder(t, "30")
	for _, order := range []*models.SalesOrder{first, second} {
		approveToCEO(t, s, order.ID)
	}

	// first order reserves 30 of the 50, second reserves the remaining 20
	if _, err := s.CEOApproveOrder(testCtx(), actorFor(models.RoleCEO), first.ID); err != nil {
		t.Fatal(err)
	}
	secondResult, err := s.CEOApproveOrder(testCtx(), actorFor(models.RoleCEO), second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !secondResult.Items[0].Reserved.Equal(dec("20")) ||
		!secondResult.Items[0].Shortage.Equal(dec("10")) {
		t.Fatalf("second order routing wrong: %+v", secondResult.Items[0])
	}

	if _, err := s.TerminateOrder(testCtx(), actorFor(models.RoleCEO), first.ID, "cancelled upstream"); err != nil {
		t.Fatal(err)
	}

	// first order's 30 are back; the second order is untouched
	if !productOnHand(t, db, f).Equal(dec("30")) {
		t.Fatalf("product on hand %s, want 30", productOnHand(t, db, f))
	}
	reloaded, _ := models.GetSalesOrder(testCtx(), second.ID)
	if reloaded.Status != models.SalesOrderStatusInProduction {
		t.Fatalf("second order status %s, want in_production", reloaded.Status)
	}
	if !reloaded.Items[0].ReservedQty.Equal(dec("20")) {
		t.Fatalf("second order reservation changed: %s", reloaded.Items[0].ReservedQty)
	}
	task, _ := models.GetProductionTasks(testCtx(), "")
	for _, tk := range task {
		if tk.OrderId == second.ID && tk.Status.IsTerminal() {
			t.Fatal("second order's task must stay open")
		}
	}
}

func TestCancelPendingOrder(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	order := f.newOrder(t, "10")

	cancelled, err := s.CancelOrder(testCtx(), actorFor(models.RoleSalesperson), order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.SalesOrderStatusCancelled {
		t.Fatalf("status %s, want cancelled", cancelled.Status)
	}

	// a cancelled order never entered stock
	var count int64
	if err := db.Model(&models.StockTransaction{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatal("cancel must not touch the ledger")
	}
}

func TestRejectAndResubmit(t *testing.T) {
	s, _ := newTestService(t)
	f := newFixture(t, s.db)
	order := f.newOrder(t, "10")

	rejected, err := s.RejectOrder(testCtx(), actorFor(models.RoleSalesManager), order.ID, "price too low")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.SalesOrderStatusRejected || rejected.RejectReason != "price too low" {
		t.Fatalf("rejection wrong: %s %q", rejected.Status, rejected.RejectReason)
	}

	resubmitted, err := s.ResubmitOrder(testCtx(), actorFor(models.RoleSalesperson), order.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.Status != models.SalesOrderStatusPending || resubmitted.RejectReason != "" {
		t.Fatalf("resubmit wrong: %s %q", resubmitted.Status, resubmitted.RejectReason)
	}
}

func TestTransitionsRecordActorAndTimestamp(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	f.creditProduct(t, db, "10", "B1")

	order := f.newOrder(t, "10")

	manager := models.Actor{UserId: 5, UserName: "daw hla", Role: models.RoleSalesManager}
	if _, err := s.ApproveOrder(testCtx(), manager, order.ID); err != nil {
		t.Fatal(err)
	}
	got, err := models.GetSalesOrder(testCtx(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ApprovedById != 5 || got.ApprovedByName != "daw hla" || got.ApprovedAt == nil {
		t.Fatalf("approve should record actor and time, got id=%d name=%q at=%v",
			got.ApprovedById, got.ApprovedByName, got.ApprovedAt)
	}

	ceo := models.Actor{UserId: 9, UserName: "u ba", Role: models.RoleCEO}
	if _, err := s.CEOApproveOrder(testCtx(), ceo, order.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = models.GetSalesOrder(testCtx(), order.ID)
	if got.CEOApprovedById != 9 || got.CEOApprovedByName != "u ba" || got.CEOApprovedAt == nil {
		t.Fatalf("ceo approve should record actor and time, got id=%d name=%q at=%v",
			got.CEOApprovedById, got.CEOApprovedByName, got.CEOApprovedAt)
	}

	terminated, err := s.TerminateOrder(testCtx(), ceo, order.ID, "line stopped")
	if err != nil {
		t.Fatal(err)
	}
	if terminated.TerminatedById != 9 || terminated.TerminatedByName != "u ba" || terminated.TerminatedAt == nil {
		t.Fatalf("terminate should record actor and time, got id=%d name=%q at=%v",
			terminated.TerminatedById, terminated.TerminatedByName, terminated.TerminatedAt)
	}
	got, _ = models.GetSalesOrder(testCtx(), order.ID)
	if got.TerminatedById != 9 || got.TerminatedAt == nil {
		t.Fatalf("terminate audit fields not persisted, got id=%d at=%v",
			got.TerminatedById, got.TerminatedAt)
	}
}

func TestRejectRecordsAndResubmitClearsActor(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	order := f.newOrder(t, "10")

	manager := models.Actor{UserId: 5, UserName: "daw hla", Role: models.RoleSalesManager}
	if _, err := s.RejectOrder(testCtx(), manager, order.ID, "price too low"); err != nil {
		t.Fatal(err)
	}
	got, _ := models.GetSalesOrder(testCtx(), order.ID)
	if got.RejectedById != 5 || got.RejectedAt == nil || got.RejectReason != "price too low" {
		t.Fatalf("reject should record actor, time and reason, got id=%d at=%v reason=%q",
			got.RejectedById, got.RejectedAt, got.RejectReason)
	}

	if _, err := s.ResubmitOrder(testCtx(), actorFor(models.RoleSalesperson), order.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = models.GetSalesOrder(testCtx(), order.ID)
	if got.RejectedById != 0 || got.RejectedAt != nil || got.RejectReason != "" {
		t.Fatalf("resubmit should clear rejection audit, got id=%d at=%v reason=%q",
			got.RejectedById, got.RejectedAt, got.RejectReason)
	}
}
