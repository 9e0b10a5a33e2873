package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/models"
)

func TestPurchaseTaskLifecycle(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)

	task, err := models.CreatePurchaseTask(testCtx(), &models.NewPurchaseTask{
		Supplier: "Golden Steel Co",
		Items: []*models.NewPurchaseTaskItem{
			{MaterialId: f.material.ID, Quantity: dec("200"), UnitPrice: dec("3.5")},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// receive before approval is illegal
	_, err = s.ReceivePurchaseTask(testCtx(), actorFor(models.RoleWarehouse), task.ID)
	var illegal *models.IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}

	// only the CEO approves purchases
	var denied *models.PermissionDeniedError
	if _, err := s.ApprovePurchaseTask(testCtx(), actorFor(models.RolePurchaser), task.ID); !errors.As(err, &denied) {
		t.Fatalf("purchaser approve should be denied, got %v", err)
	}
	approved, err := s.ApprovePurchaseTask(testCtx(), actorFor(models.RoleCEO), task.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.PurchaseTaskStatusApproved {
		t.Fatalf("status %s, want approved", approved.Status)
	}

	// receipt credits material stock as purchase_in; the inventory row did
	// not exist and is created lazily
	received, err := s.ReceivePurchaseTask(testCtx(), actorFor(models.RoleWarehouse), task.ID)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if received.Status != models.PurchaseTaskStatusCompleted {
		t.Fatalf("status %s, want completed", received.Status)
	}
	if !materialOnHand(t, db, f).Equal(dec("200")) {
		t.Fatalf("material on hand %s, want 200", materialOnHand(t, db, f))
	}
	var txn models.StockTransaction
	if err := db.Where("transaction_type = ?", models.StockTransactionTypePurchaseIn).
		First(&txn).Error; err != nil {
		t.Fatal(err)
	}
	if !txn.Quantity.Equal(dec("200")) || txn.ReferenceNo != task.TaskNo {
		t.Fatalf("purchase_in row wrong: %+v", txn)
	}
}

func TestAdjustmentReview(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	f.creditMaterial(t, db, "50")

	inventory, err := models.FindInventory(db, models.InventoryTypeMaterial, f.material.ID)
	if err != nil {
		t.Fatal(err)
	}

	// stocktake found 8kg missing
	request, err := models.CreateInventoryAdjustmentRequest(testCtx(), &models.NewInventoryAdjustmentRequest{
		InventoryId: inventory.ID,
		Delta:       dec("-8"),
		Reason:      "stocktake variance",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	reviewed, err := s.ReviewAdjustment(testCtx(), actorFor(models.RoleCEO), request.ID, true)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != models.AdjustmentStatusCompleted {
		t.Fatalf("status %s, want completed", reviewed.Status)
	}
	if !materialOnHand(t, db, f).Equal(dec("42")) {
		t.Fatalf("material on hand %s, want 42", materialOnHand(t, db, f))
	}

	// reviewing twice is illegal
	_, err = s.ReviewAdjustment(testCtx(), actorFor(models.RoleCEO), request.ID, true)
	var illegal *models.IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
}

func TestAdjustmentRejectedLeavesStockAlone(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	f.creditMaterial(t, db, "50")
	inventory, _ := models.FindInventory(db, models.InventoryTypeMaterial, f.material.ID)

	request, err := models.CreateInventoryAdjustmentRequest(testCtx(), &models.NewInventoryAdjustmentRequest{
		InventoryId: inventory.ID,
		Delta:       dec("30"),
		Reason:      "found pallet",
	})
	if err != nil {
		t.Fatal(err)
	}

	reviewed, err := s.ReviewAdjustment(testCtx(), actorFor(models.RoleCEO), request.ID, false)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != models.AdjustmentStatusRejected {
		t.Fatalf("status %s, want rejected", reviewed.Status)
	}
	if !materialOnHand(t, db, f).Equal(dec("50")) {
		t.Fatal("rejected adjustment must not move stock")
	}
}

func TestAdjustmentOverdrawStaysPending(t *testing.T) {
	s, db := newTestService(t)
	f := newFixture(t, db)
	f.creditMaterial(t, db, "5")
	inventory, _ := models.FindInventory(db, models.InventoryTypeMaterial, f.material.ID)

	request, err := models.CreateInventoryAdjustmentRequest(testCtx(), &models.NewInventoryAdjustmentRequest{
		InventoryId: inventory.ID,
		Delta:       dec("-10"),
		Reason:      "typo",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.ReviewAdjustment(testCtx(), actorFor(models.RoleCEO), request.ID, true)
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	reloaded, _ := models.GetInventoryAdjustmentRequest(testCtx(), request.ID)
	if reloaded.Status != models.AdjustmentStatusPending {
		t.Fatalf("failed review should leave the request pending, got %s", reloaded.Status)
	}
	if !materialOnHand(t, db, f).Equal(dec("5")) {
		t.Fatal("failed review must not move stock")
	}
}
