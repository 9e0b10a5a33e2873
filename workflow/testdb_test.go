package workflow

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*FulfillmentService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(nil)
		_ = sqlDB.Close()
	})
	return NewFulfillmentService(db, config.GetLogger(), nil), db
}

func testCtx() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "tester")
	ctx = utils.SetUserRoleInContext(ctx, string(models.RoleCEO))
	return ctx
}

func actorFor(role models.Role) models.Actor {
	return models.Actor{UserId: 1, UserName: "tester", Role: role}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	customer *models.Customer
	product  *models.Product
	material *models.Material
}

// newFixture sets up one customer, a product whose BOM consumes 2 units of
// one material per piece, and empty stock positions for both.
func newFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	ctx := testCtx()

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Acme Trading"})
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Code: "P-100", Name: "steel door", Unit: "pcs", UnitPrice: dec("150"),
	})
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	material, err := models.CreateMaterial(ctx, &models.NewMaterial{
		Code: "M-100", Name: "steel sheet", Unit: "kg",
	})
	if err != nil {
		t.Fatalf("material: %v", err)
	}
	if _, err := models.SetBOM(ctx, product.ID, []*models.NewBOMItem{
		{MaterialId: material.ID, Quantity: dec("2")},
	}); err != nil {
		t.Fatalf("bom: %v", err)
	}
	return &fixture{customer: customer, product: product, material: material}
}

func (f *fixture) creditProduct(t *testing.T, db *gorm.DB, qty, batchNo string) {
	t.Helper()
	if _, err := models.CreditInventory(db, &models.StockEntry{
		InventoryType:   models.InventoryTypeProduct,
		ItemId:          f.product.ID,
		ItemName:        f.product.Name,
		Unit:            f.product.Unit,
		Quantity:        dec(qty),
		TransactionType: models.StockTransactionTypeProductionIn,
		BatchNumber:     batchNo,
	}); err != nil {
		t.Fatalf("credit product: %v", err)
	}
}

func (f *fixture) creditMaterial(t *testing.T, db *gorm.DB, qty string) {
	t.Helper()
	if _, err := models.CreditInventory(db, &models.StockEntry{
		InventoryType:   models.InventoryTypeMaterial,
		ItemId:          f.material.ID,
		ItemName:        f.material.Name,
		Unit:            f.material.Unit,
		Quantity:        dec(qty),
		TransactionType: models.StockTransactionTypePurchaseIn,
	}); err != nil {
		t.Fatalf("credit material: %v", err)
	}
}

func (f *fixture) newOrder(t *testing.T, qty string) *models.SalesOrder {
	t.Helper()
	order, err := models.CreateSalesOrder(testCtx(), &models.NewSalesOrder{
		CustomerId: f.customer.ID,
		Items: []*models.NewSalesOrderItem{
			{ProductId: f.product.ID, Quantity: dec(qty), UnitPrice: dec("150")},
		},
	})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	return order
}

func productOnHand(t *testing.T, db *gorm.DB, f *fixture) decimal.Decimal {
	t.Helper()
	qty, err := models.AvailableQuantity(db, models.InventoryTypeProduct, f.product.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	return qty
}

func materialOnHand(t *testing.T, db *gorm.DB, f *fixture) decimal.Decimal {
	t.Helper()
	qty, err := models.AvailableQuantity(db, models.InventoryTypeMaterial, f.material.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	return qty
}

// approveToCEO walks an order through the manager gate.
func approveToCEO(t *testing.T, s *FulfillmentService, orderId int) {
	t.Helper()
	if _, err := s.ApproveOrder(testCtx(), actorFor(models.RoleSalesManager), orderId); err != nil {
		t.Fatalf("manager approve: %v", err)
	}
}
