package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Code          string          `gorm:"size:50;not null;uniqueIndex" json:"code" binding:"required"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Specification string          `gorm:"size:200" json:"specification"`
	Unit          string          `gorm:"size:20;not null" json:"unit"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_price"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Material struct {
	ID            int          `gorm:"primary_key" json:"id"`
	Code          string       `gorm:"size:50;not null;uniqueIndex" json:"code" binding:"required"`
	Name          string       `gorm:"size:100;not null" json:"name" binding:"required"`
	Specification string       `gorm:"size:200" json:"specification"`
	Unit          string       `gorm:"size:20;not null" json:"unit"`
	MaterialType  MaterialType `gorm:"size:20;not null;default:raw" json:"material_type"`
	IsActive      *bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// BOM is one bill-of-materials line: producing one unit of ProductId
// consumes Quantity units of MaterialId.
type BOM struct {
	ID         int             `gorm:"primary_key" json:"id"`
	ProductId  int             `gorm:"not null;index;uniqueIndex:uix_bom_product_material" json:"product_id"`
	Product    *Product        `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	MaterialId int             `gorm:"not null;uniqueIndex:uix_bom_product_material" json:"material_id"`
	Material   *Material       `gorm:"foreignKey:MaterialId" json:"material,omitempty"`
	Quantity   decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	Remark     string          `gorm:"size:200" json:"remark"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Specification string          `json:"specification"`
	Unit          string          `json:"unit" binding:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

type NewMaterial struct {
	Code          string       `json:"code" binding:"required"`
	Name          string       `json:"name" binding:"required"`
	Specification string       `json:"specification"`
	Unit          string       `json:"unit" binding:"required"`
	MaterialType  MaterialType `json:"material_type"`
}

type NewBOMItem struct {
	MaterialId int             `json:"material_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Remark     string          `json:"remark"`
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()
	if err := utils.ValidateUnique[Product](db.WithContext(ctx), "code", input.Code, 0); err != nil {
		return nil, err
	}
	if input.UnitPrice.IsNegative() {
		return nil, errors.New("unit price cannot be negative")
	}

	isActive := true
	product := Product{
		Code:          input.Code,
		Name:          input.Name,
		Specification: input.Specification,
		Unit:          input.Unit,
		UnitPrice:     input.UnitPrice,
		IsActive:      &isActive,
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func CreateMaterial(ctx context.Context, input *NewMaterial) (*Material, error) {
	db := config.GetDB()
	if err := utils.ValidateUnique[Material](db.WithContext(ctx), "code", input.Code, 0); err != nil {
		return nil, err
	}

	materialType := input.MaterialType
	if materialType == "" {
		materialType = MaterialTypeRaw
	}
	isActive := true
	material := Material{
		Code:          input.Code,
		Name:          input.Name,
		Specification: input.Specification,
		Unit:          input.Unit,
		MaterialType:  materialType,
		IsActive:      &isActive,
	}
	if err := db.WithContext(ctx).Create(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	db := config.GetDB()
	return utils.FetchModel[Product](db.WithContext(ctx), id)
}

func GetMaterial(ctx context.Context, id int) (*Material, error) {
	db := config.GetDB()
	return utils.FetchModel[Material](db.WithContext(ctx), id)
}

// SetBOM replaces the bill of materials of a product in one transaction.
func SetBOM(ctx context.Context, productId int, items []*NewBOMItem) ([]*BOM, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)

	if err := utils.ValidateResourceId[Product](dbCtx, productId); err != nil {
		return nil, errors.New("product not found")
	}
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		if err := utils.ValidateResourceId[Material](dbCtx, item.MaterialId); err != nil {
			return nil, errors.New("material not found")
		}
		if err := utils.ValidatePositiveQuantity("bom quantity", item.Quantity); err != nil {
			return nil, err
		}
		if seen[item.MaterialId] {
			return nil, errors.New("duplicate material in bom")
		}
		seen[item.MaterialId] = true
	}

	var boms []*BOM
	err := dbCtx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productId).Delete(&BOM{}).Error; err != nil {
			return err
		}
		for _, item := range items {
			bom := &BOM{
				ProductId:  productId,
				MaterialId: item.MaterialId,
				Quantity:   item.Quantity,
				Remark:     item.Remark,
			}
			if err := tx.Create(bom).Error; err != nil {
				return err
			}
			boms = append(boms, bom)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return boms, nil
}

// GetBOMItems returns the bill of materials of a product within the given
// transaction. An empty result means the product has no BOM.
func GetBOMItems(tx *gorm.DB, productId int) ([]*BOM, error) {
	var items []*BOM
	if err := tx.Preload("Material").
		Where("product_id = ?", productId).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
