package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

// ShippingNotice tells logistics an order has all goods on hand and may be
// shipped. One per order.
type ShippingNotice struct {
	ID        int                  `gorm:"primary_key" json:"id"`
	NoticeNo  string               `gorm:"size:50;not null;uniqueIndex" json:"notice_no"`
	OrderId   int                  `gorm:"not null;uniqueIndex" json:"order_id"`
	Order     *SalesOrder          `gorm:"foreignKey:OrderId" json:"order,omitempty"`
	Status    ShippingNoticeStatus `gorm:"size:20;not null;default:pending" json:"status"`
	Remark    string               `gorm:"size:500" json:"remark"`
	CreatedAt time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type Driver struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"size:20" json:"phone"`
	LicenseNo string    `gorm:"size:50" json:"license_no"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Vehicle struct {
	ID           int       `gorm:"primary_key" json:"id"`
	PlateNumber  string    `gorm:"size:20;not null;uniqueIndex" json:"plate_number" binding:"required"`
	VehicleType  string    `gorm:"size:50" json:"vehicle_type"`
	LoadCapacity string    `gorm:"size:50" json:"load_capacity"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Shipment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ShipmentNo  string          `gorm:"size:50;not null;uniqueIndex" json:"shipment_no"`
	NoticeId    int             `gorm:"not null;index" json:"notice_id"`
	Notice      *ShippingNotice `gorm:"foreignKey:NoticeId" json:"notice,omitempty"`
	OrderId     int             `gorm:"not null;index" json:"order_id"`
	DriverId    int             `gorm:"index" json:"driver_id"`
	Driver      *Driver         `gorm:"foreignKey:DriverId" json:"driver,omitempty"`
	VehicleId   int             `gorm:"index" json:"vehicle_id"`
	Vehicle     *Vehicle        `gorm:"foreignKey:VehicleId" json:"vehicle,omitempty"`
	Status      ShipmentStatus  `gorm:"size:20;not null;default:loading;index" json:"status"`
	ShippedAt   *time.Time      `json:"shipped_at"`
	DeliveredAt *time.Time      `json:"delivered_at"`
	Remark      string          `gorm:"size:500" json:"remark"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDriver struct {
	Name      string `json:"name" binding:"required"`
	Phone     string `json:"phone"`
	LicenseNo string `json:"license_no"`
}

type NewVehicle struct {
	PlateNumber  string `json:"plate_number" binding:"required"`
	VehicleType  string `json:"vehicle_type"`
	LoadCapacity string `json:"load_capacity"`
}

func CreateDriver(ctx context.Context, input *NewDriver) (*Driver, error) {
	isActive := true
	driver := Driver{
		Name:      input.Name,
		Phone:     input.Phone,
		LicenseNo: input.LicenseNo,
		IsActive:  &isActive,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&driver).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

func CreateVehicle(ctx context.Context, input *NewVehicle) (*Vehicle, error) {
	db := config.GetDB()
	if err := utils.ValidateUnique[Vehicle](db.WithContext(ctx), "plate_number", input.PlateNumber, 0); err != nil {
		return nil, err
	}
	isActive := true
	vehicle := Vehicle{
		PlateNumber:  input.PlateNumber,
		VehicleType:  input.VehicleType,
		LoadCapacity: input.LoadCapacity,
		IsActive:     &isActive,
	}
	if err := db.WithContext(ctx).Create(&vehicle).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func GetShipment(ctx context.Context, id int) (*Shipment, error) {
	db := config.GetDB()
	return utils.FetchModel[Shipment](db.WithContext(ctx), id, "Notice", "Driver", "Vehicle")
}

func GetShippingNotice(ctx context.Context, id int) (*ShippingNotice, error) {
	db := config.GetDB()
	return utils.FetchModel[ShippingNotice](db.WithContext(ctx), id, "Order", "Order.Items")
}

func GetShippingNotices(ctx context.Context, status ShippingNoticeStatus) ([]*ShippingNotice, error) {
	db := config.GetDB().WithContext(ctx).Preload("Order")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	var notices []*ShippingNotice
	if err := db.Order("id DESC").Find(&notices).Error; err != nil {
		return nil, err
	}
	return notices, nil
}
