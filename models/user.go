package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Role string

const (
	RoleSalesperson  Role = "salesperson"
	RoleSalesManager Role = "sales_manager"
	RoleCEO          Role = "ceo"
	RoleProduction   Role = "production"
	RoleQC           Role = "qc"
	RoleWarehouse    Role = "warehouse"
	RoleLogistics    Role = "logistics"
	RolePurchaser    Role = "purchaser"
)

// Permission codes, grouped by module.
const (
	PermOrderCreate     = "order.create"
	PermOrderEdit       = "order.edit"
	PermOrderApprove    = "order.approve"
	PermOrderCEOApprove = "order.ceo_approve"
	PermOrderReject     = "order.reject"
	PermOrderCancel     = "order.cancel"
	PermOrderTerminate  = "order.terminate"

	PermTaskReceive   = "task.receive"
	PermQCRecord      = "qc.record"
	PermInboundRecord = "inbound.record"

	PermShipmentCreate  = "shipment.create"
	PermShipmentShip    = "shipment.ship"
	PermShipmentDeliver = "shipment.deliver"

	PermPurchaseCreate  = "purchase.create"
	PermPurchaseApprove = "purchase.approve"
	PermPurchaseReceive = "purchase.receive"

	PermAdjustmentCreate  = "adjustment.create"
	PermAdjustmentApprove = "adjustment.approve"

	PermMasterManage = "master.manage"
)

// rolePermissions maps each role to the permission codes it holds. The CEO
// is handled separately and holds every permission.
var rolePermissions = map[Role]map[string]bool{
	RoleSalesperson: {
		PermOrderCreate: true,
		PermOrderEdit:   true,
		PermOrderCancel: true,
	},
	RoleSalesManager: {
		PermOrderCreate:  true,
		PermOrderEdit:    true,
		PermOrderCancel:  true,
		PermOrderApprove: true,
		PermOrderReject:  true,
	},
	RoleProduction: {
		PermTaskReceive: true,
	},
	RoleQC: {
		PermQCRecord: true,
	},
	RoleWarehouse: {
		PermInboundRecord:    true,
		PermPurchaseReceive:  true,
		PermAdjustmentCreate: true,
	},
	RoleLogistics: {
		PermShipmentCreate:  true,
		PermShipmentShip:    true,
		PermShipmentDeliver: true,
	},
	RolePurchaser: {
		PermPurchaseCreate: true,
	},
}

// Actor is the authenticated identity an operation runs as. Permission
// checks go through Can; nothing else inspects the role.
type Actor struct {
	UserId   int
	UserName string
	Role     Role
}

// Can reports whether the actor holds the given permission.
func (a Actor) Can(permission string) bool {
	if a.Role == RoleCEO {
		return true
	}
	perms, ok := rolePermissions[a.Role]
	if !ok {
		return false
	}
	return perms[permission]
}

// Require returns a PermissionDeniedError when the actor lacks the
// permission, nil otherwise.
func (a Actor) Require(permission string) error {
	if !a.Can(permission) {
		return &PermissionDeniedError{Role: string(a.Role), Permission: permission}
	}
	return nil
}

// ActorFromContext rebuilds the actor the identity middleware stored.
func ActorFromContext(ctx context.Context) Actor {
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	role, _ := utils.GetUserRoleFromContext(ctx)
	return Actor{UserId: userId, UserName: userName, Role: Role(role)}
}

type UserProfile struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Username     string    `gorm:"size:50;not null;uniqueIndex" json:"username" binding:"required"`
	DisplayName  string    `gorm:"size:100" json:"display_name"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	Role         Role      `gorm:"size:20;not null" json:"role"`
	Phone        string    `gorm:"size:20" json:"phone"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *UserProfile) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *UserProfile) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

func CreateUserProfile(tx *gorm.DB, username, displayName, password string, role Role) (*UserProfile, error) {
	if err := utils.ValidateUnique[UserProfile](tx, "username", username, 0); err != nil {
		return nil, err
	}
	isActive := true
	user := UserProfile{
		Username:    username,
		DisplayName: displayName,
		Role:        role,
		IsActive:    &isActive,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserProfileByUsername(ctx context.Context, username string) (*UserProfile, error) {
	db := config.GetDB()
	var user UserProfile
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}
