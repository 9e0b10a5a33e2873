package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

type Customer struct {
	ID            int         `gorm:"primary_key" json:"id"`
	Name          string      `gorm:"size:100;not null;index" json:"name" binding:"required"`
	ContactPerson string      `gorm:"size:100" json:"contact_person"`
	Phone         string      `gorm:"size:20" json:"phone"`
	Address       string      `gorm:"type:text" json:"address"`
	CreditLevel   CreditLevel `gorm:"size:1;not null;default:C" json:"credit_level"`
	IsActive      *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name          string      `json:"name" binding:"required"`
	ContactPerson string      `json:"contact_person"`
	Phone         string      `json:"phone"`
	Address       string      `json:"address"`
	CreditLevel   CreditLevel `json:"credit_level"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewCustomer) validate(ctx context.Context, id int) error {
	db := config.GetDB().WithContext(ctx)
	if err := utils.ValidateUnique[Customer](db, "name", input.Name, id); err != nil {
		return err
	}
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidateUnique[Customer](db, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	switch input.CreditLevel {
	case "", CreditLevelA, CreditLevelB, CreditLevelC, CreditLevelD:
	default:
		return errors.New("invalid credit level")
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	level := input.CreditLevel
	if level == "" {
		level = CreditLevelC
	}
	isActive := true
	customer := Customer{
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Phone:         input.Phone,
		Address:       input.Address,
		CreditLevel:   level,
		IsActive:      &isActive,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	customer, err := utils.FetchModel[Customer](db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	customer.Name = input.Name
	customer.ContactPerson = input.ContactPerson
	customer.Phone = input.Phone
	customer.Address = input.Address
	if input.CreditLevel != "" {
		customer.CreditLevel = input.CreditLevel
	}

	if err := db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	db := config.GetDB()
	return utils.FetchModel[Customer](db.WithContext(ctx), id)
}

func GetCustomers(ctx context.Context) ([]*Customer, error) {
	db := config.GetDB()
	return utils.FetchAllModels[Customer](db.WithContext(ctx))
}
