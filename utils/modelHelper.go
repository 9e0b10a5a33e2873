package utils

import (
	"errors"

	"gorm.io/gorm"
)

/* DB fetching */

// FetchModel fetches a model by primary key within the given transaction.
// (may return RecordNotFound)
func FetchModel[T any](tx *gorm.DB, id int, associations ...string) (*T, error) {
	dbCtx := tx
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// FetchAllModels fetches every row of a model within the given transaction.
func FetchAllModels[T any](tx *gorm.DB, associations ...string) ([]*T, error) {
	dbCtx := tx
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateUnique checks that no other row carries the same value in the
// given column. Pass id = 0 on create.
func ValidateUnique[T any](tx *gorm.DB, fieldName string, value string, id int) error {
	var v T
	var count int64
	dbCtx := tx.Model(&v).Where(fieldName+" = ?", value)
	if id > 0 {
		dbCtx = dbCtx.Where("id <> ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New(fieldName + " already exists")
	}
	return nil
}

// ValidateResourceId checks that a row with the given id exists.
func ValidateResourceId[T any](tx *gorm.DB, id int) error {
	var v T
	var count int64
	if err := tx.Model(&v).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
