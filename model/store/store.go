package store

import (
	"multitouch/model"
	"multitouch/model/store/postgres"

	"github.com/jinzhu/gorm"
)

// NewStore - Returns the store implementation backed by the given db.
func NewStore(db *gorm.DB) model.Model {
	return postgres.New(db)
}

// Migrate - Creates or updates the attribution tables and indexes.
func Migrate(db *gorm.DB) error {
	return postgres.Migrate(db)
}
