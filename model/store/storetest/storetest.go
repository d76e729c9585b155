// Package storetest provides a store on in-memory sqlite for tests.
package storetest

import (
	"testing"

	"multitouch/model"
	"multitouch/model/store"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/require"
)

// NewSQLiteStore - Migrated store on a private in-memory database, closed on test cleanup.
func NewSQLiteStore(t *testing.T) (model.Model, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open("sqlite3", ":memory:")
	require.Nil(t, err)
	// Every connection of an in-memory sqlite is a separate database.
	db.DB().SetMaxOpenConns(1)

	require.Nil(t, store.Migrate(db))
	t.Cleanup(func() {
		db.Close()
	})

	return store.NewStore(db), db
}
