package postgres

import (
	"multitouch/model/model"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

// Postgres - gorm backed store. Queries are kept portable so that
// tests can run the same store on sqlite.
type Postgres struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Touch{},
		&model.Conversion{},
		&model.TouchConversion{},
		&model.AttributionResult{},
		&model.ConversionClaim{},
	).Error
	if err != nil {
		log.WithError(err).Error("Failed to migrate attribution tables.")
		return err
	}

	// bigserial has no default on sqlite, sequence follows the rowid there.
	if db.Dialect().GetName() == "sqlite3" {
		err = db.Exec("CREATE TRIGGER IF NOT EXISTS touches_sequence AFTER INSERT ON touches" +
			" BEGIN UPDATE touches SET sequence = NEW.rowid WHERE rowid = NEW.rowid; END").Error
		if err != nil {
			log.WithError(err).Error("Failed to create touches sequence trigger.")
			return err
		}
	}
	return nil
}

// rollbackOnError rolls back the transaction and logs the failure.
func rollbackOnError(tx *gorm.DB, logCtx *log.Entry, err error, msg string) {
	logCtx.WithError(err).Error(msg)
	if rbErr := tx.Rollback().Error; rbErr != nil {
		logCtx.WithError(rbErr).Error("Failed to rollback transaction.")
	}
}
