package postgres

import (
	"net/http"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

// ReplaceTouchConversions - Links the given touches to the conversion.
// Existing links are kept, links to touches not in the list are removed.
func (pg *Postgres) ReplaceTouchConversions(conversionID string, touchIDs []string) int {
	logCtx := log.WithFields(log.Fields{"conversion_id": conversionID, "no_of_touches": len(touchIDs)})

	tx := pg.db.Begin()
	if tx.Error != nil {
		logCtx.WithError(tx.Error).Error("Failed to begin transaction on touch conversions.")
		return http.StatusInternalServerError
	}

	var err error
	if len(touchIDs) == 0 {
		err = tx.Exec("DELETE FROM touch_conversions WHERE conversion_id = ?", conversionID).Error
	} else {
		err = tx.Exec("DELETE FROM touch_conversions WHERE conversion_id = ? AND touch_id NOT IN (?)",
			conversionID, touchIDs).Error
	}
	if err != nil {
		rollbackOnError(tx, logCtx, err, "Failed to delete stale touch conversions.")
		return http.StatusInternalServerError
	}

	createdAt := gorm.NowFunc()
	for _, touchID := range touchIDs {
		err := tx.Exec("INSERT INTO touch_conversions (touch_id, conversion_id, created_at) VALUES (?, ?, ?)"+
			" ON CONFLICT DO NOTHING", touchID, conversionID, createdAt).Error
		if err != nil {
			rollbackOnError(tx, logCtx.WithField("touch_id", touchID), err, "Failed to insert touch conversion.")
			return http.StatusInternalServerError
		}
	}

	if err := tx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit touch conversions.")
		return http.StatusInternalServerError
	}

	return http.StatusAccepted
}

func (pg *Postgres) GetTouchIDsByConversionID(conversionID string) ([]string, int) {
	logCtx := log.WithField("conversion_id", conversionID)

	touchIDs := make([]string, 0)
	err := pg.db.Table("touch_conversions").Where("conversion_id = ?", conversionID).
		Order("touch_id ASC").Pluck("touch_id", &touchIDs).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to get touch conversions.")
		return nil, http.StatusInternalServerError
	}

	if len(touchIDs) == 0 {
		return touchIDs, http.StatusNotFound
	}

	return touchIDs, http.StatusFound
}
