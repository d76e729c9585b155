package postgres

import (
	"net/http"

	"multitouch/model/model"
	U "multitouch/util"

	log "github.com/sirupsen/logrus"
)

func (pg *Postgres) CreateTouch(touch *model.Touch) (*model.Touch, int) {
	logCtx := log.WithField("visitor_id", touch.VisitorID)

	if !U.IsNonEmptyKey(touch.VisitorID) {
		logCtx.Error("Invalid visitor_id on create touch.")
		return nil, http.StatusBadRequest
	}

	if touch.ID == "" {
		touch.ID = U.GetUUID()
	}
	if touch.Timestamp == 0 {
		touch.Timestamp = U.TimeNowUnix()
	}
	if touch.Type == "" {
		touch.Type = model.TouchTypePageView
	}

	if err := pg.db.Create(touch).Error; err != nil {
		logCtx.WithError(err).Error("Failed to create touch.")
		return nil, http.StatusInternalServerError
	}

	return touch, http.StatusCreated
}

// GetTouchesByVisitorIDInRange - Touches of the visitor with timestamp
// between from and to, both inclusive, ordered by timestamp and then by
// insertion.
func (pg *Postgres) GetTouchesByVisitorIDInRange(visitorID string, from, to int64) ([]model.Touch, int) {
	logCtx := log.WithFields(log.Fields{"visitor_id": visitorID, "from": from, "to": to})

	var touches []model.Touch
	err := pg.db.Where("visitor_id = ? AND timestamp >= ? AND timestamp <= ?", visitorID, from, to).
		Order("timestamp ASC, sequence ASC").Find(&touches).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to get touches of visitor.")
		return nil, http.StatusInternalServerError
	}

	if len(touches) == 0 {
		return touches, http.StatusNotFound
	}

	return touches, http.StatusFound
}

// DeleteTouchesBeforeTimestamp - Retention cleanup. Removes the touches and
// their links, attribution results are kept as is.
func (pg *Postgres) DeleteTouchesBeforeTimestamp(timestamp int64) (int64, int) {
	logCtx := log.WithField("before_timestamp", timestamp)

	tx := pg.db.Begin()
	if tx.Error != nil {
		logCtx.WithError(tx.Error).Error("Failed to begin transaction on touch retention.")
		return 0, http.StatusInternalServerError
	}

	err := tx.Exec("DELETE FROM touch_conversions WHERE touch_id IN (SELECT id FROM touches WHERE timestamp < ?)",
		timestamp).Error
	if err != nil {
		rollbackOnError(tx, logCtx, err, "Failed to delete touch conversions on touch retention.")
		return 0, http.StatusInternalServerError
	}

	deleted := tx.Where("timestamp < ?", timestamp).Delete(&model.Touch{})
	if deleted.Error != nil {
		rollbackOnError(tx, logCtx, deleted.Error, "Failed to delete touches on touch retention.")
		return 0, http.StatusInternalServerError
	}

	if err := tx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit touch retention.")
		return 0, http.StatusInternalServerError
	}

	return deleted.RowsAffected, http.StatusAccepted
}
