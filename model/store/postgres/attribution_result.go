package postgres

import (
	"net/http"
	"sort"

	"multitouch/model/model"
	U "multitouch/util"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

// ReplaceAttributionResults - Replaces the results of the conversion and method
// with the given credits atomically. Zero credits are not stored.
func (pg *Postgres) ReplaceAttributionResults(conversionID string, method model.AttributionMethod,
	credits map[string]float64) int {

	logCtx := log.WithFields(log.Fields{"conversion_id": conversionID, "method": method})

	touchIDs := make([]string, 0, len(credits))
	for touchID, credit := range credits {
		if credit > 0 {
			touchIDs = append(touchIDs, touchID)
		}
	}
	sort.Strings(touchIDs)

	tx := pg.db.Begin()
	if tx.Error != nil {
		logCtx.WithError(tx.Error).Error("Failed to begin transaction on attribution results.")
		return http.StatusInternalServerError
	}

	err := tx.Where("conversion_id = ? AND method = ?", conversionID, string(method)).
		Delete(&model.AttributionResult{}).Error
	if err != nil {
		rollbackOnError(tx, logCtx, err, "Failed to delete existing attribution results.")
		return http.StatusInternalServerError
	}

	createdAt := gorm.NowFunc()
	for _, touchID := range touchIDs {
		result := model.AttributionResult{
			ID:           U.GetUUID(),
			ConversionID: conversionID,
			TouchID:      touchID,
			Method:       string(method),
			Credit:       credits[touchID],
			CreatedAt:    createdAt,
		}
		if err := tx.Create(&result).Error; err != nil {
			rollbackOnError(tx, logCtx.WithField("touch_id", touchID), err, "Failed to create attribution result.")
			return http.StatusInternalServerError
		}
	}

	if err := tx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit attribution results.")
		return http.StatusInternalServerError
	}

	return http.StatusAccepted
}

func (pg *Postgres) GetAttributionResults(conversionID string,
	method model.AttributionMethod) ([]model.AttributionResult, int) {

	logCtx := log.WithFields(log.Fields{"conversion_id": conversionID, "method": method})

	var results []model.AttributionResult
	err := pg.db.Where("conversion_id = ? AND method = ?", conversionID, string(method)).
		Order("touch_id ASC").Find(&results).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to get attribution results.")
		return nil, http.StatusInternalServerError
	}

	if len(results) == 0 {
		return results, http.StatusNotFound
	}

	return results, http.StatusFound
}
