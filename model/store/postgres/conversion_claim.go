package postgres

import (
	"net/http"

	"multitouch/model/model"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

// ClaimConversion - Marks the conversion as processing for the caller.
// Returns false when another worker holds a live claim or the conversion
// was already finished.
func (pg *Postgres) ClaimConversion(conversionID string, claimedAt, staleClaimBefore int64,
	maxAttempts int) (bool, int) {

	logCtx := log.WithField("conversion_id", conversionID)

	inserted := pg.db.Exec("INSERT INTO conversion_claims (conversion_id, status, attempts, claimed_at, updated_at)"+
		" VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
		conversionID, model.ClaimStatusProcessing, 1, claimedAt, gorm.NowFunc())
	if inserted.Error != nil {
		logCtx.WithError(inserted.Error).Error("Failed to insert conversion claim.")
		return false, http.StatusInternalServerError
	}
	if inserted.RowsAffected == 1 {
		return true, http.StatusAccepted
	}

	updated := pg.db.Exec("UPDATE conversion_claims SET status = ?, attempts = attempts + 1, claimed_at = ?, updated_at = ?"+
		" WHERE conversion_id = ? AND ((status = ? AND claimed_at < ?) OR (status = ? AND attempts < ?))",
		model.ClaimStatusProcessing, claimedAt, gorm.NowFunc(), conversionID,
		model.ClaimStatusProcessing, staleClaimBefore, model.ClaimStatusFailed, maxAttempts)
	if updated.Error != nil {
		logCtx.WithError(updated.Error).Error("Failed to reclaim conversion.")
		return false, http.StatusInternalServerError
	}

	return updated.RowsAffected == 1, http.StatusAccepted
}

func (pg *Postgres) UpdateConversionClaimStatus(conversionID, status string) int {
	logCtx := log.WithFields(log.Fields{"conversion_id": conversionID, "status": status})

	updated := pg.db.Model(&model.ConversionClaim{}).Where("conversion_id = ?", conversionID).
		Updates(map[string]interface{}{"status": status})
	if updated.Error != nil {
		logCtx.WithError(updated.Error).Error("Failed to update conversion claim status.")
		return http.StatusInternalServerError
	}
	if updated.RowsAffected == 0 {
		return http.StatusNotFound
	}

	return http.StatusAccepted
}

func (pg *Postgres) GetConversionClaim(conversionID string) (*model.ConversionClaim, int) {
	logCtx := log.WithField("conversion_id", conversionID)

	var claim model.ConversionClaim
	if err := pg.db.Where("conversion_id = ?", conversionID).Take(&claim).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}
		logCtx.WithError(err).Error("Failed to get conversion claim.")
		return nil, http.StatusInternalServerError
	}

	return &claim, http.StatusFound
}
