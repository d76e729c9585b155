package postgres

import (
	"net/http"

	"multitouch/model/model"
	U "multitouch/util"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

func (pg *Postgres) CreateConversion(conversion *model.Conversion) (*model.Conversion, int) {
	logCtx := log.WithFields(log.Fields{"visitor_id": conversion.VisitorID, "type": conversion.Type})

	if !U.IsNonEmptyKey(conversion.VisitorID) || !U.IsNonEmptyKey(conversion.Type) {
		logCtx.Error("Invalid visitor_id or type on create conversion.")
		return nil, http.StatusBadRequest
	}

	if conversion.ID == "" {
		conversion.ID = U.GetUUID()
	}
	if conversion.ConvertedAt == 0 {
		conversion.ConvertedAt = U.TimeNowUnix()
	}

	if err := pg.db.Create(conversion).Error; err != nil {
		logCtx.WithError(err).Error("Failed to create conversion.")
		return nil, http.StatusInternalServerError
	}

	return conversion, http.StatusCreated
}

func (pg *Postgres) GetConversion(conversionID string) (*model.Conversion, int) {
	logCtx := log.WithField("conversion_id", conversionID)

	var conversion model.Conversion
	if err := pg.db.Where("id = ?", conversionID).Take(&conversion).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}
		logCtx.WithError(err).Error("Failed to get conversion.")
		return nil, http.StatusInternalServerError
	}

	return &conversion, http.StatusFound
}

// Conversions without any attribution result, which are not claimed by
// another worker. Stale processing claims and failed claims under the
// attempts limit are claimable again.
const pendingConversionsCondition = "attribution_results.id IS NULL AND (" +
	"conversion_claims.conversion_id IS NULL" +
	" OR (conversion_claims.status = ? AND conversion_claims.claimed_at < ?)" +
	" OR (conversion_claims.status = ? AND conversion_claims.attempts < ?))"

const pendingConversionsJoins = " FROM conversions" +
	" LEFT JOIN attribution_results ON attribution_results.conversion_id = conversions.id" +
	" LEFT JOIN conversion_claims ON conversion_claims.conversion_id = conversions.id"

func (pg *Postgres) GetPendingConversions(limit int, staleClaimBefore int64,
	maxAttempts int) ([]model.Conversion, int) {

	logCtx := log.WithFields(log.Fields{"limit": limit, "stale_claim_before": staleClaimBefore})

	query := "SELECT conversions.*" + pendingConversionsJoins +
		" WHERE " + pendingConversionsCondition +
		" ORDER BY conversions.converted_at ASC LIMIT ?"

	var conversions []model.Conversion
	err := pg.db.Raw(query, model.ClaimStatusProcessing, staleClaimBefore,
		model.ClaimStatusFailed, maxAttempts, limit).Scan(&conversions).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to get pending conversions.")
		return nil, http.StatusInternalServerError
	}

	if len(conversions) == 0 {
		return conversions, http.StatusNotFound
	}

	return conversions, http.StatusFound
}

func (pg *Postgres) GetPendingConversionsCount(staleClaimBefore int64, maxAttempts int) (int64, int) {
	logCtx := log.WithField("stale_claim_before", staleClaimBefore)

	query := "SELECT COUNT(*)" + pendingConversionsJoins + " WHERE " + pendingConversionsCondition

	var count int64
	err := pg.db.Raw(query, model.ClaimStatusProcessing, staleClaimBefore,
		model.ClaimStatusFailed, maxAttempts).Row().Scan(&count)
	if err != nil {
		logCtx.WithError(err).Error("Failed to get pending conversions count.")
		return 0, http.StatusInternalServerError
	}

	return count, http.StatusFound
}
