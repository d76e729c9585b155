package postgres

import (
	"net/http"

	"multitouch/model/model"

	log "github.com/sirupsen/logrus"
)

// GetChannelPerformance - Sum of credits per channel for conversions
// converted in the range. Credits of touches removed by retention are
// reported under the unknown channel.
func (pg *Postgres) GetChannelPerformance(method model.AttributionMethod,
	from, to int64) ([]model.ChannelPerformance, int) {

	logCtx := log.WithFields(log.Fields{"method": method, "from": from, "to": to})

	channelColumn := "COALESCE(touches.channel, '" + model.ChannelUnknown + "')"
	query := "SELECT " + channelColumn + " AS channel," +
		" SUM(attribution_results.credit) AS total_credit," +
		" SUM(attribution_results.credit * conversions.value) AS weighted_value," +
		" COUNT(DISTINCT attribution_results.conversion_id) AS conversion_count" +
		" FROM attribution_results" +
		" JOIN conversions ON conversions.id = attribution_results.conversion_id" +
		" LEFT JOIN touches ON touches.id = attribution_results.touch_id" +
		" WHERE attribution_results.method = ? AND conversions.converted_at >= ? AND conversions.converted_at <= ?" +
		" GROUP BY " + channelColumn +
		" ORDER BY total_credit DESC, channel ASC"

	performance := make([]model.ChannelPerformance, 0)
	err := pg.db.Raw(query, string(method), from, to).
		Scan(&performance).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to get channel performance.")
		return nil, http.StatusInternalServerError
	}

	return performance, http.StatusFound
}

// GetConversionSummary - Channel agnostic stats, unattributed conversions included.
func (pg *Postgres) GetConversionSummary(method model.AttributionMethod,
	from, to int64) (*model.ConversionSummary, int) {

	logCtx := log.WithFields(log.Fields{"method": method, "from": from, "to": to})

	summary := &model.ConversionSummary{}
	err := pg.db.Raw("SELECT COUNT(*), COALESCE(SUM(value), 0) FROM conversions"+
		" WHERE converted_at >= ? AND converted_at <= ?", from, to).
		Row().Scan(&summary.TotalConversions, &summary.TotalValue)
	if err != nil {
		logCtx.WithError(err).Error("Failed to get conversions summary.")
		return nil, http.StatusInternalServerError
	}

	err = pg.db.Raw("SELECT COUNT(*), COALESCE(SUM(value), 0) FROM conversions"+
		" WHERE converted_at >= ? AND converted_at <= ?"+
		" AND EXISTS (SELECT 1 FROM attribution_results WHERE attribution_results.conversion_id = conversions.id"+
		" AND attribution_results.method = ?)", from, to, string(method)).
		Row().Scan(&summary.AttributedConversions, &summary.AttributedValue)
	if err != nil {
		logCtx.WithError(err).Error("Failed to get attributed conversions summary.")
		return nil, http.StatusInternalServerError
	}

	summary.UnattributedConversions = summary.TotalConversions - summary.AttributedConversions
	return summary, http.StatusFound
}
