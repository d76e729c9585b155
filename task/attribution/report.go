package attribution

import (
	"encoding/json"
	"fmt"
	"net/http"

	C "multitouch/cache/redis"
	M "multitouch/model"
	"multitouch/model/model"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidDateRange = errors.New("invalid date range")

const reportCachePrefix = "attribution_report"

type Reporter struct {
	store M.Model
	// Optional, reports are not cached when nil.
	cache           *C.Cache
	cacheTTLSeconds int64
}

func NewReporter(store M.Model, cache *C.Cache, cacheTTLSeconds int64) *Reporter {
	return &Reporter{store: store, cache: cache, cacheTTLSeconds: cacheTTLSeconds}
}

func (r *Reporter) GetChannelPerformance(method model.AttributionMethod,
	dateRange model.DateRange) ([]model.ChannelPerformance, error) {

	if !method.IsValid() {
		return nil, errors.Wrapf(ErrInvalidMethod, "method %s", method)
	}
	if !dateRange.IsValid() {
		return nil, ErrInvalidDateRange
	}

	performance, errCode := r.store.GetChannelPerformance(method, dateRange.From, dateRange.To)
	if errCode != http.StatusFound {
		return nil, errors.Wrapf(ErrStorage, "failed to get %s channel performance", method)
	}

	return performance, nil
}

// CompareModels - Channel performance of every method on the same range.
func (r *Reporter) CompareModels(dateRange model.DateRange) (map[model.AttributionMethod][]model.ChannelPerformance, error) {
	comparison := make(map[model.AttributionMethod][]model.ChannelPerformance, len(model.AttributionMethods))
	for _, method := range model.AttributionMethods {
		performance, err := r.GetChannelPerformance(method, dateRange)
		if err != nil {
			return nil, err
		}
		comparison[method] = performance
	}

	return comparison, nil
}

func getReportCacheKey(method model.AttributionMethod, dateRange model.DateRange) (*C.Key, error) {
	return C.NewKey(reportCachePrefix, fmt.Sprintf("%s:%d:%d", method, dateRange.From, dateRange.To))
}

func (r *Reporter) isCacheEnabled() bool {
	return r.cache != nil && r.cacheTTLSeconds > 0
}

func (r *Reporter) getCachedReport(key *C.Key) (*model.AttributionReport, bool) {
	value, err := r.cache.Get(key)
	if err != nil {
		if !C.IsCacheMiss(err) {
			log.WithError(err).Error("Failed to get attribution report from cache.")
		}
		return nil, false
	}

	var report model.AttributionReport
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		log.WithError(err).Error("Failed to unmarshal cached attribution report.")
		return nil, false
	}

	return &report, true
}

func (r *Reporter) setCachedReport(key *C.Key, report *model.AttributionReport) {
	value, err := json.Marshal(report)
	if err != nil {
		log.WithError(err).Error("Failed to marshal attribution report for cache.")
		return
	}

	if err := r.cache.Set(key, string(value), r.cacheTTLSeconds); err != nil {
		log.WithError(err).Error("Failed to set attribution report on cache.")
	}
}

// GetReport - Channel performance of the method with channel agnostic
// conversion stats. Unattributed conversions count only on the stats.
func (r *Reporter) GetReport(method model.AttributionMethod,
	dateRange model.DateRange) (*model.AttributionReport, error) {

	if !method.IsValid() {
		return nil, errors.Wrapf(ErrInvalidMethod, "method %s", method)
	}
	if !dateRange.IsValid() {
		return nil, ErrInvalidDateRange
	}

	var cacheKey *C.Key
	if r.isCacheEnabled() {
		cacheKey, _ = getReportCacheKey(method, dateRange)
		if report, found := r.getCachedReport(cacheKey); found {
			return report, nil
		}
	}

	channels, err := r.GetChannelPerformance(method, dateRange)
	if err != nil {
		return nil, err
	}

	summary, errCode := r.store.GetConversionSummary(method, dateRange.From, dateRange.To)
	if errCode != http.StatusFound {
		return nil, errors.Wrapf(ErrStorage, "failed to get %s conversion summary", method)
	}

	report := &model.AttributionReport{
		Method:    method,
		DateRange: dateRange,
		Channels:  channels,
		Summary:   *summary,
	}

	if cacheKey != nil {
		r.setCachedReport(cacheKey, report)
	}

	return report, nil
}
