package attribution

import (
	"errors"
	"strconv"
	"testing"
	"time"

	C "multitouch/cache/redis"
	"multitouch/model/model"
	"multitouch/model/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporterGetReport(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	calculator := NewCalculator(store, 30, nil)
	reporter := NewReporter(store, nil, 0)

	paid := createTestTouch(t, store, "v1", model.ChannelPaidSearch, testTimestamp-2*day)
	createTestTouch(t, store, "v1", model.ChannelEmail, testTimestamp-day)
	createTestTouch(t, store, "v2", model.ChannelEmail, testTimestamp-day)

	c1 := createTestConversion(t, store, "v1", 100, testTimestamp)
	c2 := createTestConversion(t, store, "v2", 40, testTimestamp+10)
	// No touches, counted only on the summary.
	c3 := createTestConversion(t, store, "v3", 60, testTimestamp+20)
	for _, conversion := range []*model.Conversion{c1, c2, c3} {
		_, err := calculator.ScoreConversion(conversion.ID, nil)
		require.Nil(t, err)
	}

	dateRange := model.DateRange{From: testTimestamp, To: testTimestamp + day}
	report, err := reporter.GetReport(model.AttributionMethodFirstTouch, dateRange)
	assert.Nil(t, err)
	assert.Equal(t, model.AttributionMethodFirstTouch, report.Method)
	assert.Equal(t, dateRange, report.DateRange)
	assert.Len(t, report.Channels, 2)
	assert.Equal(t, model.ChannelEmail, report.Channels[0].Channel)
	assert.Equal(t, 1.0, report.Channels[0].TotalCredit)
	assert.Equal(t, 40.0, report.Channels[0].WeightedValue)
	assert.Equal(t, model.ChannelPaidSearch, report.Channels[1].Channel)
	assert.Equal(t, 100.0, report.Channels[1].WeightedValue)

	assert.Equal(t, int64(3), report.Summary.TotalConversions)
	assert.Equal(t, 200.0, report.Summary.TotalValue)
	assert.Equal(t, int64(2), report.Summary.AttributedConversions)
	assert.Equal(t, 140.0, report.Summary.AttributedValue)
	assert.Equal(t, int64(1), report.Summary.UnattributedConversions)

	report, err = reporter.GetReport(model.AttributionMethodLinear, dateRange)
	assert.Nil(t, err)
	assert.Equal(t, model.ChannelEmail, report.Channels[0].Channel)
	assert.Equal(t, 1.5, report.Channels[0].TotalCredit)
	assert.Equal(t, 90.0, report.Channels[0].WeightedValue)
	assert.Equal(t, int64(2), report.Channels[0].ConversionCount)

	// Empty range.
	report, err = reporter.GetReport(model.AttributionMethodLinear,
		model.DateRange{From: testTimestamp + 10*day, To: testTimestamp + 11*day})
	assert.Nil(t, err)
	assert.Len(t, report.Channels, 0)
	assert.Equal(t, model.ConversionSummary{}, report.Summary)

	_, err = reporter.GetReport(model.AttributionMethodLinear, model.DateRange{From: testTimestamp, To: 1})
	assert.Equal(t, ErrInvalidDateRange, err)
	_, err = reporter.GetReport("W_Shaped", dateRange)
	assert.True(t, errors.Is(err, ErrInvalidMethod))

	comparison, err := reporter.CompareModels(dateRange)
	assert.Nil(t, err)
	assert.Len(t, comparison, len(model.AttributionMethods))
	for method, channels := range comparison {
		var totalCredit float64
		for _, channel := range channels {
			totalCredit += channel.TotalCredit
		}
		// One credit per attributed conversion.
		assert.InDelta(t, 2.0, totalCredit, 1e-9, string(method))
	}
	assert.Equal(t, paid.Channel, comparison[model.AttributionMethodFirstTouch][1].Channel)
}

func TestReporterGetReportCached(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	server := miniredis.RunT(t)
	port, err := strconv.Atoi(server.Port())
	require.Nil(t, err)
	pool := C.NewPool(server.Host(), port)
	defer pool.Close()

	calculator := NewCalculator(store, 30, nil)
	reporter := NewReporter(store, C.New(pool), 300)

	createTestTouch(t, store, "v1", model.ChannelEmail, testTimestamp-day)
	c1 := createTestConversion(t, store, "v1", 100, testTimestamp)
	_, err = calculator.ScoreConversion(c1.ID, nil)
	require.Nil(t, err)

	dateRange := model.DateRange{From: testTimestamp, To: testTimestamp + day}
	report, err := reporter.GetReport(model.AttributionMethodLinear, dateRange)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), report.Summary.TotalConversions)

	cacheKey, _ := getReportCacheKey(model.AttributionMethodLinear, dateRange)
	cKey, _ := cacheKey.Key()
	assert.True(t, server.Exists(cKey))
	assert.Equal(t, 300*time.Second, server.TTL(cKey))

	// Served from cache until expiry.
	createTestConversion(t, store, "v2", 50, testTimestamp+10)
	report, err = reporter.GetReport(model.AttributionMethodLinear, dateRange)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), report.Summary.TotalConversions)
	assert.Equal(t, model.ChannelEmail, report.Channels[0].Channel)

	server.FastForward(301 * time.Second)
	report, err = reporter.GetReport(model.AttributionMethodLinear, dateRange)
	assert.Nil(t, err)
	assert.Equal(t, int64(2), report.Summary.TotalConversions)
}
