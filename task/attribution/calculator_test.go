package attribution

import (
	"errors"
	"net/http"
	"testing"

	M "multitouch/model"
	"multitouch/model/model"
	"multitouch/model/store/storetest"
	U "multitouch/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimestamp = int64(1589068800)

var day = U.SecsInADay

func createTestTouch(t *testing.T, store M.Model, visitorID, channel string, timestamp int64) *model.Touch {
	touch, errCode := store.CreateTouch(&model.Touch{VisitorID: visitorID, Channel: channel, Timestamp: timestamp})
	require.Equal(t, http.StatusCreated, errCode)
	return touch
}

func createTestConversion(t *testing.T, store M.Model, visitorID string, value float64,
	convertedAt int64) *model.Conversion {

	conversion, errCode := store.CreateConversion(&model.Conversion{VisitorID: visitorID,
		Type: "purchase", Value: value, ConvertedAt: convertedAt})
	require.Equal(t, http.StatusCreated, errCode)
	return conversion
}

func TestScoreConversionLookbackWindow(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	calculator := NewCalculator(store, 30, nil)

	convertedAt := testTimestamp + 60*day
	createTestTouch(t, store, "v1", model.ChannelPaidSearch, convertedAt-31*day)
	boundary := createTestTouch(t, store, "v1", model.ChannelEmail, convertedAt-30*day)
	recent := createTestTouch(t, store, "v1", model.ChannelDirect, convertedAt-day)
	// After the conversion.
	createTestTouch(t, store, "v1", model.ChannelSocial, convertedAt+1)
	// Other visitor.
	createTestTouch(t, store, "v2", model.ChannelSocial, convertedAt-day)
	conversion := createTestConversion(t, store, "v1", 100, convertedAt)

	from, to := calculator.GetLookbackWindow(convertedAt)
	assert.Equal(t, convertedAt-30*day, from)
	assert.Equal(t, convertedAt, to)

	summary, err := calculator.ScoreConversion(conversion.ID, nil)
	assert.Nil(t, err)
	assert.Equal(t, ScoreStatusAttributed, summary.Status)
	// Touch exactly 30 days before is included, 31 days before is not.
	assert.Equal(t, 2, summary.TouchesCount)
	assert.Len(t, summary.Credits, len(model.AttributionMethods))
	assert.Equal(t, 1.0, summary.Credits[model.AttributionMethodFirstTouch][boundary.ID])
	assert.Equal(t, 1.0, summary.Credits[model.AttributionMethodLastTouch][recent.ID])

	for _, method := range model.AttributionMethods {
		assert.InDelta(t, 1.0, model.GetCreditsSum(summary.Credits[method]), 1e-9, string(method))
	}

	touchIDs, errCode := store.GetTouchIDsByConversionID(conversion.ID)
	assert.Equal(t, http.StatusFound, errCode)
	assert.ElementsMatch(t, []string{boundary.ID, recent.ID}, touchIDs)

	// Zero credits are not stored.
	results, errCode := store.GetAttributionResults(conversion.ID, model.AttributionMethodFirstTouch)
	assert.Equal(t, http.StatusFound, errCode)
	assert.Len(t, results, 1)
	assert.Equal(t, boundary.ID, results[0].TouchID)

	results, _ = store.GetAttributionResults(conversion.ID, model.AttributionMethodLinear)
	assert.Len(t, results, 2)
	assert.Equal(t, 0.5, results[0].Credit)
}

func TestScoreConversionSameTimestampTouches(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	calculator := NewCalculator(store, 30, nil)

	touches := make([]*model.Touch, 0, 20)
	for i := 0; i < 20; i++ {
		touches = append(touches, createTestTouch(t, store, "v1", model.ChannelDirect, testTimestamp))
	}
	conversion := createTestConversion(t, store, "v1", 10, testTimestamp+day)

	summary, err := calculator.ScoreConversion(conversion.ID,
		[]model.AttributionMethod{model.AttributionMethodFirstTouch, model.AttributionMethodLastTouch})
	assert.Nil(t, err)
	// Ties on timestamp follow insertion order.
	assert.Equal(t, map[string]float64{touches[0].ID: 1},
		summary.Credits[model.AttributionMethodFirstTouch])
	assert.Equal(t, map[string]float64{touches[19].ID: 1},
		summary.Credits[model.AttributionMethodLastTouch])
}

func TestScoreConversionNotFoundAndNoTouches(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	calculator := NewCalculator(store, 30, nil)

	summary, err := calculator.ScoreConversion("missing", nil)
	assert.Nil(t, err)
	assert.Equal(t, ScoreStatusNotFound, summary.Status)

	// Only a touch outside the window.
	createTestTouch(t, store, "v1", model.ChannelDirect, testTimestamp-31*day)
	conversion := createTestConversion(t, store, "v1", 10, testTimestamp)

	summary, err = calculator.ScoreConversion(conversion.ID, nil)
	assert.Nil(t, err)
	assert.Equal(t, ScoreStatusNoTouches, summary.Status)
	assert.Equal(t, 0, summary.TouchesCount)
	assert.Nil(t, summary.Credits)

	for _, method := range model.AttributionMethods {
		_, errCode := store.GetAttributionResults(conversion.ID, method)
		assert.Equal(t, http.StatusNotFound, errCode)
	}
	_, errCode := store.GetTouchIDsByConversionID(conversion.ID)
	assert.Equal(t, http.StatusNotFound, errCode)
}

func TestScoreConversionForMethod(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	calculator := NewCalculator(store, 30, nil)

	first := createTestTouch(t, store, "v1", model.ChannelEmail, testTimestamp-2*day)
	createTestTouch(t, store, "v1", model.ChannelDirect, testTimestamp-day)
	conversion := createTestConversion(t, store, "v1", 10, testTimestamp)

	summary, err := calculator.ScoreConversionForMethod(conversion.ID, "First_Touch")
	assert.Nil(t, err)
	assert.Len(t, summary.Credits, 1)
	assert.Equal(t, 1.0, summary.Credits[model.AttributionMethodFirstTouch][first.ID])
	_, errCode := store.GetAttributionResults(conversion.ID, model.AttributionMethodLastTouch)
	assert.Equal(t, http.StatusNotFound, errCode)

	// Unknown method ids are rejected on the single method path, while the
	// lenient lookup still falls back to Last Touch.
	summary, err = calculator.ScoreConversionForMethod(conversion.ID, "U_Shaped")
	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, ErrInvalidMethod))
	assert.Equal(t, model.AttributionMethodLastTouch, model.GetAttributionMethodOrDefault("U_Shaped"))

	_, err = calculator.ScoreConversion(conversion.ID, []model.AttributionMethod{"U_Shaped"})
	assert.True(t, errors.Is(err, ErrInvalidMethod))
}

func TestScoreConversionRescoreReplacesResults(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)

	old := createTestTouch(t, store, "v1", model.ChannelEmail, testTimestamp-20*day)
	recent := createTestTouch(t, store, "v1", model.ChannelDirect, testTimestamp-day)
	conversion := createTestConversion(t, store, "v1", 10, testTimestamp)

	_, err := NewCalculator(store, 30, nil).ScoreConversion(conversion.ID, nil)
	assert.Nil(t, err)
	results, _ := store.GetAttributionResults(conversion.ID, model.AttributionMethodLinear)
	assert.Len(t, results, 2)

	// Shorter window on re-score drops the old touch and its link.
	summary, err := NewCalculator(store, 7, nil).ScoreConversion(conversion.ID, nil)
	assert.Nil(t, err)
	assert.Equal(t, 1, summary.TouchesCount)

	results, _ = store.GetAttributionResults(conversion.ID, model.AttributionMethodLinear)
	assert.Len(t, results, 1)
	assert.Equal(t, recent.ID, results[0].TouchID)
	assert.Equal(t, 1.0, results[0].Credit)

	results, _ = store.GetAttributionResults(conversion.ID, model.AttributionMethodFirstTouch)
	assert.Len(t, results, 1)
	assert.NotEqual(t, old.ID, results[0].TouchID)

	touchIDs, _ := store.GetTouchIDsByConversionID(conversion.ID)
	assert.Equal(t, []string{recent.ID}, touchIDs)
}

func TestScoreConversionStorageFailure(t *testing.T) {
	store, db := storetest.NewSQLiteStore(t)
	calculator := NewCalculator(store, 30, nil)

	conversion := createTestConversion(t, store, "v1", 10, testTimestamp)
	require.Nil(t, db.Close())

	summary, err := calculator.ScoreConversion(conversion.ID, nil)
	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, ErrStorage))
}
