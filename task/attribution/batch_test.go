package attribution

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	C "multitouch/cache/redis"
	"multitouch/model/model"
	"multitouch/model/store/storetest"
	U "multitouch/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessPendingConversions(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	calculator := NewCalculator(store, 30, nil)
	processor := NewProcessor(store, calculator, 100, 2, 900, 3, nil)

	status, err := processor.ProcessPendingConversions(10)
	assert.Nil(t, err)
	assert.Equal(t, 0, status.Processed)
	assert.Equal(t, int64(0), status.Pending)

	createTestTouch(t, store, "v1", model.ChannelPaidSearch, testTimestamp-day)
	createTestTouch(t, store, "v3", model.ChannelEmail, testTimestamp-2*day)
	createTestTouch(t, store, "v3", model.ChannelDirect, testTimestamp-day)
	c1 := createTestConversion(t, store, "v1", 100, testTimestamp)
	c2 := createTestConversion(t, store, "v2", 50, testTimestamp)
	c3 := createTestConversion(t, store, "v3", 25, testTimestamp)

	status, err = processor.ProcessPendingConversions(10)
	assert.Nil(t, err)
	assert.Equal(t, 2, status.Processed)
	assert.Equal(t, 1, status.Errors)
	assert.Equal(t, 1, status.NoTouches)
	assert.Equal(t, 0, status.Skipped)
	assert.Equal(t, int64(0), status.Pending)

	for _, conversionID := range []string{c1.ID, c3.ID} {
		for _, method := range model.AttributionMethods {
			_, errCode := store.GetAttributionResults(conversionID, method)
			assert.Equal(t, http.StatusFound, errCode)
		}
		claim, _ := store.GetConversionClaim(conversionID)
		assert.Equal(t, model.ClaimStatusAttributed, claim.Status)
	}
	claim, _ := store.GetConversionClaim(c2.ID)
	assert.Equal(t, model.ClaimStatusNoTouches, claim.Status)
	_, errCode := store.GetAttributionResults(c2.ID, model.AttributionMethodLastTouch)
	assert.Equal(t, http.StatusNotFound, errCode)

	// Scored and unattributable conversions are not selected again.
	status, err = processor.ProcessPendingConversions(10)
	assert.Nil(t, err)
	assert.Equal(t, 0, status.Processed)
	assert.Equal(t, 0, status.Errors)
	assert.Equal(t, int64(0), status.Pending)
}

func TestProcessPendingConversionsLimit(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	processor := NewProcessor(store, NewCalculator(store, 30, nil), 2, 4, 900, 3, nil)

	for i := 0; i < 5; i++ {
		visitorID := "v" + strconv.Itoa(i)
		createTestTouch(t, store, visitorID, model.ChannelDirect, testTimestamp-day)
		createTestConversion(t, store, visitorID, 10, testTimestamp+int64(i))
	}

	status, err := processor.ProcessPendingConversions(3)
	assert.Nil(t, err)
	assert.Equal(t, 3, status.Processed)
	assert.Equal(t, int64(2), status.Pending)

	// Batch size is used without a limit.
	status, err = processor.ProcessPendingConversions(0)
	assert.Nil(t, err)
	assert.Equal(t, 2, status.Processed)
	assert.Equal(t, int64(0), status.Pending)
}

func TestProcessPendingConversionsRetriesStaleClaims(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	processor := NewProcessor(store, NewCalculator(store, 30, nil), 10, 2, 900, 3, nil)

	createTestTouch(t, store, "v1", model.ChannelDirect, testTimestamp-day)
	live := createTestConversion(t, store, "v1", 10, testTimestamp)
	createTestTouch(t, store, "v2", model.ChannelDirect, testTimestamp-day)
	abandoned := createTestConversion(t, store, "v2", 10, testTimestamp)

	now := U.TimeNowUnix()
	claimed, _ := store.ClaimConversion(live.ID, now, now-900, 3)
	require.True(t, claimed)
	claimed, _ = store.ClaimConversion(abandoned.ID, now-3600, now-900, 3)
	require.True(t, claimed)

	status, err := processor.ProcessPendingConversions(10)
	assert.Nil(t, err)
	assert.Equal(t, 1, status.Processed)

	claim, _ := store.GetConversionClaim(abandoned.ID)
	assert.Equal(t, model.ClaimStatusAttributed, claim.Status)
	assert.Equal(t, 2, claim.Attempts)

	claim, _ = store.GetConversionClaim(live.ID)
	assert.Equal(t, model.ClaimStatusProcessing, claim.Status)
}

func TestProcessPendingConversionsWithLock(t *testing.T) {
	store, _ := storetest.NewSQLiteStore(t)
	server := miniredis.RunT(t)
	port, err := strconv.Atoi(server.Port())
	require.Nil(t, err)
	pool := C.NewPool(server.Host(), port)
	defer pool.Close()

	locker := C.NewLocker(pool, time.Minute)
	processor := NewProcessor(store, NewCalculator(store, 30, nil), 10, 2, 900, 3, locker)

	createTestTouch(t, store, "v1", model.ChannelDirect, testTimestamp-day)
	createTestConversion(t, store, "v1", 10, testTimestamp)

	// Lock held by an overlapping run.
	lockKey, _ := C.NewKey(batchLockPrefix, "")
	lock, err := locker.TryLock(lockKey)
	require.Nil(t, err)

	status, err := processor.ProcessPendingConversions(10)
	assert.Nil(t, status)
	assert.Equal(t, ErrBatchInProgress, err)

	lock.Release()
	status, err = processor.ProcessPendingConversions(10)
	assert.Nil(t, err)
	assert.Equal(t, 1, status.Processed)

	// Released after the run.
	lock, err = locker.TryLock(lockKey)
	assert.Nil(t, err)
	lock.Release()
}
