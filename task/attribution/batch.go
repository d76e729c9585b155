package attribution

import (
	"net/http"
	"sync"

	C "multitouch/cache/redis"
	M "multitouch/model"
	"multitouch/model/model"
	U "multitouch/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrBatchInProgress - Another process holds the batch lock.
var ErrBatchInProgress = errors.New("attribution batch already in progress")

const batchLockPrefix = "attribution_batch_lock"

type BatchStatus struct {
	// Conversions attributed on this run.
	Processed int `json:"processed"`
	// No touches, not found and storage failures.
	Errors int `json:"errors"`
	// Unattributed conversions still claimable after the run.
	Pending int64 `json:"pending"`

	NoTouches int `json:"no_touches"`
	NotFound  int `json:"not_found"`
	Failed    int `json:"failed"`
	// Claimed by another worker.
	Skipped int `json:"skipped"`

	Lock sync.Mutex `json:"-"`
}

func (s *BatchStatus) set(scoreStatus string, failed, skipped bool) {
	s.Lock.Lock()
	defer s.Lock.Unlock()

	if skipped {
		s.Skipped++
		return
	}

	if failed {
		s.Failed++
		s.Errors++
		return
	}

	switch scoreStatus {
	case ScoreStatusAttributed:
		s.Processed++
	case ScoreStatusNoTouches:
		s.NoTouches++
		s.Errors++
	case ScoreStatusNotFound:
		s.NotFound++
		s.Errors++
	}
}

type Processor struct {
	store      M.Model
	calculator *Calculator

	batchSize        int
	numRoutines      int
	claimTTLSeconds  int64
	maxClaimAttempts int
	// Optional, runs are not serialized when nil.
	locker *C.Locker
}

func NewProcessor(store M.Model, calculator *Calculator, batchSize, numRoutines int,
	claimTTLSeconds int64, maxClaimAttempts int, locker *C.Locker) *Processor {

	return &Processor{
		store:            store,
		calculator:       calculator,
		batchSize:        batchSize,
		numRoutines:      numRoutines,
		claimTTLSeconds:  claimTTLSeconds,
		maxClaimAttempts: maxClaimAttempts,
		locker:           locker,
	}
}

// ProcessPendingConversions - Scores up to limit conversions which have no
// attribution results yet, oldest first. Failure of one conversion is counted
// and does not stop the run.
func (p *Processor) ProcessPendingConversions(limit int) (*BatchStatus, error) {
	if limit <= 0 {
		limit = p.batchSize
	}

	logCtx := log.WithFields(log.Fields{"limit": limit, "num_routines": p.numRoutines})

	if p.locker != nil {
		lockKey, _ := C.NewKey(batchLockPrefix, "")
		lock, err := p.locker.TryLock(lockKey)
		if err == C.ErrorLockNotAcquired {
			logCtx.Warn("Attribution batch already running. Skipped.")
			return nil, ErrBatchInProgress
		}
		if err != nil {
			logCtx.WithError(err).Error("Failed to acquire attribution batch lock.")
			return nil, errors.Wrap(err, "failed to acquire batch lock")
		}
		defer func() {
			if !lock.Release() {
				logCtx.Warn("Attribution batch lock expired before release.")
			}
		}()
	}

	staleClaimBefore := U.TimeNowUnix() - p.claimTTLSeconds
	conversions, errCode := p.store.GetPendingConversions(limit, staleClaimBefore, p.maxClaimAttempts)
	if errCode != http.StatusFound && errCode != http.StatusNotFound {
		return nil, errors.Wrap(ErrStorage, "failed to get pending conversions")
	}

	status := &BatchStatus{}
	conversionIDs := make([]string, 0, len(conversions))
	for i := range conversions {
		conversionIDs = append(conversionIDs, conversions[i].ID)
	}

	conversionIDChunks := U.GetStringListAsBatch(conversionIDs, p.numRoutines)
	for ci := range conversionIDChunks {
		var wg sync.WaitGroup
		wg.Add(len(conversionIDChunks[ci]))
		for _, conversionID := range conversionIDChunks[ci] {
			go p.processConversionWorker(conversionID, staleClaimBefore, &wg, status)
		}
		wg.Wait() // Wait till all conversions of the chunk are processed.
	}

	pending, errCode := p.store.GetPendingConversionsCount(staleClaimBefore, p.maxClaimAttempts)
	if errCode != http.StatusFound {
		logCtx.Error("Failed to get pending conversions count after batch.")
	}
	status.Pending = pending

	logCtx.WithFields(log.Fields{
		"selected":   len(conversionIDs),
		"processed":  status.Processed,
		"errors":     status.Errors,
		"no_touches": status.NoTouches,
		"skipped":    status.Skipped,
		"pending":    status.Pending,
	}).Info("Processed pending conversions.")

	return status, nil
}

func (p *Processor) processConversionWorker(conversionID string, staleClaimBefore int64,
	wg *sync.WaitGroup, status *BatchStatus) {

	defer wg.Done()

	scoreStatus, failed, skipped := p.processConversion(conversionID, staleClaimBefore)
	status.set(scoreStatus, failed, skipped)
}

// processConversion - Claims and scores a single conversion.
func (p *Processor) processConversion(conversionID string,
	staleClaimBefore int64) (scoreStatus string, failed, skipped bool) {

	logCtx := log.WithField("conversion_id", conversionID)

	defer func() {
		if r := recover(); r != nil {
			logCtx.WithField("panic", r).Error("Recovered from panic on scoring conversion.")
			p.updateClaimStatus(conversionID, model.ClaimStatusFailed)
			scoreStatus, failed, skipped = "", true, false
		}
	}()

	summary, claimed, err := p.claimAndScore(conversionID, staleClaimBefore)
	if err != nil {
		return "", true, false
	}
	if !claimed {
		logCtx.Info("Conversion claimed by another worker. Skipped.")
		return "", false, true
	}

	return summary.Status, false, false
}

// claimAndScore - Scores the conversion under a claim and stores the outcome
// on the claim. claimed is false when another worker holds a live claim.
func (p *Processor) claimAndScore(conversionID string,
	staleClaimBefore int64) (*ScoreSummary, bool, error) {

	logCtx := log.WithField("conversion_id", conversionID)

	claimed, errCode := p.store.ClaimConversion(conversionID, U.TimeNowUnix(),
		staleClaimBefore, p.maxClaimAttempts)
	if errCode != http.StatusAccepted {
		logCtx.Error("Failed to claim conversion.")
		return nil, false, errors.Wrapf(ErrStorage, "failed to claim conversion %s", conversionID)
	}
	if !claimed {
		return nil, false, nil
	}

	summary, err := p.calculator.ScoreConversion(conversionID, nil)
	if err != nil {
		logCtx.WithError(err).Error("Failed to score conversion.")
		p.updateClaimStatus(conversionID, model.ClaimStatusFailed)
		return nil, true, err
	}

	switch summary.Status {
	case ScoreStatusAttributed:
		p.updateClaimStatus(conversionID, model.ClaimStatusAttributed)
	case ScoreStatusNoTouches:
		p.updateClaimStatus(conversionID, model.ClaimStatusNoTouches)
	default:
		logCtx.WithField("score_status", summary.Status).Warn("Claimed conversion not scored.")
		p.updateClaimStatus(conversionID, model.ClaimStatusFailed)
	}

	return summary, true, nil
}

func (p *Processor) updateClaimStatus(conversionID, claimStatus string) {
	if errCode := p.store.UpdateConversionClaimStatus(conversionID, claimStatus); errCode != http.StatusAccepted {
		log.WithFields(log.Fields{"conversion_id": conversionID, "status": claimStatus}).
			Error("Failed to update conversion claim status.")
	}
}
