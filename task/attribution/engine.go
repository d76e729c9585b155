package attribution

import (
	"net/http"
	"time"

	C "multitouch/cache/redis"
	"multitouch/config"
	M "multitouch/model"
	"multitouch/model/model"
	U "multitouch/util"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidConversion = errors.New("invalid conversion")

// ConversionRecord - Stored conversion with the outcome of its synchronous scoring.
type ConversionRecord struct {
	ConversionID string        `json:"conversion_id"`
	Attribution  *ScoreSummary `json:"attribution"`
}

// Engine - Entry point of the attribution operations. Constructed once per
// process and passed to the callers.
type Engine struct {
	store     M.Model
	processor *Processor
	reporter  *Reporter

	touchRetentionDays int
}

// NewEngine - Report caching and the batch lock are enabled only when a
// redis pool is given.
func NewEngine(store M.Model, conf *config.Configuration, redisPool *redis.Pool) *Engine {
	var cache *C.Cache
	var locker *C.Locker
	if redisPool != nil {
		cache = C.New(redisPool)
		locker = C.NewLocker(redisPool, time.Duration(conf.BatchLockTTLSeconds)*time.Second)
	}

	calculator := NewCalculator(store, conf.LookbackDays, conf.AttributionMethodConfig())
	return &Engine{
		store: store,
		processor: NewProcessor(store, calculator, conf.BatchSize, conf.NumRoutines,
			conf.ClaimTTLSeconds, conf.MaxClaimAttempts, locker),
		reporter:           NewReporter(store, cache, conf.ReportCacheTTLSeconds),
		touchRetentionDays: conf.TouchRetentionDays,
	}
}

// RecordTouch - Stores the touch with its channel group resolved. Returns the
// touch id, empty on failure.
func (e *Engine) RecordTouch(visitorID string, event *model.TouchEvent) (string, int) {
	if !U.IsNonEmptyKey(visitorID) || event == nil {
		log.WithField("visitor_id", visitorID).Error("Invalid touch on record.")
		return "", http.StatusBadRequest
	}

	touch, errCode := e.store.CreateTouch(model.NewTouchFromEvent(visitorID, event))
	if errCode != http.StatusCreated {
		return "", errCode
	}

	return touch.ID, http.StatusCreated
}

// RecordConversion - Stores the conversion and scores it synchronously with
// all methods. The record is returned along with the error when only the
// scoring failed, the pending batch retries it. Attribution is nil when a
// batch run claimed the conversion first.
func (e *Engine) RecordConversion(visitorID, conversionType string,
	data *model.ConversionData) (*ConversionRecord, error) {

	logCtx := log.WithFields(log.Fields{"visitor_id": visitorID, "type": conversionType})

	conversion, err := model.NewConversion(visitorID, conversionType, data)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConversion, err.Error())
	}

	conversion, errCode := e.store.CreateConversion(conversion)
	if errCode == http.StatusBadRequest {
		return nil, errors.Wrap(ErrInvalidConversion, "visitor id and type are required")
	}
	if errCode != http.StatusCreated {
		return nil, errors.Wrap(ErrStorage, "failed to create conversion")
	}

	record := &ConversionRecord{ConversionID: conversion.ID}
	// Claimed like on the batch path, so a concurrent run skips it.
	staleClaimBefore := U.TimeNowUnix() - e.processor.claimTTLSeconds
	summary, claimed, err := e.processor.claimAndScore(conversion.ID, staleClaimBefore)
	if err != nil {
		logCtx.WithError(err).WithField("conversion_id", conversion.ID).
			Error("Failed to score conversion on record.")
		return record, err
	}
	if !claimed {
		logCtx.WithField("conversion_id", conversion.ID).Info("Conversion claimed by a batch run before scoring.")
		return record, nil
	}
	record.Attribution = summary

	return record, nil
}

func (e *Engine) ProcessPendingConversions(limit int) (*BatchStatus, error) {
	return e.processor.ProcessPendingConversions(limit)
}

// GetReport - Unknown method ids are rejected with ErrInvalidMethod.
func (e *Engine) GetReport(method string, dateRange model.DateRange) (*model.AttributionReport, error) {
	attributionMethod, err := model.ParseAttributionMethod(method)
	if err != nil {
		return nil, err
	}

	return e.reporter.GetReport(attributionMethod, dateRange)
}

func (e *Engine) CompareModels(dateRange model.DateRange) (map[model.AttributionMethod][]model.ChannelPerformance, error) {
	return e.reporter.CompareModels(dateRange)
}

// PurgeExpiredTouches - Deletes touches older than the retention period,
// regardless of their links to conversions.
func (e *Engine) PurgeExpiredTouches() (int64, error) {
	before := U.TimeNowUnix() - U.DaysToSeconds(e.touchRetentionDays)

	deleted, errCode := e.store.DeleteTouchesBeforeTimestamp(before)
	if errCode != http.StatusAccepted {
		return 0, errors.Wrap(ErrStorage, "failed to delete expired touches")
	}

	log.WithFields(log.Fields{"before": before, "deleted": deleted}).Info("Purged expired touches.")
	return deleted, nil
}
