package model

import (
	"errors"
	"fmt"
	"time"

	U "multitouch/util"
)

// AttributionMethod - Credit assignment rule applied to the touches of a conversion.
type AttributionMethod string

const (
	AttributionMethodFirstTouch    AttributionMethod = "First_Touch"
	AttributionMethodLastTouch     AttributionMethod = "Last_Touch"
	AttributionMethodLinear        AttributionMethod = "Linear"
	AttributionMethodTimeDecay     AttributionMethod = "Time_Decay"
	AttributionMethodPositionBased AttributionMethod = "Position_Based"
)

// AttributionMethods - All supported methods, in reporting order.
var AttributionMethods = []AttributionMethod{
	AttributionMethodFirstTouch,
	AttributionMethodLastTouch,
	AttributionMethodLinear,
	AttributionMethodTimeDecay,
	AttributionMethodPositionBased,
}

var ErrInvalidAttributionMethod = errors.New("invalid attribution method")

func (m AttributionMethod) IsValid() bool {
	for _, method := range AttributionMethods {
		if m == method {
			return true
		}
	}
	return false
}

// ParseAttributionMethod - Strict lookup, unknown ids are rejected.
func ParseAttributionMethod(method string) (AttributionMethod, error) {
	attributionMethod := AttributionMethod(method)
	if !attributionMethod.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidAttributionMethod, method)
	}
	return attributionMethod, nil
}

// GetAttributionMethodOrDefault - Lenient lookup, unknown ids fall back to Last Touch.
// Only for reading method ids stored by older writers. Scoring and reports
// take ParseAttributionMethod and reject unknown ids.
func GetAttributionMethodOrDefault(method string) AttributionMethod {
	attributionMethod := AttributionMethod(method)
	if !attributionMethod.IsValid() {
		return AttributionMethodLastTouch
	}
	return attributionMethod
}

// AttributionResult - Credit of a touch towards a conversion under a method.
type AttributionResult struct {
	ID           string    `gorm:"primary_key:true;type:varchar(64)" json:"id"`
	ConversionID string    `gorm:"not null;unique_index:attribution_results_conversion_touch_method_idx;index:attribution_results_conversion_method_idx" json:"conversion_id"`
	TouchID      string    `gorm:"not null;unique_index:attribution_results_conversion_touch_method_idx" json:"touch_id"`
	Method       string    `gorm:"not null;unique_index:attribution_results_conversion_touch_method_idx;index:attribution_results_conversion_method_idx" json:"method"`
	Credit       float64   `gorm:"not null" json:"credit"`
	CreatedAt    time.Time `json:"created_at"`
}

func (AttributionResult) TableName() string {
	return "attribution_results"
}

// DateRange - Inclusive range of unix timestamps in seconds.
type DateRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// NewDateRange - Range from the beginning of from's day to the end of to's day.
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{
		From: U.GetBeginningOfDayTimestamp(from),
		To:   U.GetEndOfDayTimestamp(to),
	}
}

func (r DateRange) IsValid() bool {
	return r.From > 0 && r.To >= r.From
}

// ChannelPerformance - Credits of a channel under one method.
type ChannelPerformance struct {
	Channel     string  `json:"channel"`
	TotalCredit float64 `json:"total_credit"`
	// sum(credit * conversion value)
	WeightedValue   float64 `json:"weighted_value"`
	ConversionCount int64   `json:"conversion_count"`
}

// ConversionSummary - Channel agnostic stats of conversions in a range.
type ConversionSummary struct {
	TotalConversions        int64   `json:"total_conversions"`
	TotalValue              float64 `json:"total_value"`
	AttributedConversions   int64   `json:"attributed_conversions"`
	AttributedValue         float64 `json:"attributed_value"`
	UnattributedConversions int64   `json:"unattributed_conversions"`
}

type AttributionReport struct {
	Method    AttributionMethod    `json:"method"`
	DateRange DateRange            `json:"date_range"`
	Channels  []ChannelPerformance `json:"channels"`
	Summary   ConversionSummary    `json:"summary"`
}
