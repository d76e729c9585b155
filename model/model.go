package model

import (
	"multitouch/model/model"
)

// Model - Interface of all methods to be implemented by the stores.
// Methods return an http status code as errCode, like the rest of the store layer.
type Model interface {
	// touch
	CreateTouch(touch *model.Touch) (*model.Touch, int)
	GetTouchesByVisitorIDInRange(visitorID string, from, to int64) ([]model.Touch, int)
	DeleteTouchesBeforeTimestamp(timestamp int64) (int64, int)

	// conversion
	CreateConversion(conversion *model.Conversion) (*model.Conversion, int)
	GetConversion(conversionID string) (*model.Conversion, int)
	GetPendingConversions(limit int, staleClaimBefore int64, maxAttempts int) ([]model.Conversion, int)
	GetPendingConversionsCount(staleClaimBefore int64, maxAttempts int) (int64, int)

	// conversion claim
	ClaimConversion(conversionID string, claimedAt, staleClaimBefore int64, maxAttempts int) (bool, int)
	UpdateConversionClaimStatus(conversionID, status string) int
	GetConversionClaim(conversionID string) (*model.ConversionClaim, int)

	// touch conversion
	ReplaceTouchConversions(conversionID string, touchIDs []string) int
	GetTouchIDsByConversionID(conversionID string) ([]string, int)

	// attribution result
	ReplaceAttributionResults(conversionID string, method model.AttributionMethod, credits map[string]float64) int
	GetAttributionResults(conversionID string, method model.AttributionMethod) ([]model.AttributionResult, int)

	// attribution report
	GetChannelPerformance(method model.AttributionMethod, from, to int64) ([]model.ChannelPerformance, int)
	GetConversionSummary(method model.AttributionMethod, from, to int64) (*model.ConversionSummary, int)
}
