package model

import (
	"math"
	"sort"

	U "multitouch/util"
)

const (
	DefaultTimeDecayHalfLifeDays = 7.0
	DefaultPositionFirstWeight   = 0.4
	DefaultPositionLastWeight    = 0.4
)

// AttributionMethodConfig - Tunables of the weighted methods.
type AttributionMethodConfig struct {
	TimeDecayHalfLifeDays float64
	PositionFirstWeight   float64
	PositionLastWeight    float64
}

func DefaultAttributionMethodConfig() *AttributionMethodConfig {
	return &AttributionMethodConfig{
		TimeDecayHalfLifeDays: DefaultTimeDecayHalfLifeDays,
		PositionFirstWeight:   DefaultPositionFirstWeight,
		PositionLastWeight:    DefaultPositionLastWeight,
	}
}

// ApplyAttribution returns the credit of each touch id for the given method.
// Credits sum to 1 when touches is non empty. Unknown methods are treated as Last Touch.
func ApplyAttribution(method AttributionMethod, touches []Touch, conversionTime int64,
	conf *AttributionMethodConfig) map[string]float64 {

	if conf == nil {
		conf = DefaultAttributionMethodConfig()
	}

	if len(touches) == 0 {
		return map[string]float64{}
	}
	sortedTouches := SortTouchesByTimestamp(touches)

	switch method {
	case AttributionMethodFirstTouch:
		return getFirstTouch(sortedTouches)
	case AttributionMethodLinear:
		return getLinearTouch(sortedTouches)
	case AttributionMethodTimeDecay:
		return getTimeDecay(sortedTouches, conversionTime, conf.TimeDecayHalfLifeDays)
	case AttributionMethodPositionBased:
		return getPositionBased(sortedTouches, conf.PositionFirstWeight, conf.PositionLastWeight)
	default:
		return getLastTouch(sortedTouches)
	}
}

// SortTouchesByTimestamp returns a copy sorted by timestamp ascending.
// Touches with same timestamp keep the given order.
func SortTouchesByTimestamp(touches []Touch) []Touch {
	sortedTouches := make([]Touch, len(touches))
	copy(sortedTouches, touches)
	sort.SliceStable(sortedTouches, func(i, j int) bool {
		return sortedTouches[i].Timestamp < sortedTouches[j].Timestamp
	})
	return sortedTouches
}

func getZeroCredits(touches []Touch) map[string]float64 {
	credits := make(map[string]float64, len(touches))
	for i := range touches {
		credits[touches[i].ID] = 0
	}
	return credits
}

// returns full credit on the earliest touch.
func getFirstTouch(touches []Touch) map[string]float64 {
	credits := getZeroCredits(touches)
	credits[touches[0].ID] = 1
	return credits
}

// returns full credit on the latest touch.
func getLastTouch(touches []Touch) map[string]float64 {
	credits := getZeroCredits(touches)
	credits[touches[len(touches)-1].ID] = 1
	return credits
}

func getLinearTouch(touches []Touch) map[string]float64 {
	credits := make(map[string]float64, len(touches))
	weight := 1 / float64(len(touches))
	for i := range touches {
		credits[touches[i].ID] += weight
	}
	return credits
}

// calculateWeightForTimeDecay returns weight based on conversion time and touch time using following formula:
// y = pow(2, -x/halfLife), where x is number of days (fractional) the touch happened prior to the conversion.
// If touch 'x1' is halfLife days before touch 'x2' and 'x2' receives credit 'y', then 'x1' receives 'y/2'.
func calculateWeightForTimeDecay(conversionTime, touchTime int64, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultTimeDecayHalfLifeDays
	}
	days := float64(conversionTime-touchTime) / float64(U.SecsInADay)
	return math.Pow(2, -days/halfLifeDays)
}

func getTimeDecay(touches []Touch, conversionTime int64, halfLifeDays float64) map[string]float64 {
	weights := make([]float64, len(touches))
	totalWeight := 0.0
	for i := range touches {
		weights[i] = calculateWeightForTimeDecay(conversionTime, touches[i].Timestamp, halfLifeDays)
		totalWeight += weights[i]
	}

	credits := make(map[string]float64, len(touches))
	// Degenerate, i.e all touches are too old to carry weight.
	if totalWeight == 0 {
		return credits
	}

	for i := range touches {
		credits[touches[i].ID] += weights[i] / totalWeight
	}
	return credits
}

// getPositionBased gives first and last touches the configured weights and
// splits the rest equally among the touches in between.
func getPositionBased(touches []Touch, firstWeight, lastWeight float64) map[string]float64 {
	credits := make(map[string]float64, len(touches))

	switch len(touches) {
	case 1:
		credits[touches[0].ID] = 1
	case 2:
		credits[touches[0].ID] = 0.5
		credits[touches[1].ID] = 0.5
	default:
		middleWeight := (1 - firstWeight - lastWeight) / float64(len(touches)-2)
		for i := 1; i < len(touches)-1; i++ {
			credits[touches[i].ID] = middleWeight
		}
		credits[touches[0].ID] = firstWeight
		credits[touches[len(touches)-1].ID] = lastWeight
	}
	return credits
}

// GetCreditsSum - Total credit assigned, used to check conservation.
func GetCreditsSum(credits map[string]float64) float64 {
	var sum float64
	for _, credit := range credits {
		sum += credit
	}
	return sum
}
