package util

import (
	"time"

	"github.com/jinzhu/now"
)

// Datetime related utility functions.
// General convention for date Functions - suffix Z if utc based, no suffix if localTime.
const SecsInADay = int64(86400)

// TimeNowZ Return current time in UTC. Should be used everywhere to avoid local timezone.
func TimeNowZ() time.Time {
	return time.Now().UTC()
}

func TimeNowUnix() int64 {
	return TimeNowZ().Unix()
}

// DaysToSeconds converts a number of days to seconds.
func DaysToSeconds(days int) int64 {
	return int64(days) * SecsInADay
}

// GetBeginningOfDayTimestamp - Unix timestamp of 00:00:00 of the given time's day, in its location.
func GetBeginningOfDayTimestamp(t time.Time) int64 {
	return now.New(t).BeginningOfDay().Unix()
}

// GetEndOfDayTimestamp - Unix timestamp of the last second of the given time's day, in its location.
func GetEndOfDayTimestamp(t time.Time) int64 {
	return now.New(t).EndOfDay().Unix()
}
