package util

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

func GetUUID() string {
	return uuid.New().String()
}

func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// IsNonEmptyKey - Checks for empty string keys after trimming.
func IsNonEmptyKey(key string) bool {
	return strings.TrimSpace(key) != ""
}

func StringValueIn(value string, list []string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// IsContainsAnySubString - Checks whether src contains any of the given sub strings.
func IsContainsAnySubString(src string, sub ...string) bool {
	for _, s := range sub {
		if s != "" && strings.Contains(src, s) {
			return true
		}
	}
	return false
}

// FloatEquals compares floats with the given absolute tolerance.
func FloatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// GetStringListAsBatch - Splits string list into multiple lists.
func GetStringListAsBatch(list []string, batchSize int) [][]string {
	batchList := make([][]string, 0, 0)
	if batchSize <= 0 {
		batchSize = 1
	}

	listLen := len(list)
	for i := 0; i < listLen; {
		next := i + batchSize
		if next > listLen {
			next = listLen
		}

		batchList = append(batchList, list[i:next])
		i = next
	}

	return batchList
}
