package domain

import "fmt"

// ValidFrequencies are the minute frequencies the upstream pricehistory
// endpoint accepts.
var ValidFrequencies = []int{1, 5, 10, 15, 30}

// ValidateFrequency checks that a timeframe is fetchable from the API.
// Coarser timeframes (e.g. 3m) are produced locally by aggregation.
func ValidateFrequency(minutes int) error {
	for _, f := range ValidFrequencies {
		if minutes == f {
			return nil
		}
	}
	return fmt.Errorf("invalid time interval %d, valid values: %v", minutes, ValidFrequencies)
}

// TimeframeKey is the directory component used for a timeframe, e.g. "5m".
func TimeframeKey(minutes int) string {
	return fmt.Sprintf("%dm", minutes)
}
