// Package convert provides overflow-safe integer conversions for settings.
package convert

import "math"

// IntToUint32Clamped converts v to uint32, clamping to [0, MaxUint32].
func IntToUint32Clamped(v int) uint32 {
	if v < 0 {
		return 0
	}
	if uint64(v) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// IntToUint32AtLeast converts v to uint32, raising it to floor when smaller.
func IntToUint32AtLeast(v int, floor uint32) uint32 {
	return max(IntToUint32Clamped(v), floor)
}

// IntToUint64Clamped converts v to uint64, clamping negative values to 0.
func IntToUint64Clamped(v int) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// IntToInt32Clamped converts v to int32, clamping to its bounds.
func IntToInt32Clamped(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
