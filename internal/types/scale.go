package types

import "math"

// Round2 rounds to two decimals.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// ToTen maps a 0-1 fraction to the 0-10 display scale.
func ToTen(v float64) float64 { return Round2(v * 10) }

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
