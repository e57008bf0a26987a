package media

import "math"

// clampLevel restricts a volume level to the 0-100 scale.
func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}

// gain converts a 0-100 level into a linear amplitude factor using a squared
// perceptual curve, so the control feels even across its range. Level 100
// maps to unity gain and level 0 to silence.
func gain(level int) float64 {
	pct := float64(clampLevel(level)) / 100
	return pct * pct
}

// gainExponent expresses gain(level) as a base-2 exponent for use with the
// beep volume effect, which scales amplitude by Base**Volume.
func gainExponent(level int) float64 {
	g := gain(level)
	if g <= 0 {
		return 0 // callers must use the Silent flag for level 0
	}
	return math.Log2(g)
}
