package proto

import "math"

// Quantization bounds for snapshot encoding. Positions saturate, angles wrap,
// velocities are offset so negative components survive the unsigned field.
const (
	PosXMax = 65535
	PosYMax = 38864

	// AngleScale converts degrees to wire units (tenths of a degree).
	AngleScale = 10
	angleUnits = 3600

	// VelBias recenters signed velocity components into uint16 range. A
	// field holding exactly VelBias means zero (or unknown) velocity.
	VelBias = 32768
)

// QuantizePos clamps a world coordinate into [0, max] and rounds to the
// nearest integer.
func QuantizePos(v float64, max uint16) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= float64(max) {
		return max
	}
	return uint16(math.Round(v))
}

// QuantizeAngle converts degrees to tenths of a degree, wrapped into
// [0, 3600).
func QuantizeAngle(deg float64) uint16 {
	units := math.Round(deg * AngleScale)
	w := math.Mod(units, angleUnits)
	if w < 0 {
		w += angleUnits
	}
	return uint16(w)
}

// DequantizeAngle is the inverse of QuantizeAngle up to wrapping.
func DequantizeAngle(units uint16) float64 {
	return float64(units) / AngleScale
}

// QuantizeVel bias-encodes a signed velocity component. Components outside
// the representable range saturate at the field limits.
func QuantizeVel(v float64) uint16 {
	biased := math.Round(v) + VelBias
	if biased <= 0 {
		return 0
	}
	if biased >= math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(biased)
}

// DequantizeVel recovers the signed component from a bias-encoded field.
func DequantizeVel(field uint16) float64 {
	return float64(field) - VelBias
}
