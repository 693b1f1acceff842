package units

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedNumber is returned for numeric kinds the converter cannot read.
var ErrUnsupportedNumber = errors.New("unsupported numeric representation")

var (
	// SquareMetersPerPyeong converts m² into the Korean size unit.
	SquareMetersPerPyeong = decimal.RequireFromString("3.3058")

	// PrivateToSupplyRatio approximates the supply area of a unit when only
	// its private area is known.
	PrivateToSupplyRatio = decimal.RequireFromString("1.3")
)

// ToSizeUnit converts an area in m² into whole pyeong.
func ToSizeUnit(area any) (int64, error) {
	d, err := toDecimal(area)
	if err != nil {
		return 0, err
	}
	return roundHalfUp(d.Div(SquareMetersPerPyeong), 0).IntPart(), nil
}

// ToTempSizeUnit converts a private area into an estimated supply pyeong.
func ToTempSizeUnit(area any) (int64, error) {
	d, err := toDecimal(area)
	if err != nil {
		return 0, err
	}
	return roundHalfUp(d.Mul(PrivateToSupplyRatio).Div(SquareMetersPerPyeong), 0).IntPart(), nil
}

// Number is the set of kinds RoundDecimal accepts.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// RoundDecimal rounds value to places decimal digits, half away from zero,
// reading the value in base 10 instead of its binary form. Integers are
// returned unchanged.
func RoundDecimal[T Number](value T, places int32) T {
	switch v := any(value).(type) {
	case int, int32, int64:
		return value
	case float32:
		d := decimal.NewFromFloat32(v)
		f, _ := RoundDecimalValue(d, places).Float64()
		return T(f)
	case float64:
		d := decimal.NewFromFloat(v)
		f, _ := RoundDecimalValue(d, places).Float64()
		return T(f)
	default:
		// named types fall back on their underlying float64 value
		d := decimal.NewFromFloat(float64(value))
		f, _ := RoundDecimalValue(d, places).Float64()
		return T(f)
	}
}

// RoundDecimalValue rounds a decimal to places digits. The sign is stripped,
// the magnitude rounded half-up and the sign reapplied.
func RoundDecimalValue(d decimal.Decimal, places int32) decimal.Decimal {
	if -d.Exponent() <= places {
		return d
	}
	return roundHalfUp(d, places)
}

// DivideRounded returns sum/count rounded to the nearest integer.
func DivideRounded(sum, count int64) int64 {
	if count == 0 {
		return 0
	}
	neg := (sum < 0) != (count < 0)
	if sum < 0 {
		sum = -sum
	}
	if count < 0 {
		count = -count
	}
	q, r := sum/count, sum%count
	if 2*r >= count {
		q++
	}
	if neg {
		return -q
	}
	return q
}

func roundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	if d.IsNegative() {
		return d.Neg().Round(places).Neg()
	}
	return d.Round(places)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float32:
		if !finite(float64(n)) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrUnsupportedNumber, n)
		}
		return decimal.NewFromFloat32(n), nil
	case float64:
		if !finite(n) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrUnsupportedNumber, n)
		}
		return decimal.NewFromFloat(n), nil
	case decimal.Decimal:
		return n, nil
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, fmt.Errorf("%w: nil decimal", ErrUnsupportedNumber)
		}
		return *n, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrUnsupportedNumber, n)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", ErrUnsupportedNumber, v)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
