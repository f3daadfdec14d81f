package clip

import (
	"fmt"
	"math"
)

// Rational is an exact duration in seconds, stored as num/den.
// Clip timespans use Rational so that cumulative offsets (concatenation,
// compositing start times) never accumulate floating point drift.
type Rational struct {
	num, den int64
}

// Common denominators used by factory helpers.
const floatDenominator = 1_000_000 // microsecond precision for FromSeconds

// NewRational returns num/den in lowest terms. A zero denominator panics:
// it is always a programming error, never input data.
func NewRational(num, den int64) Rational {
	if den == 0 {
		panic("clip: rational with zero denominator")
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs64(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Rational{num: num, den: den}
}

// Seconds returns a whole number of seconds as a Rational.
func Seconds(s int64) Rational {
	return Rational{num: s, den: 1}
}

// FromSeconds converts float seconds to a Rational with microsecond
// precision. Prefer NewRational when exact values are known (e.g. 1/30).
func FromSeconds(s float64) Rational {
	return NewRational(int64(math.Round(s*floatDenominator)), floatDenominator)
}

// Seconds returns the value as float seconds.
func (r Rational) Seconds() float64 {
	if r.den == 0 {
		return 0
	}
	return float64(r.num) / float64(r.den)
}

// Num returns the numerator of the reduced fraction.
func (r Rational) Num() int64 { return r.num }

// Den returns the denominator of the reduced fraction (0 for the zero value).
func (r Rational) Den() int64 { return r.den }

func (r Rational) norm() Rational {
	if r.den == 0 {
		return Rational{num: 0, den: 1}
	}
	return r
}

// Add returns r + o exactly.
func (r Rational) Add(o Rational) Rational {
	r, o = r.norm(), o.norm()
	return NewRational(r.num*o.den+o.num*r.den, r.den*o.den)
}

// Sub returns r - o exactly.
func (r Rational) Sub(o Rational) Rational {
	r, o = r.norm(), o.norm()
	return NewRational(r.num*o.den-o.num*r.den, r.den*o.den)
}

// Mul returns r * o exactly.
func (r Rational) Mul(o Rational) Rational {
	r, o = r.norm(), o.norm()
	return NewRational(r.num*o.num, r.den*o.den)
}

// DivFloat returns r scaled by 1/f with microsecond precision. Used by
// time-warp effects where the factor is a float.
func (r Rational) DivFloat(f float64) Rational {
	return FromSeconds(r.Seconds() / f)
}

// MulInt returns r * n exactly.
func (r Rational) MulInt(n int64) Rational {
	r = r.norm()
	return NewRational(r.num*n, r.den)
}

// Cmp returns -1, 0 or 1 comparing r to o.
func (r Rational) Cmp(o Rational) int {
	d := r.Sub(o)
	switch {
	case d.num < 0:
		return -1
	case d.num > 0:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether r equals zero.
func (r Rational) IsZero() bool { return r.num == 0 }

// IsNegative reports whether r is below zero.
func (r Rational) IsNegative() bool { return r.norm().num < 0 }

func (r Rational) String() string {
	r = r.norm()
	if r.den == 1 {
		return fmt.Sprintf("%ds", r.num)
	}
	return fmt.Sprintf("%d/%ds", r.num, r.den)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// TimeSpan places a clip on its own local timeline. Start is always >= 0.
// Unbounded marks procedurally generated clips with no intrinsic end; their
// effective duration is inherited from the composition they are used in.
type TimeSpan struct {
	Start     Rational
	Duration  Rational
	Unbounded bool
}

// NewTimeSpan validates and builds a bounded span starting at zero.
func NewTimeSpan(duration Rational) (TimeSpan, error) {
	if duration.IsNegative() {
		return TimeSpan{}, fmt.Errorf("timespan: negative duration %s", duration)
	}
	return TimeSpan{Duration: duration}, nil
}

// UnboundedSpan is the span of clips with no intrinsic end.
func UnboundedSpan() TimeSpan {
	return TimeSpan{Unbounded: true}
}

// End returns Start + Duration. Meaningless for unbounded spans.
func (s TimeSpan) End() Rational {
	return s.Start.Add(s.Duration)
}

// Contains reports whether local time t (seconds) falls inside [0, Duration).
// Unbounded spans contain every t >= 0.
func (s TimeSpan) Contains(t float64) bool {
	if t < 0 {
		return false
	}
	if s.Unbounded {
		return true
	}
	return t < s.Duration.Seconds()
}
