package clip

import "testing"

func TestRationalArithmetic(t *testing.T) {
	a := NewRational(1, 3)
	b := NewRational(1, 6)

	if got := a.Add(b); got.Cmp(NewRational(1, 2)) != 0 {
		t.Errorf("1/3 + 1/6 = %s, want 1/2s", got)
	}
	if got := a.Sub(b); got.Cmp(NewRational(1, 6)) != 0 {
		t.Errorf("1/3 - 1/6 = %s, want 1/6s", got)
	}
	if got := a.Mul(NewRational(3, 1)); got.Cmp(Seconds(1)) != 0 {
		t.Errorf("1/3 * 3 = %s, want 1s", got)
	}
	if got := NewRational(2, 4); got.Num() != 1 || got.Den() != 2 {
		t.Errorf("2/4 not reduced: %d/%d", got.Num(), got.Den())
	}
}

func TestRationalNoDriftAccumulation(t *testing.T) {
	// Summing 1/30 thirty times must be exactly 1 second.
	frame := NewRational(1, 30)
	var sum Rational
	for i := 0; i < 30; i++ {
		sum = sum.Add(frame)
	}
	if sum.Cmp(Seconds(1)) != 0 {
		t.Errorf("30 * 1/30 = %s, want exactly 1s", sum)
	}
}

func TestFromSeconds(t *testing.T) {
	r := FromSeconds(2.5)
	if r.Cmp(NewRational(5, 2)) != 0 {
		t.Errorf("FromSeconds(2.5) = %s, want 5/2s", r)
	}
	if got := r.Seconds(); got != 2.5 {
		t.Errorf("Seconds() = %v, want 2.5", got)
	}
}

func TestTimeSpanContains(t *testing.T) {
	span, err := NewTimeSpan(Seconds(2))
	if err != nil {
		t.Fatalf("NewTimeSpan: %v", err)
	}
	if !span.Contains(0) {
		t.Error("span should contain t=0")
	}
	if !span.Contains(1.999) {
		t.Error("span should contain t=1.999")
	}
	if span.Contains(2.0) {
		t.Error("span must not contain t=duration (exclusive upper bound)")
	}
	if span.Contains(-0.001) {
		t.Error("span must not contain negative t")
	}
	if !UnboundedSpan().Contains(1e9) {
		t.Error("unbounded span should contain any t >= 0")
	}
}

func TestNegativeDurationRejected(t *testing.T) {
	if _, err := NewTimeSpan(Seconds(-1)); err == nil {
		t.Error("expected error for negative duration")
	}
}
