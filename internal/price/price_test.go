package price

import (
	"fmt"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"8.27", 8.27, true},
		{"$8.27", 8.27, true},
		{"₦15,000", 15000, true},
		{"1.234.56", 1234.56, true},
		{"1.234.567.89", 1234567.89, true},
		{"", 0, false},
		{"   ", 0, false},
		{"N/A", 0, false},
		{"na", 0, false},
		{"non-member price", 0, false},
		{"Non Member Price", 0, false},
		{"nonmember", 0, false},
		{"call for pricing", 0, false},
		{"-5.00", 0, false},
		{"USD 12", 12, true},
		{"0", 0, true},
	}
	for _, c := range cases {
		got, ok := Parse(c.in)
		if ok != c.ok {
			t.Errorf("Parse(%q) ok=%v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Parse(%q)=%v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, n := range []float64{0, 0.01, 1, 8.27, 99.99, 1234.56, 100000} {
		in := fmt.Sprintf("$%.2f", n)
		got, ok := Parse(in)
		if !ok {
			t.Fatalf("Parse(%q) unexpectedly absent", in)
		}
		if math.Abs(got-n) > 1e-9 {
			t.Errorf("Parse(%q)=%v, want %v", in, got, n)
		}
	}
}

func TestToInteger(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{" 10 ", 10, true},
		{"2.9", 2, true},
		{"-1.5", -1, true},
		{"", 0, false},
		{"one", 0, false},
	}
	for _, c := range cases {
		got, ok := ToInteger(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ToInteger(%q)=(%d,%v), want (%d,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(10.005); got != 10.01 {
		t.Errorf("Round2(10.005)=%v, want 10.01", got)
	}
	if got := Round2(15000.0 / 1500.0); got != 10.0 {
		t.Errorf("Round2(10)=%v, want 10", got)
	}
}
