package monitor

import "testing"

func TestNonNegativeDelta(t *testing.T) {
	cases := []struct {
		newVal, oldVal, want int64
	}{
		{100, 50, 50},
		{50, 50, 0},
		{10, 50, 0}, // provider counter reset across a restart
		{0, 0, 0},
	}
	for _, c := range cases {
		if got := nonNegativeDelta(c.newVal, c.oldVal); got != c.want {
			t.Errorf("nonNegativeDelta(%d, %d) = %d, want %d", c.newVal, c.oldVal, got, c.want)
		}
	}
}
