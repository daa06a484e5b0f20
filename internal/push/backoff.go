package push

import (
	"math"
	"time"
)

// Backoff computes the wait before retry n as min(Max, Base*Multiplier^n).
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 5 * time.Second, Multiplier: 5, Max: 30 * time.Minute}
}

func (b Backoff) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if b.Base <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(b.Base) * math.Pow(mult, float64(retry))
	if b.Max > 0 && (math.IsInf(delay, 0) || math.IsNaN(delay) || delay >= float64(b.Max)) {
		return b.Max
	}
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
