package supervisor

import (
	"math/rand"
	"time"
)

// BackoffConfig bounds the exponential reconnect delay.
type BackoffConfig struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // fraction of the computed delay to randomize, e.g. 0.2
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Min <= 0 {
		c.Min = 500 * time.Millisecond
	}
	if c.Max <= 0 {
		c.Max = 30 * time.Second
	}
	if c.Factor <= 1 {
		c.Factor = 2
	}
	return c
}

// Backoff tracks the current reconnect delay across subscriber-loop
// failures, resetting to Min whenever the loop runs cleanly.
type Backoff struct {
	cfg     BackoffConfig
	current time.Duration
	rnd     *rand.Rand
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	cfg = cfg.withDefaults()
	return &Backoff{cfg: cfg, current: cfg.Min, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NextDelay returns the delay to wait before the next reconnect attempt and
// advances the internal state toward Max.
func (b *Backoff) NextDelay() time.Duration {
	delay := b.current
	b.current = time.Duration(float64(b.current) * b.cfg.Factor)
	if b.current > b.cfg.Max {
		b.current = b.cfg.Max
	}
	if b.cfg.Jitter > 0 {
		spread := float64(delay) * b.cfg.Jitter
		delay = delay + time.Duration(b.rnd.Float64()*2*spread-spread)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

// Reset restores the delay to Min after a clean subscriber-loop run.
func (b *Backoff) Reset() {
	b.current = b.cfg.Min
}
