package scheduler

import "time"

// backoff doubles the retry delay per consecutive failure up to ceiling.
type backoff struct {
	base     time.Duration
	ceiling  time.Duration
	failures int
}

func (b *backoff) next() time.Duration {
	delay := b.base
	for i := 1; i < b.failures && delay < b.ceiling; i++ {
		delay *= 2
	}
	if b.ceiling > 0 && delay > b.ceiling {
		delay = b.ceiling
	}
	return delay
}

func (b *backoff) fail() time.Duration {
	b.failures++
	return b.next()
}

func (b *backoff) reset() {
	b.failures = 0
}
