package ratelimit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Limiter enforces a minimum interval between successive calls to a throttled API.
// Callers are serialized: each one waits out whatever remains of the interval
// measured from the previous caller's post-wait timestamp.
type Limiter struct {
	minInterval time.Duration

	// slot guards last; it is a channel so waiting for it honours ctx.
	slot chan struct{}
	last time.Time

	now    func() time.Time
	logger logrus.FieldLogger
}

type Option func(*Limiter)

func WithLogger(l logrus.FieldLogger) Option {
	return func(lim *Limiter) { lim.logger = l }
}

// New builds a limiter allowing requestsPerSecond calls per second. Non-positive values mean 1.
func New(requestsPerSecond float64, opts ...Option) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	l := &Limiter{
		minInterval: time.Duration(float64(time.Second) / requestsPerSecond),
		slot:        make(chan struct{}, 1),
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) MinInterval() time.Duration { return l.minInterval }

// WaitIfNeeded blocks until minInterval has elapsed since the last permitted call,
// then records the current time as the last call.
func (l *Limiter) WaitIfNeeded(ctx context.Context) error {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.slot }()

	if !l.last.IsZero() {
		if wait := l.minInterval - l.now().Sub(l.last); wait > 0 {
			if l.logger != nil {
				l.logger.WithField("wait_ms", wait.Milliseconds()).Debug("rate limiting: waiting before next API call")
			}
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
	}

	l.last = l.now()
	return nil
}

// Reset clears the last call time so the next call proceeds immediately.
func (l *Limiter) Reset() {
	l.slot <- struct{}{}
	l.last = time.Time{}
	<-l.slot
}
