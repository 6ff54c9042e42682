// Package sampler drives the cistern monitor continuously until its context
// is cancelled.
package sampler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/cistern"
)

// Defaults for the sampling cadence.
const (
	DefaultInterval    = 5 * time.Second
	DefaultReadTimeout = time.Second
)

// Measurer is the monitor entry point the sampler drives.
type Measurer interface {
	Measure(ctx context.Context) (cistern.Snapshot, error)
}

// Stats counts sampler outcomes since start.
type Stats struct {
	OK     uint64
	Failed uint64
}

// Sampler calls Measure once per tick. Hooks must be registered before Run.
type Sampler struct {
	monitor     Measurer
	interval    time.Duration
	readTimeout time.Duration

	onSample []func(cistern.Snapshot)
	onError  []func(error)

	ok     atomic.Uint64
	failed atomic.Uint64
}

// New creates a sampler. Non-positive durations fall back to the defaults.
func New(monitor Measurer, interval, readTimeout time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Sampler{
		monitor:     monitor,
		interval:    interval,
		readTimeout: readTimeout,
	}
}

// OnSample registers fn to receive every successful snapshot.
func (s *Sampler) OnSample(fn func(cistern.Snapshot)) {
	s.onSample = append(s.onSample, fn)
}

// OnError registers fn to receive every failed measurement.
func (s *Sampler) OnError(fn func(error)) {
	s.onError = append(s.onError, fn)
}

// Stats returns the outcome counters.
func (s *Sampler) Stats() Stats {
	return Stats{OK: s.ok.Load(), Failed: s.failed.Load()}
}

// Run measures immediately and then on every interval tick until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.RunWithTick(ctx, ticker.C)
}

// RunWithTick is Run with an injected tick source.
func (s *Sampler) RunWithTick(ctx context.Context, tick <-chan time.Time) {
	log.Info().
		Dur("interval", s.interval).
		Dur("read_timeout", s.readTimeout).
		Msg("starting cistern sampler")

	if ctx.Err() == nil {
		s.sampleOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping cistern sampler")
			return
		case <-tick:
			// A tick and the cancellation can be ready together.
			if ctx.Err() != nil {
				log.Info().Msg("stopping cistern sampler")
				return
			}
			s.sampleOnce(ctx)
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	snap, err := s.monitor.Measure(readCtx)
	cancel()

	if err != nil {
		s.failed.Add(1)
		log.Error().Err(err).Msg("failed to measure cistern")
		for _, fn := range s.onError {
			fn(err)
		}
		return
	}

	s.ok.Add(1)
	log.Debug().
		Float64("height", snap.Height).
		Float64("percentage", snap.Percentage*100).
		Float64("volume", snap.Volume).
		Msg("measured cistern")
	for _, fn := range s.onSample {
		fn(snap)
	}
}
