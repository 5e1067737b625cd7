package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"crypto-signal-engine/internal/logging"
)

// maxSourceErrors is the consecutive-error threshold after which a source
// is taken out of rotation until ResetErrors is called.
const maxSourceErrors = 5

// ErrSourceUnavailable is returned when a source has exceeded its error
// threshold and is waiting for an administrative reset.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrSymbolNotSupported is returned when a source has no mapping for the
// requested symbol.
var ErrSymbolNotSupported = errors.New("symbol not supported by source")

// Source is a provider of periodic price snapshots for an instrument.
type Source interface {
	// Fetch returns the freshest tick for symbol, honoring the source's
	// rate limit. It returns ErrSourceUnavailable when the source is
	// disabled by its error counter.
	Fetch(ctx context.Context, symbol string) (*Tick, error)

	Name() string
	RateLimit() time.Duration
	IsAvailable() bool
	ResetErrors()
	ErrorCount() int
}

// sourceState carries the error counter and rate limiter shared by every
// source implementation. The limiter enforces minimum inter-call spacing
// per source across the whole process.
type sourceState struct {
	name    string
	limiter *rate.Limiter
	spacing time.Duration

	mu         sync.Mutex
	errorCount int
	available  bool
}

func newSourceState(name string, spacing time.Duration) sourceState {
	return sourceState{
		name:      name,
		spacing:   spacing,
		limiter:   rate.NewLimiter(rate.Every(spacing), 1),
		available: true,
	}
}

func (s *sourceState) Name() string             { return s.name }
func (s *sourceState) RateLimit() time.Duration { return s.spacing }

func (s *sourceState) IsAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *sourceState) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCount
}

// ResetErrors clears the error counter and puts the source back in
// rotation.
func (s *sourceState) ResetErrors() {
	s.mu.Lock()
	s.errorCount = 0
	s.available = true
	s.mu.Unlock()
	logging.Default().WithComponent("source").Info("Errors reset for source", "source", s.name)
}

// wait blocks until the source's minimum inter-call spacing has elapsed or
// the context is cancelled.
func (s *sourceState) wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// recordSuccess resets the consecutive-error counter.
func (s *sourceState) recordSuccess() {
	s.mu.Lock()
	s.errorCount = 0
	s.available = true
	s.mu.Unlock()
}

// recordError increments the counter and disables the source once it
// crosses the threshold.
func (s *sourceState) recordError(err error) {
	s.mu.Lock()
	s.errorCount++
	crossed := s.errorCount >= maxSourceErrors && s.available
	if crossed {
		s.available = false
	}
	count := s.errorCount
	s.mu.Unlock()

	log := logging.Default().WithComponent("source")
	log.Error("Source request failed", "source", s.name, "error", err, "error_count", count)
	if crossed {
		log.Warn("Source marked unavailable after repeated errors", "source", s.name, "error_count", count)
	}
}
