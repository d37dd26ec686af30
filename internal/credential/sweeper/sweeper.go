// Package sweeper runs the periodic expiry pass over active credentials.
// Reads already apply expiry lazily; the sweeper exists so past-due
// credentials that nobody reads still converge to Expired and release the
// member's active slot.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Expirer is the subset of the lifecycle service the sweeper drives.
type Expirer interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// Sweeper periodically expires past-due active credentials.
type Sweeper struct {
	expirer   Expirer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithInterval sets the time between sweep passes.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// WithBatchSize sets the maximum number of credentials expired per pass.
func WithBatchSize(size int) Option {
	return func(s *Sweeper) {
		s.batchSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// New creates a sweeper. Call Start to begin sweeping.
func New(expirer Expirer, opts ...Option) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Sweeper{
		expirer:   expirer,
		interval:  time.Minute,
		batchSize: 500,
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drains due credentials in batches until a pass comes back empty.
func (s *Sweeper) sweep() {
	for {
		n, err := s.expirer.SweepExpired(s.ctx, s.batchSize)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("expiry sweep failed", "error", err)
			}
			return
		}
		if n > 0 && s.logger != nil {
			s.logger.Info("expired credentials", "count", n)
		}
		if n < s.batchSize {
			return
		}
	}
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
