package webhook

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/metrics"
	"idmanager/internal/issuance/models"
	dErrors "idmanager/pkg/domain-errors"
)

const (
	// DefaultOfferDelay gives the agent time to finish its side of the
	// connection handshake before the offer is sent.
	DefaultOfferDelay = 5 * time.Second

	DefaultRetryMaxElapsed = 2 * time.Minute
	DefaultAttemptTimeout  = 10 * time.Second
)

// Scheduled offer results.
const (
	resultSent         = "sent"
	resultSkipped      = "skipped"
	resultFailed       = "failed"
	resultDeduplicated = "deduplicated"
	resultDropped      = "dropped"
)

// OfferCreator creates an offer on a connection unless one exists.
type OfferCreator interface {
	EnsureOffer(ctx context.Context, connectionID string, inv *models.ConnectionInvitation) (*models.CredentialOffer, bool, error)
}

// BlockingScheduler sleeps in the caller before creating the offer. The
// webhook request stays open for the whole delay, so bursts of callbacks
// hold one handler goroutine each.
type BlockingScheduler struct {
	offers  OfferCreator
	delay   time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewBlockingScheduler(offers OfferCreator, delay time.Duration, logger *slog.Logger, m *metrics.Metrics) *BlockingScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlockingScheduler{offers: offers, delay: delay, logger: logger, metrics: m}
}

func (s *BlockingScheduler) Schedule(ctx context.Context, connectionID string, inv *models.ConnectionInvitation) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.logger.WarnContext(ctx, "offer scheduling cancelled", "connection_id", connectionID, "error", ctx.Err())
			observe(s.metrics, resultDropped, 0)
			return
		case <-timer.C:
		}
	}

	_, created, err := s.offers.EnsureOffer(ctx, connectionID, inv)
	switch {
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to create credential offer", "connection_id", connectionID, "error", err)
		observe(s.metrics, resultFailed, 1)
	case created:
		observe(s.metrics, resultSent, 1)
	default:
		observe(s.metrics, resultSkipped, 1)
	}
}

// AsyncScheduler creates offers on delayed background jobs, one pending job
// per connection, retrying retryable agent failures with exponential backoff.
type AsyncScheduler struct {
	offers         OfferCreator
	delay          time.Duration
	maxElapsed     time.Duration
	attemptTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

type AsyncOption func(*AsyncScheduler)

func WithDelay(d time.Duration) AsyncOption {
	return func(s *AsyncScheduler) {
		s.delay = d
	}
}

// WithRetryMaxElapsed bounds the total time spent retrying one offer.
func WithRetryMaxElapsed(d time.Duration) AsyncOption {
	return func(s *AsyncScheduler) {
		s.maxElapsed = d
	}
}

func WithAttemptTimeout(d time.Duration) AsyncOption {
	return func(s *AsyncScheduler) {
		if d > 0 {
			s.attemptTimeout = d
		}
	}
}

func WithSchedulerLogger(logger *slog.Logger) AsyncOption {
	return func(s *AsyncScheduler) {
		s.logger = logger
	}
}

func WithSchedulerMetrics(m *metrics.Metrics) AsyncOption {
	return func(s *AsyncScheduler) {
		s.metrics = m
	}
}

func NewAsyncScheduler(offers OfferCreator, opts ...AsyncOption) *AsyncScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &AsyncScheduler{
		offers:         offers,
		delay:          DefaultOfferDelay,
		maxElapsed:     DefaultRetryMaxElapsed,
		attemptTimeout: DefaultAttemptTimeout,
		logger:         slog.Default(),
		ctx:            ctx,
		cancel:         cancel,
		pending:        make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule queues an offer for connectionID after the configured delay. A
// connection with a job already queued or running is not queued twice.
func (s *AsyncScheduler) Schedule(ctx context.Context, connectionID string, inv *models.ConnectionInvitation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.WarnContext(ctx, "scheduler closed, offer dropped", "connection_id", connectionID)
		observe(s.metrics, resultDropped, 0)
		return
	}
	if _, ok := s.pending[connectionID]; ok {
		s.logger.InfoContext(ctx, "offer already scheduled", "connection_id", connectionID)
		observe(s.metrics, resultDeduplicated, 0)
		return
	}

	s.wg.Add(1)
	s.pending[connectionID] = time.AfterFunc(s.delay, func() {
		defer s.finish(connectionID)
		s.run(connectionID, inv)
	})
}

// Pending reports how many jobs are queued or running.
func (s *AsyncScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *AsyncScheduler) finish(connectionID string) {
	s.mu.Lock()
	delete(s.pending, connectionID)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *AsyncScheduler) run(connectionID string, inv *models.ConnectionInvitation) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = s.maxElapsed

	attempts := 0
	var created bool
	err := backoff.Retry(func() error {
		attempts++
		ctx, cancel := context.WithTimeout(s.ctx, s.attemptTimeout)
		defer cancel()

		var err error
		_, created, err = s.offers.EnsureOffer(ctx, connectionID, inv)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		s.logger.WarnContext(ctx, "credential offer attempt failed, retrying",
			"connection_id", connectionID,
			"attempt", attempts,
			"error", err,
		)
		return err
	}, backoff.WithContext(b, s.ctx))

	switch {
	case err != nil:
		s.logger.Error("failed to create credential offer",
			"connection_id", connectionID,
			"attempts", attempts,
			"error", err,
		)
		observe(s.metrics, resultFailed, attempts)
	case created:
		s.logger.Info("scheduled credential offer sent", "connection_id", connectionID, "attempts", attempts)
		observe(s.metrics, resultSent, attempts)
	default:
		observe(s.metrics, resultSkipped, attempts)
	}
}

// Shutdown stops queued jobs and waits for running ones. When ctx ends
// first, running jobs are cancelled and ctx's error is returned.
func (s *AsyncScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for connectionID, timer := range s.pending {
		if timer.Stop() {
			delete(s.pending, connectionID)
			s.wg.Done()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func retryable(err error) bool {
	if agentErr, ok := agent.AsError(err); ok && agentErr.Malformed {
		return false
	}
	return agent.IsRetryable(err) ||
		dErrors.HasCode(err, dErrors.CodeTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

func observe(m *metrics.Metrics, result string, attempts int) {
	if m != nil {
		m.ObserveScheduledOffer(result, attempts)
	}
}

var (
	_ Scheduler = (*BlockingScheduler)(nil)
	_ Scheduler = (*AsyncScheduler)(nil)
)
