package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"tdp/config"
	"tdp/internal/filter"
	"tdp/internal/messaging/consumer"
	"tdp/internal/models"
	"tdp/internal/redact"
	"tdp/internal/simulate"
	"tdp/storage/store"
)

// State is a step of the per-delivery state machine
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateProcessing State = "processing"
	StateRedacting  State = "redacting"
	StateStoring    State = "storing"
	StateAcked      State = "acked"
	StateFailed     State = "failed"
	StateNacked     State = "nacked"
)

// ErrInjectedFault is the deliberate failure raised for trigger messages
var ErrInjectedFault = errors.New("simulated crash")

// Result is the outcome of processing one delivery
type Result struct {
	State    State // StateAcked or StateNacked
	FailedAt State // Last state reached before failing
	TenantID string
	LogID    string
	Attempt  int
	Record   *models.ProcessedRecord
	Err      error
}

// Acked reports whether the delivery should be acknowledged
func (r Result) Acked() bool { return r.State == StateAcked }

// Option customizes a Worker
type Option func(*Worker)

// WithFilter drops (acks unread) deliveries whose attributes do not match
func WithFilter(f *filter.AttributeFilter) Option {
	return func(w *Worker) { w.filter = f }
}

// WithSimulator replaces the processing simulator
func WithSimulator(s *simulate.Simulator) Option {
	return func(w *Worker) { w.sim = s }
}

// WithClock replaces time.Now for ProcessedAt
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// Worker pulls envelopes, processes them concurrently under flow control and
// acks or nacks each delivery
type Worker struct {
	logger   *log.Logger
	store    store.TenantStore
	consumer consumer.Consumer
	filter   *filter.AttributeFilter
	sim      *simulate.Simulator
	now      func() time.Time

	fault              config.FaultInjectionConfig
	consumerRetryDelay time.Duration
	shutdownGrace      time.Duration
	storeTimeout       time.Duration

	maxMessages int64
	maxBytes    int64
	messages    *semaphore.Weighted
	bytes       *semaphore.Weighted
	inFlight    atomic.Int64
	inFlightB   atomic.Int64
}

// New creates a new Worker instance
func New(cfg config.EngineConfig, logger *log.Logger, s store.TenantStore, c consumer.Consumer, opts ...Option) *Worker {
	// cfg may arrive without SetDefaults, e.g. from tests
	cfg.FlowControl.SetDefaults()

	w := &Worker{
		logger:             logger,
		store:              s,
		consumer:           c,
		sim:                simulate.New(cfg.Worker.ProcessingPerChar),
		now:                time.Now,
		fault:              cfg.FaultInjection,
		consumerRetryDelay: cfg.Worker.ConsumerRetryDelay,
		shutdownGrace:      cfg.Worker.ShutdownGrace,
		storeTimeout:       cfg.Store.Timeout,
		maxMessages:        int64(cfg.FlowControl.MaxMessages),
		maxBytes:           cfg.FlowControl.MaxBytes,
		messages:           semaphore.NewWeighted(int64(cfg.FlowControl.MaxMessages)),
		bytes:              semaphore.NewWeighted(cfg.FlowControl.MaxBytes),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// InFlight is the number of deliveries currently being processed
func (w *Worker) InFlight() int64 {
	return w.inFlight.Load()
}

// InFlightBytes is the payload size currently being processed
func (w *Worker) InFlightBytes() int64 {
	return w.inFlightB.Load()
}

// Process runs one delivery through the state machine. It has no broker
// dependency; attempt is the broker's delivery counter (values < 1 mean 1).
func (w *Worker) Process(ctx context.Context, data []byte, attempt int) Result {
	if attempt < 1 {
		attempt = 1
	}
	res := Result{State: StateReceived, Attempt: attempt}
	fail := func(err error) Result {
		res.FailedAt = res.State
		res.State = StateNacked
		res.Err = err
		return res
	}

	env, err := models.DecodeEnvelope(data)
	if err != nil {
		return fail(err)
	}
	res.State = StateValidated
	res.TenantID, res.LogID = env.TenantID, env.LogID
	w.logger.Printf("Delivery attempt #%d for tenant=%s, log_id=%s", attempt, env.TenantID, env.LogID)

	if w.faultTriggered(env.Text) {
		if attempt <= w.fault.MaxFailingAttempts {
			w.logger.Printf("CRASH (attempt %d/%d) for tenant=%s, log_id=%s", attempt, w.fault.MaxFailingAttempts, env.TenantID, env.LogID)
			return fail(fmt.Errorf("%w: attempt %d", ErrInjectedFault, attempt))
		}
		w.logger.Printf("PASSED fault injection after %d attempts (tenant=%s, log_id=%s)", attempt, env.TenantID, env.LogID)
	}

	res.State = StateProcessing
	charCount := simulate.CharCount(env.Text)
	w.logger.Printf("Processing %d characters, simulated cost %s", charCount, w.sim.Duration(charCount))
	if _, err := w.sim.Run(ctx, env.Text); err != nil {
		return fail(fmt.Errorf("processing interrupted: %w", err))
	}

	res.State = StateRedacting
	modified := redact.Redact(env.Text)

	res.State = StateStoring
	rec := &models.ProcessedRecord{
		Source:                env.Source,
		OriginalText:          env.Text,
		ModifiedData:          modified,
		IngestedAt:            env.IngestedAt,
		ProcessedAt:           w.now().UTC(),
		CharacterCount:        charCount,
		ProcessingTimeSeconds: w.sim.Duration(charCount).Seconds(),
		DeliveryAttempt:       attempt,
	}
	storeCtx := ctx
	if w.storeTimeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, w.storeTimeout)
		defer cancel()
	}
	if err := w.store.Upsert(storeCtx, env.TenantID, env.LogID, rec); err != nil {
		return fail(err)
	}

	res.State = StateAcked
	res.Record = rec
	return res
}

func (w *Worker) faultTriggered(text string) bool {
	if w.fault.Disabled || w.fault.Trigger == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(w.fault.Trigger))
}

// Run pulls deliveries until ctx is cancelled or the consumer is closed.
// A message slot is reserved before each pull and the payload's bytes before
// dispatch, so at most max_messages / max_bytes are ever in flight.
// On return every delivery has been acked or nacked.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Printf("Starting worker: max_messages=%d, max_bytes=%d, filter=%q",
		w.maxMessages, w.maxBytes, w.filter.String())

	// Processing outlives ctx by up to shutdownGrace
	procCtx, cancelProc := context.WithCancel(context.Background())
	defer cancelProc()

	var wg sync.WaitGroup
	for {
		if err := w.messages.Acquire(ctx, 1); err != nil {
			break
		}

		msg, ack, err := w.consumer.Consume(ctx)
		if err != nil {
			w.messages.Release(1)
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, consumer.ErrClosed) {
				w.logger.Println("Consumer closed, stopping consumption.")
				break
			}
			w.logger.Printf("Consumer error: %v", err)
			if !sleepCtx(ctx, w.consumerRetryDelay) {
				break
			}
			continue
		}

		weight := int64(msg.Size())
		if weight > w.maxBytes {
			weight = w.maxBytes // An oversized message runs alone
		}
		if err := w.bytes.Acquire(ctx, weight); err != nil {
			ack(false)
			w.messages.Release(1)
			break
		}

		w.inFlight.Add(1)
		w.inFlightB.Add(weight)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				w.inFlightB.Add(-weight)
				w.inFlight.Add(-1)
				w.bytes.Release(weight)
				w.messages.Release(1)
			}()
			w.handle(procCtx, msg, ack)
		}()
	}

	w.drain(&wg, cancelProc)
	return nil
}

// handle applies the subscription filter, processes and settles one delivery
func (w *Worker) handle(ctx context.Context, msg *consumer.Delivery, ack func(bool)) {
	if !w.filter.Match(msg.Attributes) {
		w.logger.Printf("Message %s does not match filter %q, acking without processing", msg.MessageID, w.filter.String())
		ack(true)
		return
	}

	res := w.Process(ctx, msg.Data, msg.Attempt)
	if res.Acked() {
		ack(true)
		w.logger.Printf("Successfully processed and acked message %s (tenant=%s, log_id=%s, attempt=%d)",
			msg.MessageID, res.TenantID, res.LogID, res.Attempt)
		return
	}
	ack(false)
	w.logger.Printf("Error processing message %s at %s: %v. Nacked for redelivery (attempt=%d)",
		msg.MessageID, res.FailedAt, res.Err, res.Attempt)
}

// drain waits shutdownGrace for in-flight work, then cancels it so the
// remaining deliveries nack
func (w *Worker) drain(wg *sync.WaitGroup, cancelProc context.CancelFunc) {
	w.logger.Printf("Stopping message consumption, waiting up to %s for %d in-flight messages", w.shutdownGrace, w.InFlight())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if w.shutdownGrace > 0 {
		timer := time.NewTimer(w.shutdownGrace)
		defer timer.Stop()
		select {
		case <-done:
			w.logger.Println("All in-flight messages settled.")
			return
		case <-timer.C:
		}
	}
	w.logger.Printf("Shutdown grace elapsed, cancelling %d in-flight messages", w.InFlight())
	cancelProc()
	<-done
	w.logger.Println("Worker stopped.")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
