// Package notify delivers account emails in the background.
//
// Request handlers hand a Message to Dispatcher.Enqueue and move on. Messages
// are stored as tasks in an in-memory queue and a bounded pool of queue
// workers renders and sends each one with its own timeout. Delivery is best
// effort: failures are logged, counted and parked in the dead letter queue,
// never retried, and a full queue drops the message instead of blocking the
// caller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/codeai/pkg/email"
	"github.com/dmitrymomot/codeai/pkg/logger"
	"github.com/dmitrymomot/codeai/pkg/metrics"
	"github.com/dmitrymomot/codeai/pkg/queue"
)

// queueName keeps notification tasks apart from any other work sharing the storage.
const queueName = "notifications"

// Message is a templated email waiting for delivery.
type Message struct {
	Template string             `json:"template"`
	To       string             `json:"to"`
	Data     email.TemplateData `json:"data"`
}

// Dispatcher owns the queue storage and its worker.
type Dispatcher struct {
	sender       email.EmailSender
	storage      *queue.MemoryStorage
	enqueuer     *queue.Enqueuer
	worker       *queue.Worker
	workers      int
	sendTimeout  time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu      sync.RWMutex
	started bool
	closed  bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics counts deliveries and tracks queue depth.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher. Zero config values fall back to 256 queued
// messages, 4 workers, a 10s send timeout, a 200ms poll interval and an hour
// of retention for finished messages.
func New(sender email.EmailSender, cfg Config, opts ...Option) (*Dispatcher, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}

	d := &Dispatcher{
		sender:       sender,
		workers:      cfg.Workers,
		sendTimeout:  cfg.SendTimeout,
		pollInterval: cfg.PollInterval,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.storage = queue.NewMemoryStorage(
		queue.WithCapacity(cfg.QueueSize),
		queue.WithRetention(cfg.Retention),
	)

	enq, err := queue.NewEnqueuer(d.storage, queue.WithDefaultQueue(queueName))
	if err != nil {
		_ = d.storage.Close()
		return nil, fmt.Errorf("notify: enqueuer: %w", err)
	}
	d.enqueuer = enq

	// The lock must outlive a send, or the sweeper would hand the message to
	// a second slot.
	w, err := queue.NewWorker(d.storage,
		queue.WithQueues(queueName),
		queue.WithPullInterval(cfg.PollInterval),
		queue.WithLockTimeout(2*cfg.SendTimeout),
		queue.WithMaxConcurrentTasks(cfg.Workers),
		queue.WithWorkerLogger(d.logger),
	)
	if err != nil {
		_ = d.storage.Close()
		return nil, fmt.Errorf("notify: worker: %w", err)
	}
	if err := w.RegisterHandler(queue.NewTaskHandler[Message](d.deliver)); err != nil {
		_ = d.storage.Close()
		return nil, fmt.Errorf("notify: register handler: %w", err)
	}
	d.worker = w

	d.logger = d.logger.With(logger.Component("notify"))

	return d, nil
}

// Start launches the workers.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.started {
		return ErrAlreadyStarted
	}

	// Delivery outlives any request, so the worker gets its own context.
	if err := d.worker.Start(context.Background()); err != nil {
		return fmt.Errorf("notify: start worker: %w", err)
	}
	d.started = true

	d.logger.Info("notification dispatcher started",
		slog.Int("workers", d.workers),
		logger.Duration(d.pollInterval),
	)
	return nil
}

// Enqueue schedules msg for delivery without blocking. It reports an error
// when the queue is full or the dispatcher is shutting down; the message is
// dropped in both cases.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, ErrClosed)
		return ErrClosed
	}

	err := d.enqueuer.Enqueue(context.Background(), msg,
		queue.WithPriority(priority(msg.Template)),
		queue.WithMaxRetries(0),
	)
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		d.drop(msg, ErrQueueFull)
		return ErrQueueFull
	case err != nil:
		d.drop(msg, err)
		return fmt.Errorf("notify: enqueue: %w", err)
	}

	d.metrics.QueueDepth(d.storage.Stats().Pending)
	return nil
}

// Shutdown stops accepting messages and waits for queued ones to be sent.
// Messages still queued when ctx ends are abandoned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	if !started {
		return d.storage.Close()
	}

	if err := d.drain(ctx); err != nil {
		d.logger.Warn("notification dispatcher shutdown timed out",
			slog.Int("pending", d.storage.Stats().InFlight()),
		)
		// Let the running sends finish in the background.
		go d.stop()
		return fmt.Errorf("notify: shutdown: %w", err)
	}

	d.stop()
	d.logger.Info("notification dispatcher stopped")
	return nil
}

// Run starts the dispatcher and returns a function suitable for errgroup: it
// blocks until ctx is done, then drains within drainTimeout.
func (d *Dispatcher) Run(ctx context.Context, drainTimeout time.Duration) func() error {
	return func() error {
		if err := d.Start(); err != nil {
			return err
		}
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return d.Shutdown(shutdownCtx)
	}
}

// drain waits until no message is pending or being sent.
func (d *Dispatcher) drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for d.storage.Stats().InFlight() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (d *Dispatcher) stop() {
	if err := d.worker.Stop(); err != nil && !errors.Is(err, queue.ErrWorkerNotStarted) {
		d.logger.Error("failed to stop notification worker", logger.Error(err))
	}
	for _, dl := range d.storage.DeadLetters() {
		d.logger.Warn("notification undelivered",
			slog.String("task_id", dl.TaskID.String()),
			slog.Time("failed_at", dl.FailedAt),
			slog.String("error", dl.Error),
		)
	}
	_ = d.storage.Close()
}

// deliver is the queue handler. A returned error parks the message in the
// dead letter queue.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.Notification(msg.Template, metrics.OutcomeFailure)
			d.logger.Error("notification delivery panicked",
				slog.String("template", msg.Template),
				slog.Any("panic", r),
			)
			err = fmt.Errorf("notify: delivery panicked: %v", r)
		}
	}()
	defer func() { d.metrics.QueueDepth(d.storage.Stats().Pending) }()

	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	if err := d.send(ctx, msg); err != nil {
		d.metrics.Notification(msg.Template, metrics.OutcomeFailure)
		d.logger.Error("failed to send notification",
			slog.String("template", msg.Template),
			logger.Email(msg.To),
			logger.Error(err),
		)
		return err
	}

	d.metrics.Notification(msg.Template, metrics.OutcomeSuccess)
	d.logger.Debug("notification sent",
		slog.String("template", msg.Template),
		logger.Email(msg.To),
		logger.Duration(time.Since(start)),
	)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	subject, body, err := email.Render(ctx, msg.Template, msg.Data)
	if err != nil {
		return err
	}
	return d.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   msg.To,
		Subject:  subject,
		BodyHTML: body,
		Tag:      msg.Template,
	})
}

func (d *Dispatcher) drop(msg Message, reason error) {
	d.metrics.Notification(msg.Template, metrics.OutcomeDropped)
	d.logger.Error("notification dropped",
		slog.String("template", msg.Template),
		logger.Email(msg.To),
		logger.Error(reason),
	)
}

// Reset links expire, so they jump ahead of welcome mail.
func priority(template string) queue.Priority {
	if template == email.TemplatePasswordReset {
		return queue.PriorityHigh
	}
	return queue.PriorityDefault
}
