package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Options sizes a Dispatcher. Zero values select the defaults.
type Options struct {
	QueueSize   int           // default 64
	Workers     int           // default 2
	SendTimeout time.Duration // default 10s
}

// Dispatcher sends messages in the background from a bounded queue.
//
// Enqueue never blocks: when the queue is full or the dispatcher has been
// stopped the message is dropped and logged. Stop lets the workers finish
// everything already queued.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	opts    Options
	queue   chan Message
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	start   sync.Once
}

func NewDispatcher(sender Sender, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		sender: sender,
		logger: logger,
		opts:   opts,
		queue:  make(chan Message, opts.QueueSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		d.logger.Info("starting email dispatcher",
			slog.Int("workers", d.opts.Workers),
			slog.Int("queueSize", d.opts.QueueSize),
		)
		for range d.opts.Workers {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Stop closes the queue and waits until every queued message was handled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("draining email dispatcher", slog.Int("pending", len(d.queue)))
	d.wg.Wait()
}

// Enqueue schedules msg and reports whether it was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.logger.Warn("email dropped: dispatcher stopped", slog.String("subject", msg.Subject))
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn("email dropped: queue full",
			slog.String("to", msg.ToEmail),
			slog.String("subject", msg.Subject),
		)
		return false
	}
}

// SendWelcome queues the welcome email.
func (d *Dispatcher) SendWelcome(name, email string) {
	d.Enqueue(WelcomeMessage(name, email))
}

// SendCancellation queues the account cancellation email.
func (d *Dispatcher) SendCancellation(name, email string) {
	d.Enqueue(CancellationMessage(name, email))
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.SendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("email delivery failed",
			slog.String("to", msg.ToEmail),
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.Debug("email sent", slog.String("to", msg.ToEmail), slog.String("subject", msg.Subject))
}
