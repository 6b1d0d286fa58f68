package mailqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

// ErrDropped is reported to OnResult for a message that was never queued.
var ErrDropped = errors.New("mail dropped before delivery")

// Message is one outgoing HTML mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender performs the actual delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SendTimeout time.Duration
	// OnResult, when set, is called after every delivery attempt and for
	// every dropped message, with ErrDropped.
	OnResult func(err error)
}

// Dispatcher forwards queued messages to a Sender from a single worker.
type Dispatcher struct {
	cfg       Config
	sender    Sender
	logger    *zap.Logger
	ch        chan Message
	wg        sync.WaitGroup
	sent      atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	closeOnce sync.Once

	// mu guards closed and the sends on ch, so no send can race the close
	// of ch.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the delivery worker. It returns nil when cfg is
// disabled or sender is nil; a nil Dispatcher rejects every message.
func NewDispatcher(cfg Config, sender Sender, logger *zap.Logger) *Dispatcher {
	if !cfg.Enabled || sender == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		logger: logger.Named("mailqueue"),
		ch:     make(chan Message, cfg.BufferSize),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	// ch is closed by Close once no sender holds mu, so ranging drains
	// every accepted message.
	for msg := range d.ch {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	err := d.sender.Send(ctx, msg)
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("mail delivery failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
	} else {
		d.sent.Add(1)
		d.logger.Debug("mail delivered", zap.String("to", msg.To))
	}

	if d.cfg.OnResult != nil {
		d.cfg.OnResult(err)
	}
}

// Enqueue queues msg and reports whether it was accepted. A message that
// is not accepted is counted as dropped.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) bool {
	if d == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, "mail queue closed, message dropped", nil)
		return false
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- msg:
			return true
		default:
			d.drop(msg, "mail queue full, message dropped", nil)
			return false
		}
	}

	select {
	case d.ch <- msg:
		return true
	case <-ctx.Done():
		d.drop(msg, "mail enqueue abandoned", ctx.Err())
		return false
	}
}

func (d *Dispatcher) drop(msg Message, reason string, cause error) {
	d.dropped.Add(1)
	fields := []zap.Field{zap.String("to", msg.To)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	d.logger.Warn(reason, fields...)

	if d.cfg.OnResult != nil {
		d.cfg.OnResult(ErrDropped)
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Sent returns the number of messages the sender accepted.
func (d *Dispatcher) Sent() uint64 {
	if d == nil {
		return 0
	}
	return d.sent.Load()
}

// Failed returns the number of delivery attempts that returned an error.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

// Dropped returns the number of messages rejected by Enqueue, whether the
// queue was full, the caller gave up, or the dispatcher was closed.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
