package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/metrics"
	"github.com/aussiebroadwan/schoolgate/pkg/slogx"
)

type NotificationKind string

const (
	NotifyAccountLocked NotificationKind = "account_locked"
	NotifyPasswordReset NotificationKind = "password_reset"
	NotifyWelcome       NotificationKind = "welcome"
)

// Notifier delivers account notifications. Callers treat it as
// fire-and-forget: errors are logged, never propagated.
type Notifier interface {
	Send(ctx context.Context, kind NotificationKind, account domain.Account, payload map[string]any) error
}

// LogNotifier writes notifications to the log instead of a mail transport.
// Payload keys listed in Redact are logged as present but not their value.
type LogNotifier struct {
	Logger *slog.Logger
	Redact []string
}

func (n *LogNotifier) Send(ctx context.Context, kind NotificationKind, account domain.Account, payload map[string]any) error {
	l := n.Logger
	if l == nil {
		l = slogx.FromContext(ctx)
	}

	attrs := []any{
		slog.String("kind", string(kind)),
		slog.String("account_id", account.ID),
		slog.String("role", string(account.Role)),
	}
	for k, v := range payload {
		if n.redacted(k) {
			v = "[redacted]"
		}
		attrs = append(attrs, slog.Any(k, v))
	}
	l.InfoContext(ctx, "notification", attrs...)
	return nil
}

func (n *LogNotifier) redacted(key string) bool {
	for _, r := range n.Redact {
		if r == key {
			return true
		}
	}
	return false
}

type notification struct {
	ctx     context.Context
	kind    NotificationKind
	account domain.Account
	payload map[string]any
}

// AsyncNotifier hands notifications to a single background worker through
// a bounded buffer. Send never blocks; when the buffer is full the
// notification is dropped and counted.
type AsyncNotifier struct {
	sink    Notifier
	metrics *metrics.Metrics
	timeout time.Duration

	ch        chan notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewAsyncNotifier starts the worker. bufferSize <= 0 means 64; timeout
// bounds each delivery and defaults to 10s.
func NewAsyncNotifier(sink Notifier, bufferSize int, timeout time.Duration, m *metrics.Metrics) *AsyncNotifier {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	n := &AsyncNotifier{
		sink:    sink,
		metrics: m,
		timeout: timeout,
		ch:      make(chan notification, bufferSize),
		done:    make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *AsyncNotifier) Send(ctx context.Context, kind NotificationKind, account domain.Account, payload map[string]any) error {
	if n.closed.Load() {
		n.drop(ctx, kind)
		return nil
	}

	// Keep the request's values (logger) but not its deadline.
	msg := notification{ctx: context.WithoutCancel(ctx), kind: kind, account: account, payload: payload}
	select {
	case n.ch <- msg:
	default:
		n.drop(ctx, kind)
	}
	return nil
}

func (n *AsyncNotifier) drop(ctx context.Context, kind NotificationKind) {
	n.dropped.Add(1)
	n.metrics.Notification(string(kind), "dropped")
	slogx.FromContext(ctx).Warn("notification dropped", slog.String("kind", string(kind)))
}

func (n *AsyncNotifier) run() {
	defer n.wg.Done()

	for {
		select {
		case msg := <-n.ch:
			n.deliver(msg)
		case <-n.done:
			for {
				select {
				case msg := <-n.ch:
					n.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (n *AsyncNotifier) deliver(msg notification) {
	ctx, cancel := context.WithTimeout(msg.ctx, n.timeout)
	defer cancel()

	if err := n.sink.Send(ctx, msg.kind, msg.account, msg.payload); err != nil {
		n.metrics.Notification(string(msg.kind), "failed")
		slogx.FromContext(ctx).Error("notification failed",
			slog.String("kind", string(msg.kind)),
			slog.String("account_id", msg.account.ID),
			slog.Any("error", err),
		)
		return
	}
	n.metrics.Notification(string(msg.kind), "sent")
}

// Close stops accepting notifications and waits for the buffer to drain.
func (n *AsyncNotifier) Close() {
	n.closeOnce.Do(func() {
		n.closed.Store(true)
		close(n.done)
		n.wg.Wait()
	})
}

func (n *AsyncNotifier) Dropped() uint64 {
	return n.dropped.Load()
}

// notify sends best-effort: an error from n is logged and discarded.
func notify(ctx context.Context, n Notifier, kind NotificationKind, account domain.Account, payload map[string]any) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, kind, account, payload); err != nil {
		slogx.FromContext(ctx).Error("notification failed",
			slog.String("kind", string(kind)),
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}
}
