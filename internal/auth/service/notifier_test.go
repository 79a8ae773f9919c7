package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// gatedNotifier blocks every delivery until release is closed.
type gatedNotifier struct {
	recordingNotifier
	started chan struct{}
	release chan struct{}
}

func newGatedNotifier() *gatedNotifier {
	return &gatedNotifier{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (n *gatedNotifier) Send(ctx context.Context, kind NotificationKind, acc domain.Account, payload map[string]any) error {
	n.started <- struct{}{}
	<-n.release
	return n.recordingNotifier.Send(ctx, kind, acc, payload)
}

func TestAsyncNotifierDelivers(t *testing.T) {
	sink := &recordingNotifier{}
	n := NewAsyncNotifier(sink, 4, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	acc := domain.Account{ID: "acc-1", Role: domain.RoleTeacher}
	require.NoError(t, n.Send(ctx, NotifyAccountLocked, acc, map[string]any{"minutes": 15}))
	cancel()

	n.Close()

	sent := sink.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, NotifyAccountLocked, sent[0].Kind)
	require.Equal(t, "acc-1", sent[0].Account.ID)
	require.Zero(t, n.Dropped())
}

func TestAsyncNotifierDropsWhenFull(t *testing.T) {
	m := metrics.New()
	sink := newGatedNotifier()
	n := NewAsyncNotifier(sink, 1, time.Second, m)
	acc := domain.Account{ID: "acc-1"}
	ctx := context.Background()

	require.NoError(t, n.Send(ctx, NotifyWelcome, acc, nil))
	<-sink.started // worker is now blocked in the sink

	require.NoError(t, n.Send(ctx, NotifyWelcome, acc, nil))
	require.NoError(t, n.Send(ctx, NotifyWelcome, acc, nil))
	require.Equal(t, uint64(1), n.Dropped())

	close(sink.release)
	n.Close()
	require.Len(t, sink.Sent(), 2)

	require.NoError(t, n.Send(ctx, NotifyWelcome, acc, nil))
	require.Equal(t, uint64(2), n.Dropped())

	expected := `
# HELP schoolgate_notifications_total Notification deliveries by kind and result.
# TYPE schoolgate_notifications_total counter
schoolgate_notifications_total{kind="welcome",result="dropped"} 2
schoolgate_notifications_total{kind="welcome",result="sent"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "schoolgate_notifications_total"))
}

func TestAsyncNotifierSinkFailure(t *testing.T) {
	m := metrics.New()
	sink := &recordingNotifier{err: errors.New("smtp down")}
	n := NewAsyncNotifier(sink, 0, 0, m)

	require.NoError(t, n.Send(context.Background(), NotifyPasswordReset, domain.Account{ID: "a"}, nil))
	n.Close()
	n.Close()

	require.Len(t, sink.Sent(), 1)
	expected := `
# HELP schoolgate_notifications_total Notification deliveries by kind and result.
# TYPE schoolgate_notifications_total counter
schoolgate_notifications_total{kind="password_reset",result="failed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "schoolgate_notifications_total"))
}

func TestLogNotifierRedactsPayload(t *testing.T) {
	var buf bytes.Buffer
	n := &LogNotifier{
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
		Redact: []string{"reset_link"},
	}

	err := n.Send(context.Background(), NotifyPasswordReset, domain.Account{ID: "acc-9", Role: domain.RoleParent}, map[string]any{
		"reset_link":    "https://school.example/reset?token=secret-token",
		"expires_hours": 1.0,
	})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, `"kind":"password_reset"`)
	require.Contains(t, out, `"account_id":"acc-9"`)
	require.Contains(t, out, `"reset_link":"[redacted]"`)
	require.Contains(t, out, `"expires_hours":1`)
	require.NotContains(t, out, "secret-token")
}
