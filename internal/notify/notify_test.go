package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/metrics"
	tu "droneDispatch/internal/testutil"
	"droneDispatch/models"
)

type recordingSink struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingSink) Notify(_ context.Context, userID string, event models.EventType, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID+":"+string(event))
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestAsync_DeliversAndDrains(t *testing.T) {
	rec := &recordingSink{}
	m := metrics.NewMetricsRegistry()
	a := NewAsync(rec, "test", 2, 16, zaptest.NewLogger(t), m)
	for i := 0; i < 10; i++ {
		if err := a.Notify(context.Background(), "u1", models.EventRequestAccepted, nil); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	a.Close()
	if rec.count() != 10 {
		t.Fatalf("delivered %d, want 10", rec.count())
	}
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("test", metrics.OutcomeOK)); got != 10 {
		t.Fatalf("ok counter = %v", got)
	}
	// after close notifications are dropped, not delivered
	_ = a.Notify(context.Background(), "u1", models.EventRequestAccepted, nil)
	if rec.count() != 10 {
		t.Fatalf("closed dispatcher must not deliver")
	}
}

func TestAsync_NeverBlocksWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocking := SinkFunc(func(ctx context.Context, _ string, _ models.EventType, _ map[string]any) error {
		<-release
		return nil
	})
	m := metrics.NewMetricsRegistry()
	a := NewAsync(blocking, "slow", 1, 1, zaptest.NewLogger(t), m)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = a.Notify(context.Background(), "u1", models.EventRequestCancelled, nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Notify blocked on a full queue")
	}
	close(release)
	a.Close()
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("slow", metrics.OutcomeDropped)); got < 3 {
		t.Fatalf("expected at least 3 drops, got %v", got)
	}
}

func TestAsync_FailuresAreSwallowed(t *testing.T) {
	rec := &recordingSink{err: errors.New("broker down")}
	m := metrics.NewMetricsRegistry()
	a := NewAsync(rec, "bad", 1, 4, zaptest.NewLogger(t), m)
	if err := a.Notify(context.Background(), "u1", models.EventRequestRejected, nil); err != nil {
		t.Fatalf("notify must not surface delivery errors: %v", err)
	}
	a.Close()
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("bad", metrics.OutcomeError)); got != 1 {
		t.Fatalf("error counter = %v", got)
	}
}

func TestFanout_JoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("x")}
	err := Fanout{ok, bad, ok}.Notify(context.Background(), "u1", models.EventMissionStarted, nil)
	if err == nil || ok.count() != 2 || bad.count() != 1 {
		t.Fatalf("fanout: err=%v ok=%d bad=%d", err, ok.count(), bad.count())
	}
}

type fakeRedis struct {
	channel string
	body    []byte
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.body, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func TestRedisSink_PublishesOnUserChannel(t *testing.T) {
	f := &fakeRedis{}
	if err := NewRedisSink(f).Notify(context.Background(), "u42", models.EventRequestAccepted, map[string]any{"requestId": "r1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if f.channel != "notifications:u42" {
		t.Fatalf("channel = %q", f.channel)
	}
	var msg Message
	if err := json.Unmarshal(f.body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != models.EventRequestAccepted || msg.Values["requestId"] != "r1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func TestAMQPSink_RoutesByEventType(t *testing.T) {
	f := &fakeChannel{}
	if err := NewAMQPSink(f, "dispatch").Notify(context.Background(), "u1", models.EventRequestCancelled, nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if f.exchange != "dispatch" || f.key != "request-cancelled" {
		t.Fatalf("published to %s/%s", f.exchange, f.key)
	}
	if f.msg.ContentType != "application/json" || f.msg.Headers["user_id"] != "u1" {
		t.Fatalf("unexpected publishing: %+v", f.msg)
	}
}

func TestStoreSinkAndInbox(t *testing.T) {
	store := tu.NewStore(t)
	ctx := context.Background()
	sink := NewStoreSink(store.Notifications)
	if err := sink.Notify(ctx, "u1", models.EventRequestAccepted, map[string]any{"requestId": "r1"}); err != nil {
		t.Fatalf("store notify: %v", err)
	}
	inbox := NewInbox(store.Notifications)
	page, err := inbox.List(ctx, "u1", 0, 10)
	if err != nil || page.Total != 1 {
		t.Fatalf("list: %v %+v", err, page)
	}
	id := page.Items[0].ID()
	if err := inbox.MarkRead(ctx, "u2", id); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign user must get NotFound, got %v", err)
	}
	if err := inbox.MarkRead(ctx, "u1", id); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	page, _ = inbox.List(ctx, "u1", 0, 10)
	if page.Items[0]["isRead"] != true {
		t.Fatalf("notification not marked read: %+v", page.Items[0])
	}
}
