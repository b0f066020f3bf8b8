package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	mqcontracts "symbio/contracts/mq"
	"symbio/pkg/util"
)

type memDeduper struct {
	seen map[int64]bool
}

func (d *memDeduper) AcquireOnce(_ context.Context, _ string, id int64) bool {
	if d.seen[id] {
		return false
	}
	d.seen[id] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, _ string, id int64) {
	delete(d.seen, id)
}

type recordingPusher struct {
	pushed []mqcontracts.NotificationCreatedPayload
	err    error
}

func (p *recordingPusher) Push(_ context.Context, n mqcontracts.NotificationCreatedPayload) error {
	if p.err != nil {
		return p.err
	}
	p.pushed = append(p.pushed, n)
	return nil
}

func payload(t *testing.T, id int64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontracts.NotificationCreatedPayload{NotificationID: id, UserID: 7, Type: "proposal_accepted"})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestHandleDeduplicates(t *testing.T) {
	pusher := &recordingPusher{}
	h := NewNotificationCreatedHandler(pusher, &memDeduper{seen: map[int64]bool{}}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := h.Handle(ctx, payload(t, 1)); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if len(pusher.pushed) != 1 || pusher.pushed[0].UserID != 7 {
		t.Errorf("pushed = %+v", pusher.pushed)
	}
}

func TestHandlePushFailureReleasesKey(t *testing.T) {
	pusher := &recordingPusher{err: errors.New("connection reset")}
	dedup := &memDeduper{seen: map[int64]bool{}}
	h := NewNotificationCreatedHandler(pusher, dedup, zap.NewNop())
	ctx := context.Background()

	err := h.Handle(ctx, payload(t, 2))
	if err == nil {
		t.Fatal("expected error")
	}
	if retryable, _ := util.IsRetryableError(err); !retryable {
		t.Errorf("push failure should be retried")
	}

	pusher.err = nil
	if err := h.Handle(ctx, payload(t, 2)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(pusher.pushed) != 1 {
		t.Errorf("pushed = %+v", pusher.pushed)
	}
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	h := NewNotificationCreatedHandler(&recordingPusher{}, &memDeduper{seen: map[int64]bool{}}, zap.NewNop())
	for _, raw := range []string{`{`, `{"notification_id":0,"user_id":1}`} {
		err := h.Handle(context.Background(), json.RawMessage(raw))
		if retryable, _ := util.IsRetryableError(err); err == nil || retryable {
			t.Errorf("%s: got %v, want permanent error", raw, err)
		}
	}
}
