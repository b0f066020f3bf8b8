package notification

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/store"
	"symbio/internal/store/storetest"
)

func TestListAndMarkRead(t *testing.T) {
	st := storetest.NewSQLite(t)
	alice := storetest.CreateUser(t, st, "alice@example.com", model.RoleFreelancer)
	bob := storetest.CreateUser(t, st, "bob@example.com", model.RoleFreelancer)
	ctx := context.Background()

	var ids []int64
	err := st.InTx(ctx, func(tx store.Tx) error {
		for _, msg := range []string{"first", "second"} {
			n := &model.Notification{UserID: alice.ID, Type: model.NotificationProposalRejected, Message: msg}
			if err := tx.CreateNotification(ctx, n); err != nil {
				return err
			}
			ids = append(ids, n.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(st, zap.NewNop())
	all, err := svc.List(ctx, alice.ID, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Message != "second" {
		t.Fatalf("notifications = %+v", all)
	}

	if err := svc.MarkRead(ctx, bob.ID, ids[0]); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("mark by other user: got %v", err)
	}
	if err := svc.MarkRead(ctx, alice.ID, ids[0]); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := svc.MarkRead(ctx, alice.ID, ids[0]); err != nil {
		t.Errorf("MarkRead twice: %v", err)
	}
	if err := svc.MarkRead(ctx, alice.ID, ids[1]+100); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing notification: got %v", err)
	}

	unread, err := svc.List(ctx, alice.ID, true, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].ID != ids[1] {
		t.Errorf("unread = %+v", unread)
	}
}
