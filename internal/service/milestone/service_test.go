package milestone

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/notify"
	"symbio/internal/payment"
	"symbio/internal/store"
	"symbio/internal/store/storetest"
)

type stubGateway struct {
	ref   string
	err   error
	calls int
	keys  []string
}

func (g *stubGateway) Pay(_ context.Context, p payment.Payout) (string, error) {
	g.calls++
	g.keys = append(g.keys, p.IdempotencyKey)
	return g.ref, g.err
}

// blockingGateway 在 Pay 内部停住，直到测试关闭 release
type blockingGateway struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *blockingGateway) Pay(ctx context.Context, p payment.Payout) (string, error) {
	g.calls.Add(1)
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "pay_" + p.IdempotencyKey, nil
}

// lockRecordingStore 记录事务内对 LockProject 的调用
type lockRecordingStore struct {
	store.Store
	mu     sync.Mutex
	locked []int64
}

func (s *lockRecordingStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.InTx(ctx, func(tx store.Tx) error {
		return fn(&lockRecordingTx{Tx: tx, s: s})
	})
}

func (s *lockRecordingStore) reset() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.locked
	s.locked = nil
	return out
}

type lockRecordingTx struct {
	store.Tx
	s *lockRecordingStore
}

func (t *lockRecordingTx) LockProject(ctx context.Context, id int64) (*model.Project, error) {
	t.s.mu.Lock()
	t.s.locked = append(t.s.locked, id)
	t.s.mu.Unlock()
	return t.Tx.LockProject(ctx, id)
}

type fixture struct {
	store      store.Store
	svc        *Service
	gateway    *stubGateway
	owner      *model.User
	freelancer *model.User
	project    *model.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.NewSQLite(t)
	owner := storetest.CreateUser(t, st, "owner@example.com", model.RoleClient)
	fl := storetest.CreateUser(t, st, "fl@example.com", model.RoleFreelancer)
	project := storetest.CreateProject(t, st, owner.ID, model.ProjectInProgress)
	storetest.AddTeamMember(t, st, project.ID, fl.ID)
	gw := &stubGateway{ref: "pay_123"}
	return &fixture{
		store:      st,
		svc:        NewService(st, gw, notify.NewEmitter(zap.NewNop()), zap.NewNop()),
		gateway:    gw,
		owner:      owner,
		freelancer: fl,
		project:    project,
	}
}

func (f *fixture) get(t *testing.T, id int64) *model.Milestone {
	t.Helper()
	var m *model.Milestone
	err := f.store.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		m, err = tx.GetMilestone(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMilestoneHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().Add(24 * time.Hour).UTC()

	m, err := f.svc.CreateMilestone(ctx, f.project.ID, f.owner.ID, CreateInput{Title: "Wireframes", Amount: 1000, DueAt: &due})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	if m.Status != model.MilestonePending {
		t.Fatalf("status = %s", m.Status)
	}
	if _, err := f.svc.SubmitMilestone(ctx, m.ID, f.freelancer.ID); err != nil {
		t.Fatalf("SubmitMilestone: %v", err)
	}
	if _, err := f.svc.ApproveMilestone(ctx, m.ID, f.owner.ID); err != nil {
		t.Fatalf("ApproveMilestone: %v", err)
	}
	paid, err := f.svc.PayMilestone(ctx, m.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("PayMilestone: %v", err)
	}
	if paid.Status != model.MilestonePaid || paid.PayoutRef != "pay_123" {
		t.Errorf("paid milestone = %+v", paid)
	}

	stored := f.get(t, m.ID)
	if stored.SubmittedAt == nil || stored.ApprovedAt == nil || stored.PaidAt == nil {
		t.Errorf("timestamps not recorded: %+v", stored)
	}
	if stored.PayoutRef != "pay_123" {
		t.Errorf("payout ref = %q", stored.PayoutRef)
	}
	if len(f.gateway.keys) != 1 || f.gateway.keys[0] != payment.IdempotencyKey(m.ID) {
		t.Errorf("idempotency keys = %v", f.gateway.keys)
	}

	err = f.store.InTx(ctx, func(tx store.Tx) error {
		owner, err := tx.ListNotifications(ctx, f.owner.ID, false, 10)
		if err != nil {
			return err
		}
		if len(owner) != 1 || owner[0].Type != model.NotificationMilestoneSubmitted {
			t.Errorf("owner notifications = %+v", owner)
		}
		fl, err := tx.ListNotifications(ctx, f.freelancer.ID, false, 10)
		if err != nil {
			return err
		}
		if len(fl) != 2 {
			t.Errorf("freelancer got %d notifications, want 2", len(fl))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMilestoneForwardOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := storetest.CreateMilestone(t, f.store, f.project.ID, 500, model.MilestonePending)

	if _, err := f.svc.ApproveMilestone(ctx, m.ID, f.owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("approve pending: got %v", err)
	}
	if _, err := f.svc.PayMilestone(ctx, m.ID, f.owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("pay pending: got %v", err)
	}
	if _, err := f.svc.SubmitMilestone(ctx, m.ID, f.freelancer.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitMilestone(ctx, m.ID, f.freelancer.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("submit twice: got %v", err)
	}
	if f.gateway.calls != 0 {
		t.Errorf("gateway called %d times", f.gateway.calls)
	}
}

func TestMilestonePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	outsider := storetest.CreateUser(t, f.store, "out@example.com", model.RoleFreelancer)
	m := storetest.CreateMilestone(t, f.store, f.project.ID, 500, model.MilestonePending)

	if _, err := f.svc.CreateMilestone(ctx, f.project.ID, f.freelancer.ID, CreateInput{Title: "x", Amount: 1}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("create by freelancer: got %v", err)
	}
	if _, err := f.svc.SubmitMilestone(ctx, m.ID, outsider.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("submit by outsider: got %v", err)
	}
	if _, err := f.svc.ApproveMilestone(ctx, m.ID, f.freelancer.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("approve by freelancer: got %v", err)
	}
	if _, err := f.svc.ListMilestones(ctx, f.project.ID, outsider.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("list by outsider: got %v", err)
	}
	if _, err := f.svc.SubmitMilestone(ctx, m.ID+100, f.freelancer.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing milestone: got %v", err)
	}
}

func TestCreateMilestoneValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := storetest.CreateProject(t, f.store, f.owner.ID, model.ProjectDraft)

	tests := []struct {
		name      string
		projectID int64
		in        CreateInput
		want      error
	}{
		{"zero amount", f.project.ID, CreateInput{Title: "x"}, apperr.ErrInvalidInput},
		{"missing title", f.project.ID, CreateInput{Amount: 1}, apperr.ErrInvalidInput},
		{"draft project", draft.ID, CreateInput{Title: "x", Amount: 1}, apperr.ErrInvalidState},
		{"unknown project", f.project.ID + 100, CreateInput{Title: "x", Amount: 1}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateMilestone(ctx, tt.projectID, f.owner.ID, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPayMilestoneGatewayFailureKeepsApproved(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = payment.ErrUnavailable
	m := storetest.CreateMilestone(t, f.store, f.project.ID, 500, model.MilestoneApproved)

	_, err := f.svc.PayMilestone(context.Background(), m.ID, f.owner.ID)
	if !errors.Is(err, payment.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if got := f.get(t, m.ID); got.Status != model.MilestoneApproved || got.PayoutRef != "" {
		t.Errorf("milestone after failed payment = %+v", got)
	}

	// 失败后认领已释放，可以重新付款
	f.gateway.err = nil
	paid, err := f.svc.PayMilestone(context.Background(), m.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if paid.Status != model.MilestonePaid || f.gateway.calls != 2 {
		t.Errorf("retry: status=%s calls=%d", paid.Status, f.gateway.calls)
	}
}

func TestPayMilestoneConcurrentCallsPayOnce(t *testing.T) {
	f := newFixture(t)
	gw := &blockingGateway{entered: make(chan struct{}, 2), release: make(chan struct{})}
	f.svc.gateway = gw
	m := storetest.CreateMilestone(t, f.store, f.project.ID, 500, model.MilestoneApproved)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		m   *model.Milestone
		err error
	}
	first := make(chan result, 1)
	go func() {
		paid, err := f.svc.PayMilestone(ctx, m.ID, f.owner.ID)
		first <- result{paid, err}
	}()

	select {
	case <-gw.entered:
	case <-ctx.Done():
		t.Fatal("first payment never reached the gateway")
	}

	// 第一笔付款仍在网关中，第二次调用必须被拒绝且不访问网关
	if _, err := f.svc.PayMilestone(ctx, m.ID, f.owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("second pay while first in flight: got %v, want InvalidState", err)
	}

	close(gw.release)
	res := <-first
	if res.err != nil {
		t.Fatalf("first pay: %v", res.err)
	}
	if res.m.Status != model.MilestonePaid {
		t.Errorf("status = %s", res.m.Status)
	}
	if n := gw.calls.Load(); n != 1 {
		t.Errorf("gateway called %d times, want 1", n)
	}
	if _, err := f.svc.PayMilestone(ctx, m.ID, f.owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("pay after paid: got %v", err)
	}
}

func TestPayMilestoneStaleClaimExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	m := storetest.CreateMilestone(t, f.store, f.project.ID, 500, model.MilestoneApproved)

	claim := func(at time.Time) {
		t.Helper()
		err := f.store.InTx(ctx, func(tx store.Tx) error {
			return tx.ClaimMilestonePayout(ctx, m.ID, at, at.Add(-PayoutClaimTTL))
		})
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
	}

	// 未过期的认领挡住付款
	claim(now.Add(-time.Minute))
	if _, err := f.svc.PayMilestone(ctx, m.ID, f.owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("pay with live claim: got %v", err)
	}
	if f.gateway.calls != 0 {
		t.Fatalf("gateway called %d times", f.gateway.calls)
	}

	// 认领方崩溃，超过 TTL 后可以重新付款
	f.svc.now = func() time.Time { return now.Add(PayoutClaimTTL) }
	if _, err := f.svc.PayMilestone(ctx, m.ID, f.owner.ID); err != nil {
		t.Fatalf("pay after claim expired: %v", err)
	}
	if f.gateway.calls != 1 {
		t.Errorf("gateway called %d times, want 1", f.gateway.calls)
	}
}

func TestMilestoneWritesLockProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := &lockRecordingStore{Store: f.store}
	f.svc.store = rec

	m, err := f.svc.CreateMilestone(ctx, f.project.ID, f.owner.ID, CreateInput{Title: "API", Amount: 700})
	if err != nil {
		t.Fatal(err)
	}
	steps := []struct {
		name string
		run  func() error
	}{
		{"create", func() error { return nil }},
		{"submit", func() error { _, err := f.svc.SubmitMilestone(ctx, m.ID, f.freelancer.ID); return err }},
		{"approve", func() error { _, err := f.svc.ApproveMilestone(ctx, m.ID, f.owner.ID); return err }},
		{"pay", func() error { _, err := f.svc.PayMilestone(ctx, m.ID, f.owner.ID); return err }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		locked := rec.reset()
		if len(locked) == 0 {
			t.Errorf("%s did not lock the project", step.name)
		}
		for _, id := range locked {
			if id != f.project.ID {
				t.Errorf("%s locked project %d, want %d", step.name, id, f.project.ID)
			}
		}
	}
}
