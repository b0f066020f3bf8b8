// Package storetest holds the conformance suite every store backend must
// pass, plus helpers for opening a throwaway SQLite store in tests.
package storetest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"symbio/internal/model"
	"symbio/internal/store"
	"symbio/internal/store/sqlite"
	"symbio/pkg/outbox"
)

// NewSQLite 在 t.TempDir() 下创建一个已迁移的 SQLite store
func NewSQLite(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "symbio.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// Seed 的辅助函数，失败直接终止测试
func CreateUser(t *testing.T, s store.Store, email, role string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", Role: role}
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateUser(context.Background(), u); err != nil {
			return err
		}
		return tx.CreateProfile(context.Background(), &model.Profile{UserID: u.ID})
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func CreateProject(t *testing.T, s store.Store, ownerID int64, status model.ProjectStatus) *model.Project {
	t.Helper()
	p := &model.Project{OwnerID: ownerID, Title: "Landing page", Budget: 50_000, Status: status}
	if err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateProject(context.Background(), p)
	}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func CreateProposal(t *testing.T, s store.Store, projectID, freelancerID int64) *model.Proposal {
	t.Helper()
	p := &model.Proposal{ProjectID: projectID, FreelancerID: freelancerID, CoverLetter: "hi", BidAmount: 40_000, Status: model.ProposalPending}
	if err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateProposal(context.Background(), p)
	}); err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	return p
}

func AddTeamMember(t *testing.T, s store.Store, projectID, freelancerID int64) {
	t.Helper()
	m := &model.TeamMember{ProjectID: projectID, FreelancerID: freelancerID, RoleInProject: model.TeamMemberRoleFreelancer}
	if err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.AddTeamMember(context.Background(), m)
	}); err != nil {
		t.Fatalf("add team member: %v", err)
	}
}

func CreateMilestone(t *testing.T, s store.Store, projectID, amount int64, status model.MilestoneStatus) *model.Milestone {
	t.Helper()
	m := &model.Milestone{ProjectID: projectID, Title: "Design", Amount: amount, Status: status}
	if err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateMilestone(context.Background(), m)
	}); err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	return m
}

// Run 对 newStore 返回的空库执行全部一致性用例
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"UserEmailUnique", testUserEmailUnique},
		{"ProfileRoundTrip", testProfileRoundTrip},
		{"ProjectStatusCAS", testProjectStatusCAS},
		{"RejectPendingProposals", testRejectPendingProposals},
		{"OneActiveProposal", testOneActiveProposal},
		{"OneAcceptedProposal", testOneAcceptedProposal},
		{"ConcurrentAccept", testConcurrentAccept},
		{"RollbackOnError", testRollbackOnError},
		{"TeamMembers", testTeamMembers},
		{"MilestoneCAS", testMilestoneCAS},
		{"MilestonePayoutClaim", testMilestonePayoutClaim},
		{"ReviewUnique", testReviewUnique},
		{"Notifications", testNotifications},
		{"ScoringInputs", testScoringInputs},
		{"Outbox", testOutbox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func inTx(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) error {
	t.Helper()
	ctx := context.Background()
	return s.InTx(ctx, func(tx store.Tx) error { return fn(ctx, tx) })
}

func mustTx(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	if err := inTx(t, s, fn); err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func testUserEmailUnique(t *testing.T, s store.Store) {
	u := CreateUser(t, s, "ada@example.com", model.RoleClient)
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateUser(ctx, &model.User{Email: "ada@example.com", PasswordHash: "y", Role: model.RoleFreelancer})
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate email: got %v, want ErrDuplicate", err)
	}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetUserByEmail(ctx, "ada@example.com")
		if err != nil {
			return err
		}
		if got.ID != u.ID || got.Role != model.RoleClient {
			t.Errorf("GetUserByEmail = %+v", got)
		}
		if _, err := tx.GetUser(ctx, u.ID+1000); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetUser(missing) = %v, want ErrNotFound", err)
		}
		return nil
	})
}

func testProfileRoundTrip(t *testing.T, s store.Store) {
	u := CreateUser(t, s, "grace@example.com", model.RoleFreelancer)
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpdateCredibilityScore(ctx, u.ID, 42.5); err != nil {
			return err
		}
		p := &model.Profile{UserID: u.ID, DisplayName: "Grace", Bio: "compilers", Skills: []string{"go", "sql"}}
		if err := tx.UpdateProfile(ctx, p); err != nil {
			return err
		}
		if p.CredibilityScore != 42.5 {
			t.Errorf("UpdateProfile must not touch score, got %v", p.CredibilityScore)
		}
		got, err := tx.GetProfile(ctx, u.ID)
		if err != nil {
			return err
		}
		if got.DisplayName != "Grace" || len(got.Skills) != 2 || got.Skills[1] != "sql" || got.CredibilityScore != 42.5 {
			t.Errorf("GetProfile = %+v", got)
		}
		return nil
	})
}

func testProjectStatusCAS(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "owner@example.com", model.RoleClient)
	p := CreateProject(t, s, owner.ID, model.ProjectDraft)

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateProjectStatus(ctx, p.ID, model.ProjectDraft, model.ProjectOpen)
	})
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateProjectStatus(ctx, p.ID, model.ProjectDraft, model.ProjectArchived)
	})
	if !errors.Is(err, store.ErrStale) {
		t.Fatalf("stale CAS: got %v, want ErrStale", err)
	}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.LockProject(ctx, p.ID)
		if err != nil {
			return err
		}
		if locked.Status != model.ProjectOpen {
			t.Errorf("status = %s, want OPEN", locked.Status)
		}
		open, err := tx.ListProjectsByStatus(ctx, model.ProjectOpen, 10, 0)
		if err != nil {
			return err
		}
		if len(open) != 1 || open[0].ID != p.ID {
			t.Errorf("ListProjectsByStatus = %v", open)
		}
		return nil
	})
}

func testRejectPendingProposals(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	f1 := CreateUser(t, s, "f1@example.com", model.RoleFreelancer)
	f2 := CreateUser(t, s, "f2@example.com", model.RoleFreelancer)
	f3 := CreateUser(t, s, "f3@example.com", model.RoleFreelancer)
	p := CreateProject(t, s, owner.ID, model.ProjectOpen)
	a := CreateProposal(t, s, p.ID, f1.ID)
	CreateProposal(t, s, p.ID, f2.ID)
	CreateProposal(t, s, p.ID, f3.ID)

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpdateProposalStatus(ctx, a.ID, model.ProposalPending, model.ProposalAccepted); err != nil {
			return err
		}
		rejected, err := tx.RejectPendingProposals(ctx, p.ID, a.ID)
		if err != nil {
			return err
		}
		if len(rejected) != 2 {
			t.Errorf("rejected %d proposals, want 2", len(rejected))
		}
		for _, r := range rejected {
			if r.Status != model.ProposalRejected || r.ID == a.ID {
				t.Errorf("unexpected rejected row %+v", r)
			}
		}
		return nil
	})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		all, err := tx.ListProposalsByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		counts := map[model.ProposalStatus]int{}
		for _, pr := range all {
			counts[pr.Status]++
		}
		if counts[model.ProposalAccepted] != 1 || counts[model.ProposalRejected] != 2 {
			t.Errorf("status counts = %v", counts)
		}
		mine, err := tx.ListProposalsByFreelancer(ctx, f1.ID)
		if err != nil {
			return err
		}
		if len(mine) != 1 || mine[0].ID != a.ID {
			t.Errorf("ListProposalsByFreelancer = %v", mine)
		}
		return nil
	})
}

func testOneActiveProposal(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	f := CreateUser(t, s, "f@example.com", model.RoleFreelancer)
	p := CreateProject(t, s, owner.ID, model.ProjectOpen)
	first := CreateProposal(t, s, p.ID, f.ID)

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateProposal(ctx, &model.Proposal{ProjectID: p.ID, FreelancerID: f.ID, Status: model.ProposalPending})
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("second active proposal: got %v, want ErrDuplicate", err)
	}

	// 被拒绝后可以重新提交
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpdateProposalStatus(ctx, first.ID, model.ProposalPending, model.ProposalRejected); err != nil {
			return err
		}
		active, err := tx.HasActiveProposal(ctx, p.ID, f.ID)
		if err != nil {
			return err
		}
		if active {
			t.Error("rejected proposal counted as active")
		}
		return tx.CreateProposal(ctx, &model.Proposal{ProjectID: p.ID, FreelancerID: f.ID, Status: model.ProposalPending})
	})
}

func testOneAcceptedProposal(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	f1 := CreateUser(t, s, "f1@example.com", model.RoleFreelancer)
	f2 := CreateUser(t, s, "f2@example.com", model.RoleFreelancer)
	p := CreateProject(t, s, owner.ID, model.ProjectOpen)
	a := CreateProposal(t, s, p.ID, f1.ID)
	b := CreateProposal(t, s, p.ID, f2.ID)

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateProposalStatus(ctx, a.ID, model.ProposalPending, model.ProposalAccepted)
	})
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateProposalStatus(ctx, b.ID, model.ProposalPending, model.ProposalAccepted)
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("second accepted proposal: got %v, want ErrDuplicate", err)
	}
}

var errProjectTaken = errors.New("project no longer open")

// acceptInTx 与 AcceptProposal 相同的写入顺序：锁项目、确认 OPEN、CAS 各状态、加入团队
func acceptInTx(ctx context.Context, tx store.Tx, projectID int64, p *model.Proposal) error {
	project, err := tx.LockProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status != model.ProjectOpen {
		return errProjectTaken
	}
	// 拉长持锁时间，让另一个事务一定在锁上等待
	time.Sleep(20 * time.Millisecond)
	if err := tx.UpdateProposalStatus(ctx, p.ID, model.ProposalPending, model.ProposalAccepted); err != nil {
		return err
	}
	if _, err := tx.RejectPendingProposals(ctx, projectID, p.ID); err != nil {
		return err
	}
	if err := tx.UpdateProjectStatus(ctx, projectID, model.ProjectOpen, model.ProjectInProgress); err != nil {
		return err
	}
	return tx.AddTeamMember(ctx, &model.TeamMember{ProjectID: projectID, FreelancerID: p.FreelancerID, RoleInProject: model.TeamMemberRoleFreelancer})
}

func testConcurrentAccept(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	f1 := CreateUser(t, s, "f1@example.com", model.RoleFreelancer)
	f2 := CreateUser(t, s, "f2@example.com", model.RoleFreelancer)
	p := CreateProject(t, s, owner.ID, model.ProjectOpen)
	proposals := []*model.Proposal{CreateProposal(t, s, p.ID, f1.ID), CreateProposal(t, s, p.ID, f2.ID)}

	start := make(chan struct{})
	errs := make([]error, len(proposals))
	var wg sync.WaitGroup
	for i, pr := range proposals {
		wg.Add(1)
		go func(i int, pr *model.Proposal) {
			defer wg.Done()
			<-start
			errs[i] = s.InTx(context.Background(), func(tx store.Tx) error {
				return acceptInTx(context.Background(), tx, p.ID, pr)
			})
		}(i, pr)
	}
	close(start)
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, errProjectTaken), errors.Is(err, store.ErrStale):
		default:
			t.Errorf("accept %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d accepts succeeded, want exactly 1 (errs=%v)", wins, errs)
	}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		project, err := tx.GetProject(ctx, p.ID)
		if err != nil {
			return err
		}
		if project.Status != model.ProjectInProgress {
			t.Errorf("project status = %s, want IN_PROGRESS", project.Status)
		}
		all, err := tx.ListProposalsByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		counts := map[model.ProposalStatus]int{}
		for _, pr := range all {
			counts[pr.Status]++
		}
		if counts[model.ProposalAccepted] != 1 || counts[model.ProposalRejected] != 1 {
			t.Errorf("status counts = %v", counts)
		}
		team, err := tx.ListTeamMembers(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(team) != 1 {
			t.Errorf("team size = %d, want 1", len(team))
		}
		return nil
	})
}

func testRollbackOnError(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	p := CreateProject(t, s, owner.ID, model.ProjectOpen)
	boom := errors.New("boom")

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpdateProjectStatus(ctx, p.ID, model.ProjectOpen, model.ProjectInProgress); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx returned %v, want boom", err)
	}
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetProject(ctx, p.ID)
		if err != nil {
			return err
		}
		if got.Status != model.ProjectOpen {
			t.Errorf("status after rollback = %s, want OPEN", got.Status)
		}
		return nil
	})
}

func testTeamMembers(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	f := CreateUser(t, s, "f@example.com", model.RoleFreelancer)
	p := CreateProject(t, s, owner.ID, model.ProjectInProgress)

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.AddTeamMember(ctx, &model.TeamMember{ProjectID: p.ID, FreelancerID: f.ID, RoleInProject: model.TeamMemberRoleFreelancer})
	})
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.AddTeamMember(ctx, &model.TeamMember{ProjectID: p.ID, FreelancerID: f.ID, RoleInProject: model.TeamMemberRoleFreelancer})
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate member: got %v", err)
	}
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		ok, err := tx.IsTeamMember(ctx, p.ID, f.ID)
		if err != nil || !ok {
			t.Errorf("IsTeamMember = %v, %v", ok, err)
		}
		ok, err = tx.IsTeamMember(ctx, p.ID, owner.ID)
		if err != nil || ok {
			t.Errorf("owner IsTeamMember = %v, %v", ok, err)
		}
		members, err := tx.ListTeamMembers(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(members) != 1 || members[0].RoleInProject != model.TeamMemberRoleFreelancer {
			t.Errorf("ListTeamMembers = %v", members)
		}
		return nil
	})
}

func testMilestoneCAS(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	p := CreateProject(t, s, owner.ID, model.ProjectInProgress)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &model.Milestone{ProjectID: p.ID, Title: "Design", Amount: 10_000, DueAt: &due, Status: model.MilestonePending}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateMilestone(ctx, m); err != nil {
			return err
		}
		submitted := due.Add(-time.Hour)
		m.Status = model.MilestoneSubmitted
		m.SubmittedAt = &submitted
		return tx.UpdateMilestoneStatus(ctx, m, model.MilestonePending)
	})

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		m.Status = model.MilestoneApproved
		return tx.UpdateMilestoneStatus(ctx, m, model.MilestonePending)
	})
	if !errors.Is(err, store.ErrStale) {
		t.Fatalf("stale milestone CAS: got %v", err)
	}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetMilestone(ctx, m.ID)
		if err != nil {
			return err
		}
		if got.Status != model.MilestoneSubmitted || got.SubmittedAt == nil || got.DueAt == nil || !got.DueAt.Equal(due) {
			t.Errorf("GetMilestone = %+v", got)
		}
		if got.ApprovedAt != nil || got.PayoutRef != "" {
			t.Errorf("unexpected approval fields %+v", got)
		}
		n, err := tx.CountMilestonesNotPaid(ctx, p.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("CountMilestonesNotPaid = %d", n)
		}
		list, err := tx.ListMilestones(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(list) != 1 {
			t.Errorf("ListMilestones len = %d", len(list))
		}
		return nil
	})
}

func testMilestonePayoutClaim(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	p := CreateProject(t, s, owner.ID, model.ProjectInProgress)
	pending := CreateMilestone(t, s, p.ID, 100, model.MilestonePending)
	m := CreateMilestone(t, s, p.ID, 100, model.MilestoneApproved)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	ttl := 15 * time.Minute

	claim := func(id int64, at time.Time) error {
		return inTx(t, s, func(ctx context.Context, tx store.Tx) error {
			return tx.ClaimMilestonePayout(ctx, id, at, at.Add(-ttl))
		})
	}

	if err := claim(pending.ID, now); !errors.Is(err, store.ErrStale) {
		t.Errorf("claim on PENDING: got %v, want ErrStale", err)
	}
	if err := claim(m.ID, now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := claim(m.ID, now.Add(time.Minute)); !errors.Is(err, store.ErrStale) {
		t.Errorf("second claim: got %v, want ErrStale", err)
	}
	if err := claim(m.ID, now.Add(ttl+time.Second)); err != nil {
		t.Errorf("claim after expiry: %v", err)
	}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.ReleaseMilestonePayout(ctx, m.ID)
	})
	if err := claim(m.ID, now.Add(ttl+2*time.Second)); err != nil {
		t.Errorf("claim after release: %v", err)
	}
}

func testReviewUnique(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	f := CreateUser(t, s, "f@example.com", model.RoleFreelancer)
	p := CreateProject(t, s, owner.ID, model.ProjectCompleted)
	r := &model.Review{ProjectID: p.ID, ReviewerID: owner.ID, FreelancerID: f.ID, Rating: 5, Comment: "great"}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.CreateReview(ctx, r) })
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateReview(ctx, &model.Review{ProjectID: p.ID, ReviewerID: owner.ID, FreelancerID: f.ID, Rating: 1})
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate review: got %v", err)
	}
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		list, err := tx.ListReviewsForFreelancer(ctx, f.ID)
		if err != nil {
			return err
		}
		if len(list) != 1 || list[0].Rating != 5 {
			t.Errorf("ListReviewsForFreelancer = %v", list)
		}
		return nil
	})
}

func testNotifications(t *testing.T, s store.Store) {
	u := CreateUser(t, s, "u@example.com", model.RoleFreelancer)
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	p := CreateProject(t, s, owner.ID, model.ProjectOpen)

	var first *model.Notification
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		for i := 0; i < 3; i++ {
			n := &model.Notification{UserID: u.ID, Type: model.NotificationProposalRejected, Message: "no", ProjectID: &p.ID}
			if err := tx.CreateNotification(ctx, n); err != nil {
				return err
			}
			if first == nil {
				first = n
			}
		}
		return tx.MarkNotificationRead(ctx, first.ID)
	})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		all, err := tx.ListNotifications(ctx, u.ID, false, 10)
		if err != nil {
			return err
		}
		unread, err := tx.ListNotifications(ctx, u.ID, true, 10)
		if err != nil {
			return err
		}
		if len(all) != 3 || len(unread) != 2 {
			t.Errorf("all=%d unread=%d", len(all), len(unread))
		}
		if all[0].ID < all[1].ID {
			t.Error("notifications must be newest first")
		}
		got, err := tx.GetNotification(ctx, first.ID)
		if err != nil {
			return err
		}
		if !got.IsRead || got.ProjectID == nil || *got.ProjectID != p.ID || got.ProposalID != nil {
			t.Errorf("GetNotification = %+v", got)
		}
		if err := tx.MarkNotificationRead(ctx, first.ID+100); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("MarkNotificationRead(missing) = %v", err)
		}
		return nil
	})
}

func testScoringInputs(t *testing.T, s store.Store) {
	owner := CreateUser(t, s, "o@example.com", model.RoleClient)
	f := CreateUser(t, s, "f@example.com", model.RoleFreelancer)
	idle := CreateUser(t, s, "idle@example.com", model.RoleFreelancer)
	p := CreateProject(t, s, owner.ID, model.ProjectCompleted)
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	early, late := due.Add(-time.Hour), due.Add(time.Hour)

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.AddTeamMember(ctx, &model.TeamMember{ProjectID: p.ID, FreelancerID: f.ID, RoleInProject: model.TeamMemberRoleFreelancer}); err != nil {
			return err
		}
		for _, approved := range []time.Time{early, late} {
			approved := approved
			m := &model.Milestone{ProjectID: p.ID, Title: "m", Amount: 1, DueAt: &due, Status: model.MilestonePending}
			if err := tx.CreateMilestone(ctx, m); err != nil {
				return err
			}
			m.Status = model.MilestonePaid
			m.ApprovedAt = &approved
			m.PaidAt = &approved
			if err := tx.UpdateMilestoneStatus(ctx, m, model.MilestonePending); err != nil {
				return err
			}
		}
		return tx.CreateReview(ctx, &model.Review{ProjectID: p.ID, ReviewerID: owner.ID, FreelancerID: f.ID, Rating: 4})
	})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		inputs, err := tx.ListScoringInputs(ctx)
		if err != nil {
			return err
		}
		if len(inputs) != 2 {
			t.Fatalf("inputs = %+v, want 2 freelancers", inputs)
		}
		got := inputs[0]
		want := model.ScoringInput{FreelancerID: f.ID, AvgRating: 4, CompletedProjects: 1, OnTimeMilestones: 1, DueMilestones: 2}
		if got != want {
			t.Errorf("input = %+v, want %+v", got, want)
		}
		if (inputs[1] != model.ScoringInput{FreelancerID: idle.ID}) {
			t.Errorf("idle input = %+v", inputs[1])
		}
		return nil
	})
}

func testOutbox(t *testing.T, s store.Store) {
	ctx := context.Background()
	aggregateID := int64(9)
	e, err := outbox.NewEvent("notification", &aggregateID, "notification.created", map[string]any{"notification_id": 9})
	if err != nil {
		t.Fatal(err)
	}
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.InsertOutboxEvent(ctx, e) })

	ob := s.Outbox()
	pending, err := ob.GetPendingEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != e.ID || pending[0].RoutingKey != "notification.created" {
		t.Fatalf("pending = %+v", pending)
	}
	if pending[0].AggregateID == nil || *pending[0].AggregateID != 9 {
		t.Fatalf("aggregate id = %v", pending[0].AggregateID)
	}

	// 第一次失败进入退避，不再出现在待发送列表
	if err := ob.MarkAsFailed(ctx, e.ID, 2); err != nil {
		t.Fatal(err)
	}
	if pending, _ := ob.GetPendingEvents(ctx, 10); len(pending) != 0 {
		t.Fatalf("event in backoff still pending: %+v", pending)
	}
	if err := ob.MarkAsFailed(ctx, e.ID, 2); err != nil {
		t.Fatal(err)
	}
	failed, err := ob.GetFailedEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].RetryCount != 2 {
		t.Fatalf("failed = %+v", failed)
	}

	if err := ob.ResetEvent(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if err := ob.MarkAsSent(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	got, err := ob.GetEventByID(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != outbox.StatusSent || got.RetryCount != 0 {
		t.Fatalf("event = %+v", got)
	}
	if _, err := ob.GetEventByID(ctx, e.ID+100); !errors.Is(err, outbox.ErrEventNotFound) {
		t.Fatalf("GetEventByID(missing) = %v", err)
	}
}
