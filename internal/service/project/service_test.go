package project

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/notify"
	"symbio/internal/store"
	"symbio/internal/store/storetest"
)

func newService(t *testing.T) (*Service, store.Store, *model.User) {
	t.Helper()
	st := storetest.NewSQLite(t)
	owner := storetest.CreateUser(t, st, "owner@example.com", model.RoleClient)
	return NewService(st, notify.NewEmitter(zap.NewNop()), zap.NewNop()), st, owner
}

func TestCreateProject(t *testing.T) {
	svc, st, owner := newService(t)
	fl := storetest.CreateUser(t, st, "fl@example.com", model.RoleFreelancer)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, owner.ID, CreateInput{Title: "  Website  ", Budget: 10_000})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Status != model.ProjectDraft || p.Title != "Website" || p.OwnerID != owner.ID {
		t.Errorf("unexpected project %+v", p)
	}

	tests := []struct {
		name    string
		ownerID int64
		in      CreateInput
		want    error
	}{
		{"empty title", owner.ID, CreateInput{Title: " "}, apperr.ErrInvalidInput},
		{"negative budget", owner.ID, CreateInput{Title: "x", Budget: -1}, apperr.ErrInvalidInput},
		{"freelancer", fl.ID, CreateInput{Title: "x"}, apperr.ErrForbidden},
		{"unknown user", owner.ID + 100, CreateInput{Title: "x"}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProject(ctx, tt.ownerID, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProjectLifecycle(t *testing.T) {
	svc, st, owner := newService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, owner.ID, CreateInput{Title: "App"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteProject(ctx, p.ID, owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("complete draft: got %v", err)
	}
	p, err = svc.PublishProject(ctx, p.ID, owner.ID)
	if err != nil {
		t.Fatalf("PublishProject: %v", err)
	}
	if p.Status != model.ProjectOpen {
		t.Fatalf("status = %s", p.Status)
	}
	if _, err := svc.PublishProject(ctx, p.ID, owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("publish twice: got %v", err)
	}

	// 模拟接受提案后的状态
	if err := st.InTx(ctx, func(tx store.Tx) error {
		return tx.UpdateProjectStatus(ctx, p.ID, model.ProjectOpen, model.ProjectInProgress)
	}); err != nil {
		t.Fatal(err)
	}
	m := storetest.CreateMilestone(t, st, p.ID, 500, model.MilestoneApproved)
	if _, err := svc.CompleteProject(ctx, p.ID, owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("complete with unpaid milestone: got %v", err)
	}
	if _, err := svc.ArchiveProject(ctx, p.ID, owner.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("archive in progress: got %v", err)
	}

	m.Status = model.MilestonePaid
	if err := st.InTx(ctx, func(tx store.Tx) error {
		return tx.UpdateMilestoneStatus(ctx, m, model.MilestoneApproved)
	}); err != nil {
		t.Fatal(err)
	}
	p, err = svc.CompleteProject(ctx, p.ID, owner.ID)
	if err != nil {
		t.Fatalf("CompleteProject: %v", err)
	}
	if p.Status != model.ProjectCompleted {
		t.Fatalf("status = %s", p.Status)
	}
	p, err = svc.ArchiveProject(ctx, p.ID, owner.ID)
	if err != nil {
		t.Fatalf("ArchiveProject: %v", err)
	}
	if p.Status != model.ProjectArchived {
		t.Fatalf("status = %s", p.Status)
	}
}

func TestTransitionsRequireOwner(t *testing.T) {
	svc, st, owner := newService(t)
	other := storetest.CreateUser(t, st, "other@example.com", model.RoleClient)
	p := storetest.CreateProject(t, st, owner.ID, model.ProjectDraft)
	ctx := context.Background()

	if _, err := svc.PublishProject(ctx, p.ID, other.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("publish: got %v", err)
	}
	if _, err := svc.ArchiveProject(ctx, p.ID, other.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("archive: got %v", err)
	}
	if _, err := svc.PublishProject(ctx, p.ID+100, owner.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: got %v", err)
	}
	got, err := svc.GetProject(ctx, p.ID, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.ProjectDraft {
		t.Errorf("status changed to %s", got.Status)
	}
}

func TestArchiveOpenProjectRejectsPendingProposals(t *testing.T) {
	svc, st, owner := newService(t)
	ctx := context.Background()
	p := storetest.CreateProject(t, st, owner.ID, model.ProjectOpen)
	fa := storetest.CreateUser(t, st, "a@example.com", model.RoleFreelancer)
	fb := storetest.CreateUser(t, st, "b@example.com", model.RoleFreelancer)
	storetest.CreateProposal(t, st, p.ID, fa.ID)
	storetest.CreateProposal(t, st, p.ID, fb.ID)

	if _, err := svc.ArchiveProject(ctx, p.ID, owner.ID); err != nil {
		t.Fatalf("ArchiveProject: %v", err)
	}
	err := st.InTx(ctx, func(tx store.Tx) error {
		proposals, err := tx.ListProposalsByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, pr := range proposals {
			if pr.Status != model.ProposalRejected {
				t.Errorf("proposal %d is %s", pr.ID, pr.Status)
			}
		}
		for _, id := range []int64{fa.ID, fb.ID} {
			ns, err := tx.ListNotifications(ctx, id, false, 10)
			if err != nil {
				return err
			}
			if len(ns) != 1 || ns[0].Type != model.NotificationProposalRejected {
				t.Errorf("user %d notifications = %+v", id, ns)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListOpenProjects(t *testing.T) {
	svc, st, owner := newService(t)
	for i := 0; i < 3; i++ {
		storetest.CreateProject(t, st, owner.ID, model.ProjectOpen)
	}
	storetest.CreateProject(t, st, owner.ID, model.ProjectDraft)
	ctx := context.Background()

	all, err := svc.ListOpenProjects(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d open projects, want 3", len(all))
	}
	page, err := svc.ListOpenProjects(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Errorf("second page has %d projects, want 1", len(page))
	}
}

func TestListTeam(t *testing.T) {
	svc, st, owner := newService(t)
	ctx := context.Background()
	p := storetest.CreateProject(t, st, owner.ID, model.ProjectInProgress)
	member := storetest.CreateUser(t, st, "m@example.com", model.RoleFreelancer)
	outsider := storetest.CreateUser(t, st, "o@example.com", model.RoleFreelancer)
	storetest.AddTeamMember(t, st, p.ID, member.ID)

	for _, id := range []int64{owner.ID, member.ID} {
		team, err := svc.ListTeam(ctx, p.ID, id)
		if err != nil {
			t.Fatalf("ListTeam as %d: %v", id, err)
		}
		if len(team) != 1 || team[0].FreelancerID != member.ID {
			t.Errorf("team = %+v", team)
		}
	}
	if _, err := svc.ListTeam(ctx, p.ID, outsider.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("outsider: got %v", err)
	}
}

func TestGetProjectVisibility(t *testing.T) {
	svc, st, owner := newService(t)
	ctx := context.Background()
	member := storetest.CreateUser(t, st, "m@example.com", model.RoleFreelancer)
	outsider := storetest.CreateUser(t, st, "o@example.com", model.RoleFreelancer)

	open := storetest.CreateProject(t, st, owner.ID, model.ProjectOpen)
	for _, id := range []int64{0, outsider.ID} {
		if _, err := svc.GetProject(ctx, open.ID, id); err != nil {
			t.Errorf("open project as %d: %v", id, err)
		}
	}

	for _, status := range []model.ProjectStatus{model.ProjectDraft, model.ProjectInProgress} {
		p := storetest.CreateProject(t, st, owner.ID, status)
		storetest.AddTeamMember(t, st, p.ID, member.ID)

		for _, id := range []int64{owner.ID, member.ID} {
			got, err := svc.GetProject(ctx, p.ID, id)
			if err != nil {
				t.Fatalf("%s project as %d: %v", status, id, err)
			}
			if got.ID != p.ID {
				t.Errorf("got project %d, want %d", got.ID, p.ID)
			}
		}
		for _, id := range []int64{0, outsider.ID} {
			if _, err := svc.GetProject(ctx, p.ID, id); !errors.Is(err, apperr.ErrForbidden) {
				t.Errorf("%s project as %d: got %v, want forbidden", status, id, err)
			}
		}
	}

	if _, err := svc.GetProject(ctx, open.ID+100, owner.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: got %v", err)
	}
}
