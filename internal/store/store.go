// Package store defines the persistence contract shared by the postgres and
// sqlite backends. All reads and writes happen inside Store.InTx so that a
// service operation is one atomic unit.
package store

import (
	"context"
	"errors"
	"time"

	"symbio/internal/model"
	"symbio/pkg/outbox"
)

var (
	// ErrNotFound 行不存在
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("store: duplicate")
	// ErrStale compare-and-set 时当前状态已不是期望值
	ErrStale = errors.New("store: stale status")
)

type Store interface {
	// InTx 在一个事务中执行 fn；fn 返回错误时回滚
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// Outbox 供 dispatcher / replay 使用，不参与业务事务
	Outbox() outbox.Store
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type Tx interface {
	UserTx
	ProjectTx
	ProposalTx
	MilestoneTx
	ReviewTx
	NotificationTx
	ScoringTx
}

type UserTx interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, userID int64) (*model.Profile, error)
	// UpdateProfile 只写 display_name / bio / skills
	UpdateProfile(ctx context.Context, p *model.Profile) error
}

type ProjectTx interface {
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	// LockProject 读取并锁住项目行直到事务结束
	LockProject(ctx context.Context, id int64) (*model.Project, error)
	UpdateProjectStatus(ctx context.Context, id int64, from, to model.ProjectStatus) error
	ListProjectsByStatus(ctx context.Context, status model.ProjectStatus, limit, offset int) ([]*model.Project, error)
	AddTeamMember(ctx context.Context, m *model.TeamMember) error
	IsTeamMember(ctx context.Context, projectID, freelancerID int64) (bool, error)
	ListTeamMembers(ctx context.Context, projectID int64) ([]*model.TeamMember, error)
}

type ProposalTx interface {
	CreateProposal(ctx context.Context, p *model.Proposal) error
	GetProposal(ctx context.Context, id int64) (*model.Proposal, error)
	// HasActiveProposal 是否存在 PENDING 或 ACCEPTED 的提案
	HasActiveProposal(ctx context.Context, projectID, freelancerID int64) (bool, error)
	ListProposalsByProject(ctx context.Context, projectID int64) ([]*model.Proposal, error)
	ListProposalsByFreelancer(ctx context.Context, freelancerID int64) ([]*model.Proposal, error)
	UpdateProposalStatus(ctx context.Context, id int64, from, to model.ProposalStatus) error
	// RejectPendingProposals 把项目下除 exceptID 外的 PENDING 提案置为 REJECTED，返回被拒绝的行
	RejectPendingProposals(ctx context.Context, projectID, exceptID int64) ([]*model.Proposal, error)
}

type MilestoneTx interface {
	CreateMilestone(ctx context.Context, m *model.Milestone) error
	GetMilestone(ctx context.Context, id int64) (*model.Milestone, error)
	ListMilestones(ctx context.Context, projectID int64) ([]*model.Milestone, error)
	// UpdateMilestoneStatus 以 from 做 compare-and-set，写入 m 的状态、时间戳和 payout_ref
	UpdateMilestoneStatus(ctx context.Context, m *model.Milestone, from model.MilestoneStatus) error
	CountMilestonesNotPaid(ctx context.Context, projectID int64) (int, error)
	// ClaimMilestonePayout 仅当里程碑为 APPROVED 且没有未过期的认领（认领时间早于 staleBefore 视为过期）时
	// 写入认领时间 at；否则返回 ErrStale
	ClaimMilestonePayout(ctx context.Context, id int64, at, staleBefore time.Time) error
	// ReleaseMilestonePayout 清除 APPROVED 里程碑上的认领，付款失败后允许重试
	ReleaseMilestonePayout(ctx context.Context, id int64) error
}

type ReviewTx interface {
	CreateReview(ctx context.Context, r *model.Review) error
	ListReviewsForFreelancer(ctx context.Context, freelancerID int64) ([]*model.Review, error)
}

type NotificationTx interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id int64) (*model.Notification, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	InsertOutboxEvent(ctx context.Context, e *outbox.Event) error
}

type ScoringTx interface {
	ListScoringInputs(ctx context.Context) ([]model.ScoringInput, error)
	UpdateCredibilityScore(ctx context.Context, userID int64, score float64) error
}
