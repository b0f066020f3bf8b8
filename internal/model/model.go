package model

import "time"

// 用户角色
const (
	RoleClient     = "CLIENT"
	RoleFreelancer = "FREELANCER"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile credibility_score 只由评分任务写入
type Profile struct {
	UserID           int64     `json:"user_id"`
	DisplayName      string    `json:"display_name"`
	Bio              string    `json:"bio"`
	Skills           []string  `json:"skills"`
	CredibilityScore float64   `json:"credibility_score"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "DRAFT"
	ProjectOpen       ProjectStatus = "OPEN"
	ProjectInProgress ProjectStatus = "IN_PROGRESS"
	ProjectCompleted  ProjectStatus = "COMPLETED"
	ProjectArchived   ProjectStatus = "ARCHIVED"
)

// Budget 以最小货币单位保存
type Project struct {
	ID          int64         `json:"id"`
	OwnerID     int64         `json:"owner_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Budget      int64         `json:"budget"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "PENDING"
	ProposalAccepted ProposalStatus = "ACCEPTED"
	ProposalRejected ProposalStatus = "REJECTED"
)

type Proposal struct {
	ID           int64          `json:"id"`
	ProjectID    int64          `json:"project_id"`
	FreelancerID int64          `json:"freelancer_id"`
	CoverLetter  string         `json:"cover_letter"`
	BidAmount    int64          `json:"bid_amount"`
	Status       ProposalStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TeamMemberRoleFreelancer 接受提案时写入的 role_in_project
const TeamMemberRoleFreelancer = "freelancer"

type TeamMember struct {
	ProjectID     int64     `json:"project_id"`
	FreelancerID  int64     `json:"freelancer_id"`
	RoleInProject string    `json:"role_in_project"`
	JoinedAt      time.Time `json:"joined_at"`
}

type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "PENDING"
	MilestoneSubmitted MilestoneStatus = "SUBMITTED"
	MilestoneApproved  MilestoneStatus = "APPROVED"
	MilestonePaid      MilestoneStatus = "PAID"
)

type Milestone struct {
	ID          int64           `json:"id"`
	ProjectID   int64           `json:"project_id"`
	Title       string          `json:"title"`
	Amount      int64           `json:"amount"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
	Status      MilestoneStatus `json:"status"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	PayoutRef   string          `json:"payout_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Review struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"project_id"`
	ReviewerID   int64     `json:"reviewer_id"`
	FreelancerID int64     `json:"freelancer_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScoringInput 评分任务对单个 freelancer 汇总的原始数据
type ScoringInput struct {
	FreelancerID      int64
	AvgRating         float64
	CompletedProjects int
	OnTimeMilestones  int
	DueMilestones     int
}
