package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"symbio/internal/model"
)

const projectColumns = `id, owner_id, title, description, budget, status, created_at, updated_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Budget, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *tx) CreateProject(ctx context.Context, p *model.Project) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO projects (owner_id, title, description, budget, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, p.OwnerID, p.Title, p.Description, p.Budget, p.Status).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

func (t *tx) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	return scanProject(t.tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// LockProject 对项目行加 FOR UPDATE 锁，同一项目上的生命周期事务因此串行化
func (t *tx) LockProject(ctx context.Context, id int64) (*model.Project, error) {
	return scanProject(t.tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
}

func (t *tx) UpdateProjectStatus(ctx context.Context, id int64, from, to model.ProjectStatus) error {
	return casResult(t.tx.Exec(ctx, `
		UPDATE projects
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from))
}

func (t *tx) ListProjectsByStatus(ctx context.Context, status model.ProjectStatus, limit, offset int) ([]*model.Project, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE status = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *tx) AddTeamMember(ctx context.Context, m *model.TeamMember) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO team_members (project_id, freelancer_id, role_in_project)
		VALUES ($1, $2, $3)
		RETURNING joined_at
	`, m.ProjectID, m.FreelancerID, m.RoleInProject).Scan(&m.JoinedAt)
	return mapErr(err)
}

func (t *tx) IsTeamMember(ctx context.Context, projectID, freelancerID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM team_members WHERE project_id = $1 AND freelancer_id = $2)
	`, projectID, freelancerID).Scan(&ok)
	return ok, mapErr(err)
}

func (t *tx) ListTeamMembers(ctx context.Context, projectID int64) ([]*model.TeamMember, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT project_id, freelancer_id, role_in_project, joined_at
		FROM team_members
		WHERE project_id = $1
		ORDER BY joined_at, freelancer_id
	`, projectID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.TeamMember
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.ProjectID, &m.FreelancerID, &m.RoleInProject, &m.JoinedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
