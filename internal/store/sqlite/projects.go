package sqlite

import (
	"context"
	"database/sql"

	"symbio/internal/model"
)

const projectColumns = `id, owner_id, title, description, budget, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*model.Project, error) {
	var p model.Project
	var created, updated int64
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Budget, &p.Status, &created, &updated); err != nil {
		return nil, mapErr(err)
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (t *tx) CreateProject(ctx context.Context, p *model.Project) error {
	now := toMillis(t.now())
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO projects (owner_id, title, description, budget, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.OwnerID, p.Title, p.Description, p.Budget, p.Status, now, now)
	if err != nil {
		return mapErr(err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	p.CreatedAt = fromMillis(now)
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (t *tx) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	return scanProject(t.tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
}

// LockProject 事务以 BEGIN IMMEDIATE 开启，已持有写锁，普通读取即可
func (t *tx) LockProject(ctx context.Context, id int64) (*model.Project, error) {
	return t.GetProject(ctx, id)
}

func (t *tx) UpdateProjectStatus(ctx context.Context, id int64, from, to model.ProjectStatus) error {
	return casResult(t.tx.ExecContext(ctx, `
		UPDATE projects SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, to, toMillis(t.now()), id, from))
}

func (t *tx) ListProjectsByStatus(ctx context.Context, status model.ProjectStatus, limit, offset int) ([]*model.Project, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE status = ? ORDER BY id DESC LIMIT ? OFFSET ?
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
	now := toMillis(t.now())
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO team_members (project_id, freelancer_id, role_in_project, joined_at) VALUES (?, ?, ?, ?)
	`, m.ProjectID, m.FreelancerID, m.RoleInProject, now)
	if err != nil {
		return mapErr(err)
	}
	m.JoinedAt = fromMillis(now)
	return nil
}

func (t *tx) IsTeamMember(ctx context.Context, projectID, freelancerID int64) (bool, error) {
	var found int
	err := t.tx.QueryRowContext(ctx, `
		SELECT 1 FROM team_members WHERE project_id = ? AND freelancer_id = ?
	`, projectID, freelancerID).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, mapErr(err)
}

func (t *tx) ListTeamMembers(ctx context.Context, projectID int64) ([]*model.TeamMember, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT project_id, freelancer_id, role_in_project, joined_at
		FROM team_members WHERE project_id = ? ORDER BY joined_at, freelancer_id
	`, projectID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.TeamMember
	for rows.Next() {
		var m model.TeamMember
		var joined int64
		if err := rows.Scan(&m.ProjectID, &m.FreelancerID, &m.RoleInProject, &joined); err != nil {
			return nil, mapErr(err)
		}
		m.JoinedAt = fromMillis(joined)
		out = append(out, &m)
	}
	return out, rows.Err()
}
