package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"symbio/internal/model"
)

func (t *tx) CreateUser(ctx context.Context, u *model.User) error {
	now := t.now()
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, role, created_at) VALUES (?, ?, ?, ?)
	`, u.Email, u.PasswordHash, u.Role, toMillis(now))
	if err != nil {
		return mapErr(err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	u.CreatedAt = fromMillis(toMillis(now))
	return nil
}

const userColumns = `id, email, password_hash, role, created_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &created); err != nil {
		return nil, mapErr(err)
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

func (t *tx) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func encodeSkills(skills []string) (string, error) {
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("failed to encode skills: %w", err)
	}
	return string(b), nil
}

func (t *tx) CreateProfile(ctx context.Context, p *model.Profile) error {
	skills, err := encodeSkills(p.Skills)
	if err != nil {
		return err
	}
	now := t.now()
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, bio, skills, updated_at) VALUES (?, ?, ?, ?, ?)
	`, p.UserID, p.DisplayName, p.Bio, skills, toMillis(now))
	if err != nil {
		return mapErr(err)
	}
	p.CredibilityScore = 0
	p.UpdatedAt = fromMillis(toMillis(now))
	return nil
}

func (t *tx) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	var p model.Profile
	var skills string
	var updated int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT user_id, display_name, bio, skills, credibility_score, updated_at
		FROM profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.DisplayName, &p.Bio, &skills, &p.CredibilityScore, &updated)
	if err != nil {
		return nil, mapErr(err)
	}
	p.Skills = []string{}
	if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
		return nil, fmt.Errorf("failed to decode skills: %w", err)
	}
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (t *tx) UpdateProfile(ctx context.Context, p *model.Profile) error {
	skills, err := encodeSkills(p.Skills)
	if err != nil {
		return err
	}
	now := t.now()
	var score float64
	err = t.tx.QueryRowContext(ctx, `
		UPDATE profiles SET display_name = ?, bio = ?, skills = ?, updated_at = ?
		WHERE user_id = ?
		RETURNING credibility_score
	`, p.DisplayName, p.Bio, skills, toMillis(now), p.UserID).Scan(&score)
	if err != nil {
		return mapErr(err)
	}
	p.CredibilityScore = score
	p.UpdatedAt = fromMillis(toMillis(now))
	return nil
}
