package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"symbio/internal/model"
)

func (t *tx) CreateUser(ctx context.Context, u *model.User) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, u.Email, u.PasswordHash, u.Role).Scan(&u.ID, &u.CreatedAt)
	return mapErr(err)
}

const userColumns = `id, email, password_hash, role, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (t *tx) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
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

func decodeSkills(raw string) ([]string, error) {
	skills := []string{}
	if raw == "" {
		return skills, nil
	}
	if err := json.Unmarshal([]byte(raw), &skills); err != nil {
		return nil, fmt.Errorf("failed to decode skills: %w", err)
	}
	return skills, nil
}

func (t *tx) CreateProfile(ctx context.Context, p *model.Profile) error {
	skills, err := encodeSkills(p.Skills)
	if err != nil {
		return err
	}
	err = t.tx.QueryRow(ctx, `
		INSERT INTO profiles (user_id, display_name, bio, skills)
		VALUES ($1, $2, $3, $4)
		RETURNING credibility_score, updated_at
	`, p.UserID, p.DisplayName, p.Bio, skills).Scan(&p.CredibilityScore, &p.UpdatedAt)
	return mapErr(err)
}

func (t *tx) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	var p model.Profile
	var skills string
	err := t.tx.QueryRow(ctx, `
		SELECT user_id, display_name, bio, skills, credibility_score, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.DisplayName, &p.Bio, &skills, &p.CredibilityScore, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if p.Skills, err = decodeSkills(skills); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *tx) UpdateProfile(ctx context.Context, p *model.Profile) error {
	skills, err := encodeSkills(p.Skills)
	if err != nil {
		return err
	}
	err = t.tx.QueryRow(ctx, `
		UPDATE profiles
		SET display_name = $1, bio = $2, skills = $3, updated_at = NOW()
		WHERE user_id = $4
		RETURNING credibility_score, updated_at
	`, p.DisplayName, p.Bio, skills, p.UserID).Scan(&p.CredibilityScore, &p.UpdatedAt)
	return mapErr(err)
}
