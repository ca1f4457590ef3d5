package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
)

const userColumns = `id, google_id, email, name, avatar_url, role, last_login, created_at, updated_at`

// UpsertUser inserts or refreshes a user keyed by Google ID.
//
// On conflict only the profile fields and last_login change; role and the
// internal id are preserved. After the write the row is read back so the
// caller's struct reflects the canonical record (id, role, created_at).
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	if user.GoogleID == "" {
		return apperror.ValidationFailed("google_id", "google id is required")
	}

	role := user.Role
	if !role.Valid() {
		role = model.RoleUser
	}

	now := time.Now().UTC()
	lastLogin := user.LastLogin
	if lastLogin.IsZero() {
		lastLogin = now
	}

	_, err := db.exec(ctx,
		`INSERT INTO users (id, google_id, email, name, avatar_url, role, last_login, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (google_id) DO UPDATE SET
		     email = excluded.email,
		     name = excluded.name,
		     avatar_url = excluded.avatar_url,
		     last_login = excluded.last_login,
		     updated_at = excluded.updated_at`,
		xid.New().String(),
		user.GoogleID,
		model.NormalizeEmail(user.Email),
		user.Name,
		user.AvatarURL,
		string(role),
		lastLogin,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: upserting user (googleID=%s): %w", user.GoogleID, err)
	}

	stored, err := db.GetUserByGoogleID(ctx, user.GoogleID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// GetUser retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	row := db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", googleID)
		}
		return nil, fmt.Errorf("sqlstore: getting user by google id %s: %w", googleID, err)
	}
	return u, nil
}

// SetUserRole changes the role of the user with the given email. Sessions
// issued before the change keep the old role until the user logs in again.
func (db *DB) SetUserRole(ctx context.Context, email string, role model.Role) error {
	if !role.Valid() {
		return apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", role))
	}
	email = model.NormalizeEmail(email)
	res, err := db.exec(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE email = ?`,
		string(role), time.Now().UTC(), email)
	if err != nil {
		return fmt.Errorf("sqlstore: setting role for %s: %w", email, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", email)
	}
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.GoogleID,
		&u.Email,
		&u.Name,
		&u.AvatarURL,
		&role,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
