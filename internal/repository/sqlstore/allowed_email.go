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

// GetAllowedEmail looks up an allow-list entry. The lookup is
// case-insensitive because every stored address is normalized on insert.
func (db *DB) GetAllowedEmail(ctx context.Context, email string) (*model.AllowedEmail, error) {
	email = model.NormalizeEmail(email)

	var a model.AllowedEmail
	err := db.queryRow(ctx,
		`SELECT id, email, invited_by, created_at FROM allowed_emails WHERE email = ?`,
		email,
	).Scan(&a.ID, &a.Email, &a.InvitedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("allowed email", email)
		}
		return nil, fmt.Errorf("sqlstore: getting allowed email %s: %w", email, err)
	}
	return &a, nil
}

// AddAllowedEmail inserts an entry. Adding an address that is already
// present returns apperror.ErrConflict.
func (db *DB) AddAllowedEmail(ctx context.Context, entry *model.AllowedEmail) error {
	entry.Email = model.NormalizeEmail(entry.Email)
	if entry.Email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}

	if _, err := db.GetAllowedEmail(ctx, entry.Email); err == nil {
		return apperror.Conflict("allowed email", entry.Email)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	entry.ID = xid.New().String()
	entry.CreatedAt = time.Now().UTC()

	_, err := db.exec(ctx,
		`INSERT INTO allowed_emails (id, email, invited_by, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Email, entry.InvitedBy, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting allowed email %s: %w", entry.Email, err)
	}
	return nil
}

func (db *DB) RemoveAllowedEmail(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)

	res, err := db.exec(ctx, `DELETE FROM allowed_emails WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting allowed email %s: %w", email, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("allowed email", email)
	}
	return nil
}

func (db *DB) ListAllowedEmails(ctx context.Context) ([]model.AllowedEmail, error) {
	rows, err := db.query(ctx,
		`SELECT id, email, invited_by, created_at FROM allowed_emails ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing allowed emails: %w", err)
	}
	defer rows.Close()

	var out []model.AllowedEmail
	for rows.Next() {
		var a model.AllowedEmail
		if err := rows.Scan(&a.ID, &a.Email, &a.InvitedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning allowed email: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating allowed emails: %w", err)
	}

	// Return an empty slice, not nil, so JSON encodes [] rather than null.
	if out == nil {
		out = []model.AllowedEmail{}
	}
	return out, nil
}
