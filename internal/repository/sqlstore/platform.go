package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
)

const platformColumns = `id, type, name, credentials, is_active, last_sync_at, created_at, updated_at`

// GetPlatform returns the single row for a platform type, or
// apperror.ErrNotFound when the platform has not been configured.
func (db *DB) GetPlatform(ctx context.Context, t model.PlatformType) (*model.Platform, error) {
	row := db.queryRow(ctx, `SELECT `+platformColumns+` FROM platforms WHERE type = ?`, string(t))
	p, err := scanPlatform(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("platform", string(t))
		}
		return nil, fmt.Errorf("sqlstore: getting platform %s: %w", t, err)
	}
	return p, nil
}

// UpsertPlatform creates or replaces the credentials of a platform.
// last_sync_at is never touched here; see TouchLastSync.
func (db *DB) UpsertPlatform(ctx context.Context, p *model.Platform) error {
	creds, err := json.Marshal(p.Credentials)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding credentials for %s: %w", p.Type, err)
	}

	now := time.Now().UTC()
	name := p.Name
	if name == "" {
		name = string(p.Type)
	}

	_, err = db.exec(ctx,
		`INSERT INTO platforms (id, type, name, credentials, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (type) DO UPDATE SET
		     name = excluded.name,
		     credentials = excluded.credentials,
		     is_active = excluded.is_active,
		     updated_at = excluded.updated_at`,
		xid.New().String(),
		string(p.Type),
		name,
		string(creds),
		p.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: upserting platform %s: %w", p.Type, err)
	}

	stored, err := db.GetPlatform(ctx, p.Type)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (db *DB) ListPlatforms(ctx context.Context) ([]model.Platform, error) {
	rows, err := db.query(ctx, `SELECT `+platformColumns+` FROM platforms ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing platforms: %w", err)
	}
	defer rows.Close()

	out := []model.Platform{}
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning platform: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating platforms: %w", err)
	}
	return out, nil
}

func (db *DB) TouchLastSync(ctx context.Context, t model.PlatformType, at time.Time) error {
	res, err := db.exec(ctx,
		`UPDATE platforms SET last_sync_at = ?, updated_at = ? WHERE type = ?`,
		at.UTC(), time.Now().UTC(), string(t),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating last_sync_at for %s: %w", t, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("platform", string(t))
	}
	return nil
}

func scanPlatform(row interface{ Scan(...any) error }) (*model.Platform, error) {
	var (
		p        model.Platform
		typ      string
		creds    string
		lastSync sql.NullTime
	)
	if err := row.Scan(
		&p.ID,
		&typ,
		&p.Name,
		&creds,
		&p.IsActive,
		&lastSync,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Type = model.PlatformType(typ)
	if lastSync.Valid {
		t := lastSync.Time
		p.LastSyncAt = &t
	}
	if err := json.Unmarshal([]byte(creds), &p.Credentials); err != nil {
		return nil, fmt.Errorf("decoding credentials for %s: %w", typ, err)
	}
	return &p, nil
}
