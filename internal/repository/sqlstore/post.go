package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository"
)

const postColumns = `id, content_id, platform_type, platform_id, title, content, media_urls,
	published_at, metrics, script, analysis, created_at, updated_at`

// UpsertContentPost is the reconciliation write.
//
// A new content_id inserts the full row. An existing content_id only gets
// its metrics and updated_at replaced; title, content, media and
// published_at stay as first written. Concurrent syncs of the same post
// resolve last-writer-wins on metrics.
//
// The stored row is read back into post.
func (db *DB) UpsertContentPost(ctx context.Context, post *model.ContentPost) error {
	if post.ContentID == "" {
		return apperror.ValidationFailed("content_id", "content id is required")
	}

	media, err := json.Marshal(nonNilStrings(post.MediaURLs))
	if err != nil {
		return fmt.Errorf("sqlstore: encoding media urls: %w", err)
	}
	metrics, err := json.Marshal(post.Metrics)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding metrics: %w", err)
	}
	script, err := nullableJSON(post.Script)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding script: %w", err)
	}
	analysis, err := nullableJSON(post.Analysis)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding analysis: %w", err)
	}

	var score sql.NullFloat64
	if post.Analysis != nil {
		score = sql.NullFloat64{Float64: post.Analysis.PerformanceScore, Valid: true}
	}

	now := time.Now().UTC()
	updatedAt := post.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err = db.exec(ctx,
		`INSERT INTO content_posts (id, content_id, platform_type, platform_id, title, content,
		     media_urls, published_at, metrics, script, analysis, performance_score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (content_id) DO UPDATE SET
		     metrics = excluded.metrics,
		     updated_at = excluded.updated_at`,
		xid.New().String(),
		post.ContentID,
		string(post.PlatformType),
		post.PlatformID,
		post.Title,
		post.Content,
		string(media),
		post.PublishedAt.UTC(),
		string(metrics),
		script,
		analysis,
		score,
		now,
		updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: upserting content post %s: %w", post.ContentID, err)
	}

	stored, err := db.FindContentPostByExternalID(ctx, post.ContentID)
	if err != nil {
		return err
	}
	*post = *stored
	return nil
}

// FindContentPostByExternalID looks a post up by its platform content id.
func (db *DB) FindContentPostByExternalID(ctx context.Context, contentID string) (*model.ContentPost, error) {
	row := db.queryRow(ctx, `SELECT `+postColumns+` FROM content_posts WHERE content_id = ?`, contentID)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("content post", contentID)
		}
		return nil, fmt.Errorf("sqlstore: finding content post %s: %w", contentID, err)
	}
	return p, nil
}

func (db *DB) GetContentPost(ctx context.Context, id string) (*model.ContentPost, error) {
	row := db.queryRow(ctx, `SELECT `+postColumns+` FROM content_posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("content post", id)
		}
		return nil, fmt.Errorf("sqlstore: getting content post %s: %w", id, err)
	}
	return p, nil
}

// ListContentPosts returns posts matching filter. Without OrderByScore the
// newest publications come first.
func (db *DB) ListContentPosts(ctx context.Context, filter repository.PostFilter) ([]model.ContentPost, error) {
	var (
		where []string
		args  []any
	)
	if filter.PlatformType != "" {
		where = append(where, "platform_type = ?")
		args = append(args, string(filter.PlatformType))
	}
	if !filter.CreatedAfter.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.CreatedAfter.UTC())
	}
	if filter.OnlyAnalyzed || filter.OrderByScore {
		where = append(where, "performance_score IS NOT NULL")
	}

	q := `SELECT ` + postColumns + ` FROM content_posts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	if filter.OrderByScore {
		q += ` ORDER BY performance_score DESC, published_at DESC`
	} else {
		q += ` ORDER BY published_at DESC, id`
	}
	if filter.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing content posts: %w", err)
	}
	defer rows.Close()

	out := []model.ContentPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning content post: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating content posts: %w", err)
	}
	return out, nil
}

// UpdateMetrics replaces the metrics snapshot of one post.
func (db *DB) UpdateMetrics(ctx context.Context, id string, metrics model.Metrics, at time.Time) error {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding metrics: %w", err)
	}

	res, err := db.exec(ctx,
		`UPDATE content_posts SET metrics = ?, updated_at = ? WHERE id = ?`,
		string(raw), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating metrics for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("content post", id)
	}
	return nil
}

// SaveAnalysis stores the AI analysis and its score column.
func (db *DB) SaveAnalysis(ctx context.Context, id string, analysis *model.Analysis) error {
	if analysis == nil {
		return apperror.ValidationFailed("analysis", "analysis is required")
	}
	raw, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding analysis: %w", err)
	}

	res, err := db.exec(ctx,
		`UPDATE content_posts SET analysis = ?, performance_score = ?, updated_at = ? WHERE id = ?`,
		string(raw), analysis.PerformanceScore, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: saving analysis for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("content post", id)
	}
	return nil
}

func scanPost(row interface{ Scan(...any) error }) (*model.ContentPost, error) {
	var (
		p        model.ContentPost
		platform string
		media    string
		metrics  string
		script   sql.NullString
		analysis sql.NullString
	)
	if err := row.Scan(
		&p.ID,
		&p.ContentID,
		&platform,
		&p.PlatformID,
		&p.Title,
		&p.Content,
		&media,
		&p.PublishedAt,
		&metrics,
		&script,
		&analysis,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.PlatformType = model.PlatformType(platform)
	if err := json.Unmarshal([]byte(media), &p.MediaURLs); err != nil {
		return nil, fmt.Errorf("decoding media urls of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(metrics), &p.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics of %s: %w", p.ID, err)
	}
	if script.Valid {
		p.Script = &model.Script{}
		if err := json.Unmarshal([]byte(script.String), p.Script); err != nil {
			return nil, fmt.Errorf("decoding script of %s: %w", p.ID, err)
		}
	}
	if analysis.Valid {
		p.Analysis = &model.Analysis{}
		if err := json.Unmarshal([]byte(analysis.String), p.Analysis); err != nil {
			return nil, fmt.Errorf("decoding analysis of %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

// nullableJSON encodes v, mapping a nil pointer to SQL NULL.
func nullableJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
