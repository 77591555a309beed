package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"postback-relay/internal/model"
)

// pgxQuerier is the subset of *pgxpool.Pool the repositories use.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectProfileBySecretQuery = `
	SELECT id, secret, enabled, default_chat_id, default_topic_id, rate_limit_rps, dedup_ttl_sec
	FROM keitaro_profiles
	WHERE secret = $1 AND enabled = TRUE
`

const selectRoutesQuery = `
	SELECT id, profile_id, match_by, match_value, is_regex, target_chat_id, target_topic_id,
	       status_filter, geo_filter, priority
	FROM keitaro_routes
	WHERE profile_id = $1
	ORDER BY priority ASC, id ASC
`

const existsRecentEventQuery = `
	SELECT EXISTS (
		SELECT 1 FROM keitaro_events
		WHERE profile_id = $1 AND transaction_id = $2 AND created_at > $3
	)
`

const insertEventQuery = `
	INSERT INTO keitaro_events (profile_id, transaction_id, status, campaign_id, source, country,
	                            revenue, processed, sent_to_chat_id, sent_to_topic_id, error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id
`

type pgProfileRepository struct {
	db pgxQuerier
}

// NewPostgresProfileRepository creates a ProfileRepository backed by PostgreSQL.
func NewPostgresProfileRepository(db pgxQuerier) ProfileRepository {
	return &pgProfileRepository{db: db}
}

func (r *pgProfileRepository) GetEnabledBySecret(ctx context.Context, secret string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.QueryRow(ctx, selectProfileBySecretQuery, secret).Scan(
		&p.ID,
		&p.Secret,
		&p.Enabled,
		&p.DefaultChatID,
		&p.DefaultTopicID,
		&p.RateLimitRPS,
		&p.DedupTTLSec,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return &p, nil
}

type pgRouteRepository struct {
	db pgxQuerier
}

// NewPostgresRouteRepository creates a RouteRepository backed by PostgreSQL.
func NewPostgresRouteRepository(db pgxQuerier) RouteRepository {
	return &pgRouteRepository{db: db}
}

func (r *pgRouteRepository) ListOrdered(ctx context.Context, profileID int64) ([]model.Route, error) {
	rows, err := r.db.Query(ctx, selectRoutesQuery, profileID)
	if err != nil {
		return nil, fmt.Errorf("select routes: %w", err)
	}
	defer rows.Close()

	var routes []model.Route
	for rows.Next() {
		var (
			route   model.Route
			matchBy string
		)
		if err := rows.Scan(
			&route.ID,
			&route.ProfileID,
			&matchBy,
			&route.MatchValue,
			&route.IsRegex,
			&route.TargetChatID,
			&route.TargetTopicID,
			&route.StatusFilter,
			&route.GeoFilter,
			&route.Priority,
		); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		route.MatchBy = model.MatchBy(matchBy)
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}
	return routes, nil
}

type pgEventRepository struct {
	db pgxQuerier
}

// NewPostgresEventRepository creates an EventRepository backed by PostgreSQL.
func NewPostgresEventRepository(db pgxQuerier) EventRepository {
	return &pgEventRepository{db: db}
}

func (r *pgEventRepository) ExistsRecent(ctx context.Context, profileID int64, txID string, since time.Time) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, existsRecentEventQuery, profileID, txID, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("check recent event: %w", err)
	}
	return exists, nil
}

func (r *pgEventRepository) Insert(ctx context.Context, event model.Event) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, insertEventQuery,
		event.ProfileID,
		event.TransactionID,
		nullIfEmpty(event.Status),
		nullIfEmpty(event.CampaignID),
		nullIfEmpty(event.Source),
		nullIfEmpty(event.Country),
		nullIfEmpty(event.Revenue),
		event.Processed,
		event.SentToChatID,
		event.SentToTopicID,
		event.Error,
		event.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}
