package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"postback-relay/internal/model"
)

// SQLite stores timestamps as unix milliseconds and filter sets as JSON arrays.

type sqliteProfileRepository struct {
	db *sql.DB
}

// NewSQLiteProfileRepository creates a ProfileRepository backed by SQLite.
func NewSQLiteProfileRepository(db *sql.DB) ProfileRepository {
	return &sqliteProfileRepository{db: db}
}

func (r *sqliteProfileRepository) GetEnabledBySecret(ctx context.Context, secret string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, secret, enabled, default_chat_id, default_topic_id, rate_limit_rps, dedup_ttl_sec
		FROM keitaro_profiles
		WHERE secret = ? AND enabled = 1
	`, secret)

	var p model.Profile
	err := row.Scan(&p.ID, &p.Secret, &p.Enabled, &p.DefaultChatID, &p.DefaultTopicID, &p.RateLimitRPS, &p.DedupTTLSec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return &p, nil
}

type sqliteRouteRepository struct {
	db *sql.DB
}

// NewSQLiteRouteRepository creates a RouteRepository backed by SQLite.
func NewSQLiteRouteRepository(db *sql.DB) RouteRepository {
	return &sqliteRouteRepository{db: db}
}

func (r *sqliteRouteRepository) ListOrdered(ctx context.Context, profileID int64) ([]model.Route, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, match_by, match_value, is_regex, target_chat_id, target_topic_id,
		       status_filter, geo_filter, priority
		FROM keitaro_routes
		WHERE profile_id = ?
		ORDER BY priority ASC, id ASC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("select routes: %w", err)
	}
	defer rows.Close()

	var routes []model.Route
	for rows.Next() {
		var (
			route               model.Route
			matchBy             string
			statusJSON, geoJSON sql.NullString
		)
		if err := rows.Scan(
			&route.ID,
			&route.ProfileID,
			&matchBy,
			&route.MatchValue,
			&route.IsRegex,
			&route.TargetChatID,
			&route.TargetTopicID,
			&statusJSON,
			&geoJSON,
			&route.Priority,
		); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		route.MatchBy = model.MatchBy(matchBy)
		if route.StatusFilter, err = decodeFilter(statusJSON); err != nil {
			return nil, fmt.Errorf("route %d status_filter: %w", route.ID, err)
		}
		if route.GeoFilter, err = decodeFilter(geoJSON); err != nil {
			return nil, fmt.Errorf("route %d geo_filter: %w", route.ID, err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}
	return routes, nil
}

type sqliteEventRepository struct {
	db *sql.DB
}

// NewSQLiteEventRepository creates an EventRepository backed by SQLite.
func NewSQLiteEventRepository(db *sql.DB) EventRepository {
	return &sqliteEventRepository{db: db}
}

func (r *sqliteEventRepository) ExistsRecent(ctx context.Context, profileID int64, txID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM keitaro_events
			WHERE profile_id = ? AND transaction_id = ? AND created_at > ?
		)
	`, profileID, txID, since.UnixMilli()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent event: %w", err)
	}
	return exists, nil
}

func (r *sqliteEventRepository) Insert(ctx context.Context, event model.Event) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO keitaro_events (profile_id, transaction_id, status, campaign_id, source, country,
		                            revenue, processed, sent_to_chat_id, sent_to_topic_id, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
		event.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert event id: %w", err)
	}
	return id, nil
}

// EncodeFilter is the SQLite column value for a route filter set.
func EncodeFilter(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	return string(b), nil
}

func decodeFilter(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, err
	}
	return values, nil
}

type sqlPinger struct {
	db *sql.DB
}

// NewSQLPinger adapts *sql.DB to Pinger.
func NewSQLPinger(db *sql.DB) Pinger {
	return sqlPinger{db: db}
}

func (p sqlPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
