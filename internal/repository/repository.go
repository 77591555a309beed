package repository

import (
	"context"
	"time"

	"postback-relay/internal/model"
)

// ProfileRepository looks up tenants.
type ProfileRepository interface {
	// GetEnabledBySecret returns nil, nil when no enabled profile owns secret.
	GetEnabledBySecret(ctx context.Context, secret string) (*model.Profile, error)
}

// RouteRepository lists routing rules.
type RouteRepository interface {
	// ListOrdered returns the profile's routes ordered by priority, then id.
	ListOrdered(ctx context.Context, profileID int64) ([]model.Route, error)
}

// EventRepository reads and writes the audit log, which doubles as the dedup index.
type EventRepository interface {
	// ExistsRecent reports whether (profileID, txID) was recorded after since.
	ExistsRecent(ctx context.Context, profileID int64, txID string, since time.Time) (bool, error)

	// Insert stores an audit row and returns its id.
	Insert(ctx context.Context, event model.Event) (int64, error)
}

// ConversionRepository receives audit rows for analytics.
type ConversionRepository interface {
	// CreateBatch inserts multiple rows in a single round trip.
	CreateBatch(ctx context.Context, events []model.Event) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
