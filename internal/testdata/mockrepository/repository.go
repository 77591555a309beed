package mockrepository

import (
	"context"
	"time"

	"postback-relay/internal/model"
	"postback-relay/internal/repository"

	"github.com/stretchr/testify/mock"
)

// Interface compliance check
var (
	_ repository.ProfileRepository    = &Profiles{}
	_ repository.RouteRepository      = &Routes{}
	_ repository.EventRepository      = &Events{}
	_ repository.ConversionRepository = &Conversions{}
)

type Profiles struct {
	mock.Mock
}

func (m *Profiles) GetEnabledBySecret(ctx context.Context, secret string) (*model.Profile, error) {
	args := m.Called(ctx, secret)
	if p := args.Get(0); p != nil {
		return p.(*model.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

type Routes struct {
	mock.Mock
}

func (m *Routes) ListOrdered(ctx context.Context, profileID int64) ([]model.Route, error) {
	args := m.Called(ctx, profileID)
	if r := args.Get(0); r != nil {
		return r.([]model.Route), args.Error(1)
	}
	return nil, args.Error(1)
}

type Events struct {
	mock.Mock
}

func (m *Events) ExistsRecent(ctx context.Context, profileID int64, txID string, since time.Time) (bool, error) {
	args := m.Called(ctx, profileID, txID, since)
	return args.Bool(0), args.Error(1)
}

func (m *Events) Insert(ctx context.Context, event model.Event) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

type Conversions struct {
	mock.Mock
}

func (m *Conversions) CreateBatch(ctx context.Context, events []model.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
