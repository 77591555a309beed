package mockservice

import (
	"context"

	"postback-relay/internal/model"
	"postback-relay/internal/service"

	"github.com/stretchr/testify/mock"
)

var _ service.PostbackService = &Service{}

type Service struct {
	mock.Mock
}

func (m *Service) Process(ctx context.Context, req model.PostbackRequest) model.Outcome {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Outcome)
}
