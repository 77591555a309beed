package mocksender

import (
	"context"

	"postback-relay/internal/delivery"
	"postback-relay/internal/model"

	"github.com/stretchr/testify/mock"
)

var _ delivery.Sender = &Sender{}

type Sender struct {
	mock.Mock
}

func (m *Sender) Send(ctx context.Context, dest model.Destination, text string) error {
	return m.Called(ctx, dest, text).Error(0)
}
