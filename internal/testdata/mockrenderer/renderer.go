package mockrenderer

import (
	"postback-relay/internal/model"
	"postback-relay/internal/render"

	"github.com/stretchr/testify/mock"
)

var _ render.Renderer = &Renderer{}

type Renderer struct {
	mock.Mock
}

func (m *Renderer) Render(pb model.Postback) (string, error) {
	args := m.Called(pb)
	return args.String(0), args.Error(1)
}
