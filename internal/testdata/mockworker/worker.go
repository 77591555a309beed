package mockworker

import (
	"postback-relay/internal/model"

	"github.com/stretchr/testify/mock"
)

// Worker mocks service.AnalyticsWorker.
type Worker struct {
	mock.Mock
}

func (m *Worker) Enqueue(event model.Event) bool {
	return m.Called(event).Bool(0)
}

func (m *Worker) Shutdown() {
	m.Called()
}
