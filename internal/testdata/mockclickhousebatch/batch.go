package mockclickhousebatch

import (
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

// Batch mocks driver.Batch. Append is variadic, so expectations list one
// argument per column.
type Batch struct {
	mock.Mock
}

var _ driver.Batch = &Batch{}

func (m *Batch) Append(args ...any) error {
	return m.Called(args...).Error(0)
}

// Rows returns the argument lists of every Append call seen so far.
func (m *Batch) Rows() [][]any {
	var rows [][]any
	for _, call := range m.Calls {
		if call.Method == "Append" {
			rows = append(rows, call.Arguments)
		}
	}
	return rows
}

func (m *Batch) Send() error {
	return m.Called().Error(0)
}

func (m *Batch) Abort() error {
	return m.Called().Error(0)
}

func (m *Batch) AppendStruct(v any) error {
	return m.Called(v).Error(0)
}

func (m *Batch) Column(id int) driver.BatchColumn {
	col, _ := m.Called(id).Get(0).(driver.BatchColumn)
	return col
}

func (m *Batch) Flush() error {
	return m.Called().Error(0)
}

func (m *Batch) IsSent() bool {
	return m.Called().Bool(0)
}
