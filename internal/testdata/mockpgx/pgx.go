package mockpgx

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// Querier mocks the query surface of *pgxpool.Pool.
type Querier struct {
	mock.Mock
}

func (m *Querier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	callArgs := []any{ctx, sql}
	callArgs = append(callArgs, args...)
	mockArgs := m.Called(callArgs...)
	return pgconn.NewCommandTag(mockArgs.String(0)), mockArgs.Error(1)
}

func (m *Querier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	callArgs := []any{ctx, sql}
	callArgs = append(callArgs, args...)
	mockArgs := m.Called(callArgs...)
	if rows := mockArgs.Get(0); rows != nil {
		return rows.(pgx.Rows), mockArgs.Error(1)
	}
	return nil, mockArgs.Error(1)
}

func (m *Querier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	callArgs := []any{ctx, sql}
	callArgs = append(callArgs, args...)
	return m.Called(callArgs...).Get(0).(pgx.Row)
}

var _ pgx.Row = &Row{}

// Row returns Err from Scan, or copies Values into the scan targets.
type Row struct {
	Values []any
	Err    error
}

func (r *Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	assign(dest, r.Values)
	return nil
}

var _ pgx.Rows = &Rows{}

// Rows iterates over fixed Data rows.
type Rows struct {
	mock.Mock

	Data    [][]any
	ScanErr error
	IterErr error
	pos     int
}

func (r *Rows) Close() {
	r.Called()
}

func (r *Rows) Err() error {
	return r.IterErr
}

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("SELECT")
}

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}

func (r *Rows) Next() bool {
	if r.pos >= len(r.Data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.ScanErr != nil {
		return r.ScanErr
	}
	assign(dest, r.Data[r.pos-1])
	return nil
}

func (r *Rows) Values() ([]any, error) {
	return r.Data[r.pos-1], nil
}

func (r *Rows) RawValues() [][]byte {
	return nil
}

func (r *Rows) Conn() *pgx.Conn {
	return nil
}

func assign(dest []any, values []any) {
	for i := range dest {
		if i >= len(values) {
			return
		}
		target := reflect.ValueOf(dest[i]).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(values[i]))
	}
}
