package postgresrepo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scan(dest...)
}

// fakeConn replays scripted rows and records every statement it was given.
type fakeConn struct {
	rows       []fakeRow
	statements []string
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, _ ...interface{}) pgx.Row {
	c.statements = append(c.statements, sql)
	if len(c.rows) == 0 {
		return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
	}
	row := c.rows[0]
	c.rows = c.rows[1:]
	return row
}

func (c *fakeConn) Query(_ context.Context, sql string, _ ...interface{}) (pgx.Rows, error) {
	c.statements = append(c.statements, sql)
	return nil, errors.New("unexpected query")
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.statements = append(c.statements, sql)
	return pgconn.CommandTag{}, nil
}

func orderRow(id string, status order.Status, paid bool, paymentReference *string) fakeRow {
	return fakeRow{scan: func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[1].(*int64) = 2500
		*dest[2].(*string) = "USD"
		*dest[3].(*int) = 3
		*dest[4].(*string) = status.String()
		*dest[5].(*bool) = paid
		if paid {
			*dest[6].(*pgtype.Timestamptz) = pgtype.Timestamptz{Time: time.Now(), Valid: true}
		}
		if paymentReference != nil {
			*dest[7].(*pgtype.Text) = pgtype.Text{String: *paymentReference, Valid: true}
		}
		*dest[8].(*time.Time) = time.Now()
		*dest[9].(*time.Time) = time.Now()
		return nil
	}}
}

func assertNoWrite(t *testing.T, conn *fakeConn) {
	t.Helper()
	for _, stmt := range conn.statements {
		assert.False(t, strings.HasPrefix(stmt, "UPDATE"), "unexpected write: %s", stmt)
		assert.False(t, strings.HasPrefix(stmt, "INSERT"), "unexpected write: %s", stmt)
	}
}

func TestMarkPaid_FinalizedOrderRefused(t *testing.T) {
	for _, status := range []order.Status{order.StatusCancelled, order.StatusDelivered} {
		t.Run(status.String(), func(t *testing.T) {
			conn := &fakeConn{rows: []fakeRow{
				orderRow("o1", status, false, nil),
			}}
			repo := NewPostgresOrderRepository(conn)

			ord, wrote, err := repo.MarkPaid(context.Background(), "o1", "pay_123", "https://receipts.example/r1", time.Now())

			assert.Nil(t, ord)
			assert.False(t, wrote)

			var transitionErr *order.InvalidTransitionError
			if assert.ErrorAs(t, err, &transitionErr) {
				assert.Equal(t, status, transitionErr.From)
				assert.Equal(t, order.StatusPaid, transitionErr.To)
			}

			assertNoWrite(t, conn)
		})
	}
}

func TestMarkPaid_RedeliveredConfirmationDoesNotWrite(t *testing.T) {
	ref := "pay_123"
	conn := &fakeConn{rows: []fakeRow{
		orderRow("o1", order.StatusPaid, true, &ref),
		// No receipt row scripted: the follow-up receipt read sees no rows.
	}}
	repo := NewPostgresOrderRepository(conn)

	ord, wrote, err := repo.MarkPaid(context.Background(), "o1", "pay_123", "https://receipts.example/r1", time.Now())

	assert.NoError(t, err)
	assert.False(t, wrote)
	assert.True(t, ord.Paid)
	assert.Equal(t, order.StatusPaid, ord.Status)
	assertNoWrite(t, conn)
}

func TestMarkPaid_DifferentReferenceConflicts(t *testing.T) {
	ref := "pay_123"
	conn := &fakeConn{rows: []fakeRow{
		orderRow("o1", order.StatusPaid, true, &ref),
	}}
	repo := NewPostgresOrderRepository(conn)

	ord, wrote, err := repo.MarkPaid(context.Background(), "o1", "pay_other", "https://receipts.example/r2", time.Now())

	assert.Nil(t, ord)
	assert.False(t, wrote)
	assert.ErrorIs(t, err, order.ErrPaymentConflict)
	assertNoWrite(t, conn)
}
