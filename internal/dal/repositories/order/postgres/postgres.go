package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/brightcart/orders/internal/service/models/currency"
	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/brightcart/orders/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id                 string             `db:"id"`
	TotalPriceCents    int64              `db:"total_price_cents"`
	TotalPriceCurrency string             `db:"total_price_currency"`
	TotalItems         int                `db:"total_items"`
	Status             string             `db:"status"`
	Paid               bool               `db:"paid"`
	PaidAt             pgtype.Timestamptz `db:"paid_at"`
	PaymentReference   pgtype.Text        `db:"payment_reference"`
	CreatedAt          time.Time          `db:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.TotalPriceCurrency)
	if err != nil {
		return nil, err
	}

	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	model := &order.Order{
		ID:                 o.Id,
		TotalPriceCents:    o.TotalPriceCents,
		TotalPriceCurrency: cur,
		TotalItems:         o.TotalItems,
		Status:             status,
		Paid:               o.Paid,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		OrderItems:         []orderitem.OrderItem{},
	}

	if o.PaidAt.Valid {
		paidAt := o.PaidAt.Time
		model.PaidAt = &paidAt
	}
	if o.PaymentReference.Valid {
		ref := o.PaymentReference.String
		model.PaymentReference = &ref
	}

	return model, nil
}

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id            int64     `db:"id"`
	OrderId       string    `db:"order_id"`
	ProductId     int64     `db:"product_id"`
	Quantity      int       `db:"quantity"`
	PriceCents    int64     `db:"price_cents"`
	PriceCurrency string    `db:"price_currency"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() (*orderitem.OrderItem, error) {
	cur, err := currency.ParseCurrency(oi.PriceCurrency)
	if err != nil {
		return nil, err
	}

	return &orderitem.OrderItem{
		ID:            oi.Id,
		OrderID:       oi.OrderId,
		ProductID:     oi.ProductId,
		Quantity:      oi.Quantity,
		PriceCents:    oi.PriceCents,
		PriceCurrency: cur,
		CreatedAt:     oi.CreatedAt,
		UpdatedAt:     oi.UpdatedAt,
	}, nil
}

// GenericConn is an interface that works with both pgxpool.Pool and pgx.Tx
type GenericConn interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var orderColumns = []string{
	"id",
	"total_price_cents",
	"total_price_currency",
	"total_items",
	"status",
	"paid",
	"paid_at",
	"payment_reference",
	"created_at",
	"updated_at",
}

var orderItemColumns = []string{
	"id",
	"order_id",
	"product_id",
	"quantity",
	"price_cents",
	"price_currency",
	"created_at",
	"updated_at",
}

// Insert saves a new order together with its items and returns the persisted
// order. It is meant to run inside a unit of work so the order and its items
// commit atomically.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o *order.Order) (*order.Order, error) {
	query, args, err := r.sb.
		Insert("orders").
		Columns(
			"id",
			"total_price_cents",
			"total_price_currency",
			"total_items",
			"status",
			"paid",
			"created_at",
			"updated_at",
		).
		Values(
			o.ID,
			o.TotalPriceCents,
			o.TotalPriceCurrency.String(),
			o.TotalItems,
			o.Status.String(),
			o.Paid,
			o.CreatedAt,
			o.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	items, err := r.insertItems(ctx, o.ID, o.OrderItems)
	if err != nil {
		return nil, err
	}

	inserted := *o
	inserted.OrderItems = items

	return &inserted, nil
}

func (r *PostgresOrderRepository) insertItems(
	ctx context.Context,
	orderID string,
	items []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(items) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	builder := r.sb.
		Insert("order_items").
		Columns(
			"order_id",
			"product_id",
			"quantity",
			"price_cents",
			"price_currency",
			"created_at",
			"updated_at",
		)

	for _, item := range items {
		builder = builder.Values(
			orderID,
			item.ProductID,
			item.Quantity,
			item.PriceCents,
			item.PriceCurrency.String(),
			item.CreatedAt,
			item.UpdatedAt,
		)
	}

	query, args, err := builder.
		Suffix("RETURNING " + itemColumnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order items: %w", err)
	}
	defer rows.Close()

	result, err := scanItems(rows)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Get returns an order with its items, or order.ErrOrderNotFound.
func (r *PostgresOrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	query, args, err := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	model, err := r.scanOrderRow(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	items, err := r.queryItems(ctx, id)
	if err != nil {
		return nil, err
	}
	model.OrderItems = items

	receipt, err := r.queryReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	model.Receipt = receipt

	return model, nil
}

func (r *PostgresOrderRepository) scanOrderRow(row pgx.Row) (*order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.TotalPriceCents,
		&dal.TotalPriceCurrency,
		&dal.TotalItems,
		&dal.Status,
		&dal.Paid,
		&dal.PaidAt,
		&dal.PaymentReference,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return dal.ToModel()
}

func (r *PostgresOrderRepository) queryItems(ctx context.Context, orderID string) ([]orderitem.OrderItem, error) {
	query, args, err := r.sb.
		Select(orderItemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *PostgresOrderRepository) queryReceipt(ctx context.Context, orderID string) (*order.Receipt, error) {
	query, args, err := r.sb.
		Select("id", "order_id", "receipt_url", "created_at").
		From("order_receipts").
		Where(sq.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select receipt query: %w", err)
	}

	var receipt order.Receipt
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&receipt.ID,
		&receipt.OrderID,
		&receipt.ReceiptURL,
		&receipt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan receipt: %w", err)
	}

	return &receipt, nil
}

// Query returns a summary page of orders without items, optionally filtered
// by status.
func (r *PostgresOrderRepository) Query(
	ctx context.Context,
	status *order.Status,
	limit, offset int,
) ([]order.Order, error) {
	builder := r.sb.
		Select(orderColumns...).
		From("orders").
		OrderBy("created_at ASC, id ASC")

	if status != nil {
		builder = builder.Where(sq.Eq{"status": status.String()})
	}

	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		var dal OrderDal
		err := rows.Scan(
			&dal.Id,
			&dal.TotalPriceCents,
			&dal.TotalPriceCurrency,
			&dal.TotalItems,
			&dal.Status,
			&dal.Paid,
			&dal.PaidAt,
			&dal.PaymentReference,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}

		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Count returns the total number of orders matching the status filter.
func (r *PostgresOrderRepository) Count(ctx context.Context, status *order.Status) (int64, error) {
	builder := r.sb.
		Select("COUNT(*)").
		From("orders")

	if status != nil {
		builder = builder.Where(sq.Eq{"status": status.String()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return total, nil
}

// UpdateStatus advances the order status and returns the updated order.
func (r *PostgresOrderRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status order.Status,
) (*order.Order, error) {
	query, args, err := r.sb.
		Update("orders").
		Set("status", status.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + orderColumnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	return r.scanOrderRow(r.conn.QueryRow(ctx, query, args...))
}

// MarkPaid atomically marks the order paid and creates its receipt. It must
// run inside a unit of work: the order row is locked first so concurrent
// redeliveries of the same confirmation serialize on it.
func (r *PostgresOrderRepository) MarkPaid(
	ctx context.Context,
	id string,
	paymentReference string,
	receiptURL string,
	paidAt time.Time,
) (*order.Order, bool, error) {
	query, args, err := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build select query: %w", err)
	}

	current, err := r.scanOrderRow(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, false, err
	}

	if current.Paid {
		if current.PaymentReference != nil && *current.PaymentReference == paymentReference {
			// Redelivered confirmation, nothing to do.
			receipt, err := r.queryReceipt(ctx, id)
			if err != nil {
				return nil, false, err
			}
			current.Receipt = receipt

			return current, false, nil
		}

		return nil, false, order.ErrPaymentConflict
	}

	// A confirmation can arrive after the order was cancelled or delivered.
	// PENDING is the only status a payment may advance.
	if !current.Status.CanTransitionTo(order.StatusPaid) {
		return nil, false, &order.InvalidTransitionError{
			OrderID: id,
			From:    current.Status,
			To:      order.StatusPaid,
		}
	}

	query, args, err = r.sb.
		Update("orders").
		Set("status", order.StatusPaid.String()).
		Set("paid", true).
		Set("paid_at", paidAt).
		Set("payment_reference", paymentReference).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + orderColumnList()).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build update query: %w", err)
	}

	updated, err := r.scanOrderRow(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, false, err
	}

	query, args, err = r.sb.
		Insert("order_receipts").
		Columns("order_id", "receipt_url", "created_at").
		Values(id, receiptURL, time.Now()).
		Suffix("RETURNING id, order_id, receipt_url, created_at").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build insert receipt query: %w", err)
	}

	var receipt order.Receipt
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&receipt.ID,
		&receipt.OrderID,
		&receipt.ReceiptURL,
		&receipt.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert receipt: %w", err)
	}
	updated.Receipt = &receipt

	return updated, true, nil
}

func scanItems(rows pgx.Rows) ([]orderitem.OrderItem, error) {
	result := []orderitem.OrderItem{}
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.Quantity,
			&dal.PriceCents,
			&dal.PriceCurrency,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order item dal to model: %w", err)
		}

		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func orderColumnList() string {
	return strings.Join(orderColumns, ", ")
}

func itemColumnList() string {
	return strings.Join(orderItemColumns, ", ")
}
