package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const orderColumns = `id, owner_key, idempotency_key, items, shipping, total_amount, currency,
	payment_method, status, payment_status, tracking_id, created_at, updated_at, delivered_at`

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	shippingJSON, err := json.Marshal(order.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	query := `INSERT INTO orders (id, owner_key, idempotency_key, items, shipping, total_amount, currency,
	          payment_method, status, payment_status, tracking_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.OwnerKey,
		nullIfEmpty(order.IdempotencyKey),
		itemsJSON,
		shippingJSON,
		order.TotalAmount,
		order.Currency,
		order.PaymentMethod,
		order.Status,
		order.PaymentStatus,
		nullIfEmpty(order.TrackingID))

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`
	return r.queryOne(ctx, query, key)
}

func (r *PostgresRepository) GetOrderByTrackingID(ctx context.Context, trackingID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tracking_id = $1`
	return r.queryOne(ctx, query, trackingID)
}

// sortColumns whitelists what ListOrders may sort by; anything else falls
// back to created_at.
var sortColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"total_amount":   "total_amount",
	"status":         "status",
	"payment_status": "payment_status",
	"delivered_at":   "delivered_at",
}

func (r *PostgresRepository) ListOrders(ctx context.Context, filter ListFilter) ([]*Order, int, error) {
	var conds []string
	var args []interface{}

	addCond := func(expr string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if filter.OwnerKey != "" {
		addCond("owner_key = $%d", filter.OwnerKey)
	}
	if filter.Status != "" {
		addCond("status = $%d", filter.Status)
	}
	if filter.PaymentStatus != "" {
		addCond("payment_status = $%d", filter.PaymentStatus)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		orderColumns, where, column, direction, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, total, nil
}

func (r *PostgresRepository) SetTrackingID(ctx context.Context, id uuid.UUID, trackingID string) error {
	query := `UPDATE orders SET tracking_id = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, trackingID, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateTrackingID
		}
		return fmt.Errorf("set tracking id: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set tracking id: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus, deliveredAt *time.Time) (bool, error) {
	query := `UPDATE orders SET status = $1, delivered_at = COALESCE($2, delivered_at), updated_at = NOW()
	          WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, to, deliveredAt, id, from)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return affected > 0, nil
}

func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (bool, error) {
	query := `UPDATE orders SET payment_status = $1, updated_at = NOW()
	          WHERE id = $2 AND payment_status = $3`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}
	return affected > 0, nil
}

func (r *PostgresRepository) ListUnsettled(ctx context.Context, olderThan time.Duration, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM orders
	          WHERE payment_status = $1 AND status NOT IN ($2, $3) AND updated_at < NOW() - $4::interval
	          ORDER BY updated_at ASC LIMIT %d`, orderColumns, limit)

	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	rows, err := r.db.QueryContext(ctx, query,
		PaymentStatusPending, OrderStatusCancelled, OrderStatusDelivered, interval)
	if err != nil {
		return nil, fmt.Errorf("query unsettled orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, arg interface{}) (*Order, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var order Order
	var itemsJSON, shippingJSON []byte
	var idempotencyKey, trackingID sql.NullString
	var deliveredAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.OwnerKey,
		&idempotencyKey,
		&itemsJSON,
		&shippingJSON,
		&order.TotalAmount,
		&order.Currency,
		&order.PaymentMethod,
		&order.Status,
		&order.PaymentStatus,
		&trackingID,
		&order.CreatedAt,
		&order.UpdatedAt,
		&deliveredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &order.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}

	order.IdempotencyKey = idempotencyKey.String
	order.TrackingID = trackingID.String
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}

	return &order, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
