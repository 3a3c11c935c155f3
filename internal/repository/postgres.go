package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const orderColumns = `id, owner_id, payment_method, street, number, city, state, postal_code, status, created_at`

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn, пока retryable считает ошибку временной.
func (r *PostgresRepository) withRetry(ctx context.Context, retryable func(error) bool, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil || i == len(r.delays) || !retryable(err) {
			return err
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

// isRetryable допускает повтор при конфликтах сериализации, дедлоках и обрывах
// соединения. Подходит только для идемпотентных операций: после обрыва на COMMIT
// транзакция могла уже примениться.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if isRolledBack(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}

	return isConnectionError(err)
}

// isRolledBack сообщает, что сервер откатил транзакцию и её можно безопасно повторить.
func isRolledBack(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateIdentity создаёт новую учётную запись.
func (r *PostgresRepository) CreateIdentity(ctx context.Context, ident *model.Identity) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO identities (name, email, role, password_hash) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		ident.Name, ident.Email, string(ident.Role), ident.PasswordHash,
	).Scan(&ident.ID, &ident.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrIdentityExists, ident.Email)
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// GetIdentityByEmail возвращает учётную запись по email.
func (r *PostgresRepository) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return r.getIdentity(ctx, `WHERE email = $1`, email)
}

// GetIdentityByID возвращает учётную запись по идентификатору.
func (r *PostgresRepository) GetIdentityByID(ctx context.Context, id int64) (*model.Identity, error) {
	return r.getIdentity(ctx, `WHERE id = $1`, id)
}

func (r *PostgresRepository) getIdentity(ctx context.Context, where string, arg any) (*model.Identity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, role, password_hash, created_at FROM identities `+where,
		arg,
	)

	var (
		ident model.Identity
		role  string
	)
	err := row.Scan(&ident.ID, &ident.Name, &ident.Email, &role, &ident.PasswordHash, &ident.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	parsed, ok := model.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("get identity: unknown role %q", role)
	}
	ident.Role = parsed

	return &ident, nil
}

// UpdatePasswordHash заменяет хеш пароля учётной записи.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id int64, hash []byte) error {
	tag, err := r.pool.Exec(ctx, `UPDATE identities SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateOrder сохраняет заказ, его позиции и снимок адреса в одной транзакции.
// Повтор выполняется только после гарантированного отката, иначе заказ мог бы
// записаться дважды.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	return r.withRetry(ctx, isRolledBack, func() error {
		return r.createOrder(ctx, o)
	})
}

func (r *PostgresRepository) createOrder(ctx context.Context, o *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id        int64
		createdAt time.Time
	)
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (owner_id, payment_method, street, number, city, state, postal_code, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		o.OwnerID, o.PaymentMethod,
		o.ShippingAddress.Street, o.ShippingAddress.Number, o.ShippingAddress.City,
		o.ShippingAddress.State, o.ShippingAddress.PostalCode,
		string(o.Status),
	).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(
			`INSERT INTO order_items (order_id, position, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4, $5::numeric)`,
			id, i, it.ProductID, it.Quantity, it.UnitPrice.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	o.ID = id
	o.CreatedAt = createdAt
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.OwnerID, &o.PaymentMethod,
		&o.ShippingAddress.Street, &o.ShippingAddress.Number, &o.ShippingAddress.City,
		&o.ShippingAddress.State, &o.ShippingAddress.PostalCode,
		&status, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, ok := model.ParseOrderStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown order status %q", status)
	}
	o.Status = parsed

	return &o, nil
}

// loadItems заполняет позиции для переданных заказов одним запросом.
func loadItems(ctx context.Context, q querier, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]*model.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}

	rows, err := q.Query(ctx,
		`SELECT order_id, product_id, quantity, unit_price::text
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			item    model.LineItem
			price   string
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}

		item.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return fmt.Errorf("parse unit price: %w", err)
		}

		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

func getOrder(ctx context.Context, q querier, id int64) (*model.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	if err := loadItems(ctx, q, []*model.Order{o}); err != nil {
		return nil, err
	}

	return o, nil
}

// GetOrder возвращает заказ с позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return getOrder(ctx, r.pool, id)
}

// ListOrdersByOwner возвращает заказы владельца, новые первыми.
func (r *PostgresRepository) ListOrdersByOwner(ctx context.Context, ownerID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	if err := loadItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}

	res := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		res = append(res, *o)
	}
	return res, nil
}

// CompareAndSetStatus меняет статус на next одним условным UPDATE, только если
// текущий статус равен expected.
func (r *PostgresRepository) CompareAndSetStatus(ctx context.Context, id int64, expected, next model.OrderStatus) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`UPDATE orders SET status = $3
		 WHERE id = $1 AND status = $2
		 RETURNING `+orderColumns,
		id, string(expected), string(next),
	))
	if err == nil {
		if err := loadItems(ctx, r.pool, []*model.Order{o}); err != nil {
			return nil, err
		}
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrStatusMismatch
}

// SetStatus безусловно перезаписывает статус и возвращает предыдущий.
func (r *PostgresRepository) SetStatus(ctx context.Context, id int64, next model.OrderStatus) (*model.Order, model.OrderStatus, error) {
	var (
		order    *model.Order
		previous model.OrderStatus
	)

	err := r.withRetry(ctx, isRetryable, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(next)); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		o, err := getOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		order = o
		previous = model.OrderStatus(status)
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return order, previous, nil
}
