package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository struct {
	tx *sql.Tx
}

const orderColumns = `
	id, user_id, status, shipping_method,
	ship_full_name, ship_phone, ship_street, ship_city, ship_state, ship_postal_code, ship_country,
	subtotal, shipping_fees, taxes, total_amount, version, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		o      domain.Order
		status string
		method string
		addr   = &o.ShippingAddress
	)
	err := row.Scan(
		&o.ID, &o.UserID, &status, &method,
		&addr.FullName, &addr.Phone, &addr.Street, &addr.City, &addr.State, &addr.PostalCode, &addr.Country,
		&o.Subtotal, &o.ShippingFees, &o.Taxes, &o.TotalAmount, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = domain.OrderStatus(status)
	o.ShippingMethod = domain.ShippingMethod(method)
	return o, err
}

func (r orderRepository) Create(ctx context.Context, order domain.Order) error {
	addr := order.ShippingAddress
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,0,$16,$17)
	`,
		order.ID, order.UserID, string(order.Status), string(order.ShippingMethod),
		addr.FullName, addr.Phone, addr.Street, addr.City, addr.State, addr.PostalCode, addr.Country,
		order.Subtotal, order.ShippingFees, order.Taxes, order.TotalAmount, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert order", err)
	}

	for i, line := range order.Lines {
		if _, err := r.tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, position, product_id, product_name, product_price,
				thumbnail_url, quantity, unit_price, total
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			line.ID, order.ID, i, line.Product.ProductID, line.Product.Name, line.Product.Price,
			line.Product.ThumbnailURL, line.Quantity, line.UnitPrice, line.Total,
		); err != nil {
			return mapWriteError("insert order line", err)
		}
	}

	for _, m := range order.Milestones {
		if err := r.AppendMilestone(ctx, order.ID, m); err != nil {
			return err
		}
	}
	return nil
}

func (r orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	order, err := scanOrder(r.tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	if err := r.loadDetails(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r orderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.tx.QueryContext(ctx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.tx.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	// Курсор нужно закрыть до следующих запросов в той же транзакции.
	_ = rows.Close()

	for i := range orders {
		if err := r.loadDetails(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r orderRepository) Save(ctx context.Context, order domain.Order) error {
	addr := order.ShippingAddress
	res, err := r.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    ship_full_name = $2,
		    ship_phone = $3,
		    ship_street = $4,
		    ship_city = $5,
		    ship_state = $6,
		    ship_postal_code = $7,
		    ship_country = $8,
		    version = version + 1,
		    updated_at = $9
		WHERE id = $10
		  AND version = $11
	`,
		string(order.Status),
		addr.FullName, addr.Phone, addr.Street, addr.City, addr.State, addr.PostalCode, addr.Country,
		order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return mapWriteError("update order", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := rowExists(ctx, r.tx, `SELECT 1 FROM orders WHERE id = $1`, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrVersionConflict)
	}
	return nil
}

func (r orderRepository) AppendMilestone(ctx context.Context, orderID string, m domain.Milestone) error {
	if _, err := r.tx.ExecContext(ctx, `
		INSERT INTO order_milestones (order_id, status, occurred_at)
		VALUES ($1,$2,$3)
	`, orderID, string(m.Status), m.OccurredAt); err != nil {
		return mapWriteError("insert order milestone", err)
	}
	return nil
}

func (r orderRepository) loadDetails(ctx context.Context, order *domain.Order) error {
	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return err
	}
	milestones, err := r.loadMilestones(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Lines = lines
	order.Milestones = milestones
	return nil
}

func (r orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, product_id, product_name, product_price, thumbnail_url, quantity, unit_price, total
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.Product.ProductID, &line.Product.Name, &line.Product.Price,
			&line.Product.ThumbnailURL, &line.Quantity, &line.UnitPrice, &line.Total,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

func (r orderRepository) loadMilestones(ctx context.Context, orderID string) ([]domain.Milestone, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT status, occurred_at
		FROM order_milestones
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order milestones: %w", err)
	}
	defer rows.Close()

	milestones := make([]domain.Milestone, 0)
	for rows.Next() {
		var (
			m      domain.Milestone
			status string
		)
		if err := rows.Scan(&status, &m.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan order milestone: %w", err)
		}
		m.Status = domain.OrderStatus(status)
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order milestones: %w", err)
	}
	return milestones, nil
}

var _ domain.OrderRepository = orderRepository{}
