package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type addressRepository struct {
	tx *sql.Tx
}

const addressColumns = `id, user_id, full_name, phone, street, city, state, postal_code, country, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (domain.Address, error) {
	var a domain.Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Street, &a.City,
		&a.State, &a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r addressRepository) Create(ctx context.Context, a domain.Address) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO addresses (`+addressColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		a.ID, a.UserID, a.FullName, a.Phone, a.Street, a.City,
		a.State, a.PostalCode, a.Country, a.IsDefault, a.CreatedAt, now,
	)
	if err != nil {
		return mapWriteError("insert address", err)
	}
	return nil
}

func (r addressRepository) Get(ctx context.Context, userID, id string) (domain.Address, error) {
	a, err := scanAddress(r.tx.QueryRowContext(ctx, `
		SELECT `+addressColumns+`
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Address{}, domain.ErrAddressNotFound
		}
		return domain.Address{}, fmt.Errorf("select address: %w", err)
	}
	return a, nil
}

func (r addressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT `+addressColumns+`
		FROM addresses
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]domain.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return addresses, nil
}

func (r addressRepository) Update(ctx context.Context, a domain.Address) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE addresses
		SET full_name = $1,
		    phone = $2,
		    street = $3,
		    city = $4,
		    state = $5,
		    postal_code = $6,
		    country = $7,
		    updated_at = $8
		WHERE id = $9 AND user_id = $10
	`,
		a.FullName, a.Phone, a.Street, a.City, a.State, a.PostalCode, a.Country,
		time.Now().UTC(), a.ID, a.UserID,
	)
	if err != nil {
		return mapWriteError("update address", err)
	}
	return requireAffected(res, domain.ErrAddressNotFound)
}

func (r addressRepository) SetDefault(ctx context.Context, id string, isDefault bool) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE addresses SET is_default = $1, updated_at = $2 WHERE id = $3
	`, isDefault, time.Now().UTC(), id)
	if err != nil {
		return mapWriteError("update default address", err)
	}
	return requireAffected(res, domain.ErrAddressNotFound)
}

func (r addressRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	return requireAffected(res, domain.ErrAddressNotFound)
}

// cartRepository сериализует транзакции одной корзины advisory-локом до конца транзакции:
// чтение в checkout и последующий Clear видят одни и те же строки.
type cartRepository struct {
	tx *sql.Tx
}

func (r cartRepository) lock(ctx context.Context, userID string) error {
	if _, err := r.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('cart:' || $1))`, userID); err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	return nil
}

func (r cartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if err := r.lock(ctx, userID); err != nil {
		return domain.Cart{}, err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT product_id, quantity, updated_at
		FROM cart_lines
		WHERE user_id = $1
		ORDER BY position, product_id
	`, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}
	defer rows.Close()

	cart := domain.Cart{UserID: userID}
	for rows.Next() {
		var (
			line      domain.CartLine
			updatedAt time.Time
		)
		if err := rows.Scan(&line.ProductID, &line.Quantity, &updatedAt); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart line: %w", err)
		}
		if updatedAt.After(cart.UpdatedAt) {
			cart.UpdatedAt = updatedAt
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart lines: %w", err)
	}
	return cart, nil
}

func (r cartRepository) Save(ctx context.Context, cart domain.Cart) error {
	if err := r.Clear(ctx, cart.UserID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for i, line := range cart.Lines {
		if _, err := r.tx.ExecContext(ctx, `
			INSERT INTO cart_lines (user_id, product_id, quantity, position, updated_at)
			VALUES ($1,$2,$3,$4,$5)
		`, cart.UserID, line.ProductID, line.Quantity, i, now); err != nil {
			return mapWriteError("insert cart line", err)
		}
	}
	return nil
}

func (r cartRepository) RemoveLines(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	if err := r.lock(ctx, userID); err != nil {
		return err
	}
	if _, err := r.tx.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE user_id = $1 AND product_id = ANY($2)
	`, userID, productIDs); err != nil {
		return fmt.Errorf("remove cart lines: %w", err)
	}
	return nil
}

func (r cartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.lock(ctx, userID); err != nil {
		return err
	}
	if _, err := r.tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

var (
	_ domain.AddressRepository = addressRepository{}
	_ domain.CartRepository    = cartRepository{}
)
