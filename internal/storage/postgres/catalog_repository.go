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

type productRepository struct {
	tx *sql.Tx
}

const productColumns = `id, name, price, stock_quantity, is_deleted, version, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.IsDeleted, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r productRepository) Create(ctx context.Context, p domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7)
	`, p.ID, p.Name, p.Price, p.StockQuantity, p.IsDeleted, p.CreatedAt, now)
	if err != nil {
		return mapWriteError("insert product", err)
	}
	return nil
}

func (r productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r productRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.tx.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return result, nil
}

func (r productRepository) Save(ctx context.Context, p domain.Product) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    price = $2,
		    stock_quantity = $3,
		    is_deleted = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`, p.Name, p.Price, p.StockQuantity, p.IsDeleted, time.Now().UTC(), p.ID, p.Version)
	if err != nil {
		return mapWriteError("update product", err)
	}
	return r.checkAffected(ctx, res, p.ID)
}

func (r productRepository) checkAffected(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	exists, err := rowExists(ctx, r.tx, `SELECT 1 FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	return fmt.Errorf("product %s: %w", id, domain.ErrVersionConflict)
}

type imageRepository struct {
	tx *sql.Tx
}

const imageColumns = `id, product_id, url, is_main, created_at`

func scanImage(row interface{ Scan(...any) error }) (domain.ProductImage, error) {
	var img domain.ProductImage
	err := row.Scan(&img.ID, &img.ProductID, &img.URL, &img.IsMain, &img.CreatedAt)
	return img, err
}

func (r imageRepository) Create(ctx context.Context, img domain.ProductImage) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO product_images (`+imageColumns+`)
		VALUES ($1,$2,$3,$4,$5)
	`, img.ID, img.ProductID, img.URL, img.IsMain, img.CreatedAt)
	if err != nil {
		return mapWriteError("insert image", err)
	}
	return nil
}

func (r imageRepository) Get(ctx context.Context, id string) (domain.ProductImage, error) {
	img, err := scanImage(r.tx.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM product_images WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProductImage{}, domain.ErrImageNotFound
		}
		return domain.ProductImage{}, fmt.Errorf("select image: %w", err)
	}
	return img, nil
}

func (r imageRepository) ListByProduct(ctx context.Context, productID string) ([]domain.ProductImage, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT `+imageColumns+`
		FROM product_images
		WHERE product_id = $1
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := make([]domain.ProductImage, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

func (r imageRepository) SetMain(ctx context.Context, id string, isMain bool) error {
	res, err := r.tx.ExecContext(ctx, `UPDATE product_images SET is_main = $1 WHERE id = $2`, isMain, id)
	if err != nil {
		return mapWriteError("update image", err)
	}
	return requireAffected(res, domain.ErrImageNotFound)
}

func (r imageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM product_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return requireAffected(res, domain.ErrImageNotFound)
}

func (r imageRepository) MainURLs(ctx context.Context, productIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT product_id, url
		FROM product_images
		WHERE is_main AND product_id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("select main images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID, url string
		if err := rows.Scan(&productID, &url); err != nil {
			return nil, fmt.Errorf("scan main image: %w", err)
		}
		result[productID] = url
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate main images: %w", err)
	}
	return result, nil
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check row exists: %w", err)
}

var (
	_ domain.ProductRepository = productRepository{}
	_ domain.ImageRepository   = imageRepository{}
)
