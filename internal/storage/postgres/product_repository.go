package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const productColumns = `id, name, description, price, stock, category, seller_id, created_at, updated_at`

type productRepository struct {
	store *Store
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{store: store}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	err := r.store.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, stock, category, seller_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		product.Name, nullString(product.Description), product.Price, product.Stock,
		product.Category, product.SellerID, product.CreatedAt, product.UpdatedAt,
	).Scan(&product.ID)
	if err != nil {
		return domain.Product{}, mapProductWriteError("insert product", product.SellerID, err)
	}
	return product, nil
}

func (r *productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return scanProduct(r.store.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if filter.Category != "" {
		rows, err = r.store.db.QueryContext(ctx, `
			SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY id
		`, filter.Category)
	} else {
		rows, err = r.store.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows)
}

func (r *productRepository) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var updated domain.Product
	err := r.store.inTx(ctx, nil, func(tx *sql.Tx) error {
		product, err := scanProduct(tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := patch.ApplyTo(&product); err != nil {
			return err
		}
		product.UpdatedAt = time.Now().UTC()

		if _, err := tx.ExecContext(ctx, `
			UPDATE products
			SET name = $2,
			    description = $3,
			    price = $4,
			    stock = $5,
			    category = $6,
			    seller_id = $7,
			    updated_at = $8
			WHERE id = $1
		`,
			id, product.Name, nullString(product.Description), product.Price, product.Stock,
			product.Category, product.SellerID, product.UpdatedAt,
		); err != nil {
			return mapProductWriteError("update product", product.SellerID, err)
		}
		updated = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete product %d: %w", id, domain.ErrProductReferenced)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return expectAffected(res, domain.ErrProductNotFound)
}

func (r *productRepository) Categories(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.store.db.QueryContext(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func mapProductWriteError(op string, sellerID int64, err error) error {
	switch {
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: seller %d: %w", op, sellerID, domain.ErrSellerNotFound)
	case isCheckViolation(err):
		return domain.NewValidationError("", fmt.Sprintf("constraint %s violated", violatedConstraint(err)))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product     domain.Product
		description sql.NullString
	)
	err := row.Scan(
		&product.ID, &product.Name, &description, &product.Price, &product.Stock,
		&product.Category, &product.SellerID, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	product.Description = stringPtr(description)
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
