package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type sellerRepository struct {
	db *sql.DB
}

// NewSellerRepository создаёт PostgreSQL-реализацию SellerRepository.
func NewSellerRepository(store *Store) domain.SellerRepository {
	return &sellerRepository{db: store.DB()}
}

func (r *sellerRepository) Create(ctx context.Context, seller domain.Seller) (domain.Seller, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	seller.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sellers (name, email, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, seller.Name, seller.Email, seller.CreatedAt).Scan(&seller.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Seller{}, fmt.Errorf("create seller: %w", domain.ErrSellerEmailTaken)
		}
		return domain.Seller{}, fmt.Errorf("insert seller: %w", err)
	}
	return seller, nil
}

func (r *sellerRepository) Get(ctx context.Context, id int64) (domain.Seller, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var seller domain.Seller
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM sellers WHERE id = $1
	`, id).Scan(&seller.ID, &seller.Name, &seller.Email, &seller.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Seller{}, domain.ErrSellerNotFound
		}
		return domain.Seller{}, fmt.Errorf("select seller: %w", err)
	}
	seller.CreatedAt = seller.CreatedAt.UTC()
	return seller, nil
}

func (r *sellerRepository) List(ctx context.Context) ([]domain.Seller, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email, created_at FROM sellers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}
	defer rows.Close()

	sellers := make([]domain.Seller, 0)
	for rows.Next() {
		var seller domain.Seller
		if err := rows.Scan(&seller.ID, &seller.Name, &seller.Email, &seller.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan seller row: %w", err)
		}
		seller.CreatedAt = seller.CreatedAt.UTC()
		sellers = append(sellers, seller)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seller rows: %w", err)
	}
	return sellers, nil
}

var _ domain.SellerRepository = (*sellerRepository)(nil)
