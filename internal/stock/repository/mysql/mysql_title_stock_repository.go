// Package mysql implements title stock persistence on MySQL.
package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/almacen/catalog/internal/database"
	apperrors "github.com/almacen/catalog/internal/errors"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

const titleColumns = `id, name, available_stock, is_active, rating, total_ratings, version, created_at, updated_at`

// MySQLTitleStockRepository handles title stock persistence for MySQL (InnoDB).
type MySQLTitleStockRepository struct {
	db *sql.DB
}

// NewMySQLTitleStockRepository creates a new MySQLTitleStockRepository.
func NewMySQLTitleStockRepository(db *sql.DB) *MySQLTitleStockRepository {
	return &MySQLTitleStockRepository{db: db}
}

// Create inserts a new title.
func (r *MySQLTitleStockRepository) Create(ctx context.Context, title *stockDomain.TitleStock) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO titles (id, name, available_stock, is_active, version, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		title.ID,
		title.Name,
		title.AvailableStock,
		title.IsActive,
		title.Version,
		title.CreatedAt,
		title.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return stockDomain.ErrTitleAlreadyExists
		}
		return apperrors.Wrap(database.ClassifyError(err), "failed to create title")
	}
	return nil
}

// GetByID reads a title without locking it.
func (r *MySQLTitleStockRepository) GetByID(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + titleColumns + ` FROM titles WHERE id = ?`

	return r.scanOne(querier.QueryRowContext(ctx, query, id), "failed to get title by id")
}

// GetForUpdate reads a title with an exclusive InnoDB row lock.
func (r *MySQLTitleStockRepository) GetForUpdate(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + titleColumns + ` FROM titles WHERE id = ? FOR UPDATE`

	return r.scanOne(querier.QueryRowContext(ctx, query, id), "failed to lock title")
}

// List returns titles ordered by id.
func (r *MySQLTitleStockRepository) List(ctx context.Context, offset, limit int) ([]*stockDomain.TitleStock, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + titleColumns + ` FROM titles ORDER BY id ASC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(database.ClassifyError(err), "failed to list titles")
	}
	defer rows.Close() //nolint:errcheck

	titles := make([]*stockDomain.TitleStock, 0)
	for rows.Next() {
		var title stockDomain.TitleStock
		if err := rows.Scan(
			&title.ID,
			&title.Name,
			&title.AvailableStock,
			&title.IsActive,
			&title.Rating,
			&title.TotalRatings,
			&title.Version,
			&title.CreatedAt,
			&title.UpdatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan title")
		}
		titles = append(titles, &title)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(database.ClassifyError(err), "failed to iterate titles")
	}

	return titles, nil
}

// DecrementStock subtracts quantity and bumps the version, never below zero.
func (r *MySQLTitleStockRepository) DecrementStock(ctx context.Context, id int64, quantity decimal.Decimal) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE titles
			  SET available_stock = available_stock - ?, version = version + 1, updated_at = CURRENT_TIMESTAMP(6)
			  WHERE id = ? AND available_stock >= ?`

	result, err := querier.ExecContext(ctx, query, quantity, id, quantity)
	if err != nil {
		return apperrors.Wrap(database.ClassifyError(err), "failed to decrement stock")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return stockDomain.ErrInsufficientStock
	}
	return nil
}

// Update stores name, stock and status and bumps the version.
func (r *MySQLTitleStockRepository) Update(ctx context.Context, title *stockDomain.TitleStock) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE titles
			  SET name = ?, available_stock = ?, is_active = ?, version = version + 1, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		title.Name,
		title.AvailableStock,
		title.IsActive,
		title.UpdatedAt,
		title.ID,
	)
	if err != nil {
		return apperrors.Wrap(database.ClassifyError(err), "failed to update title")
	}

	// MySQL reports matched rows only when the row changed; version always changes here.
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return stockDomain.ErrTitleNotFound
	}
	return nil
}

// UpdateRating stores the rating columns and bumps the version. Stock and status
// are left untouched.
func (r *MySQLTitleStockRepository) UpdateRating(ctx context.Context, title *stockDomain.TitleStock) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE titles
			  SET rating = ?, total_ratings = ?, version = version + 1, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, title.Rating, title.TotalRatings, title.UpdatedAt, title.ID)
	if err != nil {
		return apperrors.Wrap(database.ClassifyError(err), "failed to update title rating")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return stockDomain.ErrTitleNotFound
	}
	return nil
}

func (r *MySQLTitleStockRepository) scanOne(row *sql.Row, errMsg string) (*stockDomain.TitleStock, error) {
	var title stockDomain.TitleStock
	err := row.Scan(
		&title.ID,
		&title.Name,
		&title.AvailableStock,
		&title.IsActive,
		&title.Rating,
		&title.TotalRatings,
		&title.Version,
		&title.CreatedAt,
		&title.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stockDomain.ErrTitleNotFound
		}
		return nil, apperrors.Wrap(database.ClassifyError(err), errMsg)
	}
	return &title, nil
}
