// Package postgresql implements title stock persistence on PostgreSQL.
package postgresql

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

// PostgreSQLTitleStockRepository handles title stock persistence for PostgreSQL.
// All methods run on the transaction carried in the context when there is one.
type PostgreSQLTitleStockRepository struct {
	db *sql.DB
}

// NewPostgreSQLTitleStockRepository creates a new PostgreSQLTitleStockRepository.
func NewPostgreSQLTitleStockRepository(db *sql.DB) *PostgreSQLTitleStockRepository {
	return &PostgreSQLTitleStockRepository{db: db}
}

// Create inserts a new title.
func (r *PostgreSQLTitleStockRepository) Create(ctx context.Context, title *stockDomain.TitleStock) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO titles (id, name, available_stock, is_active, version, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

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
func (r *PostgreSQLTitleStockRepository) GetByID(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + titleColumns + ` FROM titles WHERE id = $1`

	return r.scanOne(querier.QueryRowContext(ctx, query, id), "failed to get title by id")
}

// GetForUpdate reads a title and holds an exclusive row lock on it until the
// surrounding transaction ends. A missing row returns ErrTitleNotFound.
func (r *PostgreSQLTitleStockRepository) GetForUpdate(
	ctx context.Context,
	id int64,
) (*stockDomain.TitleStock, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + titleColumns + ` FROM titles WHERE id = $1 FOR UPDATE`

	return r.scanOne(querier.QueryRowContext(ctx, query, id), "failed to lock title")
}

// List returns titles ordered by id.
func (r *PostgreSQLTitleStockRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*stockDomain.TitleStock, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + titleColumns + ` FROM titles ORDER BY id ASC LIMIT $1 OFFSET $2`

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

// DecrementStock subtracts quantity from the title's stock and bumps its version.
// The update is guarded so stock can never go negative; a guard miss returns
// ErrInsufficientStock.
func (r *PostgreSQLTitleStockRepository) DecrementStock(
	ctx context.Context,
	id int64,
	quantity decimal.Decimal,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE titles
			  SET available_stock = available_stock - $1, version = version + 1, updated_at = NOW()
			  WHERE id = $2 AND available_stock >= $1`

	result, err := querier.ExecContext(ctx, query, quantity, id)
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
func (r *PostgreSQLTitleStockRepository) Update(ctx context.Context, title *stockDomain.TitleStock) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE titles
			  SET name = $1, available_stock = $2, is_active = $3, version = version + 1, updated_at = $4
			  WHERE id = $5`

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
func (r *PostgreSQLTitleStockRepository) UpdateRating(ctx context.Context, title *stockDomain.TitleStock) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE titles
			  SET rating = $1, total_ratings = $2, version = version + 1, updated_at = $3
			  WHERE id = $4`

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

func (r *PostgreSQLTitleStockRepository) scanOne(row *sql.Row, errMsg string) (*stockDomain.TitleStock, error) {
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
