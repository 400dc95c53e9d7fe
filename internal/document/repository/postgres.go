package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/collabtext/collabtext/internal/database"
	"github.com/collabtext/collabtext/internal/document"
)

// PostgresRepo stores document records in the documents table.
type PostgresRepo struct {
	db database.DBTX
}

func NewPostgresRepo(db database.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, doc *document.Document) (int64, error) {
	query :=
		`INSERT INTO documents (name, user_id)
		 VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, doc.Name, doc.CreatorID).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return doc.ID, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (*document.Document, error) {
	query :=
		`SELECT id, name, user_id, created_at, updated_at FROM documents
		 WHERE id = $1`

	d := &document.Document{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Name, &d.CreatorID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]*document.Document, error) {
	query :=
		`SELECT id, name, user_id, created_at, updated_at FROM documents
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*document.Document{}
	for rows.Next() {
		d := &document.Document{}
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatorID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Rename(ctx context.Context, id int64, name string) error {
	query :=
		`UPDATE documents SET name = $1, updated_at = now()
		 WHERE id = $2`

	return r.execOne(ctx, query, name, id)
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM documents WHERE id = $1`, id)
}

func (r *PostgresRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
