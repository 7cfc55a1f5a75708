package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/domain"
)

// SourceCodeRepo — репозиторий для работы с source codes.
//
// Описание процесса хранится в исходном виде (YAML) в колонке source.
type SourceCodeRepo struct {
	pool *pgxpool.Pool
}

// NewSourceCodeRepo создаёт новый SourceCodeRepo.
func NewSourceCodeRepo(pool *pgxpool.Pool) *SourceCodeRepo {
	return &SourceCodeRepo{pool: pool}
}

// Create создаёт новый source code. UID должен быть уникальным.
func (r *SourceCodeRepo) Create(ctx context.Context, sc *domain.SourceCode) error {
	source, err := yaml.Marshal(sc.Spec)
	if err != nil {
		return fmt.Errorf("marshal source: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO source_codes (id, uid, source, created_at)
		VALUES ($1, $2, $3, $4)
	`, sc.ID, sc.UID, string(source), sc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert source code: %w", err)
	}
	return nil
}

// GetByID возвращает source code по ID.
func (r *SourceCodeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SourceCode, error) {
	return scanSourceCode(r.pool.QueryRow(ctx, `
		SELECT id, uid, source, created_at FROM source_codes WHERE id = $1
	`, id))
}

// GetByUID возвращает source code по UID.
func (r *SourceCodeRepo) GetByUID(ctx context.Context, uid string) (*domain.SourceCode, error) {
	return scanSourceCode(r.pool.QueryRow(ctx, `
		SELECT id, uid, source, created_at FROM source_codes WHERE uid = $1
	`, uid))
}

// List возвращает все source codes.
func (r *SourceCodeRepo) List(ctx context.Context) ([]domain.SourceCode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, uid, source, created_at FROM source_codes ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list source codes: %w", err)
	}
	defer rows.Close()

	var out []domain.SourceCode
	for rows.Next() {
		sc, err := scanSourceCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// Delete удаляет source code.
func (r *SourceCodeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM source_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSourceCode(row pgx.Row) (*domain.SourceCode, error) {
	var sc domain.SourceCode
	var source string

	err := row.Scan(&sc.ID, &sc.UID, &source, &sc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan source code: %w", err)
	}

	if err := yaml.Unmarshal([]byte(source), &sc.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal source: %w", err)
	}
	return &sc, nil
}
