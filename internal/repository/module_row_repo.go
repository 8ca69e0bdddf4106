package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/secret"
)

var ErrNotFound = errors.New("not found")

const moduleRowColumns = `
	id, server_name, host_name, api_key, use_ssl,
	account_limit, account_count, name_servers, notes,
	created_at, updated_at`

// ModuleRowRepository stores panel servers. API keys are encrypted at rest.
type ModuleRowRepository struct {
	pool *pgxpool.Pool
	box  *secret.Box
}

func NewModuleRowRepository(pool *pgxpool.Pool, box *secret.Box) *ModuleRowRepository {
	return &ModuleRowRepository{pool: pool, box: box}
}

func (r *ModuleRowRepository) Create(ctx context.Context, row *models.ModuleRow) error {
	apiKey, err := r.box.Seal(row.APIKey)
	if err != nil {
		return fmt.Errorf("seal api key: %w", err)
	}

	query := `
		INSERT INTO cwp.module_rows (
			server_name, host_name, api_key, use_ssl,
			account_limit, account_count, name_servers, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = r.pool.QueryRow(ctx, query,
		row.ServerName, row.HostName, apiKey, row.UseSSL,
		row.AccountLimit, row.AccountCount, row.NameServers, row.Notes,
	).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert module_row: %w", err)
	}
	return nil
}

func (r *ModuleRowRepository) GetByID(ctx context.Context, id int64) (*models.ModuleRow, error) {
	query := `SELECT ` + moduleRowColumns + ` FROM cwp.module_rows WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *ModuleRowRepository) List(ctx context.Context) ([]*models.ModuleRow, error) {
	query := `SELECT ` + moduleRowColumns + ` FROM cwp.module_rows ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query module_rows: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *ModuleRowRepository) Update(ctx context.Context, row *models.ModuleRow) error {
	apiKey, err := r.box.Seal(row.APIKey)
	if err != nil {
		return fmt.Errorf("seal api key: %w", err)
	}

	query := `
		UPDATE cwp.module_rows SET
			server_name = $1,
			host_name = $2,
			api_key = $3,
			use_ssl = $4,
			account_limit = $5,
			account_count = $6,
			name_servers = $7,
			notes = $8,
			updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`
	err = r.pool.QueryRow(ctx, query,
		row.ServerName, row.HostName, apiKey, row.UseSSL,
		row.AccountLimit, row.AccountCount, row.NameServers, row.Notes,
		row.ID,
	).Scan(&row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update module_row: %w", err)
	}
	return nil
}

func (r *ModuleRowRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cwp.module_rows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete module_row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustAccountCount adds delta to the row's account count, never below zero
func (r *ModuleRowRepository) AdjustAccountCount(ctx context.Context, id int64, delta int) error {
	query := `
		UPDATE cwp.module_rows
		SET account_count = GREATEST(account_count + $1, 0), updated_at = NOW()
		WHERE id = $2
	`
	tag, err := r.pool.Exec(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("update module_row account_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ModuleRowRepository) scanOne(row pgx.Row) (*models.ModuleRow, error) {
	mr, err := r.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan module_row: %w", err)
	}
	return mr, nil
}

func (r *ModuleRowRepository) scanMany(rows pgx.Rows) ([]*models.ModuleRow, error) {
	var results []*models.ModuleRow
	for rows.Next() {
		mr, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module_row row: %w", err)
		}
		results = append(results, mr)
	}
	return results, rows.Err()
}

func (r *ModuleRowRepository) scan(row pgx.Row) (*models.ModuleRow, error) {
	mr := &models.ModuleRow{}
	var sealed string
	err := row.Scan(
		&mr.ID, &mr.ServerName, &mr.HostName, &sealed, &mr.UseSSL,
		&mr.AccountLimit, &mr.AccountCount, &mr.NameServers, &mr.Notes,
		&mr.CreatedAt, &mr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	mr.APIKey, err = r.box.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open api key of row %d: %w", mr.ID, err)
	}
	return mr, nil
}
