package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/secret"
)

// ServiceRepository stores services and their meta fields. Fields flagged
// encrypted are sealed before they are written.
type ServiceRepository struct {
	pool *pgxpool.Pool
	box  *secret.Box
}

func NewServiceRepository(pool *pgxpool.Pool, box *secret.Box) *ServiceRepository {
	return &ServiceRepository{pool: pool, box: box}
}

func (r *ServiceRepository) Create(ctx context.Context, svc *models.Service) error {
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO cwp.services (id, module_row_id, client_id, status)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, query, svc.ID, svc.ModuleRowID, svc.ClientID, svc.Status).
			Scan(&svc.CreatedAt, &svc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert service: %w", err)
		}
		return r.writeFields(ctx, tx, svc.ID, svc.Fields)
	})
}

func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*models.Service, error) {
	query := `
		SELECT id, module_row_id, client_id, status, created_at, updated_at
		FROM cwp.services
		WHERE id = $1
	`
	svc := &models.Service{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&svc.ID, &svc.ModuleRowID, &svc.ClientID, &svc.Status, &svc.CreatedAt, &svc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan service: %w", err)
	}

	svc.Fields, err = r.readFields(ctx, id)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// UpdateFields replaces every field of the service
func (r *ServiceRepository) UpdateFields(ctx context.Context, id string, fields []models.MetaField) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE cwp.services SET updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("touch service: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cwp.service_fields WHERE service_id = $1`, id); err != nil {
			return fmt.Errorf("delete service_fields: %w", err)
		}
		return r.writeFields(ctx, tx, id, fields)
	})
}

func (r *ServiceRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE cwp.services SET status = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update service status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ServiceRepository) writeFields(ctx context.Context, tx pgx.Tx, serviceID string, fields []models.MetaField) error {
	batch := &pgx.Batch{}
	for _, f := range fields {
		value := f.Value
		if f.Encrypted {
			sealed, err := r.box.Seal(f.Value)
			if err != nil {
				return fmt.Errorf("seal field %s: %w", f.Key, err)
			}
			value = sealed
		}
		batch.Queue(
			`INSERT INTO cwp.service_fields (service_id, key, value, encrypted) VALUES ($1, $2, $3, $4)`,
			serviceID, f.Key, value, f.Encrypted,
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert service_fields: %w", err)
	}
	return nil
}

func (r *ServiceRepository) readFields(ctx context.Context, serviceID string) ([]models.MetaField, error) {
	query := `
		SELECT key, value, encrypted
		FROM cwp.service_fields
		WHERE service_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("query service_fields: %w", err)
	}
	defer rows.Close()

	var fields []models.MetaField
	for rows.Next() {
		var f models.MetaField
		if err := rows.Scan(&f.Key, &f.Value, &f.Encrypted); err != nil {
			return nil, fmt.Errorf("scan service_field: %w", err)
		}
		if f.Encrypted {
			f.Value, err = r.box.Open(f.Value)
			if err != nil {
				return nil, fmt.Errorf("open field %s: %w", f.Key, err)
			}
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
