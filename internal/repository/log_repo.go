package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
)

type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Create records traffic with a panel server
func (r *LogRepository) Create(ctx context.Context, entry *models.ModuleLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO cwp.module_logs (id, module_row_id, channel, payload, direction, success)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.ModuleRowID, entry.Channel, entry.Payload, entry.Direction, entry.Success,
	)
	if err != nil {
		return fmt.Errorf("insert module log: %w", err)
	}
	return nil
}

// GetByModuleRow returns the latest entries of a server row, newest first
func (r *LogRepository) GetByModuleRow(ctx context.Context, moduleRowID int64, limit int) ([]*models.ModuleLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, module_row_id, channel, payload, direction, success, created_at
		FROM cwp.module_logs
		WHERE module_row_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, moduleRowID, limit)
	if err != nil {
		return nil, fmt.Errorf("query module logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ModuleLog
	for rows.Next() {
		entry := &models.ModuleLog{}
		err := rows.Scan(
			&entry.ID, &entry.ModuleRowID, &entry.Channel, &entry.Payload,
			&entry.Direction, &entry.Success, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan module log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// LogAction is a helper to log one side of a panel call
func (r *LogRepository) LogAction(ctx context.Context, moduleRowID int64, channel, payload, direction string, success bool) error {
	return r.Create(ctx, &models.ModuleLog{
		ModuleRowID: moduleRowID,
		Channel:     channel,
		Payload:     payload,
		Direction:   direction,
		Success:     success,
	})
}
