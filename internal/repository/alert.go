package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Staysteady/bpipe/internal/db"
	"github.com/Staysteady/bpipe/internal/models"
)

type AlertRepo struct {
	db *db.DB
}

func NewAlertRepo(d *db.DB) *AlertRepo {
	return &AlertRepo{db: d}
}

// Put upserts the alert by id as a single conditional write. A second Put
// with the same id overwrites every field, which both re-arms and updates.
func (r *AlertRepo) Put(ctx context.Context, a *models.Alert) error {
	conn, err := r.db.Conn()
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO alerts (
			id, metal_name, alert_type, threshold_value,
			current_value, triggered_at, message, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			metal_name = EXCLUDED.metal_name,
			alert_type = EXCLUDED.alert_type,
			threshold_value = EXCLUDED.threshold_value,
			current_value = EXCLUDED.current_value,
			triggered_at = EXCLUDED.triggered_at,
			message = EXCLUDED.message,
			is_active = EXCLUDED.is_active`,
		a.ID, a.MetalName, a.AlertType, a.ThresholdValue,
		a.CurrentValue, a.TriggeredAt, a.Message, a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// Active lists active alerts, newest trigger first, optionally filtered to
// one metal (empty string = all). Lifecycle is the caller's problem; this
// store never deactivates anything on its own.
func (r *AlertRepo) Active(ctx context.Context, metal string) ([]models.Alert, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	query := `SELECT id, metal_name, alert_type, threshold_value, current_value,
	                 triggered_at, message, is_active, created_at
	          FROM alerts WHERE is_active = true`
	args := []any{}
	if metal != "" {
		query += ` AND metal_name = ?`
		args = append(args, metal)
	}
	query += ` ORDER BY triggered_at DESC`

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("active alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(
			&a.ID, &a.MetalName, &a.AlertType, &a.ThresholdValue,
			&a.CurrentValue, &a.TriggeredAt, &a.Message, &a.IsActive, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get returns one alert by id regardless of its active flag, nil when absent.
func (r *AlertRepo) Get(ctx context.Context, id string) (*models.Alert, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	row := conn.QueryRowContext(ctx,
		`SELECT id, metal_name, alert_type, threshold_value, current_value,
		        triggered_at, message, is_active, created_at
		 FROM alerts WHERE id = ?`, id)

	var a models.Alert
	err = row.Scan(
		&a.ID, &a.MetalName, &a.AlertType, &a.ThresholdValue,
		&a.CurrentValue, &a.TriggeredAt, &a.Message, &a.IsActive, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}
