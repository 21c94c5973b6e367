package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Staysteady/bpipe/internal/db"
	"github.com/Staysteady/bpipe/internal/models"
)

type SummaryRepo struct {
	db *db.DB
}

func NewSummaryRepo(d *db.DB) *SummaryRepo {
	return &SummaryRepo{db: d}
}

// Build computes the OHLC rollup for one metal on one calendar day from the
// raw observations and upserts it into daily_summaries. Returns nil (no
// summary) when the day has no observations. Rebuilding for the same key
// fully overwrites the prior row, so repeated calls are idempotent.
func (r *SummaryRepo) Build(ctx context.Context, date, metal string) (*models.DailySummary, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	// open/close are the chronologically first/last prices of the day.
	row := conn.QueryRowContext(ctx,
		`SELECT arg_min(price, timestamp),
		        MAX(price),
		        MIN(price),
		        arg_max(price, timestamp),
		        AVG(price),
		        COALESCE(SUM(volume), 0),
		        COUNT(*)
		 FROM metals_prices
		 WHERE metal_name = ?
		 AND CAST(timestamp AS DATE) = CAST(? AS DATE)`,
		metal, date,
	)

	var open, high, low, closing, avg sql.NullFloat64
	var totalVolume float64
	var count int64
	if err := row.Scan(&open, &high, &low, &closing, &avg, &totalVolume, &count); err != nil {
		return nil, fmt.Errorf("aggregate day: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	change := closing.Float64 - open.Float64
	changePct := 0.0
	if open.Float64 != 0 {
		changePct = change / open.Float64 * 100
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO daily_summaries (
			date, metal_name, open_price, high_price, low_price,
			close_price, avg_price, total_volume, price_change, price_change_pct
		) VALUES (CAST(? AS DATE), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, metal_name) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			avg_price = EXCLUDED.avg_price,
			total_volume = EXCLUDED.total_volume,
			price_change = EXCLUDED.price_change,
			price_change_pct = EXCLUDED.price_change_pct`,
		date, metal, open.Float64, high.Float64, low.Float64,
		closing.Float64, avg.Float64, totalVolume, change, changePct,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert summary: %w", err)
	}

	return r.Get(ctx, date, metal)
}

// Get returns the stored summary for (date, metal), or nil when absent.
func (r *SummaryRepo) Get(ctx context.Context, date, metal string) (*models.DailySummary, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	row := conn.QueryRowContext(ctx,
		`SELECT CAST(date AS VARCHAR), metal_name, open_price, high_price, low_price,
		        close_price, avg_price, total_volume, price_change, price_change_pct,
		        created_at
		 FROM daily_summaries
		 WHERE date = CAST(? AS DATE) AND metal_name = ?`,
		date, metal,
	)

	var s models.DailySummary
	err = row.Scan(
		&s.Date, &s.MetalName, &s.OpenPrice, &s.HighPrice, &s.LowPrice,
		&s.ClosePrice, &s.AvgPrice, &s.TotalVolume, &s.PriceChange,
		&s.PriceChangePct, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &s, nil
}
