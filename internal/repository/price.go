package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Staysteady/bpipe/internal/db"
	"github.com/Staysteady/bpipe/internal/models"
)

const priceColumns = `id, ticker, metal_name, price, currency, timestamp,
	bid, ask, volume, open_price, high, low, previous_close, created_at`

type PriceRepo struct {
	db *db.DB
}

func NewPriceRepo(d *db.DB) *PriceRepo {
	return &PriceRepo{db: d}
}

// Insert appends one observation. No value validation happens here; the
// ingestion side owns that.
func (r *PriceRepo) Insert(ctx context.Context, p *models.MetalPrice) error {
	conn, err := r.db.Conn()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		`INSERT INTO metals_prices (
			ticker, metal_name, price, currency, timestamp,
			bid, ask, volume, open_price, high, low, previous_close
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Ticker, p.MetalName, p.Price, p.Currency, p.Timestamp,
		p.Bid, p.Ask, p.Volume, p.OpenPrice, p.High, p.Low, p.PreviousClose,
	)
	if err != nil {
		return fmt.Errorf("insert price: %w", err)
	}
	return nil
}

// InsertBatch inserts each observation independently and returns how many
// succeeded. A bad row is logged and skipped, not fatal to the batch.
func (r *PriceRepo) InsertBatch(ctx context.Context, prices []models.MetalPrice) (int, error) {
	if _, err := r.db.Conn(); err != nil {
		return 0, err
	}

	stored := 0
	for i := range prices {
		if err := r.Insert(ctx, &prices[i]); err != nil {
			fmt.Printf("[DB] Skipping price row for %s: %v\n", prices[i].MetalName, err)
			continue
		}
		stored++
	}
	return stored, nil
}

// Latest returns the most recent observation per metal. With no filter it
// covers every metal present in the store. Ties on timestamp are broken by
// insertion id, so the result is deterministic.
func (r *PriceRepo) Latest(ctx context.Context, metals []string) ([]models.MetalPrice, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	filter := ""
	args := make([]any, 0, len(metals))
	if len(metals) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(metals)), ",")
		filter = "WHERE metal_name IN (" + placeholders + ")"
		for _, m := range metals {
			args = append(args, m)
		}
	}

	query := fmt.Sprintf(`
		WITH ranked AS (
			SELECT %s,
			       ROW_NUMBER() OVER (
			           PARTITION BY metal_name
			           ORDER BY timestamp DESC, id DESC
			       ) AS rn
			FROM metals_prices
			%s
		)
		SELECT %s FROM ranked WHERE rn = 1 ORDER BY metal_name ASC`,
		priceColumns, filter, priceColumns)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("latest prices: %w", err)
	}
	defer rows.Close()
	return collectPrices(rows)
}

// Range returns all observations for a metal inside [start, end], ascending
// by timestamp. An empty window is an empty slice, not an error.
func (r *PriceRepo) Range(ctx context.Context, metal string, start, end time.Time) ([]models.MetalPrice, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT `+priceColumns+`
		 FROM metals_prices
		 WHERE metal_name = ?
		 AND timestamp BETWEEN ? AND ?
		 ORDER BY timestamp ASC`,
		metal, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("range prices: %w", err)
	}
	defer rows.Close()
	return collectPrices(rows)
}

// Statistics aggregates the trailing window of `days` days for a metal.
// STDDEV here is the sample formula. No qualifying rows yields all zeros.
func (r *PriceRepo) Statistics(ctx context.Context, metal string, days int) (*models.PriceStats, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -days)

	row := conn.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        AVG(price),
		        MIN(price),
		        MAX(price),
		        STDDEV(price),
		        AVG(volume),
		        SUM(volume)
		 FROM metals_prices
		 WHERE metal_name = ?
		 AND timestamp >= ?`,
		metal, cutoff,
	)

	var stats models.PriceStats
	var avg, min, max, stddev, avgVol, totVol sql.NullFloat64
	if err := row.Scan(&stats.DataPoints, &avg, &min, &max, &stddev, &avgVol, &totVol); err != nil {
		return nil, fmt.Errorf("price statistics: %w", err)
	}

	stats.AvgPrice = avg.Float64
	stats.MinPrice = min.Float64
	stats.MaxPrice = max.Float64
	stats.PriceStddev = stddev.Float64
	stats.AvgVolume = avgVol.Float64
	stats.TotalVolume = totVol.Float64
	return &stats, nil
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanPrice(row scannable) (*models.MetalPrice, error) {
	var p models.MetalPrice
	var bid, ask, vol, open, high, low, prev sql.NullFloat64
	err := row.Scan(
		&p.ID, &p.Ticker, &p.MetalName, &p.Price, &p.Currency, &p.Timestamp,
		&bid, &ask, &vol, &open, &high, &low, &prev, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Bid = floatPtr(bid)
	p.Ask = floatPtr(ask)
	p.Volume = floatPtr(vol)
	p.OpenPrice = floatPtr(open)
	p.High = floatPtr(high)
	p.Low = floatPtr(low)
	p.PreviousClose = floatPtr(prev)
	return &p, nil
}

func collectPrices(rows *sql.Rows) ([]models.MetalPrice, error) {
	var out []models.MetalPrice
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
