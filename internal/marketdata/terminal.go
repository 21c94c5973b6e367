// Package marketdata supplies LME metal quotes from a terminal feed.
// Two implementations exist: a deterministic mock for development and a
// live HTTP client. Both fail fast when used before Connect.
package marketdata

import (
	"context"
	"errors"

	"github.com/Staysteady/bpipe/internal/models"
)

// ErrNotConnected is returned by Quotes before Connect (or after Disconnect).
var ErrNotConnected = errors.New("not connected to terminal")

// Source is the terminal feed consumed by the collector.
// metals maps metal name to terminal ticker.
type Source interface {
	Connect(ctx context.Context) error
	Disconnect()
	Quotes(ctx context.Context, metals map[string]string) ([]models.MetalPrice, error)
}
