package alerts

import (
	"fmt"
	"math"

	"github.com/Staysteady/bpipe/internal/models"
)

// Thresholds holds the alert rule settings from config.
// A zero value (or missing price limit) disables that rule.
type Thresholds struct {
	PriceChangePct  float64
	VolumeSpikeMult float64
	PriceLimits     map[string]float64 // metal name -> absolute price limit
}

// Engine evaluates alert rules against fresh quotes. It is pure: storage
// and lifecycle of the produced alerts belong to the caller.
type Engine struct {
	thresholds Thresholds
}

func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Evaluate returns zero or more alerts triggered by the current quote.
// previous is the last stored observation for the same metal (nil when the
// metal has no history); stats is the trailing window used for the volume
// baseline. Alert IDs are stable per (metal, rule), so re-triggering the
// same rule re-arms the existing record instead of piling up rows.
func (e *Engine) Evaluate(current models.MetalPrice, previous *models.MetalPrice, stats *models.PriceStats) []models.Alert {
	var out []models.Alert

	if limit, ok := e.thresholds.PriceLimits[current.MetalName]; ok && limit > 0 && current.Price >= limit {
		out = append(out, models.Alert{
			ID:             alertID(current.MetalName, models.AlertPriceThreshold),
			MetalName:      current.MetalName,
			AlertType:      models.AlertPriceThreshold,
			ThresholdValue: limit,
			CurrentValue:   current.Price,
			TriggeredAt:    current.Timestamp,
			Message: fmt.Sprintf("%s at $%.2f, above limit $%.2f",
				current.MetalName, current.Price, limit),
			IsActive: true,
		})
	}

	if e.thresholds.PriceChangePct > 0 && previous != nil && previous.Price != 0 {
		changePct := (current.Price - previous.Price) / previous.Price * 100
		if math.Abs(changePct) >= e.thresholds.PriceChangePct {
			out = append(out, models.Alert{
				ID:             alertID(current.MetalName, models.AlertPercentageChange),
				MetalName:      current.MetalName,
				AlertType:      models.AlertPercentageChange,
				ThresholdValue: e.thresholds.PriceChangePct,
				CurrentValue:   changePct,
				TriggeredAt:    current.Timestamp,
				Message: fmt.Sprintf("%s moved %+.2f%% ($%.2f -> $%.2f)",
					current.MetalName, changePct, previous.Price, current.Price),
				IsActive: true,
			})
		}
	}

	if e.thresholds.VolumeSpikeMult > 0 && current.Volume != nil && stats != nil && stats.AvgVolume > 0 {
		if *current.Volume >= stats.AvgVolume*e.thresholds.VolumeSpikeMult {
			out = append(out, models.Alert{
				ID:             alertID(current.MetalName, models.AlertVolumeSpike),
				MetalName:      current.MetalName,
				AlertType:      models.AlertVolumeSpike,
				ThresholdValue: stats.AvgVolume * e.thresholds.VolumeSpikeMult,
				CurrentValue:   *current.Volume,
				TriggeredAt:    current.Timestamp,
				Message: fmt.Sprintf("%s volume %.0f is %.1fx the %.0f average",
					current.MetalName, *current.Volume, *current.Volume/stats.AvgVolume, stats.AvgVolume),
				IsActive: true,
			})
		}
	}

	return out
}

func alertID(metal, alertType string) string {
	return metal + ":" + alertType
}
