package models

import "time"

// Alert kinds. The value is stored as-is in the alerts table.
const (
	AlertPriceThreshold   = "price_threshold"
	AlertPercentageChange = "percentage_change"
	AlertVolumeSpike      = "volume_spike"
)

// Alert is a keyed threshold-breach record. Storing the same ID again
// overwrites every field, which is how alerts get re-armed.
type Alert struct {
	ID             string    `json:"id"`
	MetalName      string    `json:"metalName"`
	AlertType      string    `json:"alertType"`
	ThresholdValue float64   `json:"thresholdValue"`
	CurrentValue   float64   `json:"currentValue"`
	TriggeredAt    time.Time `json:"triggeredAt"`
	Message        string    `json:"message"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}
