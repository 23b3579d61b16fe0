package domain

import "time"

// RiderAvailability is ephemeral-but-persisted presence state for one rider.
// Created on first heartbeat, never hard-deleted; a rider whose last_seen
// falls outside the staleness window is treated as offline.
type RiderAvailability struct {
	RiderID        string    `json:"rider_id" db:"rider_id"`
	IsOnline       bool      `json:"is_online" db:"is_online"`
	IsAvailable    bool      `json:"is_available" db:"is_available"`
	CurrentOrderID *string   `json:"current_order_id,omitempty" db:"current_order_id"`
	CurrentLat     *float64  `json:"current_lat,omitempty" db:"current_lat"`
	CurrentLng     *float64  `json:"current_lng,omitempty" db:"current_lng"`
	LastSeen       time.Time `json:"last_seen" db:"last_seen"`
}

// Location is an optional coordinate pair piggybacked on heartbeats. It is
// stored for support tooling only; eligibility never ranks by proximity.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Eligible reports whether the rider may receive opportunities at time now.
func (r *RiderAvailability) Eligible(now time.Time, staleAfter time.Duration) bool {
	if !r.IsOnline || !r.IsAvailable || r.CurrentOrderID != nil {
		return false
	}
	return now.Sub(r.LastSeen) <= staleAfter
}
