package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/storefront/backend/internal/domain/shared"
)

// TrackingStatus is the shipment progress of an order
type TrackingStatus string

const (
	TrackingStatusProcessing TrackingStatus = "processing"
	TrackingStatusShipped    TrackingStatus = "shipped"
	TrackingStatusInTransit  TrackingStatus = "in_transit"
	TrackingStatusDelivered  TrackingStatus = "delivered"
)

var trackingRank = map[TrackingStatus]int{
	TrackingStatusProcessing: 0,
	TrackingStatusShipped:    1,
	TrackingStatusInTransit:  2,
	TrackingStatusDelivered:  3,
}

// ParseTrackingStatus normalizes s to a TrackingStatus
func ParseTrackingStatus(s string) (TrackingStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "enviado":
		key = string(TrackingStatusShipped)
	case "en_transito", "in-transit":
		key = string(TrackingStatusInTransit)
	case "entregado":
		key = string(TrackingStatusDelivered)
	}
	status := TrackingStatus(key)
	if !status.IsValid() {
		return "", shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown tracking status %q", s))
	}
	return status, nil
}

// IsValid checks if the status is a known TrackingStatus
func (s TrackingStatus) IsValid() bool {
	_, ok := trackingRank[s]
	return ok
}

// String returns the string representation of TrackingStatus
func (s TrackingStatus) String() string {
	return string(s)
}

// Precedes reports whether s comes strictly before other in the shipment sequence
func (s TrackingStatus) Precedes(other TrackingStatus) bool {
	return trackingRank[s] < trackingRank[other]
}

// GeoPoint is a latitude/longitude pair in decimal degrees
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewGeoPoint validates coordinate ranges
func NewGeoPoint(lat, lng float64) (GeoPoint, error) {
	if lat < -90 || lat > 90 {
		return GeoPoint{}, shared.ErrInvalidInput.WithMessage("lat must be within [-90, 90]")
	}
	if lng < -180 || lng > 180 {
		return GeoPoint{}, shared.ErrInvalidInput.WithMessage("lng must be within [-180, 180]")
	}
	return GeoPoint{Lat: lat, Lng: lng}, nil
}

// Destination is the delivery target shown on the tracking map
type Destination struct {
	GeoPoint
	Address string `json:"address"`
}

// TrackingPoint is one entry of the location history.
// Sequence is assigned by storage on insert and defines history order.
type TrackingPoint struct {
	GeoPoint
	RecordedAt time.Time `json:"timestamp"`
	Sequence   int64     `json:"sequence"`
}

// Tracking is the shipment state embedded in an order
type Tracking struct {
	Status          TrackingStatus  `json:"status"`
	CurrentLocation *GeoPoint       `json:"current_location,omitempty"`
	Destination     *Destination    `json:"destination,omitempty"`
	History         []TrackingPoint `json:"history"`
}

// NewTracking returns the initial tracking state of a fresh order
func NewTracking() Tracking {
	return Tracking{
		Status:  TrackingStatusProcessing,
		History: make([]TrackingPoint, 0),
	}
}
