package entity

import (
	"time"

	"github.com/google/uuid"

	coreEntity "go-meeting-core/core/entity"
)

// Resource is a bookable asset pool: rooms, projectors, parking spots.
// Capacity is the number of units that can be reserved for the same window.
type Resource struct {
	coreEntity.BaseEntity
	Type     string `db:"type" json:"type"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
	Location string `db:"location" json:"location"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

func (Resource) TableName() string { return "resources" }

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationReleased  ReservationStatus = "released"
)

// Reservation holds units of one resource for a time window.
type Reservation struct {
	coreEntity.BaseEntity
	ResourceID uuid.UUID         `db:"resource_id" json:"resource_id"`
	Quantity   int               `db:"quantity" json:"quantity"`
	StartTime  time.Time         `db:"start_time" json:"start_time"`
	EndTime    time.Time         `db:"end_time" json:"end_time"`
	Status     ReservationStatus `db:"status" json:"status"`
}

func (Reservation) TableName() string { return "resource_reservations" }

// Overlaps reports half-open interval overlap with [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}
