package model

import "time"

// Service is a static catalog entry. Price is in whole currency units (lei).
type Service struct {
	Name     string
	Duration time.Duration
	Price    int
}

// Appointment is a booked interval. Service and Price are snapshots taken at
// booking time; later catalog changes never touch stored rows. An appointment
// is never mutated after creation: cancellation deletes the row.
type Appointment struct {
	ID          int64
	OwnerID     int64
	ClientName  string
	ClientPhone string
	Service     string
	Price       int
	StartTime   time.Time
	EndTime     time.Time
	CreatedAt   time.Time
}
