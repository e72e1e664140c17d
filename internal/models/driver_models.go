package models

import "time"

// Driver is the courier profile attached to a principal. is_available is
// the only resource contended by concurrent dispatch attempts; it is
// claimed with a conditional update, first writer wins.
type Driver struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	VehicleType      *string    `json:"vehicle_type,omitempty"`
	LicenseNumber    *string    `json:"license_number,omitempty"`
	IsAvailable      bool       `json:"is_available"`
	IsApproved       bool       `json:"is_approved"`
	CurrentLatitude  *float64   `json:"current_latitude,omitempty"`
	CurrentLongitude *float64   `json:"current_longitude,omitempty"`
	TotalDeliveries  int        `json:"total_deliveries"`
	Rating           *float64   `json:"rating,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AvailabilityRequest toggles whether the driver accepts new assignments.
type AvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

// LocationPing updates the driver's last known position.
type LocationPing struct {
	Latitude  float64 `json:"latitude" validate:"required,latitude"`
	Longitude float64 `json:"longitude" validate:"required,longitude"`
}

// DriverApplication registers a principal as a driver pending approval.
type DriverApplication struct {
	VehicleType   string `json:"vehicle_type" validate:"required"`
	LicenseNumber string `json:"license_number" validate:"required"`
}
